package ai

import "context"

// Analyzer reads face shape and hair attributes from a portrait and recommends hairstyles.
type Analyzer interface {
	Name() string
	AnalyzeFace(ctx context.Context, imageData []byte) (*FaceAnalysis, error)
	// ExplainStyle says why a hairstyle suits the analyzed face.
	ExplainStyle(ctx context.Context, analysis *FaceAnalysis, style string) (string, error)

	// Usage tracking.
	GetUsage() *Usage
	ResetUsage()
}

// Editor repaints the hair region of a square canvas.
type Editor interface {
	Name() string
	EditHair(ctx context.Context, req EditRequest) ([]byte, error)
	GetUsage() *Usage
}

// Usage tracks token usage and calculates cost.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Images       int
	TotalCost    float64 // in USD
}

// FaceAnalysis is the analyzer's reading of a portrait.
type FaceAnalysis struct {
	FaceShape       string                    `json:"faceShape"`
	Description     string                    `json:"description"`
	Gender          string                    `json:"gender"`
	SkinTone        string                    `json:"skinTone"`
	HairColor       string                    `json:"hairColor"`
	AgeApprox       string                    `json:"ageApprox"`
	Recommendations []HairstyleRecommendation `json:"recommendations"`
}

// HairstyleRecommendation is one suggested style.
type HairstyleRecommendation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Reason      string `json:"reason"`
}

// Recommendation returns the recommendation with the given ID or name (case-insensitive).
func (a *FaceAnalysis) Recommendation(idOrName string) (HairstyleRecommendation, bool) {
	for _, r := range a.Recommendations {
		if equalFold(r.ID, idOrName) || equalFold(r.Name, idOrName) {
			return r, true
		}
	}
	return HairstyleRecommendation{}, false
}

// EditRequest is a hair edit of one canvas. Canvas and Mask are PNGs of identical square size;
// transparent mask pixels may be repainted.
type EditRequest struct {
	Canvas   []byte
	Mask     []byte
	Style    string
	Analysis *FaceAnalysis // optional, refines the prompt
}
