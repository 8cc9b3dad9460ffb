package ai

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

//go:embed prompts/face_analysis.txt
var faceAnalysisPrompt string

//go:embed prompts/style_explanation.txt
var styleExplanationPrompt string

const maxRetries = 5

const jsonRetryMessage = "JSON parse error: %v. Please fix the JSON and try again. Remember to escape quotes inside strings with backslash. Output ONLY valid JSON, no other text."

func equalFold(a, b string) bool {
	return a != "" && strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// stripCodeFences removes markdown code fences models sometimes wrap JSON in.
func stripCodeFences(content string) string {
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

// extractJSON attempts to extract JSON from a response that may contain extra text
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return content
	}

	depth := 0
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}

	return content[start:]
}

// parseFaceAnalysis decodes a model response into a FaceAnalysis.
func parseFaceAnalysis(content string) (*FaceAnalysis, error) {
	var analysis FaceAnalysis
	if err := json.Unmarshal([]byte(extractJSON(stripCodeFences(content))), &analysis); err != nil {
		return nil, err
	}
	if analysis.FaceShape == "" {
		return nil, errors.New("missing faceShape")
	}
	if len(analysis.Recommendations) == 0 {
		return nil, errors.New("no hairstyle recommendations")
	}
	return &analysis, nil
}

func parseExplanation(content string) (string, error) {
	var resp struct {
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(extractJSON(stripCodeFences(content))), &resp); err != nil {
		return "", err
	}
	if resp.Explanation == "" {
		return "", errors.New("empty explanation")
	}
	return resp.Explanation, nil
}

// buildStyleContent describes the face and chosen style for ExplainStyle.
func buildStyleContent(analysis *FaceAnalysis, style string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Face shape: %s\n", analysis.FaceShape)
	if analysis.Description != "" {
		fmt.Fprintf(&b, "Face description: %s\n", analysis.Description)
	}
	fmt.Fprintf(&b, "Selected hairstyle: %q\n", style)
	return b.String()
}

// FallbackExplanation is shown when the analyzer can't explain a style.
func FallbackExplanation(analysis *FaceAnalysis) string {
	shape := "face"
	if analysis != nil && analysis.FaceShape != "" {
		shape = strings.ToLower(analysis.FaceShape) + " face"
	}
	return fmt.Sprintf("This style is a great choice for your %s shape! It helps balance your features and highlights your best angles.", shape)
}

// BuildEditPrompt builds the image edit prompt. Without an analysis it only names the style.
func BuildEditPrompt(style string, analysis *FaceAnalysis) string {
	var b strings.Builder
	b.WriteString("A photorealistic photo of a person")
	if analysis != nil && analysis.SkinTone != "" && analysis.HairColor != "" {
		fmt.Fprintf(&b, " with %s skin and %s hair", strings.ToLower(analysis.SkinTone), strings.ToLower(analysis.HairColor))
	}
	b.WriteString(". ")
	fmt.Fprintf(&b, "Change their hairstyle to a %s. ", style)
	b.WriteString("Keep the face and background exactly as they are. High quality, realistic texture.")
	return b.String()
}
