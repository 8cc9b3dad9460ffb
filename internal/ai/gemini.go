package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/kozaktomas/maneifest/internal/constants"
)

const (
	geminiModel = "gemini-2.5-flash"

	// gemini-2.5-flash pricing per 1M tokens
	geminiInputPrice  = 0.30
	geminiOutputPrice = 2.50
)

type GeminiProvider struct {
	client *genai.Client
	usage  Usage
}

// NewGeminiProvider creates a Gemini analyzer. baseURL overrides the API endpoint and may be empty.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is missing (set GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *GeminiProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *GeminiProvider) trackUsage(meta *genai.GenerateContentResponseUsageMetadata) {
	if meta == nil {
		return
	}
	p.usage.InputTokens += int(meta.PromptTokenCount)
	p.usage.OutputTokens += int(meta.CandidatesTokenCount)
	p.usage.TotalCost += float64(meta.PromptTokenCount) / 1_000_000 * geminiInputPrice
	p.usage.TotalCost += float64(meta.CandidatesTokenCount) / 1_000_000 * geminiOutputPrice
}

func (p *GeminiProvider) Name() string {
	return geminiModel
}

func (p *GeminiProvider) AnalyzeFace(ctx context.Context, imageData []byte) (*FaceAnalysis, error) {
	// Resize image to save tokens
	resizedData, err := ResizeImage(imageData, constants.AnalysisImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: faceAnalysisPrompt},
				{InlineData: &genai.Blob{Data: resizedData, MIMEType: "image/jpeg"}},
			},
		},
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		content, err := p.generate(ctx, contents)
		if err != nil {
			return nil, err
		}
		lastResponse = content

		analysis, err := parseFaceAnalysis(content)
		if err != nil {
			lastError = err

			// Add model response and error feedback to contents for retry
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: fmt.Sprintf(jsonRetryMessage, err)}},
				},
			)
			continue
		}

		return analysis, nil
	}

	return nil, fmt.Errorf("failed to parse analysis JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

func (p *GeminiProvider) ExplainStyle(ctx context.Context, analysis *FaceAnalysis, style string) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: styleExplanationPrompt + "\n\n" + buildStyleContent(analysis, style)},
			},
		},
	}

	content, err := p.generate(ctx, contents)
	if err != nil {
		return "", err
	}

	explanation, err := parseExplanation(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse explanation JSON: %w (response: %s)", err, content)
	}
	return explanation, nil
}

func (p *GeminiProvider) generate(ctx context.Context, contents []*genai.Content) (string, error) {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	result, err := p.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini API error: %w", err)
	}

	p.trackUsage(result.UsageMetadata)

	content := result.Text()
	if content == "" {
		return "", errors.New("no response from Gemini")
	}
	return content, nil
}
