package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/kozaktomas/maneifest/internal/constants"
)

const (
	chatModel = openai.ChatModelGPT4_1Mini
	editModel = openai.ImageModelDallE2

	// GPT-4.1-mini pricing per 1M tokens
	chatInputPrice  = 0.40
	chatOutputPrice = 1.60
	// dall-e-2 1024x1024 price per image
	editImagePrice = 0.02
)

type OpenAIProvider struct {
	client *openai.Client
	usage  Usage
}

// NewOpenAIProvider creates an OpenAI analyzer and hair editor. Extra options
// (base URL, retries) are passed to the client.
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIProvider{
		client: &client,
	}
}

func (p *OpenAIProvider) GetUsage() *Usage {
	return &p.usage
}

func (p *OpenAIProvider) ResetUsage() {
	p.usage = Usage{}
}

func (p *OpenAIProvider) trackUsage(inputTokens, outputTokens int64) {
	p.usage.InputTokens += int(inputTokens)
	p.usage.OutputTokens += int(outputTokens)
	p.usage.TotalCost += float64(inputTokens) / 1_000_000 * chatInputPrice
	p.usage.TotalCost += float64(outputTokens) / 1_000_000 * chatOutputPrice
}

func (p *OpenAIProvider) Name() string {
	return chatModel
}

func (p *OpenAIProvider) AnalyzeFace(ctx context.Context, imageData []byte) (*FaceAnalysis, error) {
	resizedData, err := ResizeImage(imageData, constants.AnalysisImageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(resizedData)

	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(faceAnalysisPrompt),
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Analyze this portrait."),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	var lastError error
	var lastResponse string

	for range maxRetries {
		content, err := p.complete(ctx, messages)
		if err != nil {
			return nil, err
		}
		lastResponse = content

		analysis, err := parseFaceAnalysis(content)
		if err != nil {
			lastError = err

			// Add assistant response and error feedback to messages for retry
			messages = append(messages,
				openai.AssistantMessage(content),
				openai.UserMessage(fmt.Sprintf(jsonRetryMessage, err)),
			)
			continue
		}

		return analysis, nil
	}

	return nil, fmt.Errorf("failed to parse analysis JSON after %d attempts: %w (last response: %s)", maxRetries, lastError, lastResponse)
}

func (p *OpenAIProvider) ExplainStyle(ctx context.Context, analysis *FaceAnalysis, style string) (string, error) {
	content, err := p.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(styleExplanationPrompt),
		openai.UserMessage(buildStyleContent(analysis, style)),
	})
	if err != nil {
		return "", err
	}

	explanation, err := parseExplanation(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse explanation JSON: %w (response: %s)", err, content)
	}
	return explanation, nil
}

func (p *OpenAIProvider) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    chatModel,
		Messages: messages,
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		MaxTokens: openai.Int(800),
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}

	p.trackUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

// EditHair sends the canvas and mask to the image edit endpoint and returns the edited PNG.
func (p *OpenAIProvider) EditHair(ctx context.Context, req EditRequest) ([]byte, error) {
	if len(req.Canvas) == 0 || len(req.Mask) == 0 {
		return nil, errors.New("canvas and mask are required")
	}
	if req.Style == "" {
		return nil, errors.New("hairstyle is required")
	}

	resp, err := p.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(req.Canvas), "image.png", "image/png"),
		},
		Mask:           openai.File(bytes.NewReader(req.Mask), "mask.png", "image/png"),
		Prompt:         BuildEditPrompt(req.Style, req.Analysis),
		Model:          editModel,
		N:              openai.Int(1),
		Size:           openai.ImageEditParamsSize1024x1024,
		ResponseFormat: openai.ImageEditParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("OpenAI image edit error: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, errors.New("no image returned from OpenAI")
	}

	p.usage.Images++
	p.usage.TotalCost += editImagePrice

	img, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode edited image: %w", err)
	}
	return img, nil
}
