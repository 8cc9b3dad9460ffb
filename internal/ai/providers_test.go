package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/openai/openai-go/option"
)

var testPortrait = encodeJPEG(createTestImage(1200, 900, colorSkin))

var colorSkin = color.RGBA{R: 200, G: 160, B: 130, A: 255}

// --- Gemini ---

func geminiResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
		"usageMetadata": map[string]any{
			"promptTokenCount":     1000,
			"candidatesTokenCount": 200,
		},
	}
}

func TestGeminiProvider_AnalyzeFaceRetriesOnBadJSON(t *testing.T) {
	var calls atomic.Int32
	var lastContents int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":generateContent") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Contents []json.RawMessage `json:"contents"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		lastContents = len(req.Contents)

		text := validAnalysisJSON
		if calls.Add(1) == 1 {
			text = `{"faceShape": "Oval", oops}`
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiResponse(text))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), "test-key", server.URL+"/")
	if err != nil {
		t.Fatalf("NewGeminiProvider: %v", err)
	}

	analysis, err := p.AnalyzeFace(context.Background(), testPortrait)
	if err != nil {
		t.Fatalf("AnalyzeFace: %v", err)
	}
	if analysis.FaceShape != "Oval" || len(analysis.Recommendations) != 3 {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
	// retry carries the bad answer and the parse error
	if lastContents != 3 {
		t.Errorf("expected 3 contents on retry, got %d", lastContents)
	}

	usage := p.GetUsage()
	if usage.InputTokens != 2000 || usage.OutputTokens != 400 {
		t.Errorf("unexpected usage: %+v", usage)
	}
	if usage.TotalCost <= 0 {
		t.Error("expected non-zero cost")
	}
	p.ResetUsage()
	if p.GetUsage().InputTokens != 0 {
		t.Error("expected usage reset")
	}
}

func TestGeminiProvider_ExplainStyle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiResponse("```json\n{\"explanation\": \"Adds height to a round face.\"}\n```"))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(context.Background(), "test-key", server.URL+"/")
	if err != nil {
		t.Fatalf("NewGeminiProvider: %v", err)
	}

	got, err := p.ExplainStyle(context.Background(), &FaceAnalysis{FaceShape: "Round"}, "Quiff")
	if err != nil {
		t.Fatalf("ExplainStyle: %v", err)
	}
	if got != "Adds height to a round face." {
		t.Errorf("ExplainStyle() = %q", got)
	}
}

func TestNewGeminiProvider_MissingKey(t *testing.T) {
	if _, err := NewGeminiProvider(context.Background(), "", ""); err == nil {
		t.Error("expected error for missing API key")
	}
}

// --- OpenAI ---

func chatResponse(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1735732800,
		"model":   "gpt-4.1-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			},
		},
		"usage": map[string]any{"prompt_tokens": 500, "completion_tokens": 100, "total_tokens": 600},
	}
}

func newTestOpenAI(server *httptest.Server) *OpenAIProvider {
	return NewOpenAIProvider("sk-test", option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
}

func TestOpenAIProvider_AnalyzeFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), "data:image/jpeg;base64,") {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse(validAnalysisJSON))
	}))
	defer server.Close()

	p := newTestOpenAI(server)
	analysis, err := p.AnalyzeFace(context.Background(), testPortrait)
	if err != nil {
		t.Fatalf("AnalyzeFace: %v", err)
	}
	if analysis.SkinTone != "Medium" {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
	if p.GetUsage().InputTokens != 500 || p.GetUsage().OutputTokens != 100 {
		t.Errorf("unexpected usage: %+v", p.GetUsage())
	}
}

func TestOpenAIProvider_AnalyzeFaceGivesUp(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(chatResponse("I can't see a face."))
	}))
	defer server.Close()

	_, err := newTestOpenAI(server).AnalyzeFace(context.Background(), testPortrait)
	if err == nil || !strings.Contains(err.Error(), fmt.Sprintf("after %d attempts", maxRetries)) {
		t.Fatalf("expected retry exhaustion error, got %v", err)
	}
	if calls.Load() != maxRetries {
		t.Errorf("expected %d calls, got %d", maxRetries, calls.Load())
	}
}

func TestOpenAIProvider_EditHair(t *testing.T) {
	edited := encodePNG(createTestImage(4, 4, colorSkin))

	var gotPrompt, gotModel, gotFormat string
	var gotMask []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/images/edits" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotPrompt = r.FormValue("prompt")
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		if f, _, err := r.FormFile("mask"); err == nil {
			gotMask, _ = io.ReadAll(f)
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"created": 1735732800,
			"data":    []map[string]any{{"b64_json": base64.StdEncoding.EncodeToString(edited)}},
		})
	}))
	defer server.Close()

	p := newTestOpenAI(server)
	out, err := p.EditHair(context.Background(), EditRequest{
		Canvas:   []byte("canvas-png"),
		Mask:     []byte("mask-png"),
		Style:    "Textured Crop",
		Analysis: &FaceAnalysis{SkinTone: "Fair", HairColor: "Blonde"},
	})
	if err != nil {
		t.Fatalf("EditHair: %v", err)
	}
	if string(out) != string(edited) {
		t.Error("edited image mismatch")
	}
	if !strings.Contains(gotPrompt, "fair skin and blonde hair") || !strings.Contains(gotPrompt, "Textured Crop") {
		t.Errorf("unexpected prompt: %q", gotPrompt)
	}
	if gotModel != "dall-e-2" || gotFormat != "b64_json" {
		t.Errorf("unexpected model/format: %q/%q", gotModel, gotFormat)
	}
	if string(gotMask) != "mask-png" {
		t.Errorf("unexpected mask upload: %q", gotMask)
	}
	if p.GetUsage().Images != 1 {
		t.Errorf("expected 1 image in usage, got %d", p.GetUsage().Images)
	}
}

func TestOpenAIProvider_EditHairErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"created": 1, "data": []map[string]any{}})
	}))
	defer server.Close()
	p := newTestOpenAI(server)

	tests := []struct {
		name    string
		req     EditRequest
		wantErr string
	}{
		{"missing mask", EditRequest{Canvas: []byte("c"), Style: "Bob"}, "canvas and mask are required"},
		{"missing style", EditRequest{Canvas: []byte("c"), Mask: []byte("m")}, "hairstyle is required"},
		{"empty response", EditRequest{Canvas: []byte("c"), Mask: []byte("m"), Style: "Bob"}, "no image returned"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.EditHair(context.Background(), tt.req)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

// --- Ollama ---

func TestOllamaProvider_AnalyzeFace(t *testing.T) {
	var gotReq ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(map[string]any{
			"model":             gotReq.Model,
			"message":           map[string]any{"role": "assistant", "content": "Sure! " + validAnalysisJSON},
			"done":              true,
			"prompt_eval_count": 700,
			"eval_count":        150,
		})
	}))
	defer server.Close()

	p := NewOllamaProvider(server.URL+"/", "")
	analysis, err := p.AnalyzeFace(context.Background(), testPortrait)
	if err != nil {
		t.Fatalf("AnalyzeFace: %v", err)
	}
	if analysis.FaceShape != "Oval" {
		t.Errorf("unexpected analysis: %+v", analysis)
	}
	if gotReq.Model != defaultOllamaModel || gotReq.Format != "json" || gotReq.Stream {
		t.Errorf("unexpected request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || len(gotReq.Messages[1].Images) != 1 {
		t.Errorf("expected system + user message with one image, got %+v", gotReq.Messages)
	}
	if p.GetUsage().InputTokens != 700 || p.GetUsage().TotalCost != 0 {
		t.Errorf("unexpected usage: %+v", p.GetUsage())
	}
}

func TestOllamaProvider_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewOllamaProvider(server.URL, "llava").ExplainStyle(context.Background(), &FaceAnalysis{FaceShape: "Oval"}, "Bob")
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("expected status 404 error, got %v", err)
	}
}

func TestProvidersImplementInterfaces(t *testing.T) {
	var _ Analyzer = (*GeminiProvider)(nil)
	var _ Analyzer = (*OpenAIProvider)(nil)
	var _ Analyzer = (*OllamaProvider)(nil)
	var _ Editor = (*OpenAIProvider)(nil)
}
