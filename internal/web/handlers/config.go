package handlers

import (
	"net/http"

	"github.com/kozaktomas/maneifest/internal/config"
)

// ConfigHandler exposes the active tuning and which collaborators are configured.
type ConfigHandler struct {
	config *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

type ConfigResponse struct {
	Providers    []ProviderInfo `json:"providers"`
	CanvasSize   int            `json:"canvas_size"`
	AnalysisRate float64        `json:"analysis_rate"`
	Segmentation bool           `json:"segmentation"`
	Tuning       config.Tuning  `json:"tuning"`
}

// ProviderInfo represents information about an AI provider
type ProviderInfo struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	providers := []ProviderInfo{
		{
			Name:      "openai",
			Available: h.config.OpenAI.Token != "",
		},
		{
			Name:      "gemini",
			Available: h.config.Gemini.APIKey != "",
		},
		{
			Name:      "ollama",
			Available: true, // local
		},
	}

	respondJSON(w, http.StatusOK, ConfigResponse{
		Providers:    providers,
		CanvasSize:   h.config.Capture.CanvasSize,
		AnalysisRate: h.config.Capture.AnalysisRate,
		Segmentation: h.config.Segmenter.URL != "",
		Tuning:       h.config.Tuning,
	})
}
