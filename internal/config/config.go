package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/maneifest/internal/alignment"
	"github.com/kozaktomas/maneifest/internal/logger"
	"github.com/kozaktomas/maneifest/internal/mask"
)

//go:embed tuning.yaml
var tuningYAML []byte

type Config struct {
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Ollama    OllamaConfig
	Detector  DetectorConfig
	Segmenter SegmenterConfig
	Web       WebConfig
	Log       logger.Config
	Capture   CaptureConfig
	Tuning    Tuning
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

type OllamaConfig struct {
	URL   string
	Model string
}

type DetectorConfig struct {
	URL      string  // defaults to http://localhost:8000
	MinScore float64 // detections below this score are ignored
}

type SegmenterConfig struct {
	URL string // empty disables segmentation, masks use the fallback gradient
}

type WebConfig struct {
	Host string
	Port int
}

type CaptureConfig struct {
	CanvasSize   int     // square edit canvas edge in pixels
	AnalysisRate float64 // analyzed frames per second
}

// Tuning holds the alignment and mask heuristics.
type Tuning struct {
	Alignment alignment.Config `yaml:"alignment" json:"alignment"`
	Mask      mask.Options     `yaml:"mask" json:"mask"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load reads the configuration from the environment. Tuning comes from the embedded
// tuning.yaml unless TUNING_FILE points at a replacement.
func Load() (*Config, error) {
	tuning, err := LoadTuning(os.Getenv("TUNING_FILE"))
	if err != nil {
		return nil, err
	}

	return &Config{
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Ollama: OllamaConfig{
			URL:   os.Getenv("OLLAMA_URL"),
			Model: os.Getenv("OLLAMA_MODEL"),
		},
		Detector: DetectorConfig{
			URL:      envString("DETECTOR_URL", "http://localhost:8000"),
			MinScore: envFloat("DETECTOR_MIN_SCORE", 0.5),
		},
		Segmenter: SegmenterConfig{
			URL: os.Getenv("SEGMENTER_URL"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Log: logger.Config{
			Level: envString("LOG_LEVEL", "info"),
			File:  os.Getenv("LOG_FILE"),
		},
		Capture: CaptureConfig{
			CanvasSize:   envInt("CANVAS_SIZE", 1024),
			AnalysisRate: envFloat("ANALYSIS_RATE", 10),
		},
		Tuning: tuning,
	}, nil
}

// LoadTuning returns the embedded tuning, overlaid with the YAML file at path when set.
func LoadTuning(path string) (Tuning, error) {
	var t Tuning
	if err := yaml.Unmarshal(tuningYAML, &t); err != nil {
		// embedded file, only a broken build gets here
		panic("failed to unmarshal embedded tuning.yaml: " + err.Error())
	}
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, fmt.Errorf("failed to read tuning file: %w", err)
	}
	// Keys missing from the file keep their embedded values.
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tuning{}, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("invalid tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects tuning the tracker and synthesizer can't work with.
func (t Tuning) Validate() error {
	var errs []error
	a := t.Alignment
	if a.CenterTolerance <= 0 || a.CenterTolerance >= 0.5 {
		errs = append(errs, fmt.Errorf("alignment.center_tolerance must be in (0, 0.5), got %v", a.CenterTolerance))
	}
	if a.MinWidthRatio < 0 || a.MaxWidthRatio > 1 || a.MinWidthRatio >= a.MaxWidthRatio {
		errs = append(errs, fmt.Errorf("alignment width ratios must satisfy 0 <= min < max <= 1, got %v..%v", a.MinWidthRatio, a.MaxWidthRatio))
	}
	if a.ConfirmFrames == 0 || a.CountdownFrom == 0 || a.CountdownStepFrames == 0 {
		errs = append(errs, errors.New("alignment frame thresholds must be positive"))
	}

	m := t.Mask
	if m.HairFraction <= 0 || m.HairFraction >= 1 {
		errs = append(errs, fmt.Errorf("mask.hair_fraction must be in (0, 1), got %v", m.HairFraction))
	}
	if m.FeatherPx < 0 {
		errs = append(errs, fmt.Errorf("mask.feather_px must not be negative, got %v", m.FeatherPx))
	}
	if m.FallbackEditEnd < 0 || m.FallbackKeepStart > 1 || m.FallbackEditEnd >= m.FallbackKeepStart {
		errs = append(errs, fmt.Errorf("mask fallback must satisfy 0 <= edit_end < keep_start <= 1, got %v..%v", m.FallbackEditEnd, m.FallbackKeepStart))
	}
	return errors.Join(errs...)
}

// Validate checks the non-tuning settings.
func (c *Config) Validate() error {
	if c.Capture.CanvasSize <= 0 {
		return fmt.Errorf("CANVAS_SIZE must be positive, got %d", c.Capture.CanvasSize)
	}
	return c.Tuning.Validate()
}

// AlignmentConfig returns the tracker configuration.
func (c *Config) AlignmentConfig() alignment.Config {
	return c.Tuning.Alignment
}

// MaskOptions returns the synthesizer options.
func (c *Config) MaskOptions() mask.Options {
	return c.Tuning.Mask
}
