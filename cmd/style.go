package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/maneifest/internal/ai"
	"github.com/kozaktomas/maneifest/internal/config"
	"github.com/kozaktomas/maneifest/internal/mask"
)

// openAIEditSize is the only canvas size the image edit model accepts.
const openAIEditSize = 1024

var styleCmd = &cobra.Command{
	Use:   "style",
	Short: "Try a new hairstyle on a photo",
	Long: `Analyze the face in a photo, recommend hairstyles and render the chosen one
with the OpenAI image editor. The edit mask is built the same way as by the
mask command.

Examples:
  # Only analyze and list recommendations
  maneifest style --photo selfie.png --analyze

  # Render a recommended style (by id or name) with an explanation
  maneifest style --photo selfie.png --analyze --style "Textured Crop"

  # Render any style without analysis, using a local segmentation
  maneifest style --photo selfie.png --style "buzz cut" --segment`,
	RunE: runStyle,
}

func init() {
	rootCmd.AddCommand(styleCmd)

	styleCmd.Flags().String("photo", "", "Photo to restyle")
	styleCmd.Flags().String("style", "", "Hairstyle to render (recommendation id or free text)")
	styleCmd.Flags().Bool("analyze", false, "Analyze the face and recommend hairstyles first")
	styleCmd.Flags().String("analyzer", "", "Analyzer: gemini, openai or ollama (default: first configured)")
	styleCmd.Flags().String("output-dir", ".", "Directory for the rendered photo")
	styleCmd.Flags().Int("canvas", openAIEditSize, "Canvas edge in pixels")
	styleCmd.Flags().Bool("segment", false, "Request a person segmentation from SEGMENTER_URL")
	_ = styleCmd.MarkFlagRequired("photo")
}

// newAnalyzer returns the named analyzer, or the first configured one when name is empty.
func newAnalyzer(ctx context.Context, cfg *config.Config, name string) (ai.Analyzer, error) {
	if name == "" {
		switch {
		case cfg.Gemini.APIKey != "":
			name = "gemini"
		case cfg.OpenAI.Token != "":
			name = "openai"
		default:
			name = "ollama"
		}
	}

	switch name {
	case "gemini":
		p, err := ai.NewGeminiProvider(ctx, cfg.Gemini.APIKey, "")
		if err != nil {
			return nil, err
		}
		return p, nil
	case "openai":
		if cfg.OpenAI.Token == "" {
			return nil, errors.New("OPENAI_TOKEN environment variable is required")
		}
		return ai.NewOpenAIProvider(cfg.OpenAI.Token), nil
	case "ollama":
		return ai.NewOllamaProvider(cfg.Ollama.URL, cfg.Ollama.Model), nil
	default:
		return nil, fmt.Errorf("unknown analyzer %q (use gemini, openai or ollama)", name)
	}
}

func printAnalysis(a *ai.FaceAnalysis) {
	fmt.Printf("Face shape: %s\n", a.FaceShape)
	if a.Description != "" {
		fmt.Printf("  %s\n", a.Description)
	}
	fmt.Printf("Skin tone: %s, hair: %s, age: %s\n\n", a.SkinTone, a.HairColor, a.AgeApprox)
	fmt.Println("Recommended hairstyles:")
	for _, r := range a.Recommendations {
		fmt.Printf("  [%s] %s\n", r.ID, r.Name)
		if r.Description != "" {
			fmt.Printf("      %s\n", r.Description)
		}
	}
	fmt.Println()
}

func printUsage(name string, u *ai.Usage) {
	if u == nil || (u.InputTokens == 0 && u.Images == 0) {
		return
	}
	fmt.Printf("%s usage: %d input / %d output tokens, %d images, $%.4f\n",
		name, u.InputTokens, u.OutputTokens, u.Images, u.TotalCost)
}

func runStyle(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	photo, err := os.ReadFile(mustGetString(cmd, "photo"))
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}
	style := mustGetString(cmd, "style")
	analyze := mustGetBool(cmd, "analyze")
	if style == "" && !analyze {
		return errors.New("--style or --analyze is required")
	}

	var analysis *ai.FaceAnalysis
	if analyze {
		analyzer, err := newAnalyzer(ctx, cfg, mustGetString(cmd, "analyzer"))
		if err != nil {
			return err
		}
		fmt.Printf("Analyzing face with %s...\n", analyzer.Name())
		analysis, err = analyzer.AnalyzeFace(ctx, photo)
		if err != nil {
			return fmt.Errorf("face analysis failed: %w", err)
		}
		printAnalysis(analysis)

		if style != "" {
			if rec, ok := analysis.Recommendation(style); ok {
				style = rec.Name
			}
			explanation, err := analyzer.ExplainStyle(ctx, analysis, style)
			if err != nil {
				log.WithError(err).Warn("style explanation failed")
				explanation = ai.FallbackExplanation(analysis)
			}
			fmt.Printf("Why %s: %s\n\n", style, explanation)
		}
		defer printUsage(analyzer.Name(), analyzer.GetUsage())
	}
	if style == "" {
		return nil
	}

	if cfg.OpenAI.Token == "" {
		return errors.New("OPENAI_TOKEN environment variable is required for rendering")
	}
	m, err := newMasker(cmd, cfg, log)
	if err != nil {
		return err
	}
	if m.size != openAIEditSize {
		log.WithField("canvas", m.size).Warn("the image editor expects a 1024 canvas")
	}
	res, err := m.build(ctx, photo, nil)
	if err != nil {
		return err
	}
	canvasPNG, err := mask.EncodeCanvasPNG(res.Canvas)
	if err != nil {
		return err
	}
	maskPNG, err := mask.EncodeMaskPNG(res.Mask)
	if err != nil {
		return err
	}

	editor := ai.NewOpenAIProvider(cfg.OpenAI.Token)
	fmt.Printf("Rendering %q (%s mask)...\n", style, res.Source)
	edited, err := editor.EditHair(ctx, ai.EditRequest{
		Canvas:   canvasPNG,
		Mask:     maskPNG,
		Style:    style,
		Analysis: analysis,
	})
	if err != nil {
		return fmt.Errorf("hair edit failed: %w", err)
	}

	outDir := mustGetString(cmd, "output-dir")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	output := filepath.Join(outDir, ai.OutputFileName(style, time.Now()))
	if err := os.WriteFile(output, edited, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	fmt.Printf("Saved %s\n", output)
	printUsage(editor.Name(), editor.GetUsage())
	return nil
}
