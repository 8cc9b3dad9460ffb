package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/maneifest/internal/capture"
	"github.com/kozaktomas/maneifest/internal/config"
	"github.com/kozaktomas/maneifest/internal/constants"
	"github.com/kozaktomas/maneifest/internal/logger"
	"github.com/kozaktomas/maneifest/internal/mask"
	"github.com/kozaktomas/maneifest/internal/segmentation"
)

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Build the hair edit mask for a photo",
	Long: `Cover-fit a photo to the square edit canvas and build the edit mask:
transparent over the hair, opaque over face, body and background.

Without a person segmentation the mask is a vertical gradient that leaves
the top of the canvas editable.

Examples:
  # Fallback gradient
  maneifest mask --photo selfie.jpg --output mask.png

  # Use a precomputed label PNG
  maneifest mask --photo selfie.jpg --segmentation labels.png

  # Ask the segmentation server (SEGMENTER_URL) and save the canvas too
  maneifest mask --photo selfie.jpg --segment --canvas-output canvas.png`,
	RunE: runMask,
}

var maskBatchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Build edit masks for every photo in a directory",
	Long: `Build an edit mask for every image in a directory.
For photo.jpg the mask is written as photo-mask.png and the canvas as
photo-canvas.png.

Examples:
  maneifest mask batch --input captures/ --output masks/ --concurrency 8`,
	RunE: runMaskBatch,
}

func init() {
	rootCmd.AddCommand(maskCmd)
	maskCmd.AddCommand(maskBatchCmd)

	maskCmd.PersistentFlags().Int("canvas", 0, "Canvas edge in pixels (0 = CANVAS_SIZE)")
	maskCmd.PersistentFlags().Bool("segment", false, "Request a person segmentation from SEGMENTER_URL")

	maskCmd.Flags().String("photo", "", "Photo to mask")
	maskCmd.Flags().String("segmentation", "", "Label PNG matching the canvas size (non-zero = person)")
	maskCmd.Flags().String("output", "mask.png", "Mask output path")
	maskCmd.Flags().String("canvas-output", "", "Also write the normalized canvas PNG here")
	_ = maskCmd.MarkFlagRequired("photo")

	maskBatchCmd.Flags().String("input", "", "Directory with photos")
	maskBatchCmd.Flags().String("output", "", "Directory for masks and canvases (default: input directory)")
	maskBatchCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of parallel workers")
	_ = maskBatchCmd.MarkFlagRequired("input")
}

// masker builds masks with the configured tuning and an optional segmenter.
type masker struct {
	size      int
	opts      mask.Options
	segmenter *segmentation.Client
	log       logrus.FieldLogger
}

func newMasker(cmd *cobra.Command, cfg *config.Config, log logrus.FieldLogger) (*masker, error) {
	m := &masker{size: cfg.Capture.CanvasSize, opts: cfg.MaskOptions(), log: log}
	if size := mustGetInt(cmd, "canvas"); size != 0 {
		if size < 0 || size > constants.MaxCanvasSize {
			return nil, fmt.Errorf("--canvas must be between 1 and %d", constants.MaxCanvasSize)
		}
		m.size = size
	}
	if mustGetBool(cmd, "segment") {
		if cfg.Segmenter.URL == "" {
			return nil, errors.New("--segment requires SEGMENTER_URL")
		}
		m.segmenter = segmentation.NewClient(cfg.Segmenter.URL)
	}
	return m, nil
}

// build decodes photo, fits the canvas and synthesizes the mask. seg wins over the segmenter.
func (m *masker) build(ctx context.Context, photo []byte, seg *segmentation.CategoryMask) (*mask.Result, error) {
	img, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mask.ErrDecode, err)
	}
	canvas := mask.CoverFit(img, m.size)

	if seg == nil && m.segmenter != nil {
		data, err := mask.EncodeCanvasPNG(canvas)
		if err != nil {
			return nil, err
		}
		if seg, err = m.segmenter.Segment(ctx, data); err != nil {
			m.log.WithError(err).Warn("segmentation failed, using fallback mask")
			seg = nil
		}
	}
	return mask.SynthesizeCanvas(canvas, seg, m.opts)
}

func writeMask(res *mask.Result, maskPath, canvasPath string) error {
	data, err := mask.EncodeMaskPNG(res.Mask)
	if err != nil {
		return err
	}
	if err := os.WriteFile(maskPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write mask: %w", err)
	}
	if canvasPath == "" {
		return nil
	}
	data, err = mask.EncodeCanvasPNG(res.Canvas)
	if err != nil {
		return err
	}
	if err := os.WriteFile(canvasPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write canvas: %w", err)
	}
	return nil
}

func runMask(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	m, err := newMasker(cmd, cfg, log)
	if err != nil {
		return err
	}

	photo, err := os.ReadFile(mustGetString(cmd, "photo"))
	if err != nil {
		return fmt.Errorf("failed to read photo: %w", err)
	}

	var seg *segmentation.CategoryMask
	if path := mustGetString(cmd, "segmentation"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read segmentation: %w", err)
		}
		if seg, err = segmentation.Decode(data); err != nil {
			return err
		}
	}

	res, err := m.build(cmd.Context(), photo, seg)
	if err != nil {
		return err
	}

	output := mustGetString(cmd, "output")
	if err := writeMask(res, output, mustGetString(cmd, "canvas-output")); err != nil {
		return err
	}

	fmt.Printf("Mask written to %s (%dx%d, %s)\n", output, m.size, m.size, res.Source)
	if res.FallbackReason != "" {
		fmt.Printf("  Fallback: %s\n", res.FallbackReason)
	}
	return nil
}

func runMaskBatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	m, err := newMasker(cmd, cfg, log)
	if err != nil {
		return err
	}

	input := mustGetString(cmd, "input")
	output := mustGetString(cmd, "output")
	if output == "" {
		output = input
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)

	src, err := capture.NewDirSource(input)
	if err != nil {
		return err
	}
	var files []string
	for _, f := range src.Files() {
		// outputs of an earlier run into the same directory
		if strings.HasSuffix(f, "-mask.png") || strings.HasSuffix(f, "-canvas.png") {
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		fmt.Println("No photos found")
		return nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Building masks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var segmented, fallback, failed int
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range files {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			source, err := maskFile(cmd.Context(), m, path, output)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failed++
				log.WithFields(logger.Fields{"file": filepath.Base(path), "error": err}).Warn("mask failed")
			case source == mask.SourceSegmentation:
				segmented++
			default:
				fallback++
			}
		}(path)
	}

	wg.Wait()
	fmt.Println()
	fmt.Printf("\nCompleted: %d segmented, %d fallback, %d errors\n", segmented, fallback, failed)
	return nil
}

func maskFile(ctx context.Context, m *masker, path, outDir string) (mask.Source, error) {
	photo, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	res, err := m.build(ctx, photo, nil)
	if err != nil {
		return "", err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	err = writeMask(res,
		filepath.Join(outDir, base+"-mask.png"),
		filepath.Join(outDir, base+"-canvas.png"),
	)
	return res.Source, err
}
