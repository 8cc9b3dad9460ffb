// Package mask builds the edit mask handed to the generative hair editor:
// alpha 0 marks pixels the editor may repaint, alpha 255 pixels it must keep.
package mask

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kozaktomas/maneifest/internal/geometry"
	"github.com/kozaktomas/maneifest/internal/segmentation"
)

var (
	// ErrDecode is returned when the photo cannot be decoded.
	ErrDecode = errors.New("failed to decode photo")
	// ErrInvalidCanvasSize is returned for a non-positive size or a non-square canvas.
	ErrInvalidCanvasSize = errors.New("canvas size must be positive")
)

// Source identifies which path produced a mask.
type Source string

const (
	SourceSegmentation Source = "segmentation"
	SourceFallback     Source = "fallback"
)

// Options tunes the hair heuristics. Zero fields fall back to DefaultOptions.
type Options struct {
	// HairFraction is the top share of the person's vertical extent treated as hair.
	HairFraction float64 `yaml:"hair_fraction" json:"hair_fraction"`
	// FeatherPx is the height of the ramp that ends at the hair boundary.
	FeatherPx float64 `yaml:"feather_px" json:"feather_px"`
	// FallbackEditEnd is the canvas height fraction down to which the fallback is fully editable.
	FallbackEditEnd float64 `yaml:"fallback_edit_end" json:"fallback_edit_end"`
	// FallbackKeepStart is the canvas height fraction from which the fallback is fully preserved.
	FallbackKeepStart float64 `yaml:"fallback_keep_start" json:"fallback_keep_start"`
}

// DefaultOptions returns the heuristics used by the app.
func DefaultOptions() Options {
	return Options{
		HairFraction:      0.45,
		FeatherPx:         50,
		FallbackEditEnd:   0.4,
		FallbackKeepStart: 0.7,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.HairFraction <= 0 {
		o.HairFraction = def.HairFraction
	}
	if o.FeatherPx <= 0 {
		o.FeatherPx = def.FeatherPx
	}
	if o.FallbackKeepStart <= 0 {
		o.FallbackEditEnd, o.FallbackKeepStart = def.FallbackEditEnd, def.FallbackKeepStart
	}
	return o
}

// Result holds the normalized square canvas and its edit mask. Both are size x size.
type Result struct {
	Canvas *image.RGBA
	Mask   *image.Alpha
	Source Source
	// FallbackReason explains why the segmentation path was not used.
	FallbackReason string
}

// Synthesize decodes photo, cover-fits it to a size x size canvas and builds the edit mask.
// seg may be nil. The call either returns a complete result or an error, never a partial mask.
func Synthesize(photo []byte, size int, seg *segmentation.CategoryMask, opts Options) (*Result, error) {
	if size <= 0 {
		return nil, ErrInvalidCanvasSize
	}
	img, _, err := image.Decode(bytes.NewReader(photo))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return SynthesizeImage(img, size, seg, opts)
}

// SynthesizeImage is Synthesize for an already decoded image.
func SynthesizeImage(img image.Image, size int, seg *segmentation.CategoryMask, opts Options) (*Result, error) {
	if size <= 0 {
		return nil, ErrInvalidCanvasSize
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrDecode)
	}
	return SynthesizeCanvas(CoverFit(img, size), seg, opts)
}

// SynthesizeCanvas builds the mask for a square canvas already produced by CoverFit.
// The canvas is used as is and becomes Result.Canvas.
func SynthesizeCanvas(canvas *image.RGBA, seg *segmentation.CategoryMask, opts Options) (*Result, error) {
	if canvas == nil || canvas.Rect.Empty() {
		return nil, fmt.Errorf("%w: empty canvas", ErrDecode)
	}
	size := canvas.Rect.Dx()
	if canvas.Rect.Dy() != size {
		return nil, fmt.Errorf("%w: canvas is %dx%d", ErrInvalidCanvasSize, size, canvas.Rect.Dy())
	}
	opts = opts.withDefaults()

	res := &Result{
		Canvas: canvas,
		Mask:   image.NewAlpha(image.Rect(0, 0, size, size)),
	}

	bounds, reason := personBounds(seg, size)
	if reason != "" {
		res.Source = SourceFallback
		res.FallbackReason = reason
		paintFallback(res.Mask, opts)
		return res, nil
	}

	res.Source = SourceSegmentation
	paintHair(res.Mask, seg, bounds, opts)
	return res, nil
}

// personBounds returns the person extent, or a non-empty reason why segmentation can't be used.
func personBounds(seg *segmentation.CategoryMask, size int) (geometry.PersonBounds, string) {
	if seg == nil {
		return geometry.PersonBounds{}, "no segmentation"
	}
	if !seg.Valid() || seg.Width != size || seg.Height != size {
		return geometry.PersonBounds{}, fmt.Sprintf("segmentation is %dx%d, canvas is %dx%d", seg.Width, seg.Height, size, size)
	}
	bounds, ok := seg.PersonBounds()
	if !ok {
		return geometry.PersonBounds{}, "no person pixels"
	}
	return bounds, ""
}

// paintHair marks the top HairFraction of the person as editable, feathered over
// FeatherPx rows above the hair boundary. Background is always preserved.
func paintHair(dst *image.Alpha, seg *segmentation.CategoryMask, b geometry.PersonBounds, opts Options) {
	size := seg.Width
	hairBottom := float64(b.MinY) + opts.HairFraction*float64(b.Height())
	rampStart := hairBottom - opts.FeatherPx

	for y := 0; y < size; y++ {
		personAlpha := geometry.AlphaRamp(float64(y), rampStart, hairBottom)
		labels := seg.Labels[y*size : (y+1)*size]
		row := dst.Pix[y*dst.Stride : y*dst.Stride+size]
		for x, label := range labels {
			if label == segmentation.LabelPerson {
				row[x] = personAlpha
			} else {
				row[x] = 255
			}
		}
	}
}

// paintFallback applies a position-only vertical gradient sampled at row centers:
// editable above FallbackEditEnd, preserved below FallbackKeepStart.
func paintFallback(dst *image.Alpha, opts Options) {
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	for y := 0; y < h; y++ {
		f := (float64(y) + 0.5) / float64(h)
		a := geometry.AlphaRamp(f, opts.FallbackEditEnd, opts.FallbackKeepStart)
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := range row {
			row[x] = a
		}
	}
}
