package mask

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"golang.org/x/image/draw"
)

// CoverFit scales img so it fills a size x size square and center-crops the overflow.
// Transparent source pixels end up white.
func CoverFit(img image.Image, size int) *image.RGBA {
	src := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	scale := math.Max(float64(size)/float64(src.Dx()), float64(size)/float64(src.Dy()))
	w := float64(src.Dx()) * scale
	h := float64(src.Dy()) * scale
	x := (float64(size) - w) / 2
	y := (float64(size) - h) / 2

	target := image.Rect(
		int(math.Round(x)),
		int(math.Round(y)),
		int(math.Round(x+w)),
		int(math.Round(y+h)),
	)
	draw.CatmullRom.Scale(dst, target, img, src, draw.Over, nil)
	return dst
}

// MirrorHorizontal returns a left-right flipped copy of img.
func MirrorHorizontal(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.Set(b.Dx()-1-x, y, img.At(b.Min.X+x, b.Min.Y+y))
		}
	}
	return out
}

// EncodeMaskPNG encodes the mask as a black RGBA PNG whose alpha channel is the mask,
// the format image editors expect (fully transparent = edit).
func EncodeMaskPNG(m *image.Alpha) ([]byte, error) {
	b := m.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			out.SetNRGBA(x, y, color.NRGBA{A: m.AlphaAt(b.Min.X+x, b.Min.Y+y).A})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("failed to encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeCanvasPNG encodes the normalized canvas.
func EncodeCanvasPNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode canvas: %w", err)
	}
	return buf.Bytes(), nil
}
