package mask

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestCoverFit_LandscapeIsCenterCropped(t *testing.T) {
	// Left half red, right half blue.
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x >= 100 {
				c = color.RGBA{B: 255, A: 255}
			}
			src.Set(x, y, c)
		}
	}

	canvas := CoverFit(src, 100)
	if canvas.Bounds() != image.Rect(0, 0, 100, 100) {
		t.Fatalf("bounds = %v", canvas.Bounds())
	}

	left := canvas.RGBAAt(10, 50)
	if left.R < 200 || left.B > 50 {
		t.Errorf("left pixel = %+v, want red", left)
	}
	right := canvas.RGBAAt(90, 50)
	if right.B < 200 || right.R > 50 {
		t.Errorf("right pixel = %+v, want blue", right)
	}
}

func TestCoverFit_PortraitFillsSquare(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 30, 90))
	for y := 0; y < 90; y++ {
		for x := 0; x < 30; x++ {
			src.Set(x, y, color.RGBA{G: 200, A: 255})
		}
	}

	canvas := CoverFit(src, 60)
	for _, p := range []image.Point{{0, 0}, {59, 0}, {0, 59}, {59, 59}, {30, 30}} {
		c := canvas.RGBAAt(p.X, p.Y)
		if c.G < 190 || c.R > 10 {
			t.Errorf("pixel %v = %+v, want image content (no white border)", p, c)
		}
	}
}

func TestCoverFit_TransparentBecomesWhite(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 20, 20))
	canvas := CoverFit(src, 40)
	c := canvas.RGBAAt(20, 20)
	if c != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("pixel = %+v, want opaque white", c)
	}
}

func TestMirrorHorizontal(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 1))
	src.Set(0, 0, color.RGBA{R: 255, A: 255})
	src.Set(2, 0, color.RGBA{B: 255, A: 255})

	out := MirrorHorizontal(src)
	if out.RGBAAt(0, 0).B != 255 || out.RGBAAt(2, 0).R != 255 {
		t.Errorf("mirror failed: %v", out.Pix)
	}
}

func TestEncodeMaskPNG(t *testing.T) {
	m := image.NewAlpha(image.Rect(0, 0, 4, 2))
	m.SetAlpha(0, 0, color.Alpha{A: 0})
	m.SetAlpha(1, 0, color.Alpha{A: 128})
	m.SetAlpha(3, 1, color.Alpha{A: 255})

	data, err := EncodeMaskPNG(m)
	if err != nil {
		t.Fatalf("EncodeMaskPNG: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds() != m.Bounds() {
		t.Fatalf("bounds = %v, want %v", decoded.Bounds(), m.Bounds())
	}
	for _, tt := range []struct {
		x, y int
		want uint8
	}{{0, 0, 0}, {1, 0, 128}, {3, 1, 255}} {
		got := color.NRGBAModel.Convert(decoded.At(tt.x, tt.y)).(color.NRGBA)
		if got.A != tt.want || got.R != 0 || got.G != 0 || got.B != 0 {
			t.Errorf("pixel (%d,%d) = %+v, want black with alpha %d", tt.x, tt.y, got, tt.want)
		}
	}
}
