package segmentation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"

	"github.com/kozaktomas/maneifest/internal/geometry"
)

// Category labels produced by the person segmenter.
const (
	LabelBackground uint8 = 0
	LabelPerson     uint8 = 1
)

// ErrEmptyMask is returned when a category mask has no pixels.
var ErrEmptyMask = errors.New("category mask is empty")

// CategoryMask is a per-pixel label grid stored row-major.
type CategoryMask struct {
	Width  int
	Height int
	Labels []uint8
}

// NewCategoryMask allocates an all-background mask.
func NewCategoryMask(width, height int) *CategoryMask {
	return &CategoryMask{
		Width:  width,
		Height: height,
		Labels: make([]uint8, width*height),
	}
}

// At returns the label at (x, y). Out-of-range coordinates are background.
func (m *CategoryMask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return LabelBackground
	}
	return m.Labels[y*m.Width+x]
}

// Set assigns a label at (x, y), ignoring out-of-range coordinates.
func (m *CategoryMask) Set(x, y int, label uint8) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Labels[y*m.Width+x] = label
}

// FillRect labels the half-open rectangle [x0,x1) x [y0,y1).
func (m *CategoryMask) FillRect(x0, y0, x1, y1 int, label uint8) {
	for y := max(y0, 0); y < min(y1, m.Height); y++ {
		for x := max(x0, 0); x < min(x1, m.Width); x++ {
			m.Labels[y*m.Width+x] = label
		}
	}
}

// Valid reports whether the label buffer matches the declared dimensions.
func (m *CategoryMask) Valid() bool {
	return m != nil && m.Width > 0 && m.Height > 0 && len(m.Labels) == m.Width*m.Height
}

// PersonBounds scans the mask for person pixels and returns their extent.
// The second return value is false when the mask contains no person pixels.
func (m *CategoryMask) PersonBounds() (geometry.PersonBounds, bool) {
	if !m.Valid() {
		return geometry.PersonBounds{}, false
	}
	b := geometry.PersonBounds{MinX: m.Width, MinY: m.Height, MaxX: -1, MaxY: -1}
	for y := 0; y < m.Height; y++ {
		row := m.Labels[y*m.Width : (y+1)*m.Width]
		for x, label := range row {
			if label != LabelPerson {
				continue
			}
			b.MinX = min(b.MinX, x)
			b.MaxX = max(b.MaxX, x)
			b.MinY = min(b.MinY, y)
			b.MaxY = max(b.MaxY, y)
		}
	}
	if b.MaxY < 0 {
		return geometry.PersonBounds{}, false
	}
	return b, true
}

// HasPerson reports whether any pixel is labeled person.
func (m *CategoryMask) HasPerson() bool {
	_, ok := m.PersonBounds()
	return ok
}

// FromImage converts a label image to a category mask.
// Any pixel with non-zero luminance or alpha (for alpha-only images) counts as person.
func FromImage(img image.Image) (*CategoryMask, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyMask
	}
	m := NewCategoryMask(bounds.Dx(), bounds.Dy())

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				if src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y != 0 {
					m.Labels[y*m.Width+x] = LabelPerson
				}
			}
		}
	case *image.Alpha:
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				if src.AlphaAt(bounds.Min.X+x, bounds.Min.Y+y).A != 0 {
					m.Labels[y*m.Width+x] = LabelPerson
				}
			}
		}
	default:
		for y := 0; y < m.Height; y++ {
			for x := 0; x < m.Width; x++ {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				if g.Y != 0 {
					m.Labels[y*m.Width+x] = LabelPerson
				}
			}
		}
	}
	return m, nil
}

// Decode decodes an encoded label image (PNG) into a category mask.
func Decode(data []byte) (*CategoryMask, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode category mask: %w", err)
	}
	return FromImage(img)
}

// ToImage renders the mask as a gray image (person = 255, background = 0).
func (m *CategoryMask) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, label := range m.Labels {
		if label == LabelPerson {
			img.Pix[i] = 255
		}
	}
	return img
}
