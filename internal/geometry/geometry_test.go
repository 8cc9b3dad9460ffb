package geometry

import (
	"math"
	"testing"
)

func TestFromCorners(t *testing.T) {
	tests := []struct {
		name     string
		bbox     []float64
		expected BoundingBox
		ok       bool
	}{
		{
			name:     "simple conversion",
			bbox:     []float64{100, 200, 300, 400},
			expected: BoundingBox{OriginX: 100, OriginY: 200, Width: 200, Height: 200},
			ok:       true,
		},
		{
			name: "invalid bbox",
			bbox: []float64{100, 200},
			ok:   false,
		},
		{
			name: "zero width",
			bbox: []float64{100, 200, 100, 400},
			ok:   false,
		},
		{
			name: "inverted corners",
			bbox: []float64{300, 400, 100, 200},
			ok:   false,
		},
		{
			name: "empty bbox",
			bbox: []float64{},
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ok := FromCorners(tt.bbox)
			if ok != tt.ok {
				t.Fatalf("FromCorners(%v) ok = %v, want %v", tt.bbox, ok, tt.ok)
			}
			if ok && result != tt.expected {
				t.Errorf("FromCorners(%v) = %+v, want %+v", tt.bbox, result, tt.expected)
			}
		})
	}
}

func TestBoundingBoxCornersRoundTrip(t *testing.T) {
	box := BoundingBox{OriginX: 10, OriginY: 20, Width: 30, Height: 40}
	corners := box.Corners()
	expected := []float64{10, 20, 40, 60}
	for i := range corners {
		if math.Abs(corners[i]-expected[i]) > 0.0001 {
			t.Fatalf("Corners() = %v, want %v", corners, expected)
		}
	}
	back, ok := FromCorners(corners)
	if !ok || back != box {
		t.Errorf("FromCorners(Corners()) = %+v, %v, want %+v", back, ok, box)
	}
}

func TestCenterOffset(t *testing.T) {
	box := BoundingBox{OriginX: 250, OriginY: 250, Width: 500, Height: 500}
	dx, dy := CenterOffset(box, 1000, 1000)
	if dx != 0 || dy != 0 {
		t.Errorf("CenterOffset() = (%v, %v), want (0, 0)", dx, dy)
	}

	box = BoundingBox{OriginX: 0, OriginY: 0, Width: 100, Height: 100}
	dx, dy = CenterOffset(box, 1000, 800)
	if math.Abs(dx-450) > 0.0001 || math.Abs(dy-350) > 0.0001 {
		t.Errorf("CenterOffset() = (%v, %v), want (450, 350)", dx, dy)
	}
}

func TestWidthRatio(t *testing.T) {
	box := BoundingBox{Width: 900}
	if r := WidthRatio(box, 1000); math.Abs(r-0.9) > 0.0001 {
		t.Errorf("WidthRatio() = %v, want 0.9", r)
	}
	if r := WidthRatio(box, 0); r != 0 {
		t.Errorf("WidthRatio() with zero frame = %v, want 0", r)
	}
}

func TestRamp(t *testing.T) {
	tests := []struct {
		name     string
		v        float64
		start    float64
		end      float64
		expected float64
	}{
		{"below start", 0, 10, 20, 0},
		{"at start", 10, 10, 20, 0},
		{"midpoint", 15, 10, 20, 0.5},
		{"at end", 20, 10, 20, 1},
		{"above end", 30, 10, 20, 1},
		{"degenerate below", 5, 10, 10, 0},
		{"degenerate at", 10, 10, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Ramp(tt.v, tt.start, tt.end)
			if math.Abs(result-tt.expected) > 0.0001 {
				t.Errorf("Ramp(%v, %v, %v) = %v, want %v", tt.v, tt.start, tt.end, result, tt.expected)
			}
		})
	}
}

func TestAlphaRamp(t *testing.T) {
	if a := AlphaRamp(0, 0, 50); a != 0 {
		t.Errorf("AlphaRamp at start = %d, want 0", a)
	}
	if a := AlphaRamp(25, 0, 50); a != 128 {
		t.Errorf("AlphaRamp at midpoint = %d, want 128", a)
	}
	if a := AlphaRamp(50, 0, 50); a != 255 {
		t.Errorf("AlphaRamp at end = %d, want 255", a)
	}
}

func TestPersonBoundsHeight(t *testing.T) {
	p := PersonBounds{MinX: 10, MinY: 100, MaxX: 20, MaxY: 900}
	if p.Height() != 800 {
		t.Errorf("Height() = %d, want 800", p.Height())
	}
}
