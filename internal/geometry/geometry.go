package geometry

import "math"

// BoundingBox is an axis-aligned box in the pixel space of the frame it was measured against.
type BoundingBox struct {
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// Center returns the center point of the box.
func (b BoundingBox) Center() (float64, float64) {
	return b.OriginX + b.Width/2, b.OriginY + b.Height/2
}

// Corners converts the box to [x1, y1, x2, y2] corner format.
func (b BoundingBox) Corners() []float64 {
	return []float64{
		b.OriginX,
		b.OriginY,
		b.OriginX + b.Width,
		b.OriginY + b.Height,
	}
}

// FromCorners converts a pixel bbox [x1, y1, x2, y2] (the detector's format) to a BoundingBox.
// Returns false if the slice is malformed or the box has no area.
func FromCorners(bbox []float64) (BoundingBox, bool) {
	if len(bbox) != 4 {
		return BoundingBox{}, false
	}
	w := bbox[2] - bbox[0]
	h := bbox[3] - bbox[1]
	if w <= 0 || h <= 0 {
		return BoundingBox{}, false
	}
	return BoundingBox{OriginX: bbox[0], OriginY: bbox[1], Width: w, Height: h}, true
}

// CenterOffset returns the absolute distance between the box center and the frame center on each axis.
func CenterOffset(b BoundingBox, frameWidth, frameHeight int) (float64, float64) {
	cx, cy := b.Center()
	return math.Abs(cx - float64(frameWidth)/2), math.Abs(cy - float64(frameHeight)/2)
}

// WidthRatio returns box width relative to frame width, or 0 for an empty frame.
func WidthRatio(b BoundingBox, frameWidth int) float64 {
	if frameWidth <= 0 {
		return 0
	}
	return b.Width / float64(frameWidth)
}

// PersonBounds is the inclusive pixel extent of the person label in a category mask.
type PersonBounds struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Height returns the vertical extent in rows (MaxY - MinY).
func (p PersonBounds) Height() int {
	return p.MaxY - p.MinY
}

// Ramp maps v linearly from [start, end] to [0, 1], clamping outside the interval.
// A degenerate interval behaves as a step at start.
func Ramp(v, start, end float64) float64 {
	if end <= start {
		if v < start {
			return 0
		}
		return 1
	}
	switch {
	case v <= start:
		return 0
	case v >= end:
		return 1
	}
	return (v - start) / (end - start)
}

// AlphaRamp is Ramp scaled to an 8-bit alpha value, rounded to nearest.
func AlphaRamp(v, start, end float64) uint8 {
	return uint8(math.Round(Ramp(v, start, end) * 255))
}
