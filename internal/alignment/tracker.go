// Package alignment decides frame by frame whether a detected face is framed well
// enough to photograph and turns sustained alignment into a countdown and a single
// capture trigger.
package alignment

import (
	"time"

	"github.com/kozaktomas/maneifest/internal/geometry"
)

// Config holds the alignment tolerances and debounce thresholds.
// Thresholds are counted in analyzed frames, not wall-clock time.
type Config struct {
	// CenterTolerance is the max distance of the face center from the frame center,
	// as a fraction of the frame dimension on that axis.
	CenterTolerance float64 `yaml:"center_tolerance" json:"center_tolerance"`
	// MinWidthRatio and MaxWidthRatio bound face width / frame width (both exclusive).
	MinWidthRatio float64 `yaml:"min_width_ratio" json:"min_width_ratio"`
	MaxWidthRatio float64 `yaml:"max_width_ratio" json:"max_width_ratio"`
	// ConfirmFrames is the number of consecutive aligned frames before the countdown starts.
	ConfirmFrames uint32 `yaml:"confirm_frames" json:"confirm_frames"`
	// CountdownFrom is the first countdown value shown.
	CountdownFrom uint8 `yaml:"countdown_from" json:"countdown_from"`
	// CountdownStepFrames is the number of aligned frames per countdown step.
	CountdownStepFrames uint32 `yaml:"countdown_step_frames" json:"countdown_step_frames"`
}

// DefaultConfig returns the tuning used by the app: 15% centering tolerance,
// face width between 20% and 80% of the frame, countdown 3-2-1 starting after
// 30 aligned frames with one step every 10 frames (trigger at frame 60).
func DefaultConfig() Config {
	return Config{
		CenterTolerance:     0.15,
		MinWidthRatio:       0.2,
		MaxWidthRatio:       0.8,
		ConfirmFrames:       30,
		CountdownFrom:       3,
		CountdownStepFrames: 10,
	}
}

// TriggerFrames is the aligned frame count at which the capture fires.
func (c Config) TriggerFrames() uint32 {
	return c.ConfirmFrames + uint32(c.CountdownFrom)*c.CountdownStepFrames
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CenterTolerance <= 0 {
		c.CenterTolerance = def.CenterTolerance
	}
	if c.MaxWidthRatio <= 0 {
		c.MinWidthRatio, c.MaxWidthRatio = def.MinWidthRatio, def.MaxWidthRatio
	}
	if c.ConfirmFrames == 0 {
		c.ConfirmFrames = def.ConfirmFrames
	}
	if c.CountdownFrom == 0 {
		c.CountdownFrom = def.CountdownFrom
	}
	if c.CountdownStepFrames == 0 {
		c.CountdownStepFrames = def.CountdownStepFrames
	}
	return c
}

// IsAligned reports whether box is centered within tolerance and sized within the
// width ratio bounds for a frame of the given dimensions.
func IsAligned(box geometry.BoundingBox, frameWidth, frameHeight int, cfg Config) bool {
	if frameWidth <= 0 || frameHeight <= 0 {
		return false
	}
	dx, dy := geometry.CenterOffset(box, frameWidth, frameHeight)
	if dx >= cfg.CenterTolerance*float64(frameWidth) || dy >= cfg.CenterTolerance*float64(frameHeight) {
		return false
	}
	ratio := geometry.WidthRatio(box, frameWidth)
	return ratio > cfg.MinWidthRatio && ratio < cfg.MaxWidthRatio
}

// Tracker debounces per-frame alignment into a countdown and a capture trigger.
// It is not safe for concurrent use; callers must serialize Observe and Reset.
type Tracker struct {
	cfg       Config
	state     State
	remaining uint8
}

// NewTracker creates a tracker. Zero-valued config fields fall back to DefaultConfig.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Observe feeds one analyzed frame. box is nil when no face was detected.
// Non-positive frame dimensions leave the tracker untouched and return the previous state.
func (t *Tracker) Observe(box *geometry.BoundingBox, frameWidth, frameHeight int, now time.Time) State {
	if frameWidth <= 0 || frameHeight <= 0 {
		return t.state
	}
	aligned := box != nil && IsAligned(*box, frameWidth, frameHeight, t.cfg)
	t.state = t.transition(aligned)
	t.state.ObservedAt = now
	return t.state
}

// State returns the state produced by the last Observe call.
func (t *Tracker) State() State {
	return t.state
}

// Remaining returns the countdown number currently on screen, or 0 outside the countdown.
// Unlike State.Countdown it stays set between countdown steps.
func (t *Tracker) Remaining() uint8 {
	return t.remaining
}

// Reset clears all counters, e.g. when the user retakes a photo.
func (t *Tracker) Reset() {
	t.state = State{}
	t.remaining = 0
}

// transition is the single state machine step: Searching -> Aligning -> Countdown(n) -> Triggered -> Searching.
func (t *Tracker) transition(aligned bool) State {
	if !aligned {
		t.remaining = 0
		return State{Phase: Searching}
	}

	count := t.state.ConsecutiveAlignedFrames + 1
	next := State{Aligned: true, ConsecutiveAlignedFrames: count}

	switch {
	case count >= t.cfg.TriggerFrames():
		// Triggered is a pseudo-state; the counter re-arms immediately.
		t.remaining = 0
		next.ConsecutiveAlignedFrames = 0
		next.Triggered = true
		next.Phase = Searching
	case count >= t.cfg.ConfirmFrames:
		next.Phase = Countdown
		since := count - t.cfg.ConfirmFrames
		if since%t.cfg.CountdownStepFrames == 0 {
			v := t.cfg.CountdownFrom - uint8(since/t.cfg.CountdownStepFrames)
			t.remaining = v
			next.Countdown = &v
		}
	default:
		t.remaining = 0
		next.Phase = Aligning
	}
	return next
}
