package alignment

import (
	"fmt"
	"time"
)

// Phase is the tracker's position in the capture state machine.
type Phase int

const (
	// Searching means no face, or a misaligned one.
	Searching Phase = iota
	// Aligning means the face is aligned but the countdown has not started.
	Aligning
	// Countdown means alignment was confirmed and the countdown is running.
	Countdown
)

var phaseNames = map[Phase]string{
	Searching: "searching",
	Aligning:  "aligning",
	Countdown: "countdown",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase by name for JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(text []byte) error {
	for phase, name := range phaseNames {
		if name == string(text) {
			*p = phase
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", string(text))
}

// State is the tracker output after one analyzed frame.
type State struct {
	Aligned                  bool   `json:"aligned"`
	ConsecutiveAlignedFrames uint32 `json:"consecutive_aligned_frames"`
	// Countdown is set only on the frame a countdown step begins.
	Countdown *uint8 `json:"countdown"`
	// Triggered is true on exactly one frame per alignment episode: take the photo.
	Triggered  bool      `json:"triggered"`
	Phase      Phase     `json:"phase"`
	ObservedAt time.Time `json:"observed_at"`
}

// CountdownValue returns the countdown value and whether it is set.
func (s State) CountdownValue() (uint8, bool) {
	if s.Countdown == nil {
		return 0, false
	}
	return *s.Countdown, true
}
