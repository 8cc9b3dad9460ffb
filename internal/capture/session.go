// Package capture runs the auto-capture loop: it pulls frames from a camera source,
// detects the face, feeds the alignment tracker and returns a mirrored still once the
// countdown finishes.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kozaktomas/maneifest/internal/alignment"
	"github.com/kozaktomas/maneifest/internal/geometry"
	"github.com/kozaktomas/maneifest/internal/logger"
	"github.com/kozaktomas/maneifest/internal/mask"
)

const defaultAnalysisRate = 10

// Detector finds the face to align in an encoded frame. A nil box means no face.
type Detector interface {
	FirstFace(ctx context.Context, frame []byte) (*geometry.BoundingBox, error)
}

// Capture is the photo taken when the countdown completes.
type Capture struct {
	ID      uuid.UUID
	Image   *image.RGBA // mirrored like the selfie preview
	Frame   Frame
	TakenAt time.Time
}

// PNG encodes the captured image.
func (c *Capture) PNG() ([]byte, error) {
	return mask.EncodeCanvasPNG(c.Image)
}

// Options configures a Session.
type Options struct {
	// Rate is the number of frames analyzed per second. Defaults to 10.
	Rate float64
	// OnState is called after every analyzed frame.
	OnState func(frame Frame, box *geometry.BoundingBox, state alignment.State)
	Logger  logrus.FieldLogger
	// Now stamps frames whose source left Timestamp unset.
	Now func() time.Time
}

// Session couples a frame source, a detector and a tracker. Not safe for concurrent use.
type Session struct {
	source   Source
	detector Detector
	tracker  *alignment.Tracker
	limiter  *rate.Limiter
	onState  func(Frame, *geometry.BoundingBox, alignment.State)
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewSession(source Source, detector Detector, tracker *alignment.Tracker, opts Options) *Session {
	if opts.Rate <= 0 {
		opts.Rate = defaultAnalysisRate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		source:   source,
		detector: detector,
		tracker:  tracker,
		limiter:  rate.NewLimiter(rate.Limit(opts.Rate), 1),
		onState:  opts.OnState,
		log:      logger.OrDiscard(opts.Logger),
		now:      opts.Now,
	}
}

// Run analyzes frames until the tracker triggers, the source runs out or ctx is done.
// Detector failures count as frames without a face.
func (s *Session) Run(ctx context.Context) (*Capture, error) {
	for {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		frame, err := s.source.Next(ctx)
		if err != nil {
			return nil, err
		}

		box, err := s.detector.FirstFace(ctx, frame.Data)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.WithFields(logger.Fields{"frame": frame.Index, "error": err}).Warn("face detection failed")
			box = nil
		}

		seenAt := frame.Timestamp
		if seenAt.IsZero() {
			seenAt = s.now()
		}
		state := s.tracker.Observe(box, frame.Width, frame.Height, seenAt)
		if s.onState != nil {
			s.onState(frame, box, state)
		}
		if v, ok := state.CountdownValue(); ok {
			s.log.WithField("frame", frame.Index).Infof("countdown %d", v)
		}
		if !state.Triggered {
			continue
		}

		c, err := s.capture(frame, state.ObservedAt)
		if err != nil {
			return nil, err
		}
		s.log.WithFields(logger.Fields{"capture": c.ID, "frame": frame.Index}).Info("photo captured")
		return c, nil
	}
}

// Retake discards alignment progress so the next Run starts from scratch.
func (s *Session) Retake() {
	s.tracker.Reset()
}

func (s *Session) capture(frame Frame, takenAt time.Time) (*Capture, error) {
	img, _, err := image.Decode(bytes.NewReader(frame.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode captured frame %d: %w", frame.Index, err)
	}
	return &Capture{
		ID:      uuid.New(),
		Image:   mask.MirrorHorizontal(img),
		Frame:   frame,
		TakenAt: takenAt,
	}, nil
}
