package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/maneifest/internal/alignment"
	"github.com/kozaktomas/maneifest/internal/geometry"
	"github.com/kozaktomas/maneifest/internal/logger"
)

const (
	sessionIdleTimeout     = 30 * time.Minute
	sessionCleanupInterval = 5 * time.Minute
)

// trackerSession is one client's capture attempt. The tracker is not safe for
// concurrent use, so every access goes through mu.
type trackerSession struct {
	mu       sync.Mutex
	tracker  *alignment.Tracker
	lastSeen time.Time
}

// SessionsHandler keeps an alignment tracker per capture session.
type SessionsHandler struct {
	cfg      alignment.Config
	validate *validator.Validate
	log      logrus.FieldLogger
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*trackerSession
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSessionsHandler creates the handler and starts the idle session cleanup.
// Call Stop to end it.
func NewSessionsHandler(cfg alignment.Config, log logrus.FieldLogger) *SessionsHandler {
	h := &SessionsHandler{
		cfg:      cfg,
		validate: validator.New(),
		log:      logger.OrDiscard(log),
		now:      time.Now,
		sessions: make(map[uuid.UUID]*trackerSession),
		stopCh:   make(chan struct{}),
	}
	go h.cleanupLoop()
	return h
}

// Stop ends the cleanup goroutine.
func (h *SessionsHandler) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *SessionsHandler) cleanupLoop() {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := h.expire(h.now()); n > 0 {
				h.log.WithField("count", n).Debug("expired idle capture sessions")
			}
		case <-h.stopCh:
			return
		}
	}
}

// expire removes sessions idle for longer than sessionIdleTimeout.
func (h *SessionsHandler) expire(now time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for id, s := range h.sessions {
		s.mu.Lock()
		idle := now.Sub(s.lastSeen)
		s.mu.Unlock()
		if idle > sessionIdleTimeout {
			delete(h.sessions, id)
			n++
		}
	}
	return n
}

func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) *trackerSession {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return nil
	}
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return nil
	}
	return s
}

type createSessionResponse struct {
	ID     uuid.UUID        `json:"id"`
	Config alignment.Config `json:"config"`
}

// Create starts a new capture session.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := uuid.New()
	tracker := alignment.NewTracker(h.cfg)

	h.mu.Lock()
	h.sessions[id] = &trackerSession{tracker: tracker, lastSeen: h.now()}
	h.mu.Unlock()

	h.log.WithField("session", id).Debug("capture session created")
	respondJSON(w, http.StatusCreated, createSessionResponse{ID: id, Config: tracker.Config()})
}

type boxRequest struct {
	OriginX *float64 `json:"origin_x" validate:"required"`
	OriginY *float64 `json:"origin_y" validate:"required"`
	Width   *float64 `json:"width" validate:"required"`
	Height  *float64 `json:"height" validate:"required"`
}

// ObserveRequest is one analyzed frame. Box is null when no face was found.
// Only the presence of fields is validated: degenerate boxes and frame sizes are
// left to the tracker, which treats them as misaligned or ignores the frame.
type ObserveRequest struct {
	Box         *boxRequest `json:"box"`
	FrameWidth  *int        `json:"frame_width" validate:"required"`
	FrameHeight *int        `json:"frame_height" validate:"required"`
}

// ObserveResponse is the tracker state after the frame plus the countdown number
// currently on screen.
type ObserveResponse struct {
	alignment.State
	Remaining uint8 `json:"remaining"`
}

// Observe feeds one frame into the session's tracker.
func (h *SessionsHandler) Observe(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}

	var req ObserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}

	var box *geometry.BoundingBox
	if req.Box != nil {
		box = &geometry.BoundingBox{
			OriginX: *req.Box.OriginX,
			OriginY: *req.Box.OriginY,
			Width:   *req.Box.Width,
			Height:  *req.Box.Height,
		}
	}

	s.mu.Lock()
	now := h.now()
	s.lastSeen = now
	state := s.tracker.Observe(box, *req.FrameWidth, *req.FrameHeight, now)
	remaining := s.tracker.Remaining()
	s.mu.Unlock()

	if state.Triggered {
		h.log.WithField("session", sanitizeForLog(chi.URLParam(r, "id"))).Info("capture triggered")
	}
	respondJSON(w, http.StatusOK, ObserveResponse{State: state, Remaining: remaining})
}

// Reset clears the session's alignment progress, e.g. for a retake.
func (h *SessionsHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s := h.lookup(w, r)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.tracker.Reset()
	s.lastSeen = h.now()
	state := s.tracker.State()
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, ObserveResponse{State: state})
}

// Delete ends a session.
func (h *SessionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
