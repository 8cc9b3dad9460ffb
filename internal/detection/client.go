// Package detection talks to the face detection server.
package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kozaktomas/maneifest/internal/geometry"
	"github.com/kozaktomas/maneifest/internal/imageupload"
)

const defaultDetectorURL = "http://localhost:8000"

// FaceDetection is a single face found by the detector.
type FaceDetection struct {
	BBox     []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore float64   `json:"det_score"`
}

// FaceResponse is the detector's response for one frame.
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client detects faces in frames.
type Client struct {
	upload   *imageupload.Client
	minScore float64
}

// NewClient creates a detector client. Detections scoring below minScore are ignored by FirstFace.
func NewClient(baseURL string, minScore float64) *Client {
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		upload:   imageupload.New(baseURL, "detector", 10*time.Second),
		minScore: minScore,
	}
}

// Detect returns all faces the server found in the frame.
func (c *Client) Detect(ctx context.Context, frame []byte) (*FaceResponse, error) {
	body, err := c.upload.Post(ctx, "/detect/face", imageupload.Image{Name: "frame", Data: frame})
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// FirstFace returns the first usable detection as a bounding box, or nil when the
// frame has no face. Only the first face is considered when several are present.
func (c *Client) FirstFace(ctx context.Context, frame []byte) (*geometry.BoundingBox, error) {
	resp, err := c.Detect(ctx, frame)
	if err != nil {
		return nil, err
	}
	for _, face := range resp.Faces {
		if face.DetScore < c.minScore {
			continue
		}
		box, ok := geometry.FromCorners(face.BBox)
		if !ok {
			continue
		}
		return &box, nil
	}
	return nil, nil
}
