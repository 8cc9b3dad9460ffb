package segmentation

import (
	"context"
	"time"

	"github.com/kozaktomas/maneifest/internal/imageupload"
)

const defaultSegmenterURL = "http://localhost:8000"

// Client requests person/background category masks from the segmentation server.
type Client struct {
	upload *imageupload.Client
}

// NewClient creates a new segmentation client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultSegmenterURL
	}
	return &Client{upload: imageupload.New(baseURL, "segmenter", 60*time.Second)}
}

// Segment uploads a PNG canvas and returns the category mask the server computed for it.
// The server responds with a label PNG of the same size (non-zero = person).
func (c *Client) Segment(ctx context.Context, canvasPNG []byte) (*CategoryMask, error) {
	body, err := c.upload.Post(ctx, "/segment/person", imageupload.Image{
		Name:     "canvas",
		Data:     canvasPNG,
		MIMEType: "image/png",
	})
	if err != nil {
		return nil, err
	}
	return Decode(body)
}
