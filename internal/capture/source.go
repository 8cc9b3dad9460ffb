package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const megabyte = 1024 * 1024

var (
	// ErrSourceExhausted is returned by Next when a source has no more frames.
	ErrSourceExhausted = errors.New("frame source exhausted")

	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// Frame is one encoded camera frame. Timestamp is when the source read it.
type Frame struct {
	Index     int
	Data      []byte
	Width     int
	Height    int
	Timestamp time.Time
}

// Source yields frames in capture order.
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// splitJpeg is a bufio.SplitFunc that yields concatenated JPEG images, skipping bytes outside SOI..EOI.
func splitJpeg(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		return 0, nil, nil
	}
	end := bytes.Index(data[start:], jpegEOI)
	if end == -1 {
		return 0, nil, nil
	}
	return start + end + 2, data[start : start+end+2], nil
}

// StreamSource reads an MJPEG stream such as `ffmpeg -f image2pipe -vcodec mjpeg -`.
type StreamSource struct {
	scanner *bufio.Scanner
	index   int
	skipped int
	now     func() time.Time
}

func NewStreamSource(r io.Reader) *StreamSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(splitJpeg)
	return &StreamSource{scanner: scanner, now: time.Now}
}

// Next returns the next decodable frame. Frames whose header can't be read are skipped.
func (s *StreamSource) Next(ctx context.Context) (Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return Frame{}, fmt.Errorf("frame scanner failed: %w", err)
			}
			return Frame{}, ErrSourceExhausted
		}

		s.index++
		readAt := s.now()
		data := bytes.Clone(s.scanner.Bytes())
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			s.skipped++
			continue
		}
		return Frame{Index: s.index, Data: data, Width: cfg.Width, Height: cfg.Height, Timestamp: readAt}, nil
	}
}

// Skipped returns the number of undecodable frames dropped so far.
func (s *StreamSource) Skipped() int {
	return s.skipped
}

var frameExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp"}

// DirSource replays image files from a directory in file name order.
type DirSource struct {
	files []string
	pos   int
	now   func() time.Time
}

func NewDirSource(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(frameExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(files)
	return &DirSource{files: files, now: time.Now}, nil
}

// Files returns the frame paths in replay order.
func (s *DirSource) Files() []string {
	return slices.Clone(s.files)
}

// Len returns the number of frames in the directory.
func (s *DirSource) Len() int {
	return len(s.files)
}

func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.files) {
		return Frame{}, ErrSourceExhausted
	}
	path := s.files[s.pos]
	s.pos++
	readAt := s.now()

	data, err := os.ReadFile(path)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to read frame: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame %s: %w", filepath.Base(path), err)
	}
	return Frame{Index: s.pos, Data: data, Width: cfg.Width, Height: cfg.Height, Timestamp: readAt}, nil
}
