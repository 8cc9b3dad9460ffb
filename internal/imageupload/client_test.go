package imageupload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

var jpegData = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46}

type upload struct {
	path        string
	filename    string
	contentType string
	body        string
}

func uploadServer(t *testing.T, got *upload) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		*got = upload{
			path:        r.URL.Path,
			filename:    header.Filename,
			contentType: header.Header.Get("Content-Type"),
			body:        string(data),
		}
		w.Write([]byte("ok"))
	}))
}

func TestClient_Post(t *testing.T) {
	tests := []struct {
		name     string
		img      Image
		expected upload
	}{
		{
			name:     "detected jpeg",
			img:      Image{Name: "frame", Data: jpegData},
			expected: upload{path: "/detect/face", filename: "frame.jpg", contentType: "image/jpeg", body: string(jpegData)},
		},
		{
			name:     "explicit type",
			img:      Image{Name: "canvas", Data: []byte("canvas-bytes"), MIMEType: "image/png"},
			expected: upload{path: "/detect/face", filename: "canvas.png", contentType: "image/png", body: "canvas-bytes"},
		},
		{
			name:     "unknown data",
			img:      Image{Name: "blob", Data: []byte("x")},
			expected: upload{path: "/detect/face", filename: "blob.bin", contentType: "application/octet-stream", body: "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got upload
			server := uploadServer(t, &got)
			defer server.Close()

			body, err := New(server.URL+"/", "detector", time.Second).Post(context.Background(), "/detect/face", tt.img)
			if err != nil {
				t.Fatalf("Post: %v", err)
			}
			if string(body) != "ok" {
				t.Errorf("body = %q, want ok", body)
			}
			if got != tt.expected {
				t.Errorf("upload = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestClient_PostError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, "segmenter", time.Second).Post(context.Background(), "/segment/person", Image{Name: "canvas", Data: jpegData})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"segmenter error", "status 503", "model not loaded"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not contain %q", err, want)
		}
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected string
	}{
		{"jpeg", jpegData, "image/jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{"too short", []byte{0xFF, 0xD8}, "application/octet-stream"},
		{"unknown", []byte("plain text data"), "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectMIMEType(tt.data); got != tt.expected {
				t.Errorf("DetectMIMEType() = %q, want %q", got, tt.expected)
			}
		})
	}
}
