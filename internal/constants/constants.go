// Package constants provides shared constants used across the codebase.
package constants

import "time"

// Image constants
const (
	// MaxCanvasSize is the largest edit canvas edge accepted from clients
	MaxCanvasSize = 4096

	// AnalysisImageSize is the longest edge of photos uploaded for face analysis
	AnalysisImageSize = 800
)

// Processing constants
const (
	// DefaultConcurrency is the default number of parallel mask workers
	DefaultConcurrency = 4

	// ShutdownTimeout bounds the graceful web server shutdown
	ShutdownTimeout = 30 * time.Second
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart upload size in bytes (32MB)
	MaxUploadSize = 32 << 20
)
