// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Face detection constants
const (
	// DuplicateIoU is the overlap above which two detections are treated as
	// the same face and the later one is dropped
	DuplicateIoU = 0.9
)

// Response constants
const (
	// ConfidenceDecimals is the number of decimals confidences are rounded to
	// in API responses
	ConfidenceDecimals = 4
)

// File upload constants
const (
	// MaxUploadSize is the maximum multipart request size in bytes (100MB)
	MaxUploadSize = 100 << 20

	// MaxBatchImages is the maximum number of images in one batch enrollment
	MaxBatchImages = 100
)

// Server constants
const (
	// RequestTimeout bounds a single API request, extraction included
	RequestTimeout = 2 * time.Minute

	// ShutdownTimeout is how long in-flight requests get on shutdown
	ShutdownTimeout = 30 * time.Second
)

