package identity

import "errors"

var (
	// ErrNotFound is returned when a label has no stored embeddings.
	ErrNotFound = errors.New("identity not found")
	// ErrCorruptStore is returned when persisted state exists but cannot be
	// decoded or carries an unsupported format version.
	ErrCorruptStore = errors.New("identity store is corrupt")
	// ErrIOFailure is returned when the persisted state cannot be read or written.
	// In-memory state is left untouched.
	ErrIOFailure = errors.New("identity store I/O failure")
	// ErrInvalidLabel is returned for an empty label.
	ErrInvalidLabel = errors.New("identity label must not be empty")
)
