package database

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CurrentFormatVersion is written into every persisted snapshot. Readers
// reject snapshots with a different version instead of guessing.
const CurrentFormatVersion = 1

var (
	// ErrSnapshotNotFound means nothing has been persisted yet; callers start empty.
	ErrSnapshotNotFound = errors.New("snapshot not found")
	// ErrSnapshotCorrupt means persisted state exists but cannot be decoded.
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// IdentityRecord is one identity with its embeddings in insertion order.
type IdentityRecord struct {
	Label      string
	Embeddings [][]float64
}

// Snapshot is the full persisted mapping of labels to embeddings.
// Identities appear in insertion order.
type Snapshot struct {
	Version    int
	Dimension  int
	SavedAt    time.Time
	Identities []IdentityRecord
}

// EmbeddingCount returns the total number of embeddings in the snapshot.
func (s *Snapshot) EmbeddingCount() int {
	n := 0
	for _, id := range s.Identities {
		n += len(id.Embeddings)
	}
	return n
}

// Validate checks the structural invariants every backend relies on.
func (s *Snapshot) Validate() error {
	if s.Version != CurrentFormatVersion {
		return fmt.Errorf("%w: unsupported format version %d", ErrSnapshotCorrupt, s.Version)
	}
	seen := make(map[string]struct{}, len(s.Identities))
	for _, id := range s.Identities {
		if _, dup := seen[id.Label]; dup {
			return fmt.Errorf("%w: duplicate identity %q", ErrSnapshotCorrupt, id.Label)
		}
		seen[id.Label] = struct{}{}
		if len(id.Embeddings) == 0 {
			return fmt.Errorf("%w: identity %q has no embeddings", ErrSnapshotCorrupt, id.Label)
		}
		for i, emb := range id.Embeddings {
			if len(emb) != s.Dimension {
				return fmt.Errorf("%w: identity %q embedding %d has dimension %d, expected %d",
					ErrSnapshotCorrupt, id.Label, i, len(emb), s.Dimension)
			}
		}
	}
	return nil
}

// SnapshotStore persists and restores snapshots.
type SnapshotStore interface {
	// Load returns the persisted snapshot, ErrSnapshotNotFound if there is none,
	// or an error wrapping ErrSnapshotCorrupt if it cannot be decoded.
	Load(ctx context.Context) (*Snapshot, error)
	// Save replaces the persisted snapshot. It is all-or-nothing: on failure the
	// previous snapshot stays intact.
	Save(ctx context.Context, snap *Snapshot) error
	// Location describes where snapshots live (file path, database, ...).
	Location() string
}
