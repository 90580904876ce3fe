// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"

	"github.com/kozaktomas/face-recognizer/internal/database"
)

// MockSnapshotStore is an in-memory implementation of database.SnapshotStore
type MockSnapshotStore struct {
	mu        sync.Mutex
	snapshot  *database.Snapshot
	saveCount int
	loadCount int

	// Error injection
	LoadError error
	SaveError error
}

// NewMockSnapshotStore creates an empty mock snapshot store
func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{}
}

// NewMockSnapshotStoreWith creates a mock snapshot store that already holds snap
func NewMockSnapshotStoreWith(snap *database.Snapshot) *MockSnapshotStore {
	return &MockSnapshotStore{snapshot: cloneSnapshot(snap)}
}

// Load returns a copy of the stored snapshot
func (m *MockSnapshotStore) Load(ctx context.Context) (*database.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCount++
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	if m.snapshot == nil {
		return nil, database.ErrSnapshotNotFound
	}
	return cloneSnapshot(m.snapshot), nil
}

// Save stores a copy of snap
func (m *MockSnapshotStore) Save(ctx context.Context, snap *database.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveError != nil {
		return m.SaveError
	}
	m.saveCount++
	m.snapshot = cloneSnapshot(snap)
	return nil
}

// Location returns a fixed description
func (m *MockSnapshotStore) Location() string {
	return "mock://snapshot"
}

// SetSaveError changes the injected save error under the lock
func (m *MockSnapshotStore) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveError = err
}

// Snapshot returns a copy of the last saved snapshot, or nil
func (m *MockSnapshotStore) Snapshot() *database.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSnapshot(m.snapshot)
}

// SaveCount returns how many times Save succeeded
func (m *MockSnapshotStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCount
}

// LoadCount returns how many times Load was called
func (m *MockSnapshotStore) LoadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadCount
}

func cloneSnapshot(s *database.Snapshot) *database.Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Identities = make([]database.IdentityRecord, len(s.Identities))
	for i, id := range s.Identities {
		embs := make([][]float64, len(id.Embeddings))
		for j, e := range id.Embeddings {
			embs[j] = append([]float64(nil), e...)
		}
		out.Identities[i] = database.IdentityRecord{Label: id.Label, Embeddings: embs}
	}
	return &out
}
