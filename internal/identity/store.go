// Package identity holds the in-memory gallery of labeled face embeddings and
// its persistence lifecycle.
package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/embedding"
	"github.com/kozaktomas/face-recognizer/internal/metrics"
	"go.uber.org/zap"
)

type entry struct {
	label      string
	embeddings []embedding.Vector
}

// Store maps labels to their embeddings, both kept in insertion order.
//
// Reads (Range, Statistics, AverageEmbedding, Snapshot) share the lock;
// AddEmbedding and DeleteIdentity take it exclusively. Save calls are
// serialized with each other and persist a copy taken under the read lock.
// Mutation and persistence are separate steps: a crash between them loses the
// mutation.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []*entry
	dim     int

	saveMu  sync.Mutex
	backend database.SnapshotStore

	pinnedDim      int
	discardCorrupt bool
	logger         *zap.Logger
}

// Option configures Open.
type Option func(*Store)

// WithDimension pins the embedding dimension. A persisted snapshot with a
// different dimension fails to open and mismatching embeddings are rejected
// even while the store is empty.
func WithDimension(dim int) Option {
	return func(s *Store) {
		s.pinnedDim = dim
	}
}

// WithCorruptFallback makes Open start with an empty store when the persisted
// snapshot is corrupt instead of failing. The discarded location is logged.
func WithCorruptFallback() Option {
	return func(s *Store) {
		s.discardCorrupt = true
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open loads the store from backend. A backend with nothing persisted yields
// an empty store.
func Open(ctx context.Context, backend database.SnapshotStore, opts ...Option) (*Store, error) {
	s := &Store{
		entries: make(map[string]*entry),
		backend: backend,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pinnedDim < 0 {
		return nil, fmt.Errorf("%w: negative pinned dimension %d", embedding.ErrDimensionMismatch, s.pinnedDim)
	}

	snap, err := backend.Load(ctx)
	switch {
	case errors.Is(err, database.ErrSnapshotNotFound):
		s.logger.Info("no identity snapshot found, starting empty", zap.String("location", backend.Location()))
		s.publishGauges()
		return s, nil
	case errors.Is(err, database.ErrSnapshotCorrupt):
		return s.corrupt(err)
	case err != nil:
		return nil, fmt.Errorf("%w: loading %s: %w", ErrIOFailure, backend.Location(), err)
	}

	if s.pinnedDim > 0 && len(snap.Identities) > 0 && snap.Dimension != s.pinnedDim {
		return nil, fmt.Errorf("%w: snapshot %s has dimension %d, configured %d",
			embedding.ErrDimensionMismatch, backend.Location(), snap.Dimension, s.pinnedDim)
	}
	if err := s.Restore(snap); err != nil {
		return s.corrupt(err)
	}

	s.logger.Info("identity store loaded",
		zap.String("location", backend.Location()),
		zap.Int("identities", len(s.order)),
		zap.Int("embeddings", snap.EmbeddingCount()),
		zap.Int("dimension", s.dim),
	)
	return s, nil
}

func (s *Store) corrupt(cause error) (*Store, error) {
	if !s.discardCorrupt {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptStore, s.backend.Location(), cause)
	}
	s.logger.Warn("discarding corrupt identity snapshot, starting empty",
		zap.String("location", s.backend.Location()),
		zap.Error(cause),
	)
	s.reset()
	s.publishGauges()
	return s, nil
}

func (s *Store) reset() {
	s.entries = make(map[string]*entry)
	s.order = nil
	s.dim = 0
}

// Restore replaces the in-memory contents with snap. Embeddings are validated
// and normalized if needed; on error the store is left unchanged.
func (s *Store) Restore(snap *database.Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	if s.pinnedDim > 0 && len(snap.Identities) > 0 && snap.Dimension != s.pinnedDim {
		return fmt.Errorf("%w: snapshot has dimension %d, configured %d",
			embedding.ErrDimensionMismatch, snap.Dimension, s.pinnedDim)
	}

	entries := make(map[string]*entry, len(snap.Identities))
	order := make([]*entry, 0, len(snap.Identities))
	for _, rec := range snap.Identities {
		if rec.Label == "" {
			return fmt.Errorf("%w: %w", database.ErrSnapshotCorrupt, ErrInvalidLabel)
		}
		e := &entry{label: rec.Label, embeddings: make([]embedding.Vector, 0, len(rec.Embeddings))}
		for i, raw := range rec.Embeddings {
			v := embedding.Vector(raw)
			if err := v.Validate(); err != nil {
				return fmt.Errorf("%w: identity %q embedding %d: %w", database.ErrSnapshotCorrupt, rec.Label, i, err)
			}
			if v.IsNormalized() {
				v = v.Clone()
			} else {
				v, _ = v.Normalized()
			}
			e.embeddings = append(e.embeddings, v)
		}
		entries[rec.Label] = e
		order = append(order, e)
	}

	s.mu.Lock()
	s.entries = entries
	s.order = order
	s.dim = 0
	if len(order) > 0 {
		s.dim = snap.Dimension
	}
	s.mu.Unlock()

	s.publishGauges()
	return nil
}

// AddEmbedding appends a normalized copy of v to label, creating the identity
// if it is new, and returns the identity's embedding count. In-memory only.
func (s *Store) AddEmbedding(label string, v embedding.Vector) (int, error) {
	if label == "" {
		return 0, ErrInvalidLabel
	}
	unit, err := v.Normalized()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if want := s.expectedDimLocked(); want > 0 && len(unit) != want {
		return 0, fmt.Errorf("%w: got %d, store has %d", embedding.ErrDimensionMismatch, len(unit), want)
	}

	e, ok := s.entries[label]
	if !ok {
		e = &entry{label: label}
		s.entries[label] = e
		s.order = append(s.order, e)
	}
	e.embeddings = append(e.embeddings, unit)
	s.dim = len(unit)

	s.publishGaugesLocked()
	return len(e.embeddings), nil
}

// DeleteIdentity removes label and all its embeddings. In-memory only.
func (s *Store) DeleteIdentity(label string) (existed bool, removed int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[label]
	if !ok {
		return false, 0
	}
	delete(s.entries, label)
	s.order = slices.DeleteFunc(s.order, func(x *entry) bool { return x == e })
	if len(s.order) == 0 {
		s.dim = 0
	}

	s.publishGaugesLocked()
	return true, len(e.embeddings)
}

func (s *Store) expectedDimLocked() int {
	if s.dim > 0 {
		return s.dim
	}
	return s.pinnedDim
}

// Save persists the full mapping, overwriting what the backend holds. On
// failure the previous persisted state and the in-memory state are intact.
func (s *Store) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	start := time.Now()
	snap := s.Snapshot()
	if err := s.backend.Save(ctx, snap); err != nil {
		metrics.StoreSavesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: saving %s: %w", ErrIOFailure, s.backend.Location(), err)
	}
	metrics.StoreSavesTotal.WithLabelValues("ok").Inc()
	metrics.StoreSaveDuration.Observe(time.Since(start).Seconds())

	s.logger.Debug("identity store saved",
		zap.String("location", s.backend.Location()),
		zap.Int("identities", len(snap.Identities)),
		zap.Int("embeddings", snap.EmbeddingCount()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// Snapshot returns a deep copy of the current mapping.
func (s *Store) Snapshot() *database.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &database.Snapshot{
		Version:    database.CurrentFormatVersion,
		Dimension:  s.dim,
		SavedAt:    time.Now().UTC(),
		Identities: make([]database.IdentityRecord, 0, len(s.order)),
	}
	for _, e := range s.order {
		rec := database.IdentityRecord{Label: e.label, Embeddings: make([][]float64, len(e.embeddings))}
		for i, v := range e.embeddings {
			rec.Embeddings[i] = v.Clone()
		}
		snap.Identities = append(snap.Identities, rec)
	}
	return snap
}

// Range visits every stored embedding, identities in insertion order and each
// identity's embeddings in insertion order, until fn returns false. It holds
// the read lock: fn must not call back into the store's writers, and must not
// retain or modify stored.
func (s *Store) Range(fn func(label string, stored embedding.Vector) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.order {
		for _, v := range e.embeddings {
			if !fn(e.label, v) {
				return
			}
		}
	}
}

// Labels returns identity labels in insertion order.
func (s *Store) Labels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	labels := make([]string, len(s.order))
	for i, e := range s.order {
		labels[i] = e.label
	}
	return labels
}

// Has reports whether label exists.
func (s *Store) Has(label string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entries[label]
	return ok
}

// Count returns the number of embeddings stored for label.
func (s *Store) Count(label string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[label]; ok {
		return len(e.embeddings)
	}
	return 0
}

// Dimension returns the established dimension, the pinned one while empty, or 0.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expectedDimLocked()
}

// Location describes where the store is persisted.
func (s *Store) Location() string {
	return s.backend.Location()
}

func (s *Store) publishGauges() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.publishGaugesLocked()
}

func (s *Store) publishGaugesLocked() {
	total := 0
	for _, e := range s.order {
		total += len(e.embeddings)
	}
	metrics.StoreIdentities.Set(float64(len(s.order)))
	metrics.StoreEmbeddings.Set(float64(total))
}
