package identity

import (
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/embedding"
)

// collapseNorm is the norm below which a mean embedding is treated as zero.
const collapseNorm = 1e-9

// AverageEmbedding returns the re-normalized component-wise mean of label's
// embeddings. The result is a copy.
func (s *Store) AverageEmbedding(label string) (embedding.Vector, error) {
	s.mu.RLock()
	e, ok := s.entries[label]
	var mean embedding.Vector
	var err error
	if ok {
		mean, err = embedding.Mean(e.embeddings)
	}
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, label)
	}
	if err != nil {
		return nil, err
	}
	if mean.Norm() < collapseNorm {
		return nil, fmt.Errorf("%w: embeddings of %q cancel out", embedding.ErrInvalidVector, label)
	}
	return mean.Normalized()
}
