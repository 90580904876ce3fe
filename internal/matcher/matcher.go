// Package matcher implements exhaustive nearest-neighbor identity search.
//
// There is no index: every stored embedding is compared against the query,
// which is fast enough for galleries of a few thousand embeddings.
package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/kozaktomas/face-recognizer/internal/embedding"
)

// Metric selects how two embeddings are compared.
type Metric string

const (
	// Cosine is the cosine similarity; higher is better, accepted iff score >= threshold.
	Cosine Metric = "cosine"
	// Euclidean is the L2 distance; lower is better, accepted iff score <= threshold.
	Euclidean Metric = "euclidean"
)

// ParseMetric converts a metric name to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case Cosine:
		return Cosine, nil
	case Euclidean:
		return Euclidean, nil
	default:
		return "", fmt.Errorf("unknown metric %q (expected cosine or euclidean)", s)
	}
}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == Cosine || m == Euclidean
}

// CheckThreshold rejects thresholds outside the metric's score range: cosine
// scores lie in [-1, 1] and euclidean distances are never negative.
func (m Metric) CheckThreshold(t float64) error {
	switch {
	case math.IsNaN(t) || math.IsInf(t, 0):
		return fmt.Errorf("threshold must be a finite number, got %v", t)
	case m == Cosine && (t < -1 || t > 1):
		return fmt.Errorf("cosine threshold must be within [-1, 1], got %v", t)
	case m == Euclidean && t < 0:
		return fmt.Errorf("euclidean threshold must not be negative, got %v", t)
	}
	return nil
}

// Score compares two embeddings under the metric.
func (m Metric) Score(a, b embedding.Vector) (float64, error) {
	switch m {
	case Cosine:
		return embedding.CosineSimilarity(a, b)
	case Euclidean:
		return embedding.EuclideanDistance(a, b)
	default:
		return 0, fmt.Errorf("unknown metric %q", string(m))
	}
}

// Better reports whether score a strictly beats score b.
func (m Metric) Better(a, b float64) bool {
	if m == Euclidean {
		return a < b
	}
	return a > b
}

// Accepts reports whether score passes threshold. Both boundaries are inclusive.
func (m Metric) Accepts(score, threshold float64) bool {
	if m == Euclidean {
		return score <= threshold
	}
	return score >= threshold
}

// Gallery is a read-only view over labeled embeddings.
// Range must visit identities in insertion order, and each identity's
// embeddings in insertion order, stopping when fn returns false.
type Gallery interface {
	Range(fn func(label string, stored embedding.Vector) bool)
}

// Result is the outcome of a search. Matched=false is the "no match" result;
// Score still carries the best score found so callers can report confidence
// for unknown faces.
type Result struct {
	Label   string  `json:"label,omitempty"`
	Matched bool    `json:"matched"`
	Score   float64 `json:"score"`
	Metric  Metric  `json:"metric"`
}

// Search compares query against every embedding in g and returns the single
// best (label, score). An empty gallery yields (no match, 0) for any query.
// Ties go to the first embedding encountered.
func Search(query embedding.Vector, g Gallery, metric Metric, threshold float64) (Result, error) {
	if !metric.Valid() {
		return Result{}, fmt.Errorf("unknown metric %q", string(metric))
	}

	var (
		bestLabel string
		bestScore float64
		found     bool
		scanErr   error
	)
	g.Range(func(label string, stored embedding.Vector) bool {
		if !found {
			if err := checkQuery(query); err != nil {
				scanErr = err
				return false
			}
		}
		score, err := metric.Score(query, stored)
		if err != nil {
			scanErr = err
			return false
		}
		if !found || metric.Better(score, bestScore) {
			bestLabel, bestScore, found = label, score, true
		}
		return true
	})
	if scanErr != nil {
		return Result{}, scanErr
	}

	if !found {
		return Result{Metric: metric}, nil
	}
	if !metric.Accepts(bestScore, threshold) {
		return Result{Score: bestScore, Metric: metric}, nil
	}
	return Result{Label: bestLabel, Matched: true, Score: bestScore, Metric: metric}, nil
}

func checkQuery(query embedding.Vector) error {
	if err := query.Validate(); err != nil {
		return err
	}
	if !query.IsNormalized() {
		return fmt.Errorf("%w: norm is %.6f", embedding.ErrNotNormalized, query.Norm())
	}
	return nil
}
