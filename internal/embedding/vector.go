// Package embedding holds the face descriptor vector type and the metric
// primitives every other package compares embeddings with.
package embedding

import (
	"errors"
	"fmt"
	"math"
)

// NormTolerance is the maximum allowed deviation of a vector's Euclidean norm
// from 1 for it to be considered unit-normalized.
const NormTolerance = 1e-6

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the
	// dimensionality established by the store or the other operand.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidVector is returned for empty, zero or non-finite vectors.
	ErrInvalidVector = errors.New("invalid embedding vector")
	// ErrNotNormalized is returned when a vector is expected to have unit norm but doesn't.
	ErrNotNormalized = errors.New("embedding is not unit-normalized")
)

// Vector is a face embedding. All arithmetic is done in float64.
type Vector []float64

// Dim returns the dimensionality of the vector.
func (v Vector) Dim() int {
	return len(v)
}

// Clone returns a copy that shares no memory with v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Norm returns the Euclidean (L2) norm.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Validate checks that the vector is non-empty, finite and not all zeros.
func (v Vector) Validate() error {
	if len(v) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidVector)
	}
	var nonZero bool
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: component %d is not finite", ErrInvalidVector, i)
		}
		if x != 0 {
			nonZero = true
		}
	}
	if !nonZero {
		return fmt.Errorf("%w: zero vector", ErrInvalidVector)
	}
	return nil
}

// IsNormalized reports whether the norm is within NormTolerance of 1.
func (v Vector) IsNormalized() bool {
	return math.Abs(v.Norm()-1) <= NormTolerance
}

// Normalized returns a unit-norm copy of v.
func (v Vector) Normalized() (Vector, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	n := v.Norm()
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out, nil
}

// FromFloat32 converts a float32 embedding, as returned by most model servers,
// to a Vector without normalizing it.
func FromFloat32(values []float32) Vector {
	out := make(Vector, len(values))
	for i, x := range values {
		out[i] = float64(x)
	}
	return out
}

// Dot computes the dot product of two vectors of equal length.
func Dot(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// CosineSimilarity returns the cosine similarity of two unit-normalized
// vectors, which is their dot product. Range is [-1, 1], higher is more similar.
func CosineSimilarity(a, b Vector) (float64, error) {
	s, err := Dot(a, b)
	if err != nil {
		return 0, err
	}
	// Clamp to [-1, 1] to absorb floating point drift.
	return max(-1, min(1, s)), nil
}

// EuclideanDistance returns the L2 distance between two vectors.
// Range is [0, inf), lower is more similar.
func EuclideanDistance(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Mean returns the component-wise mean of vectors, which must all share one
// dimensionality. The result is not normalized.
func Mean(vectors []Vector) (Vector, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors to average", ErrInvalidVector)
	}
	dim := len(vectors[0])
	sum := make(Vector, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(v), dim)
		}
		for i, x := range v {
			sum[i] += x
		}
	}
	n := float64(len(vectors))
	for i := range sum {
		sum[i] /= n
	}
	return sum, nil
}
