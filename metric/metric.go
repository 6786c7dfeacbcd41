// Package metric provides vector similarity calculations for the vector
// indexes. Similarities are oriented so that higher is better; distance
// conversions for graph traversal are derived from them.
package metric

import (
	"errors"
	"fmt"
	"math"
)

// ErrVectorSizeMismatch is returned when two vectors have different lengths.
var ErrVectorSizeMismatch = errors.New("vector sizes do not match")

// Similarity represents the similarity measure used by a vector index.
type Similarity int

const (
	// Cosine similarity in [-1, 1].
	Cosine Similarity = iota
	// Dot is the inner product; equivalent to Cosine for pre-normalized
	// vectors but cheaper to compute.
	Dot
)

func (s Similarity) String() string {
	switch s {
	case Cosine:
		return "cosine"
	case Dot:
		return "dot"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Func calculates the similarity between two vectors (higher is better).
type Func func(a, b []float32) (float32, error)

// DistanceFunc calculates a distance between two vectors (lower is better).
type DistanceFunc func(a, b []float32) (float32, error)

// Provider returns the similarity function for the given measure.
func Provider(s Similarity) (Func, error) {
	switch s {
	case Cosine:
		return CosineSimilarity, nil
	case Dot:
		return DotProduct, nil
	default:
		return nil, fmt.Errorf("unsupported similarity: %v", s)
	}
}

// DistanceProvider returns a distance function consistent with the measure:
// 1-cosine for Cosine, negated inner product for Dot. Ordering by ascending
// distance equals ordering by descending similarity.
func DistanceProvider(s Similarity) (DistanceFunc, error) {
	sim, err := Provider(s)
	if err != nil {
		return nil, err
	}
	switch s {
	case Cosine:
		return func(a, b []float32) (float32, error) {
			v, err := sim(a, b)
			return 1 - v, err
		}, nil
	default:
		return func(a, b []float32) (float32, error) {
			v, err := sim(a, b)
			return -v, err
		}, nil
	}
}

// SimilarityFromDistance inverts DistanceProvider's mapping.
func SimilarityFromDistance(s Similarity, d float32) float32 {
	if s == Cosine {
		return 1 - d
	}
	return -d
}

// DotProduct calculates the inner product of two float32 slices.
func DotProduct(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrVectorSizeMismatch
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum, nil
}

// Magnitude calculates the L2 norm of a float32 slice.
func Magnitude(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	return float32(math.Sqrt(float64(sum)))
}

// CosineSimilarity calculates the cosine similarity between two float32
// slices. A zero-magnitude operand yields similarity 0.
func CosineSimilarity(a, b []float32) (float32, error) {
	dot, err := DotProduct(a, b)
	if err != nil {
		return 0, err
	}

	magA := Magnitude(a)
	magB := Magnitude(b)

	// Avoid division by zero
	if magA == 0 || magB == 0 {
		return 0, nil
	}

	return dot / (magA * magB), nil
}

// NormalizeL2 returns an L2-normalized copy of v.
// Returns false if v has zero norm.
func NormalizeL2(v []float32) ([]float32, bool) {
	mag := Magnitude(v)
	if mag == 0 {
		return nil, false
	}
	out := make([]float32, len(v))
	inv := 1 / mag
	for i, x := range v {
		out[i] = x * inv
	}
	return out, true
}
