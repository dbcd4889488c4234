package som

import (
	"fmt"
	"math"
)

// DistanceFunc measures dissimilarity between a sample and a prototype
// of equal length. Implementations must be pure and stateless; the
// trainer and map call them from a single goroutine but a shared Map may
// be scored concurrently.
type DistanceFunc func(a, b []float64) float64

// SquaredEuclidean is the default training metric. Skipping the square
// root preserves the argmin used for BMU search.
func SquaredEuclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Euclidean is the L2 distance.
func Euclidean(a, b []float64) float64 {
	return math.Sqrt(SquaredEuclidean(a, b))
}

// Manhattan is the L1 distance.
func Manhattan(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// Cosine is 1 minus the cosine similarity. Zero vectors are treated as
// maximally distant.
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// DistanceByName resolves a metric name from configuration or the CLI.
func DistanceByName(name string) (DistanceFunc, error) {
	switch name {
	case "", "sqeuclidean":
		return SquaredEuclidean, nil
	case "euclidean":
		return Euclidean, nil
	case "manhattan":
		return Manhattan, nil
	case "cosine":
		return Cosine, nil
	}
	return nil, &ConfigError{Field: "distance", Reason: fmt.Sprintf("unknown metric %q", name)}
}
