package som

import (
	"errors"
	"math"
	"testing"
)

func TestDistanceFuncs(t *testing.T) {
	a := []float64{3, 0}
	b := []float64{0, 4}

	if d := SquaredEuclidean(a, b); d != 25 {
		t.Errorf("SquaredEuclidean = %v, want 25", d)
	}
	if d := Euclidean(a, b); d != 5 {
		t.Errorf("Euclidean = %v, want 5", d)
	}
	if d := Manhattan(a, b); d != 7 {
		t.Errorf("Manhattan = %v, want 7", d)
	}
	// Orthogonal vectors have cosine distance 1.
	if d := Cosine(a, b); math.Abs(d-1) > 1e-12 {
		t.Errorf("Cosine = %v, want 1", d)
	}
	// Parallel vectors have cosine distance 0.
	if d := Cosine([]float64{1, 2}, []float64{2, 4}); math.Abs(d) > 1e-12 {
		t.Errorf("Cosine of parallel vectors = %v, want 0", d)
	}
	// Zero vector is maximally distant.
	if d := Cosine([]float64{0, 0}, []float64{1, 1}); d != 1 {
		t.Errorf("Cosine with zero vector = %v, want 1", d)
	}
}

func TestDistanceFuncs_Identity(t *testing.T) {
	v := []float64{1.5, -2.25, 3}
	for name, f := range map[string]DistanceFunc{
		"sqeuclidean": SquaredEuclidean,
		"euclidean":   Euclidean,
		"manhattan":   Manhattan,
		"cosine":      Cosine,
	} {
		if d := f(v, v); math.Abs(d) > 1e-12 {
			t.Errorf("%s(v, v) = %v, want 0", name, d)
		}
	}
}

func TestDistanceByName(t *testing.T) {
	for _, name := range []string{"", "sqeuclidean", "euclidean", "manhattan", "cosine"} {
		if _, err := DistanceByName(name); err != nil {
			t.Errorf("DistanceByName(%q) unexpected error: %v", name, err)
		}
	}

	var cfgErr *ConfigError
	if _, err := DistanceByName("chebyshev"); !errors.As(err, &cfgErr) {
		t.Errorf("DistanceByName(unknown) error = %v, want ConfigError", err)
	}
}
