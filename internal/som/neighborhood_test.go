package som

import (
	"errors"
	"math"
	"testing"
)

func TestGaussianNeighborhood(t *testing.T) {
	if w := GaussianNeighborhood(0, 2); w != 1 {
		t.Errorf("weight at BMU = %v, want 1", w)
	}
	if w := GaussianNeighborhood(2, 2); math.Abs(w-math.Exp(-0.5)) > 1e-12 {
		t.Errorf("weight at d=r = %v, want exp(-1/2)", w)
	}

	// Monotonically decreasing in lattice distance.
	prev := 1.0
	for d := 0.5; d <= 8; d += 0.5 {
		w := GaussianNeighborhood(d, 2)
		if w >= prev {
			t.Fatalf("weight not decreasing at d=%v: %v >= %v", d, w, prev)
		}
		prev = w
	}

	// Collapsed radius only updates the BMU itself.
	if w := GaussianNeighborhood(0, 0); w != 1 {
		t.Errorf("zero-radius weight at BMU = %v, want 1", w)
	}
	if w := GaussianNeighborhood(1, 0); w != 0 {
		t.Errorf("zero-radius weight at d=1 = %v, want 0", w)
	}
}

func TestBubbleNeighborhood(t *testing.T) {
	if w := BubbleNeighborhood(1.9, 2); w != 1 {
		t.Errorf("weight inside radius = %v, want 1", w)
	}
	if w := BubbleNeighborhood(2, 2); w != 1 {
		t.Errorf("weight at radius = %v, want 1", w)
	}
	if w := BubbleNeighborhood(2.1, 2); w != 0 {
		t.Errorf("weight outside radius = %v, want 0", w)
	}
}

func TestNeighborhoodByName(t *testing.T) {
	for _, name := range []string{"", "gaussian", "bubble"} {
		if _, err := NeighborhoodByName(name); err != nil {
			t.Errorf("NeighborhoodByName(%q) unexpected error: %v", name, err)
		}
	}
	var cfgErr *ConfigError
	if _, err := NeighborhoodByName("mexican-hat"); !errors.As(err, &cfgErr) {
		t.Errorf("NeighborhoodByName(unknown) error = %v, want ConfigError", err)
	}
}

func TestDecay(t *testing.T) {
	if v := decay(0.5, 0.01, 0); v != 0.5 {
		t.Errorf("decay at frac=0 = %v, want initial", v)
	}
	if v := decay(0.5, 0.01, 1); math.Abs(v-0.01) > 1e-12 {
		t.Errorf("decay at frac=1 = %v, want floor", v)
	}

	prev := 0.5
	for frac := 0.1; frac <= 1; frac += 0.1 {
		v := decay(0.5, 0.01, frac)
		if v > prev {
			t.Fatalf("decay not monotone at frac=%v: %v > %v", frac, v, prev)
		}
		prev = v
	}

	// Degenerate schedule pins to the floor.
	if v := decay(0.01, 0.01, 0.5); v != 0.01 {
		t.Errorf("decay with initial==floor = %v, want floor", v)
	}
}
