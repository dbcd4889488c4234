package som

import (
	"fmt"
	"math"
)

// NeighborhoodFunc maps a lattice distance from the BMU and the current
// radius to an update weight in [0, 1]. It must be monotonically
// non-increasing in lattice distance. The trainer skips prototypes whose
// weight falls below a negligibility cutoff, so kernels with infinite
// support (Gaussian) still produce bounded update sets late in training.
type NeighborhoodFunc func(latticeDist, radius float64) float64

// GaussianNeighborhood is the default kernel: exp(-d² / (2r²)).
func GaussianNeighborhood(latticeDist, radius float64) float64 {
	if radius <= 0 {
		if latticeDist == 0 {
			return 1
		}
		return 0
	}
	return math.Exp(-(latticeDist * latticeDist) / (2 * radius * radius))
}

// BubbleNeighborhood gives full weight inside the radius and none
// outside. Cruder than Gaussian but cheap and with hard support.
func BubbleNeighborhood(latticeDist, radius float64) float64 {
	if latticeDist <= radius {
		return 1
	}
	return 0
}

// NeighborhoodByName resolves a kernel name from configuration or the CLI.
func NeighborhoodByName(name string) (NeighborhoodFunc, error) {
	switch name {
	case "", "gaussian":
		return GaussianNeighborhood, nil
	case "bubble":
		return BubbleNeighborhood, nil
	}
	return nil, &ConfigError{Field: "neighborhood", Reason: fmt.Sprintf("unknown kernel %q", name)}
}

// decay anneals a schedule value from initial toward floor as frac runs
// from 0 to 1: value(frac) = initial · (floor/initial)^frac. Monotone
// non-increasing, exactly initial at frac=0 and floor at frac=1.
func decay(initial, floor, frac float64) float64 {
	if initial <= floor {
		return floor
	}
	return initial * math.Pow(floor/initial, frac)
}
