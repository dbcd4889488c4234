// Package som implements a self-organizing map (Kohonen map) for
// change and anomaly detection on satellite-derived index imagery.
//
// The package is orientation-agnostic: it consumes a plain N×D sample
// matrix and leaves the mapping between samples and spatial/temporal
// coordinates to the caller (see the raster package for the two
// supported flattening conventions).
package som

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Topology selects how lattice distance is measured between grid cells.
type Topology int

const (
	// TopologyRectangular lays prototypes on a square lattice; lattice
	// distance is plain Euclidean distance between (row, col) pairs.
	TopologyRectangular Topology = iota
	// TopologyHexagonal offsets odd rows by half a cell, giving each
	// prototype six equidistant neighbors.
	TopologyHexagonal
)

func (t Topology) String() string {
	switch t {
	case TopologyHexagonal:
		return "hexagonal"
	default:
		return "rectangular"
	}
}

// InitStrategy selects how prototype vectors are seeded before training.
type InitStrategy int

const (
	// InitSample seeds each prototype with a distinct training sample.
	// Preferred: the map starts inside the data distribution and
	// converges faster. Requires at least rows*cols samples; the
	// trainer falls back to InitRandom when there are fewer.
	InitSample InitStrategy = iota
	// InitRandom seeds each prototype component with an independent
	// uniform draw from that feature's observed value range.
	InitRandom
)

func (s InitStrategy) String() string {
	switch s {
	case InitRandom:
		return "random"
	default:
		return "sample"
	}
}

// rowSpacing is the vertical distance between hexagonal lattice rows.
var rowSpacing = math.Sqrt(3) / 2

// Grid is the fixed R×C lattice of prototype vectors mutated during
// training. Size and dimensionality are set at construction and never
// change; only prototype components move.
type Grid struct {
	Rows     int
	Cols     int
	Dim      int
	Topology Topology

	// weights holds one prototype per cell in row-major order.
	weights [][]float64
}

// NewGrid allocates a rows×cols grid of zeroed dim-dimensional
// prototypes. Call Init to seed them before training.
func NewGrid(rows, cols, dim int, topo Topology) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, &ConfigError{Field: "grid_size", Reason: "dimensions must be positive"}
	}
	if dim <= 0 {
		return nil, &ConfigError{Field: "dim", Reason: "feature dimension must be positive"}
	}
	w := make([][]float64, rows*cols)
	for i := range w {
		w[i] = make([]float64, dim)
	}
	return &Grid{Rows: rows, Cols: cols, Dim: dim, Topology: topo, weights: w}, nil
}

// Idx converts a lattice coordinate to a flat row-major index.
func (g *Grid) Idx(row, col int) int { return row*g.Cols + col }

// Coord converts a flat row-major index back to a lattice coordinate.
func (g *Grid) Coord(idx int) (row, col int) { return idx / g.Cols, idx % g.Cols }

// Units returns the number of prototypes on the lattice.
func (g *Grid) Units() int { return g.Rows * g.Cols }

// Prototype returns the weight vector at (row, col). The returned slice
// is the live backing storage: callers must not mutate it except through
// SetPrototype.
func (g *Grid) Prototype(row, col int) []float64 {
	return g.weights[g.Idx(row, col)]
}

// SetPrototype replaces the weight vector at (row, col).
func (g *Grid) SetPrototype(row, col int, w []float64) error {
	if len(w) != g.Dim {
		return &ShapeError{Op: "set prototype", Want: g.Dim, Got: len(w)}
	}
	copy(g.weights[g.Idx(row, col)], w)
	return nil
}

// LatticeDistance returns the topology-consistent distance between two
// lattice coordinates. It weights neighborhood updates during training
// and is unrelated to distances in feature space.
func (g *Grid) LatticeDistance(rowA, colA, rowB, colB int) float64 {
	if g.Topology == TopologyHexagonal {
		// Odd rows shift right by half a cell; rows pack at sqrt(3)/2.
		xa := float64(colA) + 0.5*float64(rowA&1)
		xb := float64(colB) + 0.5*float64(rowB&1)
		ya := float64(rowA) * rowSpacing
		yb := float64(rowB) * rowSpacing
		return math.Hypot(xa-xb, ya-yb)
	}
	return math.Hypot(float64(rowA-rowB), float64(colA-colB))
}

// Init seeds the prototypes from the given samples using the requested
// strategy. InitSample draws rows*cols distinct samples; when fewer
// samples are available it falls back to InitRandom, which draws each
// component uniformly from that feature's observed range. The effective
// strategy is returned so callers can record what actually happened.
func (g *Grid) Init(strategy InitStrategy, samples [][]float64, rng *rand.Rand) (InitStrategy, error) {
	if len(samples) == 0 {
		return strategy, &InputError{Index: -1, Reason: "empty sample set"}
	}
	if len(samples[0]) != g.Dim {
		return strategy, &ShapeError{Op: "init", Want: g.Dim, Got: len(samples[0])}
	}

	if strategy == InitSample && len(samples) < g.Units() {
		strategy = InitRandom
	}

	switch strategy {
	case InitSample:
		perm := rng.Perm(len(samples))
		for i := range g.weights {
			copy(g.weights[i], samples[perm[i]])
		}
	default:
		lo, hi := featureRanges(samples, g.Dim)
		for i := range g.weights {
			for j := 0; j < g.Dim; j++ {
				g.weights[i][j] = lo[j] + rng.Float64()*(hi[j]-lo[j])
			}
		}
	}
	return strategy, nil
}

// featureRanges returns per-feature minima and maxima over the samples.
func featureRanges(samples [][]float64, dim int) (lo, hi []float64) {
	lo = make([]float64, dim)
	hi = make([]float64, dim)
	copy(lo, samples[0])
	copy(hi, samples[0])
	col := make([]float64, len(samples))
	for j := 0; j < dim; j++ {
		for i, s := range samples {
			col[i] = s[j]
		}
		lo[j] = floats.Min(col)
		hi[j] = floats.Max(col)
	}
	return lo, hi
}
