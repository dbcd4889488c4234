package som

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Score is the anomaly assessment for one sample. Index preserves the
// sample's position in the input matrix so the caller can reassemble
// scores into spatial or temporal coordinates using whatever flattening
// convention built the matrix; the scorer itself is orientation-agnostic.
type Score struct {
	Index int
	Row   int
	Col   int
	// Distance is the primary anomaly score: the sample's distance to
	// its BMU. Higher means the sample is poorly represented by any
	// learned prototype.
	Distance float64
	// LatticeJump is the secondary, topological score: the lattice
	// distance between this sample's BMU and the previous sample's.
	// A large jump flags an abrupt regime change even when Distance
	// stays within the normal range. Zero for the first sample.
	LatticeJump float64
}

// ScoreSamples scores every sample against the trained map, in input
// order. The map is read-only here, so concurrent calls on a shared Map
// are safe. Continuous scores only: thresholding is caller policy.
func ScoreSamples(m *Map, samples [][]float64) ([]Score, error) {
	if _, err := validateSamples(samples); err != nil {
		return nil, err
	}
	g := &Grid{Rows: m.rows, Cols: m.cols, Topology: m.topology}
	out := make([]Score, len(samples))
	prevRow, prevCol := -1, -1
	for i, s := range samples {
		if len(s) != m.dim {
			return nil, &ShapeError{Op: "score", Want: m.dim, Got: len(s)}
		}
		idx, d := bestMatch(m.weights, s, m.distance)
		row, col := idx/m.cols, idx%m.cols
		sc := Score{Index: i, Row: row, Col: col, Distance: d}
		if prevRow >= 0 {
			sc.LatticeJump = g.LatticeDistance(prevRow, prevCol, row, col)
		}
		out[i] = sc
		prevRow, prevCol = row, col
	}
	return out, nil
}

// Distances extracts the primary scores in input order.
func Distances(scores []Score) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = s.Distance
	}
	return out
}

// ScoreStats summarizes a score batch for threshold selection.
type ScoreStats struct {
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// Stats computes summary statistics over the primary scores.
func Stats(scores []Score) ScoreStats {
	d := Distances(scores)
	if len(d) == 0 {
		return ScoreStats{}
	}
	mean, std := stat.MeanStdDev(d, nil)
	min, max := d[0], d[0]
	for _, v := range d[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	// MeanStdDev returns NaN stddev for a single sample.
	if len(d) == 1 {
		std = 0
	}
	return ScoreStats{Mean: mean, StdDev: std, Min: min, Max: max}
}

// ThresholdMeanStd returns mean + k·stddev of the primary scores, the
// classic cut for flagging outliers.
func ThresholdMeanStd(scores []Score, k float64) float64 {
	s := Stats(scores)
	return s.Mean + k*s.StdDev
}

// ThresholdPercentile returns the p-quantile (p in [0, 1]) of the
// primary scores, for top-fraction style cuts.
func ThresholdPercentile(scores []Score, p float64) float64 {
	d := Distances(scores)
	if len(d) == 0 {
		return 0
	}
	sort.Float64s(d)
	return stat.Quantile(p, stat.Empirical, d, nil)
}

// MaskAbove marks every sample whose primary score exceeds the
// threshold. Index-aligned with the input scores.
func MaskAbove(scores []Score, threshold float64) []bool {
	out := make([]bool, len(scores))
	for i, s := range scores {
		out[i] = s.Distance > threshold
	}
	return out
}
