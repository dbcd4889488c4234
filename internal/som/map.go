package som

import "math"

// Metadata records how a Map was trained. It travels with the map
// through persistence so a stored run can be audited and re-scored.
type Metadata struct {
	Iterations         int
	Epochs             int
	FinalQE            float64
	Seed               int64
	Converged          bool
	InitUsed           string
	Order              string
	QEHistory          []float64
	WeightDeltaHistory []float64
}

// Map is the immutable result of training: the frozen prototype lattice
// plus metadata. It exposes no mutation; retraining builds a new Map.
// A Map may be shared freely across goroutines for concurrent scoring.
type Map struct {
	rows     int
	cols     int
	dim      int
	topology Topology
	weights  [][]float64
	distance DistanceFunc
	meta     Metadata
}

// Dims returns the lattice dimensions.
func (m *Map) Dims() (rows, cols int) { return m.rows, m.cols }

// Dim returns the feature dimensionality of the prototypes.
func (m *Map) Dim() int { return m.dim }

// Topology returns the lattice topology.
func (m *Map) Topology() Topology { return m.topology }

// Meta returns the training metadata.
func (m *Map) Meta() Metadata { return m.meta }

// Prototype returns a copy of the weight vector at (row, col).
func (m *Map) Prototype(row, col int) []float64 {
	w := make([]float64, m.dim)
	copy(w, m.weights[row*m.cols+col])
	return w
}

// checkSample validates one query vector against the map.
func (m *Map) checkSample(op string, sample []float64) error {
	if len(sample) != m.dim {
		return &ShapeError{Op: op, Want: m.dim, Got: len(sample)}
	}
	for _, v := range sample {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InputError{Index: -1, Reason: "non-finite value"}
		}
	}
	return nil
}

// Winner returns the lattice coordinate of the best-matching unit for
// the sample along with its distance, using the same BMU rule as
// training (ties break to the lowest row-major coordinate).
func (m *Map) Winner(sample []float64) (row, col int, dist float64, err error) {
	if err := m.checkSample("winner", sample); err != nil {
		return 0, 0, 0, err
	}
	idx, d := bestMatch(m.weights, sample, m.distance)
	return idx / m.cols, idx % m.cols, d, nil
}

// DistanceMap returns the rows×cols activation surface: the distance
// from the sample to every prototype.
func (m *Map) DistanceMap(sample []float64) ([][]float64, error) {
	if err := m.checkSample("distance map", sample); err != nil {
		return nil, err
	}
	out := make([][]float64, m.rows)
	for r := 0; r < m.rows; r++ {
		out[r] = make([]float64, m.cols)
		for c := 0; c < m.cols; c++ {
			out[r][c] = m.distance(sample, m.weights[r*m.cols+c])
		}
	}
	return out, nil
}

// QuantizationError returns the mean BMU distance over a batch, the
// standard goodness-of-fit diagnostic for a trained map.
func (m *Map) QuantizationError(samples [][]float64) (float64, error) {
	if _, err := validateSamples(samples); err != nil {
		return 0, err
	}
	var sum float64
	for _, s := range samples {
		if len(s) != m.dim {
			return 0, &ShapeError{Op: "quantization error", Want: m.dim, Got: len(s)}
		}
		_, d := bestMatch(m.weights, s, m.distance)
		sum += d
	}
	return sum / float64(len(samples)), nil
}

// UMatrix returns the unified distance matrix: for each cell, the mean
// feature-space distance (always Euclidean) to its immediate lattice
// neighbors. High ridges mark cluster boundaries on the map.
func (m *Map) UMatrix() [][]float64 {
	g := &Grid{Rows: m.rows, Cols: m.cols, Topology: m.topology}
	out := make([][]float64, m.rows)
	for r := 0; r < m.rows; r++ {
		out[r] = make([]float64, m.cols)
		for c := 0; c < m.cols; c++ {
			var sum float64
			var count int
			for nr := 0; nr < m.rows; nr++ {
				for nc := 0; nc < m.cols; nc++ {
					if nr == r && nc == c {
						continue
					}
					// Immediate neighbors sit at lattice distance 1
					// in both topologies.
					if g.LatticeDistance(r, c, nr, nc) > 1+1e-9 {
						continue
					}
					sum += Euclidean(m.weights[r*m.cols+c], m.weights[nr*m.cols+nc])
					count++
				}
			}
			if count > 0 {
				out[r][c] = sum / float64(count)
			}
		}
	}
	return out
}

// ComponentPlane returns the rows×cols surface of a single weight
// component, the standard per-feature view of the lattice.
func (m *Map) ComponentPlane(feature int) ([][]float64, error) {
	if feature < 0 || feature >= m.dim {
		return nil, &ShapeError{Op: "component plane", Want: m.dim, Got: feature}
	}
	out := make([][]float64, m.rows)
	for r := 0; r < m.rows; r++ {
		out[r] = make([]float64, m.cols)
		for c := 0; c < m.cols; c++ {
			out[r][c] = m.weights[r*m.cols+c][feature]
		}
	}
	return out, nil
}

// HitMap counts BMU hits per cell over a batch. Sparse or empty cells
// indicate regions of the lattice the data rarely reaches.
func (m *Map) HitMap(samples [][]float64) ([][]int, error) {
	if _, err := validateSamples(samples); err != nil {
		return nil, err
	}
	out := make([][]int, m.rows)
	for r := range out {
		out[r] = make([]int, m.cols)
	}
	for _, s := range samples {
		if len(s) != m.dim {
			return nil, &ShapeError{Op: "hit map", Want: m.dim, Got: len(s)}
		}
		idx, _ := bestMatch(m.weights, s, m.distance)
		out[idx/m.cols][idx%m.cols]++
	}
	return out, nil
}

// Snapshot is the serializable form of a trained Map. The distance
// metric is stored by name; custom metrics fall back to the default on
// restore.
type Snapshot struct {
	Rows     int
	Cols     int
	Dim      int
	Topology Topology
	Distance string
	Weights  [][]float64
	Meta     Metadata
}

// Snapshot returns a deep copy suitable for gob encoding.
func (m *Map) Snapshot() Snapshot {
	w := make([][]float64, len(m.weights))
	for i := range m.weights {
		w[i] = make([]float64, m.dim)
		copy(w[i], m.weights[i])
	}
	return Snapshot{
		Rows:     m.rows,
		Cols:     m.cols,
		Dim:      m.dim,
		Topology: m.topology,
		Distance: distanceName(m.distance),
		Weights:  w,
		Meta:     m.meta,
	}
}

// FromSnapshot reconstructs a Map from its serialized form.
func FromSnapshot(s Snapshot) (*Map, error) {
	if s.Rows <= 0 || s.Cols <= 0 || s.Dim <= 0 {
		return nil, &ConfigError{Field: "snapshot", Reason: "non-positive dimensions"}
	}
	if len(s.Weights) != s.Rows*s.Cols {
		return nil, &ShapeError{Op: "snapshot", Want: s.Rows * s.Cols, Got: len(s.Weights)}
	}
	dist, err := DistanceByName(s.Distance)
	if err != nil {
		return nil, err
	}
	w := make([][]float64, len(s.Weights))
	for i := range s.Weights {
		if len(s.Weights[i]) != s.Dim {
			return nil, &ShapeError{Op: "snapshot", Want: s.Dim, Got: len(s.Weights[i])}
		}
		w[i] = make([]float64, s.Dim)
		copy(w[i], s.Weights[i])
	}
	return &Map{
		rows:     s.Rows,
		cols:     s.Cols,
		dim:      s.Dim,
		topology: s.Topology,
		weights:  w,
		distance: dist,
		meta:     s.Meta,
	}, nil
}

// distanceName maps the built-in metrics back to their config names.
// Custom functions serialize as the default.
func distanceName(f DistanceFunc) string {
	switch {
	case f == nil:
		return "sqeuclidean"
	}
	// Function values cannot be compared directly; probe on a fixed pair.
	a := []float64{3, 0}
	b := []float64{0, 4}
	switch f(a, b) {
	case SquaredEuclidean(a, b):
		return "sqeuclidean"
	case Euclidean(a, b):
		return "euclidean"
	case Manhattan(a, b):
		return "manhattan"
	case Cosine(a, b):
		return "cosine"
	}
	return "sqeuclidean"
}
