package som

import (
	"context"
	"math"
	"math/rand"

	"github.com/gge-data/changedetect/internal/monitoring"
)

// SampleOrder selects how the trainer walks the sample set.
type SampleOrder int

const (
	// OrderPermutation visits every sample once per epoch in a fresh
	// random permutation. This is the default policy: each epoch is a
	// full pass, and the permutation is redrawn from the seeded RNG so
	// runs are reproducible.
	OrderPermutation SampleOrder = iota
	// OrderRandom draws samples uniformly with replacement.
	OrderRandom
)

func (o SampleOrder) String() string {
	switch o {
	case OrderRandom:
		return "random"
	default:
		return "permutation"
	}
}

// weightCutoff is the negligibility threshold for neighborhood weights.
// Prototypes below it are skipped during an update step, which bounds
// the update set once the radius has annealed down.
const weightCutoff = 1e-6

// TrainConfig is the full, explicit configuration surface for one
// training run. Zero values for the schedule fields select the
// documented defaults; grid size and iteration budget must be set.
type TrainConfig struct {
	Rows, Cols int
	Iterations int // total single-sample update steps

	LearningRate      float64 // initial learning rate; default 0.5
	LearningRateFloor float64 // schedule floor; default 0.01
	Radius            float64 // initial neighborhood radius; default max(rows,cols)/2
	RadiusFloor       float64 // schedule floor; default 0.5

	Topology     Topology
	Init         InitStrategy
	Order        SampleOrder
	Distance     DistanceFunc     // nil selects SquaredEuclidean
	Neighborhood NeighborhoodFunc // nil selects GaussianNeighborhood

	Seed int64

	// Tolerance enables optional early stopping: training halts once
	// the per-epoch quantization error improves by less than Tolerance
	// for Patience consecutive epochs. Zero disables it.
	Tolerance float64
	Patience  int // epochs; default 3 when Tolerance is set
}

// DefaultTrainConfig returns a TrainConfig with the standard schedules
// for the given grid size and iteration budget.
func DefaultTrainConfig(rows, cols, iterations int) TrainConfig {
	return TrainConfig{
		Rows:              rows,
		Cols:              cols,
		Iterations:        iterations,
		LearningRate:      0.5,
		LearningRateFloor: 0.01,
		Radius:            math.Max(float64(rows), float64(cols)) / 2,
		RadiusFloor:       0.5,
	}
}

// withDefaults fills unset schedule fields. Kept separate from Validate
// so that an explicit zero LearningRate is still rejected there.
func (c TrainConfig) withDefaults() TrainConfig {
	if c.LearningRate == 0 {
		c.LearningRate = 0.5
	}
	if c.LearningRateFloor == 0 {
		c.LearningRateFloor = 0.01
	}
	if c.Radius == 0 {
		c.Radius = math.Max(float64(c.Rows), float64(c.Cols)) / 2
	}
	if c.RadiusFloor == 0 {
		c.RadiusFloor = 0.5
	}
	if c.Distance == nil {
		c.Distance = SquaredEuclidean
	}
	if c.Neighborhood == nil {
		c.Neighborhood = GaussianNeighborhood
	}
	if c.Tolerance > 0 && c.Patience == 0 {
		c.Patience = 3
	}
	return c
}

// Validate checks the configuration after defaulting.
func (c TrainConfig) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return &ConfigError{Field: "grid_size", Reason: "dimensions must be positive"}
	}
	if c.Iterations <= 0 {
		return &ConfigError{Field: "iterations", Reason: "must be positive"}
	}
	if c.LearningRate < 0 || c.LearningRateFloor < 0 {
		return &ConfigError{Field: "learning_rate", Reason: "must be non-negative"}
	}
	if c.LearningRateFloor > c.LearningRate {
		return &ConfigError{Field: "learning_rate_floor", Reason: "exceeds initial learning rate"}
	}
	if c.Radius < 0 || c.RadiusFloor < 0 {
		return &ConfigError{Field: "radius", Reason: "must be non-negative"}
	}
	if c.RadiusFloor > c.Radius {
		return &ConfigError{Field: "radius_floor", Reason: "exceeds initial radius"}
	}
	if c.Tolerance < 0 {
		return &ConfigError{Field: "tolerance", Reason: "must be non-negative"}
	}
	if c.Patience < 0 {
		return &ConfigError{Field: "patience", Reason: "must be non-negative"}
	}
	return nil
}

// validateSamples rejects empty, ragged, or non-finite sample matrices.
// Runs to completion before any prototype is touched.
func validateSamples(samples [][]float64) (dim int, err error) {
	if len(samples) == 0 {
		return 0, &InputError{Index: -1, Reason: "empty sample set"}
	}
	dim = len(samples[0])
	if dim == 0 {
		return 0, &InputError{Index: 0, Reason: "zero-length sample"}
	}
	for i, s := range samples {
		if len(s) != dim {
			return 0, &ShapeError{Op: "samples", Want: dim, Got: len(s)}
		}
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, &InputError{Index: i, Reason: "non-finite value"}
			}
		}
	}
	return dim, nil
}

// Train runs the competitive-learning loop and returns the trained,
// immutable Map. Given identical samples, configuration, and seed, two
// runs produce numerically identical maps: sample order, initialization,
// and every update are driven by a single seeded RNG and the sequential
// single-writer loop.
//
// The context provides cooperative cancellation; a cancelled run returns
// the context error and no Map.
func Train(ctx context.Context, samples [][]float64, cfg TrainConfig) (*Map, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dim, err := validateSamples(samples)
	if err != nil {
		return nil, err
	}

	grid, err := NewGrid(cfg.Rows, cfg.Cols, dim, cfg.Topology)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	initUsed, err := grid.Init(cfg.Init, samples, rng)
	if err != nil {
		return nil, err
	}

	n := len(samples)
	total := cfg.Iterations
	epochs := (total + n - 1) / n
	logEvery := epochs / 10
	if logEvery < 1 {
		logEvery = 1
	}

	var (
		perm        []int
		qeHistory   = make([]float64, 0, epochs)
		wdHistory   = make([]float64, 0, epochs)
		prevWeights = make([][]float64, grid.Units())
		epochSum    float64
		epochSteps  int
		stale       int
		converged   bool
		stepsRun    int
	)
	for i := range prevWeights {
		prevWeights[i] = make([]float64, dim)
	}
	snapshotWeights(prevWeights, grid.weights)

	for t := 0; t < total; t++ {
		if t%128 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		// 1. Select a sample.
		var sample []float64
		switch cfg.Order {
		case OrderRandom:
			sample = samples[rng.Intn(n)]
		default:
			if t%n == 0 {
				perm = rng.Perm(n)
			}
			sample = samples[perm[t%n]]
		}

		// 2. Best-matching unit. Strict less-than keeps the lowest
		// row-major index on ties, which pins down tie-breaking.
		bmuIdx, bmuDist := bestMatch(grid.weights, sample, cfg.Distance)
		bmuRow, bmuCol := grid.Coord(bmuIdx)

		// 3. Annealed schedules.
		frac := float64(t) / float64(total)
		lr := decay(cfg.LearningRate, cfg.LearningRateFloor, frac)
		radius := decay(cfg.Radius, cfg.RadiusFloor, frac)

		// 4. Pull the BMU's neighborhood toward the sample.
		for i := range grid.weights {
			r, c := grid.Coord(i)
			h := cfg.Neighborhood(grid.LatticeDistance(r, c, bmuRow, bmuCol), radius)
			if h < weightCutoff {
				continue
			}
			step := lr * h
			w := grid.weights[i]
			for j := range w {
				w[j] += step * (sample[j] - w[j])
			}
		}

		// 5. Running quantization error, windowed per epoch.
		epochSum += bmuDist
		epochSteps++
		stepsRun = t + 1

		if epochSteps == n || t == total-1 {
			qe := epochSum / float64(epochSteps)
			wd := meanWeightDelta(prevWeights, grid.weights)
			qeHistory = append(qeHistory, qe)
			wdHistory = append(wdHistory, wd)
			snapshotWeights(prevWeights, grid.weights)

			epoch := len(qeHistory)
			if epoch%logEvery == 0 || t == total-1 {
				monitoring.Logf("som: epoch %d/%d qe=%.6g weight_delta=%.6g lr=%.4f radius=%.3f",
					epoch, epochs, qe, wd, lr, radius)
			}

			if cfg.Tolerance > 0 && epoch > 1 {
				if qeHistory[epoch-2]-qe < cfg.Tolerance {
					stale++
				} else {
					stale = 0
				}
				if stale >= cfg.Patience {
					converged = true
					monitoring.Logf("som: converged after %d epochs (qe=%.6g)", epoch, qe)
				}
			}

			epochSum = 0
			epochSteps = 0
			if converged {
				break
			}
		}
	}

	m := &Map{
		rows:     cfg.Rows,
		cols:     cfg.Cols,
		dim:      dim,
		topology: cfg.Topology,
		weights:  grid.weights,
		distance: cfg.Distance,
		meta: Metadata{
			Iterations:         stepsRun,
			Epochs:             len(qeHistory),
			Seed:               cfg.Seed,
			Converged:          converged,
			InitUsed:           initUsed.String(),
			Order:              cfg.Order.String(),
			QEHistory:          qeHistory,
			WeightDeltaHistory: wdHistory,
		},
	}
	if len(qeHistory) > 0 {
		m.meta.FinalQE = qeHistory[len(qeHistory)-1]
	}
	return m, nil
}

// bestMatch returns the index of the prototype nearest the sample and
// its distance. Ties resolve to the lowest index.
func bestMatch(weights [][]float64, sample []float64, dist DistanceFunc) (int, float64) {
	best := 0
	bestDist := dist(sample, weights[0])
	for i := 1; i < len(weights); i++ {
		if d := dist(sample, weights[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

func snapshotWeights(dst, src [][]float64) {
	for i := range src {
		copy(dst[i], src[i])
	}
}

// meanWeightDelta is the mean Euclidean displacement of prototypes since
// the previous snapshot, a coarse stability diagnostic.
func meanWeightDelta(prev, cur [][]float64) float64 {
	var sum float64
	for i := range cur {
		sum += Euclidean(prev[i], cur[i])
	}
	return sum / float64(len(cur))
}
