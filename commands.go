package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gge-data/changedetect/internal/monitoring"
	"github.com/gge-data/changedetect/internal/raster"
	"github.com/gge-data/changedetect/internal/render"
	"github.com/gge-data/changedetect/internal/som"
	"github.com/gge-data/changedetect/internal/somdb"
)

const defaultDBFile = "changedetect.db"

// openStore opens the database, applies pending migrations, and returns
// a run store.
func openStore(dbPath string) (*somdb.DB, *somdb.RunStore, error) {
	db, err := somdb.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, somdb.NewRunStore(db, nil), nil
}

// trainFlags holds the shared training flag set so train and demo stay
// in sync on the configuration surface.
type trainFlags struct {
	rows, cols   *int
	iterations   *int
	lr, lrFloor  *float64
	radius       *float64
	radiusFloor  *float64
	topology     *string
	initStrategy *string
	order        *string
	distance     *string
	neighborhood *string
	seed         *int64
	tolerance    *float64
	patience     *int
}

func addTrainFlags(fs *flag.FlagSet) *trainFlags {
	return &trainFlags{
		rows:         fs.Int("rows", 10, "grid rows"),
		cols:         fs.Int("cols", 10, "grid columns"),
		iterations:   fs.Int("iterations", 0, "total update steps (default 10 passes over the samples)"),
		lr:           fs.Float64("lr", 0.5, "initial learning rate"),
		lrFloor:      fs.Float64("lr-floor", 0.01, "learning rate floor"),
		radius:       fs.Float64("radius", 0, "initial neighborhood radius (default max(rows,cols)/2)"),
		radiusFloor:  fs.Float64("radius-floor", 0.5, "neighborhood radius floor"),
		topology:     fs.String("topology", "rectangular", "lattice topology: rectangular or hexagonal"),
		initStrategy: fs.String("init", "sample", "initialization: sample or random"),
		order:        fs.String("order", "permutation", "sample order: permutation or random"),
		distance:     fs.String("distance", "sqeuclidean", "distance metric: sqeuclidean, euclidean, manhattan, cosine"),
		neighborhood: fs.String("neighborhood", "gaussian", "neighborhood kernel: gaussian or bubble"),
		seed:         fs.Int64("seed", 1, "random seed"),
		tolerance:    fs.Float64("tolerance", 0, "early-stop tolerance on epoch QE improvement (0 disables)"),
		patience:     fs.Int("patience", 0, "early-stop patience in epochs"),
	}
}

func (tf *trainFlags) config(sampleCount int) (som.TrainConfig, error) {
	iterations := *tf.iterations
	if iterations == 0 {
		iterations = 10 * sampleCount
	}

	cfg := som.TrainConfig{
		Rows:              *tf.rows,
		Cols:              *tf.cols,
		Iterations:        iterations,
		LearningRate:      *tf.lr,
		LearningRateFloor: *tf.lrFloor,
		Radius:            *tf.radius,
		RadiusFloor:       *tf.radiusFloor,
		Seed:              *tf.seed,
		Tolerance:         *tf.tolerance,
		Patience:          *tf.patience,
	}

	switch *tf.topology {
	case "rectangular":
		cfg.Topology = som.TopologyRectangular
	case "hexagonal":
		cfg.Topology = som.TopologyHexagonal
	default:
		return cfg, fmt.Errorf("unknown topology %q", *tf.topology)
	}
	switch *tf.initStrategy {
	case "sample":
		cfg.Init = som.InitSample
	case "random":
		cfg.Init = som.InitRandom
	default:
		return cfg, fmt.Errorf("unknown init strategy %q", *tf.initStrategy)
	}
	switch *tf.order {
	case "permutation":
		cfg.Order = som.OrderPermutation
	case "random":
		cfg.Order = som.OrderRandom
	default:
		return cfg, fmt.Errorf("unknown sample order %q", *tf.order)
	}

	var err error
	if cfg.Distance, err = som.DistanceByName(*tf.distance); err != nil {
		return cfg, err
	}
	if cfg.Neighborhood, err = som.NeighborhoodByName(*tf.neighborhood); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// configJSON records the flag-level configuration with the stored run
// so it can be audited later.
func (tf *trainFlags) configJSON(iterations int) json.RawMessage {
	b, _ := json.Marshal(map[string]interface{}{
		"rows": *tf.rows, "cols": *tf.cols, "iterations": iterations,
		"lr": *tf.lr, "lr_floor": *tf.lrFloor,
		"radius": *tf.radius, "radius_floor": *tf.radiusFloor,
		"topology": *tf.topology, "init": *tf.initStrategy, "order": *tf.order,
		"distance": *tf.distance, "neighborhood": *tf.neighborhood,
		"seed": *tf.seed, "tolerance": *tf.tolerance, "patience": *tf.patience,
	})
	return b
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "database path")
	samplesPath := fs.String("samples", "", "samples CSV path (one sample per row)")
	label := fs.String("label", "", "optional run label")
	plotDir := fs.String("plot-dir", "", "write diagnostic PNGs to this directory")
	tf := addTrainFlags(fs)
	fs.Parse(args)

	if *samplesPath == "" {
		return fmt.Errorf("-samples is required")
	}
	samples, err := raster.LoadMatrixCSV(*samplesPath)
	if err != nil {
		return err
	}

	cfg, err := tf.config(len(samples))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := som.Train(ctx, samples, cfg)
	if err != nil {
		return err
	}

	db, store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	run := &somdb.TrainingRun{Label: *label, ConfigJSON: tf.configJSON(cfg.Iterations)}
	if err := store.InsertRun(run, m); err != nil {
		return err
	}
	monitoring.Logf("stored run %s (qe=%.6g, %d epochs, converged=%v)",
		run.RunID, run.FinalQE, m.Meta().Epochs, run.Converged)

	if *plotDir != "" {
		if err := writeRunPlots(*plotDir, run.RunID, m); err != nil {
			return err
		}
	}
	fmt.Println(run.RunID)
	return nil
}

func writeRunPlots(dir, runID string, m *som.Map) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	curve := filepath.Join(dir, runID+"_qe.png")
	if err := render.SaveTrainingCurve(m.Meta().QEHistory, "Quantization error", curve); err != nil {
		return err
	}
	umatrix := filepath.Join(dir, runID+"_umatrix.png")
	if err := render.SaveHeatGrid(m.UMatrix(), "U-matrix", umatrix); err != nil {
		return err
	}
	monitoring.Logf("wrote %s and %s", curve, umatrix)
	return nil
}

func runScore(args []string) error {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "database path")
	runID := fs.String("run", "", "training run ID")
	samplesPath := fs.String("samples", "", "samples CSV path (one sample per row)")
	outPath := fs.String("out", "", "write scores CSV to this path")
	k := fs.Float64("k", 1.5, "report samples above mean + k*stddev")
	fs.Parse(args)

	if *runID == "" || *samplesPath == "" {
		return fmt.Errorf("-run and -samples are required")
	}
	samples, err := raster.LoadMatrixCSV(*samplesPath)
	if err != nil {
		return err
	}

	db, store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	m, err := store.GetMap(*runID)
	if err != nil {
		return err
	}
	scores, err := som.ScoreSamples(m, samples)
	if err != nil {
		return err
	}

	batchID, err := store.InsertScores(*runID, "", scores)
	if err != nil {
		return err
	}

	stats := som.Stats(scores)
	threshold := som.ThresholdMeanStd(scores, *k)
	flagged := 0
	for _, hit := range som.MaskAbove(scores, threshold) {
		if hit {
			flagged++
		}
	}
	monitoring.Logf("scored %d samples: mean=%.6g std=%.6g max=%.6g; %d above mean+%.2g*std (batch %s)",
		len(scores), stats.Mean, stats.StdDev, stats.Max, flagged, *k, batchID)

	if *outPath != "" {
		if err := writeScoresCSV(*outPath, scores); err != nil {
			return err
		}
	}
	fmt.Println(batchID)
	return nil
}

// writeScoresCSV writes one row per sample: index, BMU coordinate,
// distance, lattice jump.
func writeScoresCSV(path string, scores []som.Score) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scores file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"index", "bmu_row", "bmu_col", "distance", "lattice_jump"}); err != nil {
		return err
	}
	for _, s := range scores {
		rec := []string{
			strconv.Itoa(s.Index),
			strconv.Itoa(s.Row),
			strconv.Itoa(s.Col),
			strconv.FormatFloat(s.Distance, 'g', -1, 64),
			strconv.FormatFloat(s.LatticeJump, 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "database path")
	runID := fs.String("run", "", "training run ID")
	batchID := fs.String("batch", "", "score batch ID (default: latest)")
	outPath := fs.String("out", "report.html", "output HTML path")
	plotDir := fs.String("plot-dir", "", "also write diagnostic PNGs to this directory")
	fs.Parse(args)

	if *runID == "" {
		return fmt.Errorf("-run is required")
	}

	db, store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := store.GetRun(*runID)
	if err != nil {
		return err
	}
	m, err := store.GetMap(*runID)
	if err != nil {
		return err
	}

	var scores []som.Score
	batch := *batchID
	if batch == "" {
		batches, err := store.ListScoreBatches(*runID)
		if err != nil {
			return err
		}
		if len(batches) > 0 {
			batch = batches[len(batches)-1]
		}
	}
	if batch != "" {
		if scores, err = store.GetScores(*runID, batch); err != nil {
			return err
		}
	}

	if err := render.WriteRunReport(*outPath, run, m, scores); err != nil {
		return err
	}
	monitoring.Logf("wrote %s", *outPath)

	if *plotDir != "" {
		if err := writeRunPlots(*plotDir, run.RunID, m); err != nil {
			return err
		}
	}
	return nil
}

func runList(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "database path")
	fs.Parse(args)

	db, store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := store.ListRuns()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}
	for _, r := range runs {
		label := r.Label
		if label == "" {
			label = "-"
		}
		fmt.Printf("%s  %dx%d d=%d iters=%d seed=%d qe=%.6g label=%s\n",
			r.RunID, r.GridRows, r.GridCols, r.Dim, r.Iterations, r.Seed, r.FinalQE, label)
	}
	return nil
}

func runMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "database path")
	fs.Parse(args)

	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: migrate <up|down|status|force N>")
	}

	db, err := somdb.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch rest[0] {
	case "up":
		return db.MigrateUp()
	case "down":
		return db.MigrateDown()
	case "status":
		version, dirty, err := db.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return nil
	case "force":
		if len(rest) < 2 {
			return fmt.Errorf("usage: migrate force <version>")
		}
		v, err := strconv.Atoi(rest[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", rest[1], err)
		}
		return db.MigrateForce(v)
	}
	return fmt.Errorf("unknown migrate action %q", rest[0])
}

// runDemo synthesizes a small index cube with a handful of anomalous
// pixels, trains on the per-pixel temporal signatures, scores them, and
// renders the reassembled anomaly surface.
func runDemo(args []string) error {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "database path")
	outDir := fs.String("out-dir", "demo-out", "output directory")
	layers := fs.Int("layers", 12, "time steps in the synthetic cube")
	height := fs.Int("height", 32, "cube height in pixels")
	width := fs.Int("width", 32, "cube width in pixels")
	anomalies := fs.Int("anomalies", 5, "anomalous pixels to inject")
	tf := addTrainFlags(fs)
	fs.Parse(args)

	cube, anomalous, err := syntheticCube(*layers, *height, *width, *anomalies, *tf.seed)
	if err != nil {
		return err
	}
	if err := cube.Validate(); err != nil {
		return err
	}
	samples, prov := cube.PixelSeries()

	cfg, err := tf.config(len(samples))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := som.Train(ctx, samples, cfg)
	if err != nil {
		return err
	}
	scores, err := som.ScoreSamples(m, samples)
	if err != nil {
		return err
	}

	db, store, err := openStore(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	run := &somdb.TrainingRun{Label: "demo", ConfigJSON: tf.configJSON(cfg.Iterations)}
	if err := store.InsertRun(run, m); err != nil {
		return err
	}
	batchID, err := store.InsertScores(run.RunID, "", scores)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	surface, err := prov.ReassembleImage(som.Distances(scores))
	if err != nil {
		return err
	}
	if err := render.SaveHeatGrid(surface, "Anomaly surface", filepath.Join(*outDir, "surface.png")); err != nil {
		return err
	}
	if err := writeRunPlots(*outDir, run.RunID, m); err != nil {
		return err
	}
	if err := render.WriteRunReport(filepath.Join(*outDir, "report.html"), run, m, scores); err != nil {
		return err
	}

	threshold := som.ThresholdMeanStd(scores, 1.5)
	mask := som.MaskAbove(scores, threshold)
	caught := 0
	for _, idx := range anomalous {
		if mask[idx] {
			caught++
		}
	}
	monitoring.Logf("demo: run %s batch %s: flagged %d/%d injected anomalies above mean+1.5*std",
		run.RunID, batchID, caught, len(anomalous))
	fmt.Println(run.RunID)
	return nil
}

// syntheticCube builds a smooth seasonal index cube and perturbs a few
// pixels with an abrupt level shift halfway through the series. Returns
// the cube and the flattened sample indices of the perturbed pixels.
func syntheticCube(layers, height, width, anomalies int, seed int64) (*raster.Cube, []int, error) {
	cube, err := raster.NewCube(layers, height, width)
	if err != nil {
		return nil, nil, err
	}
	rng := rand.New(rand.NewSource(seed))

	for l := 0; l < layers; l++ {
		// Seasonal swing plus mild spatial gradient and noise.
		season := 0.4 * math.Sin(2*math.Pi*float64(l)/float64(layers))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gradient := 0.2 * float64(y) / float64(height)
				cube.Set(l, y, x, season+gradient+0.05*rng.NormFloat64())
			}
		}
	}

	indices := make([]int, 0, anomalies)
	seen := make(map[int]bool, anomalies)
	for len(indices) < anomalies {
		idx := rng.Intn(height * width)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		y, x := idx/width, idx%width
		for l := layers / 2; l < layers; l++ {
			cube.Set(l, y, x, cube.At(l, y, x)-0.9)
		}
		indices = append(indices, idx)
	}
	return cube, indices, nil
}
