package main

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gge-data/changedetect/internal/som"
)

func TestTrainFlags_Defaults(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	tf := addTrainFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := tf.config(50)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.Rows != 10 || cfg.Cols != 10 {
		t.Errorf("grid = %dx%d, want 10x10", cfg.Rows, cfg.Cols)
	}
	if cfg.Iterations != 500 {
		t.Errorf("iterations = %d, want 10 passes over 50 samples", cfg.Iterations)
	}
	if cfg.Topology != som.TopologyRectangular || cfg.Init != som.InitSample || cfg.Order != som.OrderPermutation {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestTrainFlags_BadValues(t *testing.T) {
	cases := [][]string{
		{"-topology", "triangular"},
		{"-init", "pca"},
		{"-order", "sorted"},
		{"-distance", "chebyshev"},
		{"-neighborhood", "mexican-hat"},
	}
	for _, args := range cases {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		tf := addTrainFlags(fs)
		if err := fs.Parse(args); err != nil {
			t.Fatalf("parse %v: %v", args, err)
		}
		if _, err := tf.config(10); err == nil {
			t.Errorf("%v accepted", args)
		}
	}
}

func TestWriteScoresCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	scores := []som.Score{
		{Index: 0, Row: 1, Col: 2, Distance: 0.25},
		{Index: 1, Row: 0, Col: 0, Distance: 3.5, LatticeJump: 2.5},
	}
	if err := writeScoresCSV(path, scores); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows", len(lines))
	}
	if lines[0] != "index,bmu_row,bmu_col,distance,lattice_jump" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != "1,0,0,3.5,2.5" {
		t.Errorf("row = %q", lines[2])
	}
}

func TestSyntheticCube(t *testing.T) {
	cube, anomalous, err := syntheticCube(8, 16, 16, 4, 3)
	if err != nil {
		t.Fatalf("synthetic cube: %v", err)
	}
	if err := cube.Validate(); err != nil {
		t.Fatalf("cube not clean: %v", err)
	}
	if len(anomalous) != 4 {
		t.Fatalf("got %d anomalies, want 4", len(anomalous))
	}
	seen := make(map[int]bool)
	for _, idx := range anomalous {
		if idx < 0 || idx >= 16*16 {
			t.Errorf("anomaly index %d out of range", idx)
		}
		if seen[idx] {
			t.Errorf("duplicate anomaly index %d", idx)
		}
		seen[idx] = true
	}

	// Anomalous pixels carry the level shift in the second half.
	samples, _ := cube.PixelSeries()
	idx := anomalous[0]
	if samples[idx][7] >= samples[idx][0]-0.3 {
		t.Errorf("anomalous pixel lacks level shift: first=%v last=%v",
			samples[idx][0], samples[idx][7])
	}

	// Same seed reproduces the same cube.
	again, anomalous2, err := syntheticCube(8, 16, 16, 4, 3)
	if err != nil {
		t.Fatalf("second cube: %v", err)
	}
	if again.At(3, 5, 7) != cube.At(3, 5, 7) {
		t.Error("same seed produced different cubes")
	}
	for i := range anomalous {
		if anomalous[i] != anomalous2[i] {
			t.Error("same seed produced different anomaly sets")
			break
		}
	}
}
