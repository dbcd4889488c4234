package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gge-data/changedetect/internal/som"
	"github.com/gge-data/changedetect/internal/somdb"
)

func TestWriteRunReport(t *testing.T) {
	samples := [][]float64{
		{0, 0}, {0.2, 0.1}, {5, 5}, {5.1, 4.9}, {0.1, 0.2}, {4.8, 5.2},
	}
	cfg := som.DefaultTrainConfig(3, 3, 120)
	cfg.Seed = 2
	m, err := som.Train(context.Background(), samples, cfg)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	scores, err := som.ScoreSamples(m, samples)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	run := &somdb.TrainingRun{
		RunID:       "report-test-run",
		CreatedAtNs: 1700000000000000000,
	}

	path := filepath.Join(t.TempDir(), "report.html")
	if err := WriteRunReport(path, run, m, scores); err != nil {
		t.Fatalf("write report: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	html := string(data)
	if len(html) == 0 {
		t.Fatal("empty report")
	}
	for _, want := range []string{"report-test-run", "U-matrix", "Anomaly scores", "Quantization error"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteRunReport_NoScores(t *testing.T) {
	samples := [][]float64{{0, 0}, {1, 1}, {2, 2}, {3, 3}}
	m, err := som.Train(context.Background(), samples, som.DefaultTrainConfig(2, 2, 40))
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	run := &somdb.TrainingRun{RunID: "no-scores"}

	path := filepath.Join(t.TempDir(), "report.html")
	if err := WriteRunReport(path, run, m, nil); err != nil {
		t.Fatalf("write report: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if strings.Contains(string(data), "Anomaly scores") {
		t.Error("score chart rendered without scores")
	}
}
