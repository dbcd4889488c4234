// Package render produces diagnostic output for trained maps and score
// batches: PNG plots via gonum/plot and an HTML report via go-echarts.
package render

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gge-data/changedetect/internal/som"
)

// SaveTrainingCurve writes a line plot of the per-epoch quantization
// error history to a PNG file.
func SaveTrainingCurve(history []float64, title, path string) error {
	if len(history) == 0 {
		return fmt.Errorf("save training curve: empty history")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "quantization error"

	pts := make(plotter.XYs, len(history))
	for i, v := range history {
		pts[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Add(plotter.NewGrid())

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save training curve: %w", err)
	}
	return nil
}

// SaveScoreSeries writes a line plot of per-sample anomaly scores to a
// PNG file, with an optional horizontal threshold line.
func SaveScoreSeries(scores []som.Score, threshold float64, title, path string) error {
	if len(scores) == 0 {
		return fmt.Errorf("save score series: no scores")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "sample"
	p.Y.Label.Text = "distance to BMU"

	pts := make(plotter.XYs, len(scores))
	for i, s := range scores {
		pts[i] = plotter.XY{X: float64(s.Index), Y: s.Distance}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("build line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)

	if threshold > 0 {
		thr := plotter.XYs{
			{X: float64(scores[0].Index), Y: threshold},
			{X: float64(scores[len(scores)-1].Index), Y: threshold},
		}
		thrLine, err := plotter.NewLine(thr)
		if err != nil {
			return fmt.Errorf("build threshold line: %w", err)
		}
		thrLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		p.Add(thrLine)
	}
	p.Add(plotter.NewGrid())

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save score series: %w", err)
	}
	return nil
}

// SaveHeatGrid writes a rows×cols surface (U-matrix, component plane,
// or reassembled score image) as a PNG heat map. Row 0 renders at the
// bottom, matching plot coordinates.
func SaveHeatGrid(values [][]float64, title, path string) error {
	if len(values) == 0 || len(values[0]) == 0 {
		return fmt.Errorf("save heat grid: empty surface")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "col"
	p.Y.Label.Text = "row"

	hm := plotter.NewHeatMap(matrixGrid{values}, palette.Heat(255, 1))
	p.Add(hm)

	if err := p.Save(8*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save heat grid: %w", err)
	}
	return nil
}

// matrixGrid adapts a [][]float64 surface to plotter.GridXYZ.
type matrixGrid struct {
	vals [][]float64
}

func (g matrixGrid) Dims() (c, r int)   { return len(g.vals[0]), len(g.vals) }
func (g matrixGrid) Z(c, r int) float64 { return g.vals[r][c] }
func (g matrixGrid) X(c int) float64    { return float64(c) }
func (g matrixGrid) Y(r int) float64    { return float64(r) }

// Compile-time interface check.
var _ plotter.GridXYZ = matrixGrid{}
