package render

import (
	"fmt"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gge-data/changedetect/internal/som"
	"github.com/gge-data/changedetect/internal/somdb"
)

// viridis is the color ramp used for heat surfaces in the HTML report.
var viridis = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// WriteRunReport renders an HTML dashboard for a stored training run:
// quantization-error history, the U-matrix, and (when present) the
// anomaly scores of one batch.
func WriteRunReport(path string, run *somdb.TrainingRun, m *som.Map, scores []som.Score) error {
	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("SOM run %s", run.RunID)

	meta := m.Meta()
	if len(meta.QEHistory) > 0 {
		page.AddCharts(qeHistoryChart(run, meta.QEHistory))
	}
	page.AddCharts(uMatrixChart(m))
	if len(scores) > 0 {
		page.AddCharts(scoreChart(scores))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func qeHistoryChart(run *somdb.TrainingRun, history []float64) *charts.Line {
	x := make([]string, len(history))
	y := make([]opts.LineData, len(history))
	for i, v := range history {
		x[i] = fmt.Sprintf("%d", i+1)
		y[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Quantization error by epoch",
			Subtitle: fmt.Sprintf("run=%s trained=%s", run.RunID, time.Unix(0, run.CreatedAtNs).Format(time.RFC3339)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).AddSeries("qe", y)
	return line
}

func uMatrixChart(m *som.Map) *charts.HeatMap {
	u := m.UMatrix()
	rows, cols := m.Dims()

	lo, hi := u[0][0], u[0][0]
	data := make([]opts.HeatMapData, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := u[r][c]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, r, v}})
		}
	}
	xLabels := make([]string, cols)
	for c := range xLabels {
		xLabels[c] = fmt.Sprintf("%d", c)
	}
	yLabels := make([]string, rows)
	for r := range yLabels {
		yLabels[r] = fmt.Sprintf("%d", r)
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "U-matrix",
			Subtitle: fmt.Sprintf("%dx%d %s lattice", rows, cols, m.Topology()),
		}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	hm.AddSeries("umatrix", data)
	return hm
}

func scoreChart(scores []som.Score) *charts.Line {
	x := make([]string, len(scores))
	dist := make([]opts.LineData, len(scores))
	jump := make([]opts.LineData, len(scores))
	for i, s := range scores {
		x[i] = fmt.Sprintf("%d", s.Index)
		dist[i] = opts.LineData{Value: s.Distance}
		jump[i] = opts.LineData{Value: s.LatticeJump}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Anomaly scores", Subtitle: "distance to BMU and lattice jump per sample"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("distance", dist).
		AddSeries("lattice jump", jump)
	return line
}
