package chart

import (
	"fmt"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"apex/internal/decision"
	"apex/internal/logger"
	"apex/internal/market"
)

// Options controls the rendered chart page.
type Options struct {
	Title    string
	Interval string
}

// WriteHTML renders bars, composite scores, and level markers into a
// standalone HTML file. Bars and results must be index-aligned, as produced
// by a replay.
func WriteHTML(path string, bars []market.Bar, results []decision.Result, o Options) error {
	if len(bars) == 0 {
		return fmt.Errorf("no bars to chart")
	}
	if len(bars) != len(results) {
		return fmt.Errorf("bars/results length mismatch: %d vs %d", len(bars), len(results))
	}
	if o.Title == "" {
		o.Title = "signal chart"
	}

	labels := make([]string, len(bars))
	klineData := make([]opts.KlineData, len(bars))
	scoreData := make([]opts.LineData, len(results))
	levelData := make([]opts.ScatterData, 0)
	for i, b := range bars {
		labels[i] = time.UnixMilli(b.OpenTime).UTC().Format("01-02 15:04")
		klineData[i] = opts.KlineData{Value: [4]float64{b.Open, b.Close, b.Low, b.High}}
		scoreData[i] = opts.LineData{Value: results[i].Score}
		if results[i].Level != decision.Neutral {
			levelData = append(levelData, opts.ScatterData{
				Value:      []interface{}{labels[i], b.Close},
				SymbolSize: 10 + 4*abs(results[i].Level.Scalar()),
			})
		}
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: o.Title, Subtitle: o.Interval}),
		charts.WithXAxisOpts(opts.XAxis{SplitNumber: 20}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	kline.SetXAxis(labels).AddSeries("price", klineData)

	markers := charts.NewScatter()
	markers.SetXAxis(labels).AddSeries("signals", levelData)
	kline.Overlap(markers)

	score := charts.NewLine()
	score.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "composite score"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -100, Max: 100}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	score.SetXAxis(labels).AddSeries("score", scoreData)

	page := components.NewPage()
	page.AddCharts(kline, score)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	logger.Infof("chart written to %s (%d bars, %d signals)", path, len(bars), len(levelData))
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
