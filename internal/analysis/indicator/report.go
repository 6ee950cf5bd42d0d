package indicator

import (
	"fmt"
	"math"

	talib "github.com/markcheno/go-talib"

	"apex/internal/market"
)

// IndicatorValue is one named entry of a batch Report.
type IndicatorValue struct {
	Latest float64   `json:"latest"`
	Series []float64 `json:"series,omitempty"`
	State  string    `json:"state,omitempty"`
	Note   string    `json:"note,omitempty"`
}

// Report is a batch view over a full bar history, computed with talib for
// display and HTTP consumers. The streaming bank remains the signal source
// of truth; the report is descriptive.
type Report struct {
	Symbol   string                    `json:"symbol"`
	Interval string                    `json:"interval"`
	Count    int                       `json:"count"`
	Values   map[string]IndicatorValue `json:"values"`
}

// ComputeReport builds the batch indicator report for a bar history.
func ComputeReport(symbol, interval string, bars []market.Bar, cfg Settings) (Report, error) {
	rep := Report{
		Symbol:   symbol,
		Interval: interval,
		Count:    len(bars),
		Values:   make(map[string]IndicatorValue),
	}
	if len(bars) == 0 {
		return rep, fmt.Errorf("no bars")
	}
	cfg = cfg.withDefaults()

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}
	lastClose := closes[len(closes)-1]

	for name, period := range map[string]int{
		"ema_fast":  cfg.EMA.Fast,
		"ema_slow":  cfg.EMA.Slow,
		"ema_trend": cfg.EMA.Trend,
	} {
		series := sanitizeSeries(talib.Ema(closes, period))
		rep.Values[name] = IndicatorValue{
			Latest: lastValid(series),
			Series: series,
			State:  relativeState(lastClose, lastValid(series)),
			Note:   fmt.Sprintf("EMA%d vs price", period),
		}
	}

	rsiSeries := sanitizeSeries(talib.Rsi(closes, cfg.Oscillator.Period))
	rsiVal := lastValid(rsiSeries)
	rsiState := "neutral"
	switch {
	case rsiVal >= cfg.Oscillator.Overbought:
		rsiState = "overbought"
	case rsiVal <= cfg.Oscillator.Oversold:
		rsiState = "oversold"
	}
	rep.Values["oscillator"] = IndicatorValue{
		Latest: rsiVal,
		Series: rsiSeries,
		State:  rsiState,
		Note:   fmt.Sprintf("period=%d thresholds=%.1f/%.1f", cfg.Oscillator.Period, cfg.Oscillator.Oversold, cfg.Oscillator.Overbought),
	}

	k, d := talib.Stoch(highs, lows, closes, cfg.Stochastic.Period, cfg.Stochastic.Smoothing, talib.SMA, cfg.Stochastic.Smoothing, talib.SMA)
	kSeries := sanitizeSeries(k)
	dSeries := sanitizeSeries(d)
	kVal := lastValid(kSeries)
	stochState := "neutral"
	switch {
	case kVal >= cfg.Stochastic.Overbought:
		stochState = "overbought"
	case kVal <= cfg.Stochastic.Oversold:
		stochState = "oversold"
	}
	rep.Values["stoch_k"] = IndicatorValue{
		Latest: kVal,
		Series: kSeries,
		State:  stochState,
		Note:   fmt.Sprintf("d=%.2f", lastValid(dSeries)),
	}

	upper, mid, lower := talib.BBands(closes, cfg.Band.Period, cfg.Band.UpperMult, cfg.Band.LowerMult, talib.SMA)
	upperSeries := sanitizeSeries(upper)
	lowerSeries := sanitizeSeries(lower)
	rep.Values["band"] = IndicatorValue{
		Latest: lastValid(sanitizeSeries(mid)),
		Series: sanitizeSeries(mid),
		State:  relativeState(lastClose, lastValid(sanitizeSeries(mid))),
		Note:   fmt.Sprintf("upper=%.4f lower=%.4f", lastValid(upperSeries), lastValid(lowerSeries)),
	}

	volSeries := sanitizeSeries(talib.Sma(volumes, cfg.Volume.Period))
	volAvg := lastValid(volSeries)
	rel := 0.0
	if volAvg > 0 {
		rel = volumes[len(volumes)-1] / volAvg
	}
	volState := "normal"
	switch {
	case rel > cfg.Volume.ExhaustionMult:
		volState = "exhaustion"
	case rel > cfg.Volume.SpikeMult:
		volState = "spike"
	}
	rep.Values["volume_ma"] = IndicatorValue{
		Latest: volAvg,
		Series: volSeries,
		State:  volState,
		Note:   fmt.Sprintf("rel=%.2f", rel),
	}

	return rep, nil
}

// ComputeATRSeries returns the talib ATR over a bar history, used for
// stop placement in replay simulations.
func ComputeATRSeries(bars []market.Bar, period int) ([]float64, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars")
	}
	if period <= 0 {
		period = 14
	}
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	series := sanitizeSeries(talib.Atr(highs, lows, closes, period))
	if len(series) == 0 {
		return nil, fmt.Errorf("atr series empty")
	}
	return series, nil
}

func sanitizeSeries(series []float64) []float64 {
	out := make([]float64, len(series))
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
			continue
		}
		out[i] = v
	}
	return out
}

func lastValid(series []float64) float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] != 0 {
			return series[i]
		}
	}
	return 0
}

func relativeState(price, ref float64) string {
	switch {
	case ref == 0:
		return "unknown"
	case price > ref:
		return "above"
	case price < ref:
		return "below"
	default:
		return "at"
	}
}
