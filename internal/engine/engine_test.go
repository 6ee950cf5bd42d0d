package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"apex/internal/analysis/indicator"
	"apex/internal/decision"
	"apex/internal/market"
)

func bar(i int, o, h, l, c, v float64) market.Bar {
	return market.Bar{OpenTime: int64(i+1) * 60_000, Open: o, High: h, Low: l, Close: c, Volume: v}
}

// risingScenario: monotonically rising closes 100 to 130 over 20 bars, flat
// volume, then a final bar with triple volume whose high reaches the upper
// volatility band.
func risingScenario() []market.Bar {
	bars := make([]market.Bar, 0, 20)
	for i := 0; i < 19; i++ {
		c := 100 + float64(i)*30/19
		bars = append(bars, bar(i, c-0.5, c+0.8, c-1, c, 1000))
	}
	bars = append(bars, bar(19, 129, 140, 128.5, 130, 3000))
	return bars
}

func scenarioSettings() indicator.Settings {
	cfg := indicator.DefaultSettings()
	cfg.Oscillator.Overbought = 75
	cfg.Band.Period = 14
	return cfg
}

func TestDeterminism(t *testing.T) {
	bars := risingScenario()
	cfg := scenarioSettings()
	a, err := Replay(cfg, bars)
	if err != nil {
		t.Fatalf("replay a: %v", err)
	}
	b, err := Replay(cfg, bars)
	if err != nil {
		t.Fatalf("replay b: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("result lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("result %d differs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}

func TestNoLookahead(t *testing.T) {
	bars := risingScenario()
	cfg := scenarioSettings()
	full, err := Replay(cfg, bars)
	if err != nil {
		t.Fatalf("replay full: %v", err)
	}
	prefix, err := Replay(cfg, bars[:12])
	if err != nil {
		t.Fatalf("replay prefix: %v", err)
	}
	for i := range prefix {
		if prefix[i] != full[i] {
			t.Fatalf("appending later bars changed result %d:\n%+v\n%+v", i, prefix[i], full[i])
		}
	}
}

func TestRisingSpikeScenario(t *testing.T) {
	results, err := Replay(scenarioSettings(), risingScenario())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	final := results[len(results)-1]
	if final.Level != decision.Bearish && final.Level != decision.StrongBearish {
		t.Fatalf("final bar level = %v (flags %+v), want bearish", final.Level, final.Flags)
	}
	for _, r := range results[:len(results)-1] {
		if r.Level != decision.Neutral {
			t.Fatalf("bar %d level = %v, want neutral before the spike", r.BarIndex, r.Level)
		}
	}
	if !final.Flags.VolumeSpike || !final.Flags.UpperBand || !final.Flags.OscHigh {
		t.Fatalf("final bar flags %+v", final.Flags)
	}
}

func TestQuietScenarioStaysNeutral(t *testing.T) {
	cfg := indicator.DefaultSettings()
	bars := make([]market.Bar, 0, 60)
	for i := 0; i < 60; i++ {
		// Small oscillation keeps the oscillator mid-range and price inside
		// the band.
		c := 100 + 0.3*math.Sin(float64(i)/3)
		bars = append(bars, bar(i, c, c+0.02, c-0.02, c, 1000))
	}
	results, err := Replay(cfg, bars)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	var sum float64
	for _, r := range results {
		if r.Level != decision.Neutral {
			t.Fatalf("bar %d level = %v, want neutral", r.BarIndex, r.Level)
		}
		if r.Flags.VolumeSpike || r.Flags.BearishDiv || r.Flags.BullishDiv {
			t.Fatalf("bar %d unexpected flags %+v", r.BarIndex, r.Flags)
		}
		if math.Abs(r.Score) > 40 {
			t.Fatalf("bar %d score = %v, want small", r.BarIndex, r.Score)
		}
		sum += math.Abs(r.Score)
	}
	if mean := sum / float64(len(results)); mean > 20 {
		t.Fatalf("quiet scenario mean |score| = %v, want near 0", mean)
	}
}

func TestDivergenceDisabledByConfig(t *testing.T) {
	cfg := indicator.DefaultSettings()
	cfg.Divergence.Enabled = false
	bars := risingScenario()
	results, err := Replay(cfg, bars)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	for _, r := range results {
		if r.Flags.BearishDiv || r.Flags.BullishDiv {
			t.Fatalf("bar %d divergence flag set while disabled", r.BarIndex)
		}
	}
}

func TestZeroRangeSafety(t *testing.T) {
	cfg := indicator.DefaultSettings()
	bars := make([]market.Bar, 0, 30)
	for i := 0; i < 30; i++ {
		bars = append(bars, bar(i, 50, 50, 50, 50, 0))
	}
	results, err := Replay(cfg, bars)
	if err != nil {
		t.Fatalf("flat series must not error: %v", err)
	}
	for _, r := range results {
		if r.Flags.UpperBand || r.Flags.LowerBand {
			t.Fatalf("bar %d band touch on zero-width band", r.BarIndex)
		}
		if r.Level != decision.Neutral {
			t.Fatalf("bar %d level = %v", r.BarIndex, r.Level)
		}
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := indicator.DefaultSettings()
	cfg.Stochastic.Oversold = 90
	cfg.Stochastic.Overbought = 80
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected config rejection")
	}
}

func TestReplayRejectsUnorderedBars(t *testing.T) {
	bars := []market.Bar{
		bar(1, 10, 11, 9, 10, 1),
		bar(0, 10, 11, 9, 10, 1),
	}
	if _, err := Replay(indicator.DefaultSettings(), bars); err == nil {
		t.Fatalf("expected ordering rejection")
	}
}

func TestRunKeepsStreamsIndependent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	in := make(chan market.BarEvent)
	out, err := Run(ctx, indicator.DefaultSettings(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	go func() {
		defer close(in)
		for i := 0; i < 5; i++ {
			b := bar(i, 100, 101, 99, 100.5, 1000)
			in <- market.BarEvent{Symbol: "AAA", Interval: "1m", Bar: b}
			in <- market.BarEvent{Symbol: "BBB", Interval: "1m", Bar: b}
		}
	}()

	counts := map[string]int{}
	var firstIndex []int
	for ev := range out {
		counts[ev.Symbol]++
		if ev.Result.BarIndex == 0 {
			firstIndex = append(firstIndex, 0)
		}
	}
	if counts["AAA"] != 5 || counts["BBB"] != 5 {
		t.Fatalf("event counts: %v", counts)
	}
	// Each stream starts its own bar index at zero.
	if len(firstIndex) != 2 {
		t.Fatalf("expected 2 independent streams, saw %d zero indexes", len(firstIndex))
	}
}

func TestRunDropsOutOfOrderBars(t *testing.T) {
	ctx := context.Background()
	in := make(chan market.BarEvent, 3)
	in <- market.BarEvent{Symbol: "AAA", Interval: "1m", Bar: bar(1, 10, 11, 9, 10, 1)}
	in <- market.BarEvent{Symbol: "AAA", Interval: "1m", Bar: bar(0, 10, 11, 9, 10, 1)}
	in <- market.BarEvent{Symbol: "AAA", Interval: "1m", Bar: bar(2, 10, 11, 9, 10, 1)}
	close(in)

	out, err := Run(ctx, indicator.DefaultSettings(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var n int
	for range out {
		n++
	}
	if n != 2 {
		t.Fatalf("expected 2 events after dropping the stale bar, got %d", n)
	}
}
