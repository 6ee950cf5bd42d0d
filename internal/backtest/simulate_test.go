package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"apex/internal/analysis/indicator"
	"apex/internal/market"
)

func bar(i int, o, h, l, c, v float64) market.Bar {
	return market.Bar{OpenTime: int64(i+1) * 60_000, Open: o, High: h, Low: l, Close: c, Volume: v}
}

// spikeThenDecline builds a rising series that ends in a high-volume band
// touch (a bearish inflection) followed by a steady decline that walks the
// short into its target.
func spikeThenDecline() []market.Bar {
	bars := make([]market.Bar, 0, 36)
	for i := 0; i < 19; i++ {
		c := 100 + float64(i)*30/19
		bars = append(bars, bar(i, c-0.5, c+0.8, c-1, c, 1000))
	}
	bars = append(bars, bar(19, 129, 140, 128.5, 130, 3000))
	open := 129.0
	for i := 20; i < 36; i++ {
		bars = append(bars, bar(i, open, open+0.5, open-2.5, open-2, 1000))
		open -= 2
	}
	return bars
}

func testSettings() indicator.Settings {
	cfg := indicator.DefaultSettings()
	cfg.Oscillator.Overbought = 75
	cfg.Band.Period = 14
	return cfg
}

func TestSimulateShortTrade(t *testing.T) {
	outcome, err := Simulate(testSettings(), SimConfig{}, spikeThenDecline())
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(outcome.Trades) == 0 {
		t.Fatalf("no trades opened; results tail %+v", outcome.Results[len(outcome.Results)-5:])
	}
	tr := outcome.Trades[0]
	if tr.Long {
		t.Fatalf("bearish signal opened a long: %+v", tr)
	}
	if tr.EntryIndex != 20 {
		t.Fatalf("entry index = %d, want next-bar fill at 20", tr.EntryIndex)
	}
	if tr.Entry != 129 {
		t.Fatalf("entry = %v, want next bar's open 129", tr.Entry)
	}
	if tr.PnL <= 0 {
		t.Fatalf("declining market short lost: %+v", tr)
	}
	m := outcome.Metrics
	if m.TotalTrades < 1 || m.Winners < 1 {
		t.Fatalf("metrics: %+v", m)
	}
	if math.Abs(tr.R-2) > 1e-9 {
		t.Fatalf("target exit R = %v, want the configured 2R", tr.R)
	}
}

func TestSimulateStopBeatsTargetInsideOneBar(t *testing.T) {
	tr := Trade{Long: true, Entry: 100, Stop: 98, Target: 104}
	wide := market.Bar{OpenTime: 1, Open: 100, High: 105, Low: 97, Close: 101, Volume: 1}
	exit, done := exitPrice(tr, wide)
	if !done || exit != 98 {
		t.Fatalf("exit = %v done=%v, want stop 98 first", exit, done)
	}

	short := Trade{Long: false, Entry: 100, Stop: 102, Target: 96}
	exit, done = exitPrice(short, wide)
	if !done || exit != 102 {
		t.Fatalf("short exit = %v done=%v, want stop 102 first", exit, done)
	}
}

func TestComputeMetrics(t *testing.T) {
	trades := []Trade{
		{PnL: 10, R: 2},
		{PnL: -5, R: -1},
		{PnL: -5, R: -1},
		{PnL: 20, R: 2},
	}
	m := computeMetrics(trades)
	if m.TotalTrades != 4 || m.Winners != 2 || m.Losers != 2 {
		t.Fatalf("counts: %+v", m)
	}
	if m.WinRate != 50 {
		t.Fatalf("win rate = %v", m.WinRate)
	}
	if m.ProfitFactor != 3 {
		t.Fatalf("profit factor = %v, want 30/10", m.ProfitFactor)
	}
	if m.TotalPnL != 20 {
		t.Fatalf("total pnl = %v", m.TotalPnL)
	}
	if m.AvgWinner != 15 || m.AvgLoser != 5 {
		t.Fatalf("avg winner/loser = %v/%v", m.AvgWinner, m.AvgLoser)
	}
	// Equity path 10, 5, 0, 20: worst peak-to-trough is 10.
	if m.MaxDrawdown != 10 {
		t.Fatalf("max drawdown = %v", m.MaxDrawdown)
	}
	if m.AvgR != 0.5 {
		t.Fatalf("avg r = %v", m.AvgR)
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := computeMetrics(nil)
	if m.TotalTrades != 0 || m.WinRate != 0 || m.ProfitFactor != 0 {
		t.Fatalf("empty metrics: %+v", m)
	}
}

func TestObjectiveOrdering(t *testing.T) {
	good := Metrics{TotalTrades: 10, WinRate: 60, ProfitFactor: 2, TotalPnL: 100, MaxDrawdown: 10}
	bad := Metrics{TotalTrades: 10, WinRate: 30, ProfitFactor: 0.8, TotalPnL: -50, MaxDrawdown: 60}
	none := Metrics{}
	if !(Objective(good) > Objective(bad)) {
		t.Fatalf("objective ordering: good=%v bad=%v", Objective(good), Objective(bad))
	}
	if Objective(none) >= Objective(bad) {
		t.Fatalf("zero-trade outcome must rank last")
	}
}

func TestSweeperRunRanksCandidates(t *testing.T) {
	quiet := testSettings()
	// A spike threshold no bar reaches: this candidate never trades.
	quiet.Volume.SpikeMult = 50
	quiet.Volume.ExhaustionMult = 60

	ranked, err := NewSweeper(2).Run(context.Background(), spikeThenDecline(), SimConfig{}, []Candidate{
		{Name: "never-trades", Settings: quiet},
		{Name: "default", Settings: testSettings()},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("ranking size %d", len(ranked))
	}
	if ranked[0].Candidate.Name != "default" {
		t.Fatalf("best candidate = %s", ranked[0].Candidate.Name)
	}
	if ranked[1].Metrics.TotalTrades != 0 {
		t.Fatalf("quiet candidate traded: %+v", ranked[1].Metrics)
	}
}

func TestSweeperJobLifecycle(t *testing.T) {
	s := NewSweeper(2)
	id, err := s.Start(context.Background(), "AAA", "1m", spikeThenDecline(), SimConfig{}, []Candidate{
		{Name: "default", Settings: testSettings()},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for {
		job, ok := s.Job(id)
		if !ok {
			t.Fatalf("job %s missing", id)
		}
		if job.Status == JobStatusDone {
			if job.Completed != 1 || len(job.Ranking) != 1 {
				t.Fatalf("finished job: %+v", job)
			}
			break
		}
		if job.Status == JobStatusFailed {
			t.Fatalf("job failed: %s", job.Message)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := s.Job("nope"); ok {
		t.Fatalf("unknown job reported present")
	}
}
