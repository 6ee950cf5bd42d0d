package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"apex/internal/analysis/indicator"
	"apex/internal/decision"
	"apex/internal/engine"
	"apex/internal/market"
)

// SimConfig controls the trade simulation layered over a replay. Stops are
// ATR multiples off the entry; targets are a fixed reward/risk multiple of
// the stop distance.
type SimConfig struct {
	ATRPeriod   int     `json:"atr_period"`   // default 14
	ATRStopMult float64 `json:"atr_stop_mult"` // default 1.5
	TargetRR    float64 `json:"target_rr"`     // default 2.0
	MinLevel    int     `json:"min_level"`     // minimum |level| that opens a trade, default 1
}

func (c SimConfig) withDefaults() SimConfig {
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.ATRStopMult <= 0 {
		c.ATRStopMult = 1.5
	}
	if c.TargetRR <= 0 {
		c.TargetRR = 2.0
	}
	if c.MinLevel <= 0 {
		c.MinLevel = 1
	}
	return c
}

// Trade is one simulated round trip.
type Trade struct {
	EntryIndex int     `json:"entry_index"`
	ExitIndex  int     `json:"exit_index"`
	Long       bool    `json:"long"`
	Entry      float64 `json:"entry"`
	Exit       float64 `json:"exit"`
	Stop       float64 `json:"stop"`
	Target     float64 `json:"target"`
	PnL        float64 `json:"pnl"` // per unit, signed
	R          float64 `json:"r"`   // PnL in stop-distance units
}

// Metrics summarizes a simulation. Money math runs on decimals and is
// rendered back to floats at the edge.
type Metrics struct {
	TotalTrades  int     `json:"total_trades"`
	Winners      int     `json:"winners"`
	Losers       int     `json:"losers"`
	WinRate      float64 `json:"win_rate"`
	ProfitFactor float64 `json:"profit_factor"`
	TotalPnL     float64 `json:"total_pnl"`
	AvgWinner    float64 `json:"avg_winner"`
	AvgLoser     float64 `json:"avg_loser"`
	MaxDrawdown  float64 `json:"max_drawdown"`
	AvgR         float64 `json:"avg_r"`
}

// Outcome bundles one full evaluation of a configuration over a history.
type Outcome struct {
	Settings indicator.Settings `json:"settings"`
	Sim      SimConfig          `json:"sim"`
	Results  []decision.Result  `json:"-"`
	Trades   []Trade            `json:"trades"`
	Metrics  Metrics            `json:"metrics"`
}

// Simulate replays bars through a fresh engine and trades its signals:
// bullish levels open longs, bearish levels open shorts, entries fill at the
// next bar's open, exits at stop, target, or the final close. One position
// at a time.
func Simulate(cfg indicator.Settings, sim SimConfig, bars []market.Bar) (Outcome, error) {
	sim = sim.withDefaults()
	results, err := engine.Replay(cfg, bars)
	if err != nil {
		return Outcome{}, err
	}
	atr, err := indicator.ComputeATRSeries(bars, sim.ATRPeriod)
	if err != nil {
		return Outcome{}, fmt.Errorf("atr: %w", err)
	}

	out := Outcome{Settings: cfg, Sim: sim, Results: results}
	var open *Trade
	for i, res := range results {
		if open != nil {
			bar := bars[i]
			exit, done := exitPrice(*open, bar)
			if done || i == len(results)-1 {
				if !done {
					exit = bar.Close
				}
				open.ExitIndex = i
				open.Exit = exit
				if open.Long {
					open.PnL = exit - open.Entry
				} else {
					open.PnL = open.Entry - exit
				}
				if risk := riskPerUnit(*open); risk > 0 {
					open.R = open.PnL / risk
				}
				out.Trades = append(out.Trades, *open)
				open = nil
			}
			continue
		}
		if i == len(results)-1 {
			break
		}
		level := res.Level.Scalar()
		if abs(level) < sim.MinLevel || atr[i] <= 0 {
			continue
		}
		entry := bars[i+1].Open
		stopDist := sim.ATRStopMult * atr[i]
		tr := Trade{EntryIndex: i + 1, Long: level > 0, Entry: entry}
		if tr.Long {
			tr.Stop = entry - stopDist
			tr.Target = entry + sim.TargetRR*stopDist
		} else {
			tr.Stop = entry + stopDist
			tr.Target = entry - sim.TargetRR*stopDist
		}
		open = &tr
	}

	out.Metrics = computeMetrics(out.Trades)
	return out, nil
}

// exitPrice checks a bar against the open trade's stop and target. The stop
// is checked first: when both levels sit inside one bar the loss is taken,
// the conservative read of intrabar order.
func exitPrice(t Trade, bar market.Bar) (float64, bool) {
	if t.Long {
		if bar.Low <= t.Stop {
			return t.Stop, true
		}
		if bar.High >= t.Target {
			return t.Target, true
		}
		return 0, false
	}
	if bar.High >= t.Stop {
		return t.Stop, true
	}
	if bar.Low <= t.Target {
		return t.Target, true
	}
	return 0, false
}

func riskPerUnit(t Trade) float64 {
	if t.Long {
		return t.Entry - t.Stop
	}
	return t.Stop - t.Entry
}

func computeMetrics(trades []Trade) Metrics {
	m := Metrics{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return m
	}
	grossWin := decimal.Zero
	grossLoss := decimal.Zero
	total := decimal.Zero
	rSum := decimal.Zero
	equity := decimal.Zero
	peak := decimal.Zero
	maxDD := decimal.Zero
	for _, t := range trades {
		pnl := decimal.NewFromFloat(t.PnL)
		total = total.Add(pnl)
		rSum = rSum.Add(decimal.NewFromFloat(t.R))
		if pnl.IsPositive() {
			m.Winners++
			grossWin = grossWin.Add(pnl)
		} else {
			m.Losers++
			grossLoss = grossLoss.Add(pnl.Neg())
		}
		equity = equity.Add(pnl)
		if equity.GreaterThan(peak) {
			peak = equity
		}
		if dd := peak.Sub(equity); dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	n := decimal.NewFromInt(int64(len(trades)))
	m.WinRate, _ = decimal.NewFromInt(int64(m.Winners)).Div(n).Mul(decimal.NewFromInt(100)).Float64()
	m.TotalPnL, _ = total.Float64()
	m.AvgR, _ = rSum.Div(n).Float64()
	m.MaxDrawdown, _ = maxDD.Float64()
	if m.Winners > 0 {
		m.AvgWinner, _ = grossWin.Div(decimal.NewFromInt(int64(m.Winners))).Float64()
	}
	if m.Losers > 0 {
		m.AvgLoser, _ = grossLoss.Div(decimal.NewFromInt(int64(m.Losers))).Float64()
	}
	if grossLoss.IsPositive() {
		m.ProfitFactor, _ = grossWin.Div(grossLoss).Float64()
	} else if grossWin.IsPositive() {
		m.ProfitFactor, _ = grossWin.Float64() // no losses: report gross win
	}
	return m
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
