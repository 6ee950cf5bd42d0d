package engine

import (
	"fmt"

	"apex/internal/analysis/indicator"
	"apex/internal/decision"
	"apex/internal/market"
)

// Engine evaluates one bar stream. Each instrument/timeframe combination
// owns its own instance; instances share nothing and may run in parallel.
// Not safe for concurrent use of a single instance.
type Engine struct {
	cfg      indicator.Settings
	bank     *indicator.Bank
	detector *indicator.DivergenceDetector
	barIndex int
}

// New validates the configuration and builds a fresh engine. An invalid
// configuration is rejected here, before any bar is processed.
func New(cfg indicator.Settings) (*Engine, error) {
	bank, err := indicator.NewBank(cfg)
	if err != nil {
		return nil, err
	}
	full := bank.Settings()
	return &Engine{
		cfg:      full,
		bank:     bank,
		detector: indicator.NewDivergenceDetector(full.Divergence),
	}, nil
}

func (e *Engine) Settings() indicator.Settings { return e.cfg }

// Update processes one bar, strictly append-only, and returns its result.
// The caller owns input validation (ordering, well-formedness); the engine
// assumes validated bars and is total over them.
func (e *Engine) Update(bar market.Bar) decision.Result {
	snap := e.bank.Update(bar)
	bearish, bullish := e.detector.Update(bar, snap.Oscillator)
	res := decision.Evaluate(e.barIndex, bar.Timestamp(), snap, bearish, bullish)
	e.barIndex++
	return res
}

// Replay validates a historical series and runs it through a fresh stream,
// returning one result per bar. This is the only supported rewind: replaying
// into a new instance.
func Replay(cfg indicator.Settings, bars []market.Bar) ([]decision.Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("no bars to replay")
	}
	if err := market.ValidateSeries(bars); err != nil {
		return nil, fmt.Errorf("replay input: %w", err)
	}
	eng, err := New(cfg)
	if err != nil {
		return nil, err
	}
	results := make([]decision.Result, 0, len(bars))
	for _, bar := range bars {
		results = append(results, eng.Update(bar))
	}
	return results, nil
}
