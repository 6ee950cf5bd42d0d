package indicator

import "apex/internal/market"

// Oscillator confirmation thresholds for divergence. A bearish divergence
// only counts while the oscillator is still in the upper half of its range,
// bullish mirrors in the lower half.
const (
	divConfirmHigh = 60.0
	divConfirmLow  = 40.0
)

// DivergenceDetector compares the freshest confirmed swing against a lagged
// one and flags price/oscillator divergence. When disabled by configuration
// the tracker still runs, but both flags are masked to false.
type DivergenceDetector struct {
	cfg     DivergenceSettings
	tracker *SwingTracker
}

func NewDivergenceDetector(cfg DivergenceSettings) *DivergenceDetector {
	if cfg.Lookback <= 0 {
		cfg.Lookback = 10
	}
	return &DivergenceDetector{cfg: cfg, tracker: NewSwingTracker(cfg.Lookback)}
}

// Update ingests one bar plus its oscillator value and evaluates divergence
// for that bar.
//
// Bearish requires all three together: the current swing high above the
// lagged swing high, a weaker oscillator at the current high than at the
// lagged one, and the current oscillator still above the upper confirmation
// threshold. Bullish mirrors. Missing swing history on either side
// short-circuits to false.
func (d *DivergenceDetector) Update(bar market.Bar, osc float64) (bearish, bullish bool) {
	d.tracker.Update(bar, osc)

	if cur, ok := d.tracker.High(); ok {
		if ref, ok := d.tracker.HighLagged(); ok {
			bearish = cur.Price > ref.Price && cur.Osc < ref.Osc && osc > divConfirmHigh
		}
	}
	if cur, ok := d.tracker.Low(); ok {
		if ref, ok := d.tracker.LowLagged(); ok {
			bullish = cur.Price < ref.Price && cur.Osc > ref.Osc && osc < divConfirmLow
		}
	}
	if !d.cfg.Enabled {
		return false, false
	}
	return bearish, bullish
}

// Tracker exposes the underlying swing state for display consumers.
func (d *DivergenceDetector) Tracker() *SwingTracker { return d.tracker }
