package indicator

import "apex/internal/market"

// SwingPoint is a confirmed local extremum: its price, the oscillator value
// on the confirming bar, and the bar index it landed on.
type SwingPoint struct {
	Price    float64 `json:"price"`
	Osc      float64 `json:"osc"`
	BarIndex int     `json:"bar_index"`
}

// SwingTracker confirms swing highs and lows over a trailing window and
// holds the last confirmed extremum per side until the next one overwrites
// it. It also retains enough confirmation history to serve a reference point
// lag confirmations back.
type SwingTracker struct {
	window int
	lag    int

	highs *rollingWindow
	lows  *rollingWindow

	highHist []SwingPoint
	lowHist  []SwingPoint

	barIndex int
}

// NewSwingTracker builds a tracker with window lookback and lag lookback/2.
func NewSwingTracker(lookback int) *SwingTracker {
	lag := lookback / 2
	if lag < 1 {
		lag = 1
	}
	return &SwingTracker{
		window: lookback,
		lag:    lag,
		highs:  newRollingWindow(lookback),
		lows:   newRollingWindow(lookback),
	}
}

// Update ingests one bar with its contemporaneous oscillator value. A bar
// confirms a swing high when its high is the maximum of the full trailing
// window, ties included; swing lows mirror. Confirmation requires a full
// window, so the first window-1 bars never confirm.
func (t *SwingTracker) Update(bar market.Bar, osc float64) {
	t.highs.Push(bar.High)
	t.lows.Push(bar.Low)
	if t.highs.Full() && bar.High >= t.highs.Max() {
		t.highHist = appendTrimmed(t.highHist, SwingPoint{Price: bar.High, Osc: osc, BarIndex: t.barIndex}, t.lag+1)
	}
	if t.lows.Full() && bar.Low <= t.lows.Min() {
		t.lowHist = appendTrimmed(t.lowHist, SwingPoint{Price: bar.Low, Osc: osc, BarIndex: t.barIndex}, t.lag+1)
	}
	t.barIndex++
}

// High returns the most recently confirmed swing high, false before any
// confirmation exists.
func (t *SwingTracker) High() (SwingPoint, bool) { return last(t.highHist) }

// HighLagged returns the swing high confirmed lag confirmations before the
// current one, false when history is too short.
func (t *SwingTracker) HighLagged() (SwingPoint, bool) { return lagged(t.highHist, t.lag) }

func (t *SwingTracker) Low() (SwingPoint, bool)       { return last(t.lowHist) }
func (t *SwingTracker) LowLagged() (SwingPoint, bool) { return lagged(t.lowHist, t.lag) }

func last(hist []SwingPoint) (SwingPoint, bool) {
	if len(hist) == 0 {
		return SwingPoint{}, false
	}
	return hist[len(hist)-1], true
}

func lagged(hist []SwingPoint, lag int) (SwingPoint, bool) {
	idx := len(hist) - 1 - lag
	if idx < 0 {
		return SwingPoint{}, false
	}
	return hist[idx], true
}

func appendTrimmed(hist []SwingPoint, p SwingPoint, keep int) []SwingPoint {
	hist = append(hist, p)
	if len(hist) > keep {
		hist = hist[len(hist)-keep:]
	}
	return hist
}
