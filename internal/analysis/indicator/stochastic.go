package indicator

// stochastic tracks %K over a rolling high/low range and %D as a short SMA
// of %K. Until the smoothing window fills, %D averages the %K values seen.
type stochastic struct {
	highs *rollingWindow
	lows  *rollingWindow
	ks    *rollingWindow
}

func newStochastic(period, smoothing int) *stochastic {
	return &stochastic{
		highs: newRollingWindow(period),
		lows:  newRollingWindow(period),
		ks:    newRollingWindow(smoothing),
	}
}

// Update ingests one bar and returns %K and %D. A zero high/low range over
// the period yields %K = 0.
func (s *stochastic) Update(high, low, close float64) (k, d float64) {
	s.highs.Push(high)
	s.lows.Push(low)
	hi := s.highs.Max()
	lo := s.lows.Min()
	if hi > lo {
		k = 100 * (close - lo) / (hi - lo)
	}
	s.ks.Push(k)
	return k, s.ks.Mean()
}
