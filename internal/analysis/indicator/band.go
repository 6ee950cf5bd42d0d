package indicator

// volatilityBand is a rolling mean ± k·stddev envelope over closes.
type volatilityBand struct {
	closes    *rollingWindow
	upperMult float64
	lowerMult float64
}

func newVolatilityBand(period int, upperMult, lowerMult float64) *volatilityBand {
	return &volatilityBand{
		closes:    newRollingWindow(period),
		upperMult: upperMult,
		lowerMult: lowerMult,
	}
}

func (b *volatilityBand) Update(close float64) (mid, upper, lower float64) {
	b.closes.Push(close)
	mid = b.closes.Mean()
	sd := b.closes.StdDev()
	return mid, mid + b.upperMult*sd, mid - b.lowerMult*sd
}
