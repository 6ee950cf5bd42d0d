package indicator

// oscillator is a streaming RSI-style momentum gauge over smoothed average
// gain and loss. Averages smooth from the first change onward, so early
// readings converge toward the fixed-period definition as history accrues.
type oscillator struct {
	period    int
	avgGain   float64
	avgLoss   float64
	prevClose float64
	seen      int
}

func newOscillator(period int) *oscillator {
	return &oscillator{period: period}
}

// Update ingests one close and returns the oscillator value in [0, 100].
// avgLoss of zero reads 100; avgGain of zero with losses present reads 0.
func (o *oscillator) Update(close float64) float64 {
	if o.seen == 0 {
		o.prevClose = close
		o.seen = 1
		return o.Value()
	}
	change := close - o.prevClose
	o.prevClose = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}
	p := float64(o.period)
	o.avgGain = (o.avgGain*(p-1) + gain) / p
	o.avgLoss = (o.avgLoss*(p-1) + loss) / p
	o.seen++
	return o.Value()
}

func (o *oscillator) Value() float64 {
	if o.avgLoss == 0 {
		return 100
	}
	if o.avgGain == 0 {
		return 0
	}
	rs := o.avgGain / o.avgLoss
	return 100 - 100/(1+rs)
}
