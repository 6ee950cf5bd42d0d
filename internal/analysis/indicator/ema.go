package indicator

// ema is a streaming exponential moving average seeded by the first value.
type ema struct {
	alpha  float64
	value  float64
	seeded bool
}

func newEMA(period int) *ema {
	return &ema{alpha: 2.0 / (float64(period) + 1)}
}

func (e *ema) Update(v float64) float64 {
	if !e.seeded {
		e.value = v
		e.seeded = true
		return v
	}
	e.value += e.alpha * (v - e.value)
	return e.value
}
