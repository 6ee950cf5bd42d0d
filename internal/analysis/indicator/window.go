package indicator

import "math"

// rollingWindow is a fixed-capacity ring over float64 with running sum and
// sum-of-squares, so mean and stddev stay O(1) per push. Max/Min scan the
// live slots.
type rollingWindow struct {
	buf   []float64
	head  int
	count int
	sum   float64
	sumSq float64
}

func newRollingWindow(size int) *rollingWindow {
	if size < 1 {
		size = 1
	}
	return &rollingWindow{buf: make([]float64, size)}
}

func (w *rollingWindow) Push(v float64) {
	if w.count == len(w.buf) {
		old := w.buf[w.head]
		w.sum -= old
		w.sumSq -= old * old
	} else {
		w.count++
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	w.sum += v
	w.sumSq += v * v
}

func (w *rollingWindow) Len() int   { return w.count }
func (w *rollingWindow) Full() bool { return w.count == len(w.buf) }

func (w *rollingWindow) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// StdDev is the population standard deviation of the live slots.
func (w *rollingWindow) StdDev() float64 {
	if w.count == 0 {
		return 0
	}
	n := float64(w.count)
	mean := w.sum / n
	variance := w.sumSq/n - mean*mean
	if variance < 0 {
		// float cancellation near zero variance
		variance = 0
	}
	return math.Sqrt(variance)
}

func (w *rollingWindow) Max() float64 {
	if w.count == 0 {
		return 0
	}
	max := math.Inf(-1)
	for i := 0; i < w.count; i++ {
		if v := w.at(i); v > max {
			max = v
		}
	}
	return max
}

func (w *rollingWindow) Min() float64 {
	if w.count == 0 {
		return 0
	}
	min := math.Inf(1)
	for i := 0; i < w.count; i++ {
		if v := w.at(i); v < min {
			min = v
		}
	}
	return min
}

// at indexes live slots oldest-first.
func (w *rollingWindow) at(i int) float64 {
	start := w.head - w.count
	if start < 0 {
		start += len(w.buf)
	}
	return w.buf[(start+i)%len(w.buf)]
}
