package indicator

import (
	"math"
	"testing"

	"apex/internal/market"
)

func mkBar(i int, o, h, l, c, v float64) market.Bar {
	return market.Bar{OpenTime: int64(i+1) * 60_000, Open: o, High: h, Low: l, Close: c, Volume: v}
}

func TestNewBankRejectsBadConfig(t *testing.T) {
	cfg := DefaultSettings()
	cfg.Oscillator.Oversold = 80
	cfg.Oscillator.Overbought = 70
	if _, err := NewBank(cfg); err == nil {
		t.Fatalf("expected error for oversold >= overbought")
	}

	cfg = DefaultSettings()
	cfg.Volume.SpikeMult = 3
	cfg.Volume.ExhaustionMult = 2
	if _, err := NewBank(cfg); err == nil {
		t.Fatalf("expected error for exhaustion <= spike")
	}
}

func TestOscillatorSentinels(t *testing.T) {
	osc := newOscillator(14)
	// No losses yet: avgLoss == 0 reads 100.
	v := osc.Update(100)
	if v != 100 {
		t.Fatalf("first bar oscillator = %v, want 100", v)
	}
	for c := 101.0; c <= 110; c++ {
		v = osc.Update(c)
	}
	if v != 100 {
		t.Fatalf("all-gains oscillator = %v, want 100", v)
	}

	osc = newOscillator(14)
	osc.Update(100)
	v = osc.Update(99)
	// Only losses: avgGain == 0 with nonzero avgLoss reads 0.
	if v != 0 {
		t.Fatalf("all-losses oscillator = %v, want 0", v)
	}
}

func TestOscillatorMidRange(t *testing.T) {
	osc := newOscillator(14)
	closes := []float64{100, 101, 100, 101, 100, 101, 100, 101}
	var v float64
	for _, c := range closes {
		v = osc.Update(c)
	}
	if v <= 0 || v >= 100 {
		t.Fatalf("alternating closes oscillator = %v, want interior value", v)
	}
}

func TestStochasticZeroRange(t *testing.T) {
	st := newStochastic(5, 3)
	var k, d float64
	for i := 0; i < 6; i++ {
		k, d = st.Update(10, 10, 10)
	}
	if k != 0 || d != 0 {
		t.Fatalf("zero-range stochastic = %v/%v, want 0/0", k, d)
	}
}

func TestStochasticBounds(t *testing.T) {
	st := newStochastic(5, 3)
	for i := 0; i < 10; i++ {
		h := 100 + float64(i)
		k, d := st.Update(h, h-2, h-0.5)
		if k < 0 || k > 100 || d < 0 || d > 100 {
			t.Fatalf("stochastic out of bounds: k=%v d=%v", k, d)
		}
	}
}

func TestVolatilityBandZeroWidthFiresNeither(t *testing.T) {
	cfg := DefaultSettings()
	cfg.Band.Period = 5
	bank, err := NewBank(cfg)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	var snap Snapshot
	for i := 0; i < 10; i++ {
		snap = bank.Update(mkBar(i, 50, 50, 50, 50, 100))
	}
	if snap.BandUpper != snap.BandLower {
		t.Fatalf("flat series band width = %v", snap.BandUpper-snap.BandLower)
	}
	if snap.AtUpperBand || snap.AtLowerBand {
		t.Fatalf("zero-width band must fire neither touch flag: %+v", snap)
	}
}

func TestBandTouchFlags(t *testing.T) {
	band := newVolatilityBand(5, 2, 2)
	closes := []float64{10, 12, 11, 13, 12}
	var mid, upper, lower float64
	for _, c := range closes {
		mid, upper, lower = band.Update(c)
	}
	if !(lower < mid && mid < upper) {
		t.Fatalf("band ordering broken: %v %v %v", lower, mid, upper)
	}
}

func TestVolumeSpikeAndExhaustion(t *testing.T) {
	cfg := DefaultSettings()
	cfg.Volume.Period = 10
	cfg.Volume.SpikeMult = 2
	cfg.Volume.ExhaustionMult = 3
	bank, err := NewBank(cfg)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	var snap Snapshot
	for i := 0; i < 9; i++ {
		snap = bank.Update(mkBar(i, 10, 11, 9, 10, 100))
	}
	if snap.VolumeSpike || snap.VolumeExhaustion {
		t.Fatalf("steady volume flagged: %+v", snap)
	}
	snap = bank.Update(mkBar(9, 10, 11, 9, 10.5, 1000))
	if !snap.VolumeSpike || !snap.VolumeExhaustion {
		t.Fatalf("10x volume not flagged: rel=%v", snap.RelVolume)
	}
	// Exhaustion implies spike by construction.
	if snap.VolumeExhaustion && !snap.VolumeSpike {
		t.Fatalf("exhaustion without spike")
	}
}

func TestVolumeZeroAverage(t *testing.T) {
	cfg := DefaultSettings()
	bank, err := NewBank(cfg)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	snap := bank.Update(mkBar(0, 10, 11, 9, 10, 0))
	if snap.RelVolume != 0 || snap.VolumeSpike {
		t.Fatalf("zero-volume bar: rel=%v spike=%v", snap.RelVolume, snap.VolumeSpike)
	}
}

func TestTrendFlags(t *testing.T) {
	cfg := DefaultSettings()
	cfg.EMA = EMASettings{Fast: 3, Slow: 8, Trend: 15}
	bank, err := NewBank(cfg)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	var snap Snapshot
	for i := 0; i < 40; i++ {
		c := 100 + float64(i)
		snap = bank.Update(mkBar(i, c-0.5, c+0.5, c-1, c, 100))
	}
	if !snap.TrendUp || snap.TrendDown {
		t.Fatalf("rising series trend flags: up=%v down=%v", snap.TrendUp, snap.TrendDown)
	}
	for i := 40; i < 80; i++ {
		c := 140 - float64(i-40)
		snap = bank.Update(mkBar(i, c+0.5, c+1, c-0.5, c, 100))
	}
	if !snap.TrendDown || snap.TrendUp {
		t.Fatalf("falling series trend flags: up=%v down=%v", snap.TrendUp, snap.TrendDown)
	}
}

func TestRollingWindowEviction(t *testing.T) {
	w := newRollingWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Push(v)
	}
	if w.Len() != 3 {
		t.Fatalf("Len = %d, want 3", w.Len())
	}
	if w.Mean() != 4 {
		t.Fatalf("Mean = %v, want 4", w.Mean())
	}
	if w.Max() != 5 || w.Min() != 3 {
		t.Fatalf("Max/Min = %v/%v, want 5/3", w.Max(), w.Min())
	}
	want := math.Sqrt(2.0 / 3.0)
	if math.Abs(w.StdDev()-want) > 1e-9 {
		t.Fatalf("StdDev = %v, want %v", w.StdDev(), want)
	}
}
