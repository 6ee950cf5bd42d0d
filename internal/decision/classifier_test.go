package decision

import (
	"math"
	"testing"
)

func TestClassifyPrecedence(t *testing.T) {
	base := Flags{OscHigh: true, VolumeSpike: true, UpperBand: true}
	if got := Classify(base); got != Bearish {
		t.Fatalf("bearish inflection classified %v", got)
	}
	strong := base
	strong.VolumeExhaustion = true
	strong.BearishDiv = true
	if got := Classify(strong); got != StrongBearish {
		t.Fatalf("strong bearish classified %v", got)
	}

	// Exhaustion alone without divergence stays at the weaker level.
	partial := base
	partial.VolumeExhaustion = true
	if got := Classify(partial); got != Bearish {
		t.Fatalf("exhaustion without divergence classified %v", got)
	}

	bull := Flags{StochLow: true, VolumeSpike: true, LowerBand: true}
	if got := Classify(bull); got != Bullish {
		t.Fatalf("bullish inflection classified %v", got)
	}
	strongBull := bull
	strongBull.VolumeExhaustion = true
	strongBull.BullishDiv = true
	if got := Classify(strongBull); got != StrongBullish {
		t.Fatalf("strong bullish classified %v", got)
	}
}

func TestClassifyTotality(t *testing.T) {
	// Exhaustive over the flags the cascade reads. Every combination must
	// map to exactly one defined level, and strong levels must imply their
	// inflection.
	for mask := 0; mask < 1<<8; mask++ {
		f := Flags{
			OscHigh:          mask&1 != 0,
			OscLow:           mask&2 != 0,
			StochHigh:        mask&4 != 0,
			StochLow:         mask&8 != 0,
			UpperBand:        mask&16 != 0,
			LowerBand:        mask&32 != 0,
			VolumeSpike:      mask&64 != 0,
			VolumeExhaustion: mask&128 != 0,
			BearishDiv:       mask&128 != 0,
			BullishDiv:       mask&64 != 0,
		}
		level := Classify(f)
		switch level {
		case StrongBearish, Bearish, Neutral, Bullish, StrongBullish:
		default:
			t.Fatalf("mask %d: undefined level %v", mask, level)
		}
		if level == StrongBearish && !bearishInflection(f) {
			t.Fatalf("mask %d: strong bearish without bearish inflection", mask)
		}
		if level == StrongBullish && !bullishInflection(f) {
			t.Fatalf("mask %d: strong bullish without bullish inflection", mask)
		}
	}
}

func TestScoreComponents(t *testing.T) {
	f := Flags{VolumeSpike: true, BullishBar: true, BullishDiv: true, LowerBand: true}
	s := Score(20, 10, f)
	if s.RSI != 15 {
		t.Fatalf("rsi score = %v, want 15", s.RSI)
	}
	if s.Stoch != 12 {
		t.Fatalf("stoch score = %v, want 12", s.Stoch)
	}
	if s.Volume != 10 || s.Divergence != 25 || s.Band != 25 {
		t.Fatalf("component scores: %+v", s)
	}
	if s.Composite != 87 {
		t.Fatalf("composite = %v, want 87", s.Composite)
	}
}

func TestScoreVolumeDirection(t *testing.T) {
	bear := Score(50, 50, Flags{VolumeSpike: true, BearishBar: true})
	if bear.Volume != -10 {
		t.Fatalf("bearish spike volume score = %v, want -10", bear.Volume)
	}
	// A doji with a spike contributes nothing.
	doji := Score(50, 50, Flags{VolumeSpike: true})
	if doji.Volume != 0 {
		t.Fatalf("doji spike volume score = %v, want 0", doji.Volume)
	}
	noSpike := Score(50, 50, Flags{BullishBar: true})
	if noSpike.Volume != 0 {
		t.Fatalf("no-spike volume score = %v, want 0", noSpike.Volume)
	}
}

func TestScoreClamp(t *testing.T) {
	// osc and stochK of 0 push the momentum half to +40; with every bullish
	// bonus the raw sum stays inside the clamp.
	f := Flags{VolumeSpike: true, BullishBar: true, BullishDiv: true, LowerBand: true}
	s := Score(0, 0, f)
	if s.Composite > 100 || s.Composite < -100 {
		t.Fatalf("composite %v escaped clamp", s.Composite)
	}
	if s.Composite != 100 {
		t.Fatalf("composite = %v, want exactly 100", s.Composite)
	}
}

func TestLevelScalarContract(t *testing.T) {
	cases := map[Level]int{
		StrongBearish: -2,
		Bearish:       -1,
		Neutral:       0,
		Bullish:       1,
		StrongBullish: 2,
	}
	for level, want := range cases {
		if level.Scalar() != want {
			t.Fatalf("%v scalar = %d, want %d", level, level.Scalar(), want)
		}
	}
}

func TestScoreNearZeroWhenQuiet(t *testing.T) {
	s := Score(52, 48, Flags{})
	if math.Abs(s.Composite) > 2 {
		t.Fatalf("quiet composite = %v, want near 0", s.Composite)
	}
}
