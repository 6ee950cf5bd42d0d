package decision

import "apex/internal/analysis/indicator"

// Level is the discrete per-bar classification. The scalar values are the
// scanner contract: strong bearish −2 through strong bullish +2.
type Level int

const (
	StrongBearish Level = -2
	Bearish       Level = -1
	Neutral       Level = 0
	Bullish       Level = 1
	StrongBullish Level = 2
)

func (l Level) String() string {
	switch l {
	case StrongBearish:
		return "strong_bearish"
	case Bearish:
		return "bearish"
	case Bullish:
		return "bullish"
	case StrongBullish:
		return "strong_bullish"
	default:
		return "neutral"
	}
}

// Scalar returns the numeric encoding consumed by scanner-style clients.
func (l Level) Scalar() int { return int(l) }

// Flags are the named booleans a classification is derived from, one set
// per bar.
type Flags struct {
	OscHigh          bool `json:"osc_high"`
	OscLow           bool `json:"osc_low"`
	StochHigh        bool `json:"stoch_high"`
	StochLow         bool `json:"stoch_low"`
	UpperBand        bool `json:"upper_band"`
	LowerBand        bool `json:"lower_band"`
	TrendUp          bool `json:"trend_up"`
	TrendDown        bool `json:"trend_down"`
	VolumeSpike      bool `json:"volume_spike"`
	VolumeExhaustion bool `json:"volume_exhaustion"`
	BearishDiv       bool `json:"bearish_div"`
	BullishDiv       bool `json:"bullish_div"`
	BullishBar       bool `json:"bullish_bar"`
	BearishBar       bool `json:"bearish_bar"`
}

// FlagsFromSnapshot lifts an indicator snapshot plus divergence flags into
// the classifier's input.
func FlagsFromSnapshot(snap indicator.Snapshot, bearishDiv, bullishDiv bool) Flags {
	return Flags{
		OscHigh:          snap.OscHigh,
		OscLow:           snap.OscLow,
		StochHigh:        snap.StochHigh,
		StochLow:         snap.StochLow,
		UpperBand:        snap.AtUpperBand,
		LowerBand:        snap.AtLowerBand,
		TrendUp:          snap.TrendUp,
		TrendDown:        snap.TrendDown,
		VolumeSpike:      snap.VolumeSpike,
		VolumeExhaustion: snap.VolumeExhaustion,
		BearishDiv:       bearishDiv,
		BullishDiv:       bullishDiv,
		BullishBar:       snap.Bullish,
		BearishBar:       snap.Bearish,
	}
}

// Scores are the component contributions behind a composite score.
type Scores struct {
	RSI        float64 `json:"rsi"`
	Stoch      float64 `json:"stoch"`
	Volume     float64 `json:"volume"`
	Divergence float64 `json:"divergence"`
	Band       float64 `json:"band"`
	Composite  float64 `json:"composite"`
}

// Result is the immutable per-bar output record.
type Result struct {
	BarIndex int     `json:"bar_index"`
	Time     int64   `json:"time"`
	Close    float64 `json:"close"`
	Score    float64 `json:"score"`
	Level    Level   `json:"level"`
	Flags    Flags   `json:"flags"`
	Scores   Scores  `json:"scores"`
}

// Score computes the component and composite scores. The composite is
// clamped to [−100, 100]; the default weighting stays inside that range on
// its own, the clamp guards custom weightings.
func Score(osc, stochK float64, f Flags) Scores {
	s := Scores{
		RSI:   (50 - osc) / 2,
		Stoch: (50 - stochK) * 0.3,
	}
	switch {
	case f.VolumeSpike && f.BullishBar:
		s.Volume = 10
	case f.VolumeSpike && f.BearishBar:
		s.Volume = -10
	}
	switch {
	case f.BearishDiv:
		s.Divergence = -25
	case f.BullishDiv:
		s.Divergence = 25
	}
	if f.UpperBand {
		s.Band -= 25
	}
	if f.LowerBand {
		s.Band += 25
	}
	s.Composite = clamp(s.RSI+s.Stoch+s.Volume+s.Divergence+s.Band, -100, 100)
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Named predicates of the classification cascade. Strong variants are strict
// refinements of their inflection, which keeps the cascade total: every flag
// set maps to exactly one level.
func bearishInflection(f Flags) bool {
	return (f.OscHigh || f.StochHigh) && f.VolumeSpike && f.UpperBand
}

func strongBearish(f Flags) bool {
	return bearishInflection(f) && f.VolumeExhaustion && f.BearishDiv
}

func bullishInflection(f Flags) bool {
	return (f.OscLow || f.StochLow) && f.VolumeSpike && f.LowerBand
}

func strongBullish(f Flags) bool {
	return bullishInflection(f) && f.VolumeExhaustion && f.BullishDiv
}

// rules is the precedence order: first match wins, strong variants checked
// before their weaker inflection.
var rules = []struct {
	level Level
	match func(Flags) bool
}{
	{StrongBearish, strongBearish},
	{Bearish, bearishInflection},
	{StrongBullish, strongBullish},
	{Bullish, bullishInflection},
}

// Classify maps a flag set to its level.
func Classify(f Flags) Level {
	for _, r := range rules {
		if r.match(f) {
			return r.level
		}
	}
	return Neutral
}

// Evaluate produces the full per-bar result from a snapshot and divergence
// flags. Pure: identical inputs yield identical results.
func Evaluate(barIndex int, ts int64, snap indicator.Snapshot, bearishDiv, bullishDiv bool) Result {
	flags := FlagsFromSnapshot(snap, bearishDiv, bullishDiv)
	scores := Score(snap.Oscillator, snap.StochK, flags)
	return Result{
		BarIndex: barIndex,
		Time:     ts,
		Close:    snap.Close,
		Score:    scores.Composite,
		Level:    Classify(flags),
		Flags:    flags,
		Scores:   scores,
	}
}
