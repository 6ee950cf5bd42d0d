package indicator

import "fmt"

// Settings configures one indicator bank instance. Zero-valued numeric fields
// take the documented defaults; use DefaultSettings for a fully populated set.
type Settings struct {
	Oscillator OscillatorSettings `json:"oscillator"`
	Stochastic StochasticSettings `json:"stochastic"`
	Volume     VolumeSettings     `json:"volume"`
	Band       BandSettings       `json:"band"`
	EMA        EMASettings        `json:"ema"`
	Divergence DivergenceSettings `json:"divergence"`
}

// OscillatorSettings drives the RSI-style smoothed gain/loss oscillator.
type OscillatorSettings struct {
	Period     int     `json:"period,omitempty"`     // default 14
	Overbought float64 `json:"overbought,omitempty"` // default 70
	Oversold   float64 `json:"oversold,omitempty"`   // default 30
}

type StochasticSettings struct {
	Period     int     `json:"period,omitempty"`     // default 14
	Smoothing  int     `json:"smoothing,omitempty"`  // %D window, default 3
	Overbought float64 `json:"overbought,omitempty"` // default 80
	Oversold   float64 `json:"oversold,omitempty"`   // default 20
}

type VolumeSettings struct {
	Period         int     `json:"period,omitempty"`          // default 20
	SpikeMult      float64 `json:"spike_mult,omitempty"`      // default 2.0
	ExhaustionMult float64 `json:"exhaustion_mult,omitempty"` // default 3.0
}

type BandSettings struct {
	Period    int     `json:"period,omitempty"`     // default 20
	UpperMult float64 `json:"upper_mult,omitempty"` // default 2.0
	LowerMult float64 `json:"lower_mult,omitempty"` // default 2.0
}

type EMASettings struct {
	Fast  int `json:"fast,omitempty"`  // default 9
	Slow  int `json:"slow,omitempty"`  // default 21
	Trend int `json:"trend,omitempty"` // default 50
}

type DivergenceSettings struct {
	// Lookback is the swing confirmation window; the lagged comparison
	// reference sits Lookback/2 confirmed swings back.
	Lookback int  `json:"lookback,omitempty"` // default 10
	Enabled  bool `json:"enabled"`
}

// DefaultSettings returns the full default configuration, divergence enabled.
func DefaultSettings() Settings {
	s := Settings{}.withDefaults()
	s.Divergence.Enabled = true
	return s
}

func (s Settings) withDefaults() Settings {
	if s.Oscillator.Period <= 0 {
		s.Oscillator.Period = 14
	}
	if s.Oscillator.Overbought == 0 {
		s.Oscillator.Overbought = 70
	}
	if s.Oscillator.Oversold == 0 {
		s.Oscillator.Oversold = 30
	}
	if s.Stochastic.Period <= 0 {
		s.Stochastic.Period = 14
	}
	if s.Stochastic.Smoothing <= 0 {
		s.Stochastic.Smoothing = 3
	}
	if s.Stochastic.Overbought == 0 {
		s.Stochastic.Overbought = 80
	}
	if s.Stochastic.Oversold == 0 {
		s.Stochastic.Oversold = 20
	}
	if s.Volume.Period <= 0 {
		s.Volume.Period = 20
	}
	if s.Volume.SpikeMult == 0 {
		s.Volume.SpikeMult = 2.0
	}
	if s.Volume.ExhaustionMult == 0 {
		s.Volume.ExhaustionMult = 3.0
	}
	if s.Band.Period <= 0 {
		s.Band.Period = 20
	}
	if s.Band.UpperMult == 0 {
		s.Band.UpperMult = 2.0
	}
	if s.Band.LowerMult == 0 {
		s.Band.LowerMult = 2.0
	}
	if s.EMA.Fast <= 0 {
		s.EMA.Fast = 9
	}
	if s.EMA.Slow <= 0 {
		s.EMA.Slow = 21
	}
	if s.EMA.Trend <= 0 {
		s.EMA.Trend = 50
	}
	if s.Divergence.Lookback <= 0 {
		s.Divergence.Lookback = 10
	}
	return s
}

// Validate rejects configurations the bank cannot run with. Called at
// construction time, before any bar is processed.
func (s Settings) Validate() error {
	if s.Oscillator.Period < 1 {
		return fmt.Errorf("oscillator period must be positive, got %d", s.Oscillator.Period)
	}
	if s.Oscillator.Oversold >= s.Oscillator.Overbought {
		return fmt.Errorf("oscillator oversold %.1f must be below overbought %.1f",
			s.Oscillator.Oversold, s.Oscillator.Overbought)
	}
	if s.Stochastic.Period < 1 || s.Stochastic.Smoothing < 1 {
		return fmt.Errorf("stochastic period/smoothing must be positive, got %d/%d",
			s.Stochastic.Period, s.Stochastic.Smoothing)
	}
	if s.Stochastic.Oversold >= s.Stochastic.Overbought {
		return fmt.Errorf("stochastic oversold %.1f must be below overbought %.1f",
			s.Stochastic.Oversold, s.Stochastic.Overbought)
	}
	if s.Volume.Period < 1 {
		return fmt.Errorf("volume period must be positive, got %d", s.Volume.Period)
	}
	if s.Volume.SpikeMult <= 0 || s.Volume.ExhaustionMult <= s.Volume.SpikeMult {
		return fmt.Errorf("volume exhaustion mult %.2f must exceed spike mult %.2f",
			s.Volume.ExhaustionMult, s.Volume.SpikeMult)
	}
	if s.Band.Period < 2 {
		return fmt.Errorf("band period must be at least 2, got %d", s.Band.Period)
	}
	if s.Band.UpperMult <= 0 || s.Band.LowerMult <= 0 {
		return fmt.Errorf("band multipliers must be positive, got %.2f/%.2f",
			s.Band.UpperMult, s.Band.LowerMult)
	}
	if s.EMA.Fast < 1 || s.EMA.Slow < 1 || s.EMA.Trend < 1 {
		return fmt.Errorf("ema periods must be positive, got %d/%d/%d",
			s.EMA.Fast, s.EMA.Slow, s.EMA.Trend)
	}
	if s.Divergence.Lookback < 2 {
		return fmt.Errorf("divergence lookback must be at least 2, got %d", s.Divergence.Lookback)
	}
	return nil
}
