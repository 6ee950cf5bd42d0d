package indicator

import (
	"fmt"

	"apex/internal/market"
)

// Snapshot is the bank's per-bar output. Values at bar n depend only on bars
// up to and including n.
type Snapshot struct {
	Close   float64 `json:"close"`
	Bullish bool    `json:"bullish"`
	Bearish bool    `json:"bearish"`

	Oscillator float64 `json:"oscillator"`
	OscHigh    bool    `json:"osc_high"`
	OscLow     bool    `json:"osc_low"`

	StochK    float64 `json:"stoch_k"`
	StochD    float64 `json:"stoch_d"`
	StochHigh bool    `json:"stoch_high"`
	StochLow  bool    `json:"stoch_low"`

	BandMid     float64 `json:"band_mid"`
	BandUpper   float64 `json:"band_upper"`
	BandLower   float64 `json:"band_lower"`
	AtUpperBand bool    `json:"at_upper_band"`
	AtLowerBand bool    `json:"at_lower_band"`

	EMAFast   float64 `json:"ema_fast"`
	EMASlow   float64 `json:"ema_slow"`
	EMATrend  float64 `json:"ema_trend"`
	TrendUp   bool    `json:"trend_up"`
	TrendDown bool    `json:"trend_down"`

	VolumeAvg        float64 `json:"volume_avg"`
	RelVolume        float64 `json:"rel_volume"`
	VolumeSpike      bool    `json:"volume_spike"`
	VolumeExhaustion bool    `json:"volume_exhaustion"`
}

// Bank owns the rolling state for every indicator of one bar stream. Not
// safe for concurrent use; each stream gets its own instance.
type Bank struct {
	cfg      Settings
	osc      *oscillator
	stoch    *stochastic
	band     *volatilityBand
	emaFast  *ema
	emaSlow  *ema
	emaTrend *ema
	volumes  *rollingWindow
}

func NewBank(cfg Settings) (*Bank, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("indicator settings: %w", err)
	}
	return &Bank{
		cfg:      cfg,
		osc:      newOscillator(cfg.Oscillator.Period),
		stoch:    newStochastic(cfg.Stochastic.Period, cfg.Stochastic.Smoothing),
		band:     newVolatilityBand(cfg.Band.Period, cfg.Band.UpperMult, cfg.Band.LowerMult),
		emaFast:  newEMA(cfg.EMA.Fast),
		emaSlow:  newEMA(cfg.EMA.Slow),
		emaTrend: newEMA(cfg.EMA.Trend),
		volumes:  newRollingWindow(cfg.Volume.Period),
	}, nil
}

func (b *Bank) Settings() Settings { return b.cfg }

// Update ingests one bar, append-only, and returns the snapshot for it.
func (b *Bank) Update(bar market.Bar) Snapshot {
	snap := Snapshot{
		Close:   bar.Close,
		Bullish: bar.Bullish(),
		Bearish: bar.Bearish(),
	}

	snap.Oscillator = b.osc.Update(bar.Close)
	snap.OscHigh = snap.Oscillator >= b.cfg.Oscillator.Overbought
	snap.OscLow = snap.Oscillator <= b.cfg.Oscillator.Oversold

	snap.StochK, snap.StochD = b.stoch.Update(bar.High, bar.Low, bar.Close)
	// Both lines must agree before a stochastic extreme counts.
	snap.StochHigh = snap.StochK >= b.cfg.Stochastic.Overbought && snap.StochD >= b.cfg.Stochastic.Overbought
	snap.StochLow = snap.StochK <= b.cfg.Stochastic.Oversold && snap.StochD <= b.cfg.Stochastic.Oversold

	snap.BandMid, snap.BandUpper, snap.BandLower = b.band.Update(bar.Close)
	if snap.BandUpper > snap.BandLower {
		snap.AtUpperBand = bar.High >= snap.BandUpper
		snap.AtLowerBand = bar.Low <= snap.BandLower
	}
	// Zero-width band (upper == lower) fires neither flag.

	snap.EMAFast = b.emaFast.Update(bar.Close)
	snap.EMASlow = b.emaSlow.Update(bar.Close)
	snap.EMATrend = b.emaTrend.Update(bar.Close)
	snap.TrendUp = snap.EMAFast > snap.EMASlow && bar.Close > snap.EMATrend
	snap.TrendDown = snap.EMAFast < snap.EMASlow && bar.Close < snap.EMATrend

	b.volumes.Push(bar.Volume)
	snap.VolumeAvg = b.volumes.Mean()
	if snap.VolumeAvg > 0 {
		snap.RelVolume = bar.Volume / snap.VolumeAvg
	}
	snap.VolumeSpike = snap.RelVolume > b.cfg.Volume.SpikeMult
	snap.VolumeExhaustion = snap.RelVolume > b.cfg.Volume.ExhaustionMult

	return snap
}
