package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"apex/internal/analysis/indicator"
	gateway "apex/internal/gateway/binance"
)

// AppConfig is the application-level TOML configuration.
type AppConfig struct {
	LogLevel    string         `toml:"log_level"`
	Server      ServerConfig   `toml:"server"`
	Binance     BinanceConfig  `toml:"binance"`
	Engine      EngineConfig   `toml:"engine"`
	Instruments []Instrument   `toml:"instruments"`
	Database    DatabaseConfig `toml:"database"`
}

type ServerConfig struct {
	Listen string `toml:"listen"` // default ":8080"
}

type BinanceConfig struct {
	APIKey            string `toml:"api_key"`
	APISecret         string `toml:"api_secret"`
	UseTestnet        bool   `toml:"use_testnet"`
	HTTPTimeoutSec    int    `toml:"http_timeout_sec"`    // default 15
	ReconnectDelaySec int    `toml:"reconnect_delay_sec"` // default 3
}

type DatabaseConfig struct {
	Path string `toml:"path"` // sqlite file, default "apex.db"
}

type Instrument struct {
	Symbol   string `toml:"symbol"`
	Interval string `toml:"interval"`
}

// EngineConfig mirrors indicator.Settings in TOML form. DivergenceEnabled is
// a pointer so an absent key means enabled.
type EngineConfig struct {
	OscillatorPeriod     int     `toml:"oscillator_period"`
	OscillatorOverbought float64 `toml:"oscillator_overbought"`
	OscillatorOversold   float64 `toml:"oscillator_oversold"`

	StochPeriod     int     `toml:"stoch_period"`
	StochSmoothing  int     `toml:"stoch_smoothing"`
	StochOverbought float64 `toml:"stoch_overbought"`
	StochOversold   float64 `toml:"stoch_oversold"`

	VolumePeriod         int     `toml:"volume_period"`
	VolumeSpikeMult      float64 `toml:"volume_spike_mult"`
	VolumeExhaustionMult float64 `toml:"volume_exhaustion_mult"`

	BandPeriod    int     `toml:"band_period"`
	BandUpperMult float64 `toml:"band_upper_mult"`
	BandLowerMult float64 `toml:"band_lower_mult"`

	EMAFast  int `toml:"ema_fast"`
	EMASlow  int `toml:"ema_slow"`
	EMATrend int `toml:"ema_trend"`

	DivergenceLookback int   `toml:"divergence_lookback"`
	DivergenceEnabled  *bool `toml:"divergence_enabled"`
}

// Load reads and validates a TOML config file.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() AppConfig {
	return AppConfig{}.withDefaults()
}

func (c AppConfig) withDefaults() AppConfig {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Binance.HTTPTimeoutSec <= 0 {
		c.Binance.HTTPTimeoutSec = 15
	}
	if c.Binance.ReconnectDelaySec <= 0 {
		c.Binance.ReconnectDelaySec = 3
	}
	if c.Database.Path == "" {
		c.Database.Path = "apex.db"
	}
	return c
}

// Validate rejects configs the process cannot start with. Engine settings
// are validated through indicator.Settings so construction and config agree.
func (c AppConfig) Validate() error {
	if err := c.ToSettings().Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	for i, inst := range c.Instruments {
		if strings.TrimSpace(inst.Symbol) == "" || strings.TrimSpace(inst.Interval) == "" {
			return fmt.Errorf("instrument %d: symbol and interval required", i)
		}
	}
	return nil
}

// ToSettings lifts the engine section into indicator settings with defaults
// applied for any absent key.
func (c AppConfig) ToSettings() indicator.Settings {
	e := c.Engine
	s := indicator.Settings{
		Oscillator: indicator.OscillatorSettings{
			Period:     e.OscillatorPeriod,
			Overbought: e.OscillatorOverbought,
			Oversold:   e.OscillatorOversold,
		},
		Stochastic: indicator.StochasticSettings{
			Period:     e.StochPeriod,
			Smoothing:  e.StochSmoothing,
			Overbought: e.StochOverbought,
			Oversold:   e.StochOversold,
		},
		Volume: indicator.VolumeSettings{
			Period:         e.VolumePeriod,
			SpikeMult:      e.VolumeSpikeMult,
			ExhaustionMult: e.VolumeExhaustionMult,
		},
		Band: indicator.BandSettings{
			Period:    e.BandPeriod,
			UpperMult: e.BandUpperMult,
			LowerMult: e.BandLowerMult,
		},
		EMA: indicator.EMASettings{
			Fast:  e.EMAFast,
			Slow:  e.EMASlow,
			Trend: e.EMATrend,
		},
		Divergence: indicator.DivergenceSettings{
			Lookback: e.DivergenceLookback,
			Enabled:  e.DivergenceEnabled == nil || *e.DivergenceEnabled,
		},
	}
	full := indicator.DefaultSettings()
	merged := mergeSettings(full, s)
	return merged
}

// mergeSettings overlays non-zero values from override onto base.
func mergeSettings(base, override indicator.Settings) indicator.Settings {
	out := base
	if override.Oscillator.Period > 0 {
		out.Oscillator.Period = override.Oscillator.Period
	}
	if override.Oscillator.Overbought != 0 {
		out.Oscillator.Overbought = override.Oscillator.Overbought
	}
	if override.Oscillator.Oversold != 0 {
		out.Oscillator.Oversold = override.Oscillator.Oversold
	}
	if override.Stochastic.Period > 0 {
		out.Stochastic.Period = override.Stochastic.Period
	}
	if override.Stochastic.Smoothing > 0 {
		out.Stochastic.Smoothing = override.Stochastic.Smoothing
	}
	if override.Stochastic.Overbought != 0 {
		out.Stochastic.Overbought = override.Stochastic.Overbought
	}
	if override.Stochastic.Oversold != 0 {
		out.Stochastic.Oversold = override.Stochastic.Oversold
	}
	if override.Volume.Period > 0 {
		out.Volume.Period = override.Volume.Period
	}
	if override.Volume.SpikeMult != 0 {
		out.Volume.SpikeMult = override.Volume.SpikeMult
	}
	if override.Volume.ExhaustionMult != 0 {
		out.Volume.ExhaustionMult = override.Volume.ExhaustionMult
	}
	if override.Band.Period > 0 {
		out.Band.Period = override.Band.Period
	}
	if override.Band.UpperMult != 0 {
		out.Band.UpperMult = override.Band.UpperMult
	}
	if override.Band.LowerMult != 0 {
		out.Band.LowerMult = override.Band.LowerMult
	}
	if override.EMA.Fast > 0 {
		out.EMA.Fast = override.EMA.Fast
	}
	if override.EMA.Slow > 0 {
		out.EMA.Slow = override.EMA.Slow
	}
	if override.EMA.Trend > 0 {
		out.EMA.Trend = override.EMA.Trend
	}
	if override.Divergence.Lookback > 0 {
		out.Divergence.Lookback = override.Divergence.Lookback
	}
	out.Divergence.Enabled = override.Divergence.Enabled
	return out
}

// ToGatewayConfig lifts the binance section into the gateway config.
func (c AppConfig) ToGatewayConfig() gateway.Config {
	return gateway.Config{
		APIKey:         c.Binance.APIKey,
		APISecret:      c.Binance.APISecret,
		UseTestnet:     c.Binance.UseTestnet,
		HTTPTimeout:    time.Duration(c.Binance.HTTPTimeoutSec) * time.Second,
		ReconnectDelay: time.Duration(c.Binance.ReconnectDelaySec) * time.Second,
	}
}

// Symbols and Intervals return the deduplicated instrument lists.
func (c AppConfig) Symbols() []string {
	seen := map[string]bool{}
	var out []string
	for _, inst := range c.Instruments {
		sym := strings.ToUpper(strings.TrimSpace(inst.Symbol))
		if sym != "" && !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}
	return out
}

func (c AppConfig) Intervals() []string {
	seen := map[string]bool{}
	var out []string
	for _, inst := range c.Instruments {
		iv := strings.ToLower(strings.TrimSpace(inst.Interval))
		if iv != "" && !seen[iv] {
			seen[iv] = true
			out = append(out, iv)
		}
	}
	return out
}
