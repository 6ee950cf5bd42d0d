package binance

import "time"

// Config carries the parameters a binance Source runs with.
type Config struct {
	APIKey         string
	APISecret      string
	UseTestnet     bool
	HTTPTimeout    time.Duration
	ReconnectDelay time.Duration
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	if out.ReconnectDelay <= 0 {
		out.ReconnectDelay = 3 * time.Second
	}
	return out
}
