package market

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV bar. Times are unix milliseconds; CloseTime may be
// zero when the source only carries one timestamp per row.
type Bar struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time,omitempty"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Timestamp returns the bar's canonical timestamp (close time when present).
func (b Bar) Timestamp() int64 {
	if b.CloseTime > 0 {
		return b.CloseTime
	}
	return b.OpenTime
}

// Time returns the canonical timestamp as UTC time.
func (b Bar) Time() time.Time {
	return time.UnixMilli(b.Timestamp()).UTC()
}

// Bullish reports whether the bar closed above its open.
func (b Bar) Bullish() bool { return b.Close > b.Open }

// Bearish reports whether the bar closed below its open.
func (b Bar) Bearish() bool { return b.Close < b.Open }

// Validate rejects malformed single bars: non-positive timestamps, negative
// prices or volume, or a high below the low.
func (b Bar) Validate() error {
	if b.OpenTime <= 0 {
		return fmt.Errorf("bar has no timestamp")
	}
	if b.Open < 0 || b.High < 0 || b.Low < 0 || b.Close < 0 {
		return fmt.Errorf("bar at %d has negative price", b.OpenTime)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar at %d has negative volume", b.OpenTime)
	}
	if b.High < b.Low {
		return fmt.Errorf("bar at %d has high %.8f below low %.8f", b.OpenTime, b.High, b.Low)
	}
	return nil
}

// ValidateSeries checks a full ingested sequence: every bar well-formed and
// timestamps strictly increasing (duplicates are a contract violation).
func ValidateSeries(bars []Bar) error {
	var prev int64
	for i, b := range bars {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("bar %d: %w", i, err)
		}
		if b.OpenTime <= prev {
			return fmt.Errorf("bar %d: timestamp %d not after %d", i, b.OpenTime, prev)
		}
		prev = b.OpenTime
	}
	return nil
}

// Gap is a missing stretch of bars inside an otherwise regular series.
type Gap struct {
	From  int64 `json:"from"`
	To    int64 `json:"to"`
	Count int64 `json:"count"`
}

// FindGaps walks a validated series and reports holes assuming a fixed bar
// step. Series with irregular spacing (session-based data) should skip this.
func FindGaps(bars []Bar, step time.Duration) []Gap {
	stepMs := step.Milliseconds()
	if stepMs <= 0 || len(bars) < 2 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(bars); i++ {
		delta := bars[i].OpenTime - bars[i-1].OpenTime
		if delta <= stepMs {
			continue
		}
		missing := delta/stepMs - 1
		if missing <= 0 {
			continue
		}
		gaps = append(gaps, Gap{
			From:  bars[i-1].OpenTime + stepMs,
			To:    bars[i].OpenTime - stepMs,
			Count: missing,
		})
	}
	return gaps
}
