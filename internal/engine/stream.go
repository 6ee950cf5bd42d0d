package engine

import (
	"context"

	"apex/internal/analysis/indicator"
	"apex/internal/decision"
	"apex/internal/logger"
	"apex/internal/market"
)

// Event is one evaluated bar from a live stream.
type Event struct {
	Symbol   string          `json:"symbol"`
	Interval string          `json:"interval"`
	Bar      market.Bar      `json:"bar"`
	Result   decision.Result `json:"result"`
}

// Run fans bar events into per-stream engines and emits one Event per bar.
// A fresh engine is created lazily for every symbol/interval pair seen, all
// from the same settings. The output channel closes when the input closes or
// the context is done. Out-of-order bars within a stream are dropped with a
// warning rather than fed to the engine.
func Run(ctx context.Context, cfg indicator.Settings, events <-chan market.BarEvent) (<-chan Event, error) {
	// Validate once up front so a bad config fails before the first bar.
	if _, err := New(cfg); err != nil {
		return nil, err
	}
	out := make(chan Event, 64)
	go func() {
		defer close(out)
		engines := make(map[string]*Engine)
		lastTime := make(map[string]int64)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := ev.Bar.Validate(); err != nil {
					logger.Warnf("stream %s@%s: dropping bar: %v", ev.Symbol, ev.Interval, err)
					continue
				}
				key := ev.Symbol + "@" + ev.Interval
				if ev.Bar.OpenTime <= lastTime[key] {
					logger.Warnf("stream %s: dropping out-of-order bar at %d", key, ev.Bar.OpenTime)
					continue
				}
				eng := engines[key]
				if eng == nil {
					var err error
					eng, err = New(cfg)
					if err != nil {
						logger.Errorf("stream %s: engine init: %v", key, err)
						return
					}
					engines[key] = eng
					logger.Debugf("stream %s: engine started", key)
				}
				lastTime[key] = ev.Bar.OpenTime
				res := eng.Update(ev.Bar)
				select {
				case out <- Event{Symbol: ev.Symbol, Interval: ev.Interval, Bar: ev.Bar, Result: res}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
