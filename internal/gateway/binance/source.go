package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	gobinance "github.com/adshao/go-binance/v2"

	"apex/internal/logger"
	"apex/internal/market"
)

const maxHistoryLimit = 1000

// Source implements market.Source over the binance spot API: REST for
// history, combined kline websocket streams for live bars. Only closed
// (final) klines are forwarded.
type Source struct {
	cfg    Config
	client *gobinance.Client

	mu     sync.Mutex
	cancel context.CancelFunc
	stats  market.SourceStats
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	gobinance.UseTestnet = final.UseTestnet
	client := gobinance.NewClient(final.APIKey, final.APISecret)
	client.HTTPClient.Timeout = final.HTTPTimeout
	return &Source{cfg: final, client: client}, nil
}

func (s *Source) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Bar, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	logger.Debugf("[binance] klines %s %s limit=%d", symbol, interval, limit)
	klines, err := s.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
	}
	out := make([]market.Bar, 0, len(klines))
	for _, k := range klines {
		out = append(out, market.Bar{
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
		})
	}
	return out, nil
}

// Subscribe opens one combined kline stream per interval across all symbols
// and reconnects with a fixed delay until the context ends.
func (s *Source) Subscribe(ctx context.Context, symbols, intervals []string, opts market.SubscribeOptions) (<-chan market.BarEvent, error) {
	if len(symbols) == 0 || len(intervals) == 0 {
		return nil, fmt.Errorf("symbols and intervals are required for subscription")
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 512
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.mu.Unlock()

	out := make(chan market.BarEvent, buffer)
	var wg sync.WaitGroup
	for _, iv := range normalizeIntervals(intervals) {
		pairs := make(map[string]string, len(symbols))
		for _, sym := range symbols {
			upper := strings.ToUpper(strings.TrimSpace(sym))
			if upper != "" {
				pairs[upper] = iv
			}
		}
		if len(pairs) == 0 {
			continue
		}
		wg.Add(1)
		go func(interval string, pairs map[string]string) {
			defer wg.Done()
			s.serveStream(subCtx, interval, pairs, out, opts)
		}(iv, pairs)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

func (s *Source) serveStream(ctx context.Context, interval string, pairs map[string]string, out chan<- market.BarEvent, opts market.SubscribeOptions) {
	for {
		handler := func(ev *gobinance.WsKlineEvent) {
			if ev == nil || !ev.Kline.IsFinal {
				return
			}
			bar := market.Bar{
				OpenTime:  ev.Kline.StartTime,
				CloseTime: ev.Kline.EndTime,
				Open:      parseFloat(ev.Kline.Open),
				High:      parseFloat(ev.Kline.High),
				Low:       parseFloat(ev.Kline.Low),
				Close:     parseFloat(ev.Kline.Close),
				Volume:    parseFloat(ev.Kline.Volume),
			}
			event := market.BarEvent{Symbol: ev.Symbol, Interval: ev.Kline.Interval, Bar: bar}
			select {
			case out <- event:
			default:
				logger.Warnf("[binance] event channel full, dropping %s %s", ev.Symbol, ev.Kline.Interval)
			}
		}
		errHandler := func(err error) {
			s.mu.Lock()
			s.stats.SubscribeErrors++
			s.stats.LastError = err.Error()
			s.mu.Unlock()
			logger.Warnf("[binance] ws %s: %v", interval, err)
			if opts.OnDisconnect != nil {
				opts.OnDisconnect(err)
			}
		}

		doneC, stopC, err := gobinance.WsCombinedKlineServe(pairs, handler, errHandler)
		if err != nil {
			errHandler(err)
		} else {
			if opts.OnConnect != nil {
				opts.OnConnect()
			}
			select {
			case <-ctx.Done():
				close(stopC)
				<-doneC
				return
			case <-doneC:
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ReconnectDelay):
		}
		s.mu.Lock()
		s.stats.Reconnects++
		s.mu.Unlock()
		logger.Infof("[binance] reconnecting %s kline stream", interval)
	}
}

func (s *Source) Stats() market.SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}

func normalizeIntervals(intervals []string) []string {
	out := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		trimmed := strings.ToLower(strings.TrimSpace(iv))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
