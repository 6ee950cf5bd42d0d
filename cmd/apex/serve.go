package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"apex/internal/backtest"
	"apex/internal/engine"
	gateway "apex/internal/gateway/binance"
	"apex/internal/gateway/database"
	"apex/internal/logger"
	"apex/internal/market"
	"apex/internal/store"
	transport "apex/internal/transport/http"
)

var (
	serveHistory  int
	serveKeepBars int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "stream live bars, evaluate signals, and serve the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&serveHistory, "history", 300, "bars of history to warm each engine with")
	serveCmd.Flags().IntVar(&serveKeepBars, "keep", 500, "bars and results kept in memory per stream")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	symbols := appCfg.Symbols()
	intervals := appCfg.Intervals()
	if len(symbols) == 0 || len(intervals) == 0 {
		return fmt.Errorf("no instruments configured; add [[instruments]] entries to the config")
	}
	settings := appCfg.ToSettings()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signals, err := database.OpenSignalStore(appCfg.Database.Path)
	if err != nil {
		return err
	}
	defer signals.Close()

	source, err := gateway.New(appCfg.ToGatewayConfig())
	if err != nil {
		return err
	}
	defer source.Close()

	memory := store.NewMemoryStore()

	// The evaluation pipeline consumes the feed before anything is pushed
	// into it, so warming with history cannot stall.
	feed := make(chan market.BarEvent, 1024)
	events, err := engine.Run(ctx, settings, feed)
	if err != nil {
		return err
	}
	go func() {
		for ev := range events {
			if err := memory.Put(ctx, ev.Symbol, ev.Interval, []market.Bar{ev.Bar}, serveKeepBars); err != nil {
				logger.Warnf("store bar %s@%s: %v", ev.Symbol, ev.Interval, err)
			}
			if err := memory.PutResult(ctx, ev.Symbol, ev.Interval, ev.Result, serveKeepBars); err != nil {
				logger.Warnf("store result %s@%s: %v", ev.Symbol, ev.Interval, err)
			}
			flags, _ := json.Marshal(ev.Result.Flags)
			if err := signals.Insert(ctx, ev.Symbol, ev.Interval, ev.Result, string(flags)); err != nil {
				logger.Warnf("persist signal %s@%s: %v", ev.Symbol, ev.Interval, err)
			}
			if ev.Result.Level != 0 {
				logger.Infof("%s@%s %s score=%+.1f close=%.4f",
					ev.Symbol, ev.Interval, ev.Result.Level, ev.Result.Score, ev.Result.Close)
			}
		}
	}()

	// Warm every stream with history so the indicators are converged before
	// the first live bar, then hand the feed over to the live subscription.
	for _, sym := range symbols {
		for _, iv := range intervals {
			bars, err := source.FetchHistory(ctx, sym, iv, serveHistory)
			if err != nil {
				return fmt.Errorf("history %s@%s: %w", sym, iv, err)
			}
			for _, bar := range bars {
				select {
				case feed <- market.BarEvent{Symbol: sym, Interval: iv, Bar: bar}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			logger.Infof("warmed %s@%s with %d bars", sym, iv, len(bars))
		}
	}

	live, err := source.Subscribe(ctx, symbols, intervals, market.SubscribeOptions{
		Buffer:    1024,
		OnConnect: func() { logger.Infof("market stream connected") },
		OnDisconnect: func(err error) {
			logger.Warnf("market stream disconnected: %v", err)
		},
	})
	if err != nil {
		return err
	}
	go func() {
		defer close(feed)
		for ev := range live {
			select {
			case feed <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	router := transport.NewRouter(memory, signals, backtest.NewSweeper(4), settings)
	srv := &http.Server{Addr: appCfg.Server.Listen, Handler: router.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Infof("serving %d instruments on %s", len(symbols)*len(intervals), appCfg.Server.Listen)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	logger.Infof("server stopped")
	return nil
}
