package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"apex/internal/decision"
	"apex/internal/engine"
	"apex/internal/gateway/database"
	"apex/internal/logger"
	"apex/internal/market"
)

var (
	scanInterval string
	scanDBPath   string
	scanMinLevel int
	scanWorkers  int
)

var scanCmd = &cobra.Command{
	Use:   "scan [csv files...]",
	Short: "replay CSV bar files and tabulate the latest signal per instrument",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanInterval, "interval", "1h", "interval label for the scanned files")
	scanCmd.Flags().StringVar(&scanDBPath, "db", "", "optionally persist results to this sqlite signal log")
	scanCmd.Flags().IntVar(&scanMinLevel, "min-level", 0, "only print instruments at or above this |level|")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 8, "parallel scan workers")
	rootCmd.AddCommand(scanCmd)
}

type scanRow struct {
	symbol string
	bars   int
	result decision.Result
}

func runScan(cmd *cobra.Command, args []string) error {
	settings := appCfg.ToSettings()

	var signals *database.SignalStore
	if scanDBPath != "" {
		var err error
		signals, err = database.OpenSignalStore(scanDBPath)
		if err != nil {
			return err
		}
		defer signals.Close()
	}

	ctx := cmd.Context()
	var mu sync.Mutex
	rows := make([]scanRow, 0, len(args))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(scanWorkers)
	for _, path := range args {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			symbol := symbolFromPath(path)
			bars, err := market.LoadCSV(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results, err := engine.Replay(settings, bars)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			last := results[len(results)-1]
			if signals != nil {
				if err := signals.Insert(ctx, symbol, scanInterval, last, ""); err != nil {
					logger.Warnf("scan %s: persist failed: %v", symbol, err)
				}
			}
			mu.Lock()
			rows = append(rows, scanRow{symbol: symbol, bars: len(bars), result: last})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Symbol", "Bars", "Time", "Close", "Score", "Level", "Flags"})
	printed := 0
	for _, row := range rows {
		level := row.result.Level
		if abs(level.Scalar()) < scanMinLevel {
			continue
		}
		t.AppendRow(table.Row{
			row.symbol,
			row.bars,
			time.UnixMilli(row.result.Time).UTC().Format("2006-01-02 15:04"),
			fmt.Sprintf("%.4f", row.result.Close),
			fmt.Sprintf("%+.1f", row.result.Score),
			level.String(),
			flagSummary(row.result.Flags),
		})
		printed++
	}
	t.SortBy([]table.SortBy{{Name: "Score", Mode: table.AscNumeric}})
	t.Render()
	logger.Infof("scanned %d instruments, %d printed", len(rows), printed)
	return nil
}

func symbolFromPath(path string) string {
	base := filepath.Base(path)
	return strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
}

func flagSummary(f decision.Flags) string {
	var parts []string
	add := func(on bool, name string) {
		if on {
			parts = append(parts, name)
		}
	}
	add(f.OscHigh, "osc+")
	add(f.OscLow, "osc-")
	add(f.StochHigh, "stoch+")
	add(f.StochLow, "stoch-")
	add(f.UpperBand, "band+")
	add(f.LowerBand, "band-")
	add(f.VolumeSpike, "vol")
	add(f.VolumeExhaustion, "vol!")
	add(f.BearishDiv, "div-")
	add(f.BullishDiv, "div+")
	return strings.Join(parts, " ")
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
