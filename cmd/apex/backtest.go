package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"apex/internal/analysis/indicator"
	"apex/internal/backtest"
	"apex/internal/logger"
	"apex/internal/market"
)

var (
	btATRPeriod   int
	btATRStopMult float64
	btTargetRR    float64
	btMinLevel    int
	btSweep       bool
	btWorkers     int
)

var backtestCmd = &cobra.Command{
	Use:   "backtest <csv file>",
	Short: "replay a CSV history, simulate trades, and print metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runBacktest,
}

func init() {
	backtestCmd.Flags().IntVar(&btATRPeriod, "atr-period", 14, "ATR period for stop placement")
	backtestCmd.Flags().Float64Var(&btATRStopMult, "atr-stop", 1.5, "stop distance in ATR multiples")
	backtestCmd.Flags().Float64Var(&btTargetRR, "rr", 2.0, "target as a multiple of the stop distance")
	backtestCmd.Flags().IntVar(&btMinLevel, "min-level", 1, "minimum |level| that opens a trade")
	backtestCmd.Flags().BoolVar(&btSweep, "sweep", false, "also sweep oscillator/band parameter candidates")
	backtestCmd.Flags().IntVar(&btWorkers, "workers", 4, "parallel sweep workers")
	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	bars, err := market.LoadCSV(args[0])
	if err != nil {
		return err
	}
	sim := backtest.SimConfig{
		ATRPeriod:   btATRPeriod,
		ATRStopMult: btATRStopMult,
		TargetRR:    btTargetRR,
		MinLevel:    btMinLevel,
	}
	settings := appCfg.ToSettings()

	outcome, err := backtest.Simulate(settings, sim, bars)
	if err != nil {
		return err
	}
	printMetrics(outcome.Metrics, len(bars))

	if !btSweep {
		return nil
	}
	candidates := sweepCandidates(settings)
	logger.Infof("sweeping %d candidates over %d bars", len(candidates), len(bars))
	ranked, err := backtest.NewSweeper(btWorkers).Run(cmd.Context(), bars, sim, candidates)
	if err != nil {
		return err
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Candidate", "Trades", "WinRate", "PF", "PnL", "MaxDD", "Objective"})
	for _, r := range ranked {
		t.AppendRow(table.Row{
			r.Candidate.Name,
			r.Metrics.TotalTrades,
			fmt.Sprintf("%.1f%%", r.Metrics.WinRate),
			fmt.Sprintf("%.2f", r.Metrics.ProfitFactor),
			fmt.Sprintf("%+.2f", r.Metrics.TotalPnL),
			fmt.Sprintf("%.2f", r.Metrics.MaxDrawdown),
			fmt.Sprintf("%.3f", r.Objective),
		})
	}
	t.Render()
	return nil
}

func printMetrics(m backtest.Metrics, bars int) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"bars", bars},
		{"trades", m.TotalTrades},
		{"winners", m.Winners},
		{"losers", m.Losers},
		{"win rate", fmt.Sprintf("%.1f%%", m.WinRate)},
		{"profit factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"total pnl", fmt.Sprintf("%+.2f", m.TotalPnL)},
		{"avg winner", fmt.Sprintf("%.2f", m.AvgWinner)},
		{"avg loser", fmt.Sprintf("%.2f", m.AvgLoser)},
		{"max drawdown", fmt.Sprintf("%.2f", m.MaxDrawdown)},
		{"avg R", fmt.Sprintf("%.2f", m.AvgR)},
	})
	t.Render()
}

// sweepCandidates spans the oscillator and band parameters around the
// configured baseline; callers needing other grids supply their own list
// over the API.
func sweepCandidates(base indicator.Settings) []backtest.Candidate {
	var out []backtest.Candidate
	for _, oscPeriod := range []int{10, 14, 21} {
		for _, bandMult := range []float64{1.5, 2.0, 2.5} {
			s := base
			s.Oscillator.Period = oscPeriod
			s.Band.UpperMult = bandMult
			s.Band.LowerMult = bandMult
			out = append(out, backtest.Candidate{
				Name:     fmt.Sprintf("osc%d-band%.1f", oscPeriod, bandMult),
				Settings: s,
			})
		}
	}
	return out
}
