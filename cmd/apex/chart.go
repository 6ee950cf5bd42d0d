package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"apex/internal/chart"
	"apex/internal/engine"
	"apex/internal/logger"
	"apex/internal/market"
)

var (
	chartOut      string
	chartInterval string
)

var chartCmd = &cobra.Command{
	Use:   "chart <csv file>",
	Short: "replay a CSV history and render a kline/score chart to HTML",
	Args:  cobra.ExactArgs(1),
	RunE:  runChart,
}

func init() {
	chartCmd.Flags().StringVarP(&chartOut, "out", "o", "chart.html", "output HTML path")
	chartCmd.Flags().StringVar(&chartInterval, "interval", "1h", "interval label for the chart subtitle")
	rootCmd.AddCommand(chartCmd)
}

func runChart(cmd *cobra.Command, args []string) error {
	bars, err := market.LoadCSV(args[0])
	if err != nil {
		return err
	}
	results, err := engine.Replay(appCfg.ToSettings(), bars)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("%s (%d bars)", symbolFromPath(args[0]), len(bars))
	if err := chart.WriteHTML(chartOut, bars, results, chart.Options{Title: title, Interval: chartInterval}); err != nil {
		return err
	}
	logger.Infof("chart ready: %s", chartOut)
	return nil
}
