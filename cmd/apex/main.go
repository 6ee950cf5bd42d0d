package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"apex/internal/config"
	"apex/internal/logger"
)

var (
	flagConfig   string
	flagLogLevel string

	appCfg config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "apex",
	Short: "streaming inflection-bar signal engine",
	Long: `apex evaluates bar streams with a streaming indicator bank, swing and
divergence tracking, and a composite signal classifier. Subcommands scan CSV
histories, replay backtests, sweep configurations, serve live signals, and
render charts.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flagConfig != "" {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return err
			}
			appCfg = cfg
		} else {
			appCfg = config.Default()
		}
		if flagLogLevel != "" {
			appCfg.LogLevel = flagLogLevel
		}
		logger.SetLevel(appCfg.LogLevel)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to TOML config file")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
}
