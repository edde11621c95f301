// Command jotnar is the entry point for every Jötnar worker: ingestion
// sweeps, the triage/rebase/backport/janitor pipeline stages, and the
// Kubernetes-Job deploy helper, each a thin cobra subcommand over the
// internal packages that do the actual work.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jotnar/internal/config"
	"jotnar/internal/telemetry"
)

var (
	cfgFile string
	debug   bool
	logFile string

	// exit is a package var so tests can intercept process termination
	// instead of actually killing the test binary.
	exit = os.Exit
)

var rootCmd = &cobra.Command{
	Use:   "jotnar",
	Short: "RHEL source package maintenance automation",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config.yaml")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "additionally log to this file")

	rootCmd.AddCommand(
		newIngestCmd(),
		newTriageCmd(),
		newRebaseCmd(),
		newBackportCmd(),
		newJanitorCmd(),
		newDeployCmd(),
	)
}

// initConfig loads configuration, wires up logging, and validates the
// result, exiting the process on a bad config the way every worker
// subcommand expects before it touches the work queue.
func initConfig() {
	config.Load(cfgFile)
	telemetry.InitLogger(debug, logFile)
	config.ValidateAndExit()
}

// Execute runs the root command, recovering a panic from any subcommand so
// a single bad task never takes down a long-running worker process without
// at least logging why.
func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, "jotnar: panic:", r)
			exit(1)
		}
	}()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		exit(1)
	}
}

func main() {
	Execute()
}

func metricsPort() int {
	return viper.GetInt("metrics_port")
}

// telemetryLogger returns the process-wide logger PersistentPreRun installed
// as slog's default, so every subcommand shares one configured logger
// without threading it through cobra's RunE signature.
func telemetryLogger() *slog.Logger {
	return slog.Default()
}

func startMetricsServerBestEffort(logger *slog.Logger) {
	go func() {
		if err := telemetry.StartMetricsServer(metricsPort()); err != nil {
			logger.Warn("metrics server exited", "err", err)
		}
	}()
}
