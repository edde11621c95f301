package main

import (
	"time"

	"github.com/spf13/cobra"

	"jotnar/internal/pipeline"
)

func newJanitorCmd() *cobra.Command {
	var once bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Remove stale clone directories left behind by finished or abandoned pipeline runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetryLogger()
			deps, store, err := buildPipelineDeps(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			run := func() error {
				if err := pipeline.RunJanitor(deps, time.Now()); err != nil {
					logger.Error("janitor run failed", "err", err)
					return err
				}
				return nil
			}

			if once {
				return run()
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := run(); err != nil {
					logger.Warn("janitor iteration failed, will retry next tick", "err", err)
				}
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			}
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cleanup pass and exit instead of looping")
	cmd.Flags().DurationVar(&interval, "interval", 24*time.Hour, "time between cleanup passes")
	return cmd
}
