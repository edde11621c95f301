package main

import (
	"time"

	"github.com/spf13/cobra"

	"jotnar/internal/pipeline"
	"jotnar/internal/workqueue"
)

func newTriageCmd() *cobra.Command {
	var jobMode bool
	var taskID string

	cmd := &cobra.Command{
		Use:   "triage",
		Short: "Drain triage_queue, classifying each ticket and routing it onward",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetryLogger()
			deps, store, err := buildPipelineDeps(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()

			if jobMode {
				task, ok, err := claimTaskByID(ctx, store, workqueue.TriageQueue, taskID)
				if err != nil {
					return err
				}
				if !ok {
					logger.Info("triage: task already claimed, nothing to do", "task", taskID)
					return nil
				}
				return pipeline.RunTriage(ctx, deps, task)
			}

			startMetricsServerBestEffort(logger)
			for {
				task, ok, err := store.BlockingPopHead(ctx, []workqueue.Queue{workqueue.TriageQueue}, 30*time.Second)
				if err != nil {
					return err
				}
				if !ok {
					select {
					case <-ctx.Done():
						return nil
					default:
						continue
					}
				}
				if err := pipeline.RunTriage(ctx, deps, task); err != nil {
					logger.Error("triage failed", "issue", task.IssueKey, "err", err)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&jobMode, "k8s-job-mode", false, "process a single named task and exit, for Kubernetes Job deployment")
	cmd.Flags().StringVar(&taskID, "task", "", "task ID to claim in --k8s-job-mode")
	cmd.Flags().String("queue", "", "unused by triage, accepted for deploy-spec symmetry")
	return cmd
}
