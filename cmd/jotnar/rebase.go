package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jotnar/internal/pipeline"
	"jotnar/internal/workqueue"
)

var rebaseQueues = []workqueue.Queue{
	workqueue.RebaseQueueC9s, workqueue.RebaseQueueC10s, workqueue.LegacyRebaseQueue,
}

func queueByName(name string, candidates []workqueue.Queue) (workqueue.Queue, error) {
	for _, q := range candidates {
		if string(q) == name {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown queue %q", name)
}

func newRebaseCmd() *cobra.Command {
	var jobMode bool
	var taskID string
	var queueName string

	cmd := &cobra.Command{
		Use:   "rebase",
		Short: "Drain the rebase queues, running the clone/agent/build/push workflow for each task",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetryLogger()
			deps, store, err := buildPipelineDeps(logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx := cmd.Context()
			dryRun := viper.GetBool("pipeline.dry_run")

			if jobMode {
				queue, err := queueByName(queueName, rebaseQueues)
				if err != nil {
					return err
				}
				task, ok, err := claimTaskByID(ctx, store, queue, taskID)
				if err != nil {
					return err
				}
				if !ok {
					logger.Info("rebase: task already claimed, nothing to do", "task", taskID)
					return nil
				}
				return pipeline.RunRebase(ctx, deps, task, dryRun)
			}

			startMetricsServerBestEffort(logger)
			for {
				task, ok, err := store.BlockingPopHead(ctx, rebaseQueues, 30*time.Second)
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
				if err := pipeline.RunRebase(ctx, deps, task, dryRun); err != nil {
					logger.Error("rebase failed", "issue", task.IssueKey, "err", err)
				}
			}
		},
	}
	cmd.Flags().BoolVar(&jobMode, "k8s-job-mode", false, "process a single named task and exit, for Kubernetes Job deployment")
	cmd.Flags().StringVar(&taskID, "task", "", "task ID to claim in --k8s-job-mode")
	cmd.Flags().StringVar(&queueName, "queue", string(workqueue.RebaseQueueC9s), "queue to claim --task from in --k8s-job-mode")
	return cmd
}
