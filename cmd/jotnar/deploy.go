package main

import (
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"jotnar/internal/deploy"
	"jotnar/internal/workqueue"
)

// deployableQueues is every queue that holds work still waiting for a
// worker, in the order an operator would want Jobs launched: triage first,
// then whichever rebase/backport pool has tasks.
var deployableQueues = []workqueue.Queue{
	workqueue.TriageQueue,
	workqueue.RebaseQueueC9s, workqueue.RebaseQueueC10s,
	workqueue.BackportQueueC9s, workqueue.BackportQueueC10s,
}

func newDeployCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Launch one Kubernetes Job per pending task across the pipeline queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetryLogger()

			store, err := workqueue.NewStore(workqueue.Config{
				Type:             viper.GetString("queue.backend"),
				ConnectionString: viper.GetString("queue.dsn"),
			})
			if err != nil {
				return err
			}
			defer store.Close()

			image := viper.GetString("deploy.image")
			if image == "" {
				return fmt.Errorf("deploy.image must be set")
			}

			runner, err := deploy.NewK8sJobRunner(
				logger,
				image,
				viper.GetString("deploy.namespace"),
				corev1.PullPolicy(viper.GetString("deploy.pull_policy")),
			)
			if err != nil {
				return fmt.Errorf("build k8s job runner: %w", err)
			}

			ctx := cmd.Context()
			launched := 0
			for _, queue := range deployableQueues {
				items, err := store.AllItems(ctx, queue)
				if err != nil {
					return fmt.Errorf("list %s: %w", queue, err)
				}
				for _, task := range items {
					spec := deploy.WorkerSpec{
						TaskID: task.ID,
						Queue:  string(queue),
					}
					if err := runner.Run(ctx, spec); err != nil {
						logger.Error("deploy: launch job failed", "queue", queue, "task", task.ID, "err", err)
						continue
					}
					launched++
				}
			}
			logger.Info("deploy: sweep complete", "jobs_launched", launched)
			return nil
		},
	}
	return cmd
}
