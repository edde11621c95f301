package main

import (
	"context"
	"fmt"

	"jotnar/internal/schema"
	"jotnar/internal/workqueue"
)

// claimTaskByID finds and removes the task with the given ID from queue, for
// --k8s-job-mode where a Job is handed a specific task rather than told to
// drain whichever is oldest. A miss (another worker already claimed it) is
// not an error: the Job-existence check in internal/deploy already prevents
// two Jobs from targeting the same task, so a miss here means the task was
// already finished by a previous attempt of this same Job.
func claimTaskByID(ctx context.Context, store workqueue.Store, queue workqueue.Queue, taskID string) (schema.Task, bool, error) {
	items, err := store.AllItems(ctx, queue)
	if err != nil {
		return schema.Task{}, false, fmt.Errorf("list %s: %w", queue, err)
	}
	for _, t := range items {
		if t.ID == taskID {
			if err := store.Remove(ctx, queue, t.ID); err != nil {
				return schema.Task{}, false, fmt.Errorf("claim %s from %s: %w", taskID, queue, err)
			}
			return t, true, nil
		}
	}
	return schema.Task{}, false, nil
}
