package pipeline

import (
	"strings"

	"jotnar/internal/schema"
	"jotnar/internal/workqueue"
)

// rebaseQueueFor and backportQueueFor route a resolved target branch to the
// C9-stream or C10-stream-and-later worker pool; CentOS Stream branches
// ("cNs") are always N>=10, everything else is the rhel-9-and-earlier pool.
func rebaseQueueFor(branch string) workqueue.Queue {
	if isStreamBranch(branch) {
		return workqueue.RebaseQueueC10s
	}
	return workqueue.RebaseQueueC9s
}

func backportQueueFor(branch string) workqueue.Queue {
	if isStreamBranch(branch) {
		return workqueue.BackportQueueC10s
	}
	return workqueue.BackportQueueC9s
}

func isStreamBranch(branch string) bool {
	return strings.HasPrefix(branch, "c") && strings.HasSuffix(branch, "s")
}

// completedQueueFor picks the terminal list a finished pipeline run's task
// is retired to, for audit/inspection purposes.
func completedQueueFor(kind schema.PipelineKind) workqueue.Queue {
	if kind == schema.PipelineBackport {
		return workqueue.CompletedBackportList
	}
	return workqueue.CompletedRebaseList
}
