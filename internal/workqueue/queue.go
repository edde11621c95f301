// Package workqueue is the Work Queue (C4): a durable, SQLite- or
// Postgres-backed FIFO per named queue, plus a shared scheduled-set view
// used both for retry-after-delay and by the out-of-scope supervisor
// sibling, so the scheduled-set operations are implemented generally rather
// than folded into the triage-only FIFOs.
package workqueue

import (
	"context"
	"time"

	"jotnar/internal/schema"
)

// Queue is the closed set of named FIFOs the pipeline drains. Legacy names
// are retained because a deployment upgrading from an older ingestion
// version may still have items sitting in them.
type Queue string

const (
	TriageQueue               Queue = "triage_queue"
	RebaseQueueC9s             Queue = "rebase_queue_c9s"
	RebaseQueueC10s            Queue = "rebase_queue_c10s"
	BackportQueueC9s           Queue = "backport_queue_c9s"
	BackportQueueC10s          Queue = "backport_queue_c10s"
	ClarificationNeededQueue   Queue = "clarification_needed_queue"
	ErrorList                  Queue = "error_list"
	NoActionList               Queue = "no_action_list"
	CompletedRebaseList        Queue = "completed_rebase_list"
	CompletedBackportList      Queue = "completed_backport_list"

	// Legacy aliases, drained but never written to by current ingestion.
	LegacyRebaseQueue   Queue = "rebase_queue"
	LegacyBackportQueue Queue = "backport_queue"
)

// AllQueues is every queue a drain-everything sweep (e.g. the janitor, or a
// migration) should visit.
var AllQueues = []Queue{
	TriageQueue, RebaseQueueC9s, RebaseQueueC10s, BackportQueueC9s, BackportQueueC10s,
	ClarificationNeededQueue, ErrorList, NoActionList, CompletedRebaseList, CompletedBackportList,
	LegacyRebaseQueue, LegacyBackportQueue,
}

// Store is the Work Queue's storage contract. Implementations must make
// blocking_pop_head and pop_first_ready atomic claims: two concurrent
// callers must never both receive the same Task.
type Store interface {
	// PushTail appends t to the back of queue.
	PushTail(ctx context.Context, queue Queue, t schema.Task) error

	// BlockingPopHead claims and returns the oldest Task across queues (in
	// the order given, first queue with an item wins), blocking up to
	// timeout if every named queue is empty. Returns (Task{}, false, nil)
	// on timeout with no error.
	BlockingPopHead(ctx context.Context, queues []Queue, timeout time.Duration) (schema.Task, bool, error)

	// DelaySchedule schedules t to become claimable at readyAt, independent
	// of any FIFO queue — used for build-retry backoff and by callers
	// outside this pipeline that share the same scheduled-set primitive.
	DelaySchedule(ctx context.Context, t schema.Task, readyAt time.Time) error

	// PopFirstReady atomically claims the earliest scheduled Task whose
	// ready time is <= now, by immediately rescheduling it retryWindow into
	// the future — "claim by reschedule" rather than delete, so a worker
	// that crashes mid-processing does not lose the item, it simply
	// reappears after retryWindow. Returns (Task{}, false, nil) if nothing
	// is ready.
	PopFirstReady(ctx context.Context, now time.Time, retryWindow time.Duration) (schema.Task, bool, error)

	// Remove deletes t (by ID) from queue, used once a scheduled or FIFO
	// item has been fully handled and must not reappear.
	Remove(ctx context.Context, queue Queue, taskID string) error

	// List returns up to limit Tasks from queue starting at offset, in FIFO
	// order, for cross-queue dedup scans that need to see every key
	// currently enqueued without popping anything.
	List(ctx context.Context, queue Queue, offset, limit int) ([]schema.Task, error)

	// AllItems returns every Task currently in queue, for the janitor and
	// for small-scale dedup scans where paging isn't worth it.
	AllItems(ctx context.Context, queue Queue) ([]schema.Task, error)

	Close() error
}

// Config selects and configures a Store backend.
type Config struct {
	Type             string // "sqlite" or "postgres"
	ConnectionString string
}
