// Package ingestion is the Ingestion & Dedup stage (C5): it polls the issue
// tracker for candidate tickets on a fixed page size and rate limit,
// canonicalizes their keys, skips anything already sitting in a pipeline
// queue, and pushes the rest onto triage_queue.
package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jotnar/internal/labels"
	"jotnar/internal/schema"
	"jotnar/internal/workqueue"
)

// TicketSearcher is the subset of the tracker client ingestion needs: a
// paginated search returning raw candidate tickets.
type TicketSearcher interface {
	SearchCandidates(ctx context.Context, pageSize, offset int) ([]Candidate, int, error)
}

// Candidate is one ticket the tracker search surfaced, before dedup.
type Candidate struct {
	Key         string
	FixVersions []string
	Labels      []string
}

// Config bounds a single ingestion sweep.
type Config struct {
	PageSize        int           // default 50
	RateLimitPeriod time.Duration // default 200ms between page fetches
	MaxBackoff      time.Duration // default 2 minutes, cap on 429 backoff
}

func (c Config) pageSize() int {
	if c.PageSize <= 0 {
		return 50
	}
	return c.PageSize
}

func (c Config) rateLimitPeriod() time.Duration {
	if c.RateLimitPeriod <= 0 {
		return 200 * time.Millisecond
	}
	return c.RateLimitPeriod
}

func (c Config) maxBackoff() time.Duration {
	if c.MaxBackoff <= 0 {
		return 2 * time.Minute
	}
	return c.MaxBackoff
}

// RateLimitedError is the error SearchCandidates returns on a 429, so Sweep
// can apply exponential backoff without the tracker client needing to know
// about ingestion's retry policy.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Sweep fetches every candidate ticket page by page, skips any whose
// canonicalized key is already enqueued anywhere in AllQueues or that
// already carries a managed label (unless it carries retry_needed), and
// pushes the rest onto triage_queue. It returns the number of tickets newly
// enqueued.
func Sweep(ctx context.Context, searcher TicketSearcher, queue workqueue.Store, cfg Config) (int, error) {
	existing, err := existingKeys(ctx, queue)
	if err != nil {
		return 0, fmt.Errorf("ingestion: scan existing keys: %w", err)
	}

	enqueued := 0
	offset := 0
	backoff := 0 * time.Second

	for {
		candidates, total, err := searcher.SearchCandidates(ctx, cfg.pageSize(), offset)
		if err != nil {
			if rle, ok := err.(*RateLimitedError); ok {
				if backoff == 0 {
					backoff = rle.RetryAfter
				} else {
					backoff *= 2
				}
				if backoff > cfg.maxBackoff() {
					backoff = cfg.maxBackoff()
				}
				select {
				case <-ctx.Done():
					return enqueued, ctx.Err()
				case <-time.After(backoff):
				}
				continue
			}
			return enqueued, fmt.Errorf("ingestion: search candidates: %w", err)
		}
		backoff = 0

		for _, c := range candidates {
			key := canonicalize(c.Key)
			// retry_needed overrides dedup: a ticket already present in
			// some queue, or already carrying a managed label, is still
			// re-enqueued if an operator tagged it for retry, regardless of
			// which other labels coexist with it.
			if (existing[key] || hasNonRetryManagedLabel(c.Labels)) && !retryEligible(c.Labels) {
				continue
			}

			task, err := schema.NewTask(schema.IssueKey(key), schema.TriageMetadata{FixVersions: c.FixVersions})
			if err != nil {
				return enqueued, fmt.Errorf("ingestion: build task for %s: %w", key, err)
			}
			if err := queue.PushTail(ctx, workqueue.TriageQueue, task); err != nil {
				return enqueued, fmt.Errorf("ingestion: enqueue %s: %w", key, err)
			}
			existing[key] = true
			enqueued++
		}

		offset += len(candidates)
		if offset >= total || len(candidates) == 0 {
			return enqueued, nil
		}

		select {
		case <-ctx.Done():
			return enqueued, ctx.Err()
		case <-time.After(cfg.rateLimitPeriod()):
		}
	}
}

// existingKeys scans every queue for issue keys already in flight, so a
// ticket doesn't get enqueued a second time while it's still being worked.
func existingKeys(ctx context.Context, queue workqueue.Store) (map[string]bool, error) {
	seen := make(map[string]bool)
	for _, q := range workqueue.AllQueues {
		items, err := queue.AllItems(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", q, err)
		}
		for _, t := range items {
			seen[canonicalize(string(t.IssueKey))] = true
		}
	}
	return seen, nil
}

// canonicalize upper-cases an issue key so "rhel-12345" and "RHEL-12345"
// dedup against each other.
func canonicalize(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// retryEligible reports whether the tracker's own retry_needed control
// label is present on a candidate, overriding dedup regardless of which
// other (including terminal) labels coexist with it.
func retryEligible(ls []string) bool {
	return labels.HasRetryNeeded(toLabelSlice(ls))
}

// hasNonRetryManagedLabel reports whether ls carries a Jötnar-managed label
// other than the retry_needed control label — meaning a pipeline already
// claimed this ticket, even if it is absent from every queue right now
// because a worker has it in hand.
func hasNonRetryManagedLabel(ls []string) bool {
	for _, l := range toLabelSlice(ls) {
		if labels.IsManaged(l) && l != labels.RetryNeeded {
			return true
		}
	}
	return false
}

func toLabelSlice(ss []string) []labels.Label {
	out := make([]labels.Label, len(ss))
	for i, s := range ss {
		out[i] = labels.Label(s)
	}
	return out
}
