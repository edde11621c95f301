package ingestion

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotnar/internal/schema"
	"jotnar/internal/workqueue"
)

type fakeSearcher struct {
	pages     [][]Candidate
	total     int
	rateLimit int // if > 0, the Nth call (1-indexed) returns RateLimitedError once
	calls     int
}

func (f *fakeSearcher) SearchCandidates(ctx context.Context, pageSize, offset int) ([]Candidate, int, error) {
	f.calls++
	if f.rateLimit != 0 && f.calls == f.rateLimit {
		f.rateLimit = 0 // only trip once
		return nil, 0, &RateLimitedError{RetryAfter: time.Millisecond}
	}
	idx := offset / pageSize
	if idx >= len(f.pages) {
		return nil, f.total, nil
	}
	return f.pages[idx], f.total, nil
}

func newQueue(t *testing.T) workqueue.Store {
	t.Helper()
	s, err := workqueue.NewSQLiteStore(filepath.Join(t.TempDir(), "q.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSweepEnqueuesNewCandidates(t *testing.T) {
	searcher := &fakeSearcher{
		pages: [][]Candidate{{
			{Key: "rhel-1", FixVersions: []string{"rhel-9.4.0"}},
			{Key: "RHEL-2", FixVersions: []string{"rhel-9.4.0"}},
		}},
		total: 2,
	}
	queue := newQueue(t)

	n, err := Sweep(context.Background(), searcher, queue, Config{PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := queue.AllItems(context.Background(), workqueue.TriageQueue)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, schema.IssueKey("RHEL-1"), items[0].IssueKey)
	assert.Equal(t, schema.IssueKey("RHEL-2"), items[1].IssueKey)
}

func TestSweepSkipsAlreadyQueuedTickets(t *testing.T) {
	queue := newQueue(t)
	existing, err := schema.NewTask(schema.IssueKey("RHEL-5"), schema.TriageMetadata{})
	require.NoError(t, err)
	require.NoError(t, queue.PushTail(context.Background(), workqueue.RebaseQueueC9s, existing))

	searcher := &fakeSearcher{pages: [][]Candidate{{{Key: "rhel-5"}}}, total: 1}

	n, err := Sweep(context.Background(), searcher, queue, Config{PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSweepRetryNeededOverridesDedup(t *testing.T) {
	queue := newQueue(t)
	existing, err := schema.NewTask(schema.IssueKey("RHEL-6"), schema.TriageMetadata{})
	require.NoError(t, err)
	require.NoError(t, queue.PushTail(context.Background(), workqueue.ErrorList, existing))

	searcher := &fakeSearcher{pages: [][]Candidate{{
		{Key: "rhel-6", Labels: []string{"jotnar-failed", "jotnar-retry-needed"}},
	}}, total: 1}

	n, err := Sweep(context.Background(), searcher, queue, Config{PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSweepSkipsCandidateWithManagedLabelAbsentFromEveryQueue(t *testing.T) {
	queue := newQueue(t)
	// RHEL-8 is mid-pipeline: a rebase worker popped it off its queue and is
	// processing it synchronously, so it carries jotnar-rebasing but sits in
	// no queue at all right now.
	searcher := &fakeSearcher{pages: [][]Candidate{{
		{Key: "rhel-8", Labels: []string{"jotnar-rebasing"}},
	}}, total: 1}

	n, err := Sweep(context.Background(), searcher, queue, Config{PageSize: 50})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	items, err := queue.AllItems(context.Background(), workqueue.TriageQueue)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSweepBacksOffOnRateLimit(t *testing.T) {
	queue := newQueue(t)
	searcher := &fakeSearcher{
		pages:     [][]Candidate{{{Key: "rhel-7"}}},
		total:     1,
		rateLimit: 1,
	}

	n, err := Sweep(context.Background(), searcher, queue, Config{PageSize: 50, MaxBackoff: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.GreaterOrEqual(t, searcher.calls, 2)
}
