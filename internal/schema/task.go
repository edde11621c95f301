// Package schema holds the cross-cutting wire types shared by every
// component: the Task envelope that rides the work queues, the triage
// input/output tagged union, CVE eligibility, and pipeline state.
package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IssueKey is an upper-cased issue-tracker key, e.g. "RHEL-12345".
type IssueKey string

// NewTaskID returns a fresh random task identifier.
func NewTaskID() string {
	return uuid.NewString()
}

// Task is the envelope persisted in the work queue. Metadata is a typed
// payload specific to the queue (TriageMetadata, RebaseMetadata, ...); it is
// kept as raw JSON here so the queue store never needs to know the payload
// shape, and decoded by whichever component pops it.
type Task struct {
	ID        string          `json:"id"`
	IssueKey  IssueKey        `json:"issue_key"`
	Metadata  json.RawMessage `json:"metadata"`
	Attempts  int             `json:"attempts"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewTask builds a Task with a fresh ID and zero attempts, marshaling meta
// into the Metadata field.
func NewTask(issueKey IssueKey, meta interface{}) (Task, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return Task{}, fmt.Errorf("marshal task metadata: %w", err)
	}
	return Task{
		ID:        NewTaskID(),
		IssueKey:  issueKey,
		Metadata:  raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodeMetadata unmarshals the Task's Metadata into dst.
func (t Task) DecodeMetadata(dst interface{}) error {
	if len(t.Metadata) == 0 {
		return fmt.Errorf("task %s: empty metadata", t.ID)
	}
	if err := json.Unmarshal(t.Metadata, dst); err != nil {
		return fmt.Errorf("task %s: decode metadata: %w", t.ID, err)
	}
	return nil
}

// TriageMetadata is the Metadata payload for tasks on triage_queue.
type TriageMetadata struct {
	FixVersions []string `json:"fix_versions"`
}

// RebaseMetadata is the Metadata payload for tasks on a rebase queue.
type RebaseMetadata struct {
	TargetBranch string `json:"target_branch"`
	RepoURL      string `json:"repo_url"`
	Package      string `json:"package"`
	NewVersion   string `json:"new_version"`
}

// BackportMetadata is the Metadata payload for tasks on a backport queue.
type BackportMetadata struct {
	TargetBranch string `json:"target_branch"`
	RepoURL      string `json:"repo_url"`
	Package      string `json:"package"`
	UpstreamRef  string `json:"upstream_ref"`
}
