package notify

import "context"

// Notifier is the strictly-additive, best-effort outbound channel for
// pipeline terminal outcomes. It is never a substitute for the private
// issue-tracker comment the pipeline itself posts on every outcome.
type Notifier interface {
	Notify(ctx context.Context, eventType string, message string, threadTS string) (string, error)
	AddReaction(ctx context.Context, timestamp, reaction string) error
}
