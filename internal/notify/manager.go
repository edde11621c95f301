package notify

import (
	"context"
	"os"

	"github.com/slack-go/slack"
	"github.com/spf13/viper"
)

// Event types, one per pipeline terminal outcome.
const (
	EventMergeRequestOpened  = "on_merge_request_opened"
	EventBuildFailed         = "on_build_failed"
	EventClarificationNeeded = "on_clarification_needed"
	EventPipelineFailed      = "on_pipeline_failed"
)

// slackPoster is the subset of *slack.Client Manager depends on, so tests
// can substitute a mock without a live Slack connection.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
}

// Manager posts best-effort Slack notifications for pipeline outcomes.
type Manager struct {
	client    slackPoster
	channelID string
	logger    func(string, ...interface{})
}

// NewManager creates a Manager, wiring a Slack client if
// notifications.slack.enabled is set and SLACK_BOT_USER_TOKEN is present.
func NewManager(logger func(string, ...interface{})) *Manager {
	m := &Manager{logger: logger}
	m.initSlack()
	return m
}

func (m *Manager) initSlack() {
	if !viper.GetBool("notifications.slack.enabled") {
		return
	}

	botToken := os.Getenv("SLACK_BOT_USER_TOKEN")
	if botToken == "" {
		if m.logger != nil {
			m.logger("Warning: SLACK_BOT_USER_TOKEN not set, slack notifications disabled")
		}
		return
	}

	m.client = slack.New(botToken)
	m.channelID = viper.GetString("notifications.slack.channel")
}

// Notify posts message to Slack if eventType is enabled in configuration,
// returning an updated thread timestamp for a future reply-in-thread call.
func (m *Manager) Notify(ctx context.Context, eventType string, message string, threadTS string) (string, error) {
	if !m.isEnabled(eventType) {
		return threadTS, nil
	}
	if m.client == nil {
		return threadTS, nil
	}

	channelID := m.channelID
	if channelID == "" {
		channelID = "#jotnar"
	}

	opts := []slack.MsgOption{slack.MsgOptionText(message, false)}
	if threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}

	_, newTS, err := m.client.PostMessageContext(ctx, channelID, opts...)
	if err != nil {
		if m.logger != nil {
			m.logger("Failed to send Slack notification for %s: %v", eventType, err)
		}
		return threadTS, nil
	}
	return newTS, nil
}

// AddReaction adds an emoji reaction to a previously posted notification.
func (m *Manager) AddReaction(ctx context.Context, timestamp, reaction string) error {
	if m.client == nil || timestamp == "" {
		return nil
	}
	channelID := m.channelID
	if channelID == "" {
		channelID = "#jotnar"
	}
	if err := m.client.AddReactionContext(ctx, reaction, slack.ItemRef{Channel: channelID, Timestamp: timestamp}); err != nil {
		if m.logger != nil {
			m.logger("Failed to add Slack reaction %s: %v", reaction, err)
		}
	}
	return nil
}

func (m *Manager) isEnabled(eventType string) bool {
	if !viper.GetBool("notifications.slack.enabled") {
		return false
	}
	return viper.GetBool("notifications.slack.events." + eventType)
}
