package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestManager_Init_Warnings(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() { viper.Reset() })

	viper.Set("notifications.slack.enabled", true)
	t.Setenv("SLACK_BOT_USER_TOKEN", "")

	var logs []string
	logger := func(msg string, args ...interface{}) {
		logs = append(logs, msg)
	}

	m := NewManager(logger)
	assert.NotNil(t, m)

	found := false
	for _, l := range logs {
		if strings.Contains(l, "SLACK_BOT_USER_TOKEN not set") {
			found = true
		}
	}
	assert.True(t, found, "should warn about missing Slack token")
}

func TestManager_Notify_LogsFailure(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() { viper.Reset() })
	viper.Set("notifications.slack.enabled", true)
	viper.Set("notifications.slack.events.on_build_failed", true)

	var logs []string
	logger := func(msg string, args ...interface{}) {
		if strings.Contains(msg, "Failed to send") {
			logs = append(logs, msg)
		}
	}

	mockSlack := &mockSlackClient{postMsgErr: errors.New("slack down")}

	m := &Manager{client: mockSlack, logger: logger}

	ctx := context.Background()
	state, err := m.Notify(ctx, EventBuildFailed, "msg", "")
	assert.NoError(t, err)
	assert.Equal(t, "", state)

	found := false
	for _, l := range logs {
		if strings.Contains(l, "Failed to send Slack notification") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestManager_AddReaction_LogsFailure(t *testing.T) {
	var logs []string
	logger := func(msg string, args ...interface{}) {
		if strings.Contains(msg, "Failed to add") {
			logs = append(logs, msg)
		}
	}

	mockSlack := &mockSlackClient{reactionErr: errors.New("slack fail")}

	m := &Manager{client: mockSlack, logger: logger}

	err := m.AddReaction(context.Background(), "ts", "smile")
	assert.NoError(t, err)

	found := false
	for _, l := range logs {
		if strings.Contains(l, "Failed to add Slack reaction") {
			found = true
		}
	}
	assert.True(t, found)
}
