package notify_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"jotnar/internal/notify"

	"github.com/spf13/viper"
)

func TestNotificationFlow(t *testing.T) {
	viper.Set("notifications.slack.enabled", true)
	viper.Set("notifications.slack.events.on_merge_request_opened", true)

	origBot := os.Getenv("SLACK_BOT_USER_TOKEN")
	os.Setenv("SLACK_BOT_USER_TOKEN", "xoxb-fake")
	defer os.Setenv("SLACK_BOT_USER_TOKEN", origBot)

	var logs []string
	logger := func(msg string, args ...interface{}) {
		if len(args) > 0 {
			logs = append(logs, fmt.Sprintf(msg, args...))
		} else {
			logs = append(logs, msg)
		}
	}

	mgr := notify.NewManager(logger)
	ctx := context.Background()

	mgr.Notify(ctx, notify.EventMergeRequestOpened, "Hello World", "")

	viper.Set("notifications.slack.events.on_build_failed", false)
	mgr.Notify(ctx, notify.EventBuildFailed, "Should skip", "")
}
