package notify

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestNewManager_InitLogic(t *testing.T) {
	viper.Reset()
	t.Cleanup(func() { viper.Reset() })

	// Case 1: disabled via config
	viper.Set("notifications.slack.enabled", false)
	m := NewManager(nil)
	assert.Nil(t, m.client)

	// Case 2: enabled but missing the bot token
	viper.Set("notifications.slack.enabled", true)
	t.Setenv("SLACK_BOT_USER_TOKEN", "")
	m = NewManager(nil)
	assert.Nil(t, m.client)

	// Case 3: enabled with a token present
	t.Setenv("SLACK_BOT_USER_TOKEN", "xoxb-token")
	m = NewManager(nil)
	assert.NotNil(t, m.client)
}
