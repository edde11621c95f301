package config

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		setup     func()
		wantError bool
		errMsg    string
	}{
		{
			name: "Valid Configuration",
			setup: func() {
				viper.Set("queue.backend", "sqlite")
				viper.Set("queue.dsn", "jotnar.db")
				viper.Set("agent.max_iterations", 15)
				viper.Set("pipeline.max_build_attempts", 10)
				viper.Set("metrics_port", 2112)
			},
			wantError: false,
		},
		{
			name: "Invalid Queue Backend",
			setup: func() {
				viper.Set("queue.backend", "mysql")
				viper.Set("queue.dsn", "jotnar.db")
			},
			wantError: true,
			errMsg:    "queue.backend must be sqlite or postgres",
		},
		{
			name: "Empty Queue DSN",
			setup: func() {
				viper.Set("queue.backend", "sqlite")
				viper.Set("queue.dsn", "")
			},
			wantError: true,
			errMsg:    "queue.dsn must not be empty",
		},
		{
			name: "Invalid Agent Max Iterations",
			setup: func() {
				viper.Set("queue.backend", "sqlite")
				viper.Set("queue.dsn", "jotnar.db")
				viper.Set("agent.max_iterations", 0)
			},
			wantError: true,
			errMsg:    "agent.max_iterations must be positive",
		},
		{
			name: "Invalid Max Build Attempts",
			setup: func() {
				viper.Set("queue.backend", "sqlite")
				viper.Set("queue.dsn", "jotnar.db")
				viper.Set("pipeline.max_build_attempts", -1)
			},
			wantError: true,
			errMsg:    "pipeline.max_build_attempts must be positive",
		},
		{
			name: "Invalid Metrics Port",
			setup: func() {
				viper.Set("queue.backend", "sqlite")
				viper.Set("queue.dsn", "jotnar.db")
				viper.Set("metrics_port", 99999)
			},
			wantError: true,
			errMsg:    "metrics_port must be between 1 and 65535",
		},
		{
			name: "Slack Enabled Without Channel",
			setup: func() {
				viper.Set("queue.backend", "sqlite")
				viper.Set("queue.dsn", "jotnar.db")
				viper.Set("notifications.slack.enabled", true)
				viper.Set("notifications.slack.channel", "")
			},
			wantError: true,
			errMsg:    "notifications.slack.channel must be set",
		},
		{
			name: "Multiple Errors",
			setup: func() {
				viper.Set("queue.backend", "mysql")
				viper.Set("queue.dsn", "")
				viper.Set("metrics_port", 80000)
			},
			wantError: true,
			errMsg:    "configuration validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			if tt.setup != nil {
				tt.setup()
			}

			err := ValidateConfig()
			if tt.wantError {
				if err == nil {
					t.Errorf("ValidateConfig() expected error, got nil")
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("ValidateConfig() error = %v, want error containing %v", err, tt.errMsg)
				}
			} else if err != nil {
				t.Errorf("ValidateConfig() unexpected error: %v", err)
			}
		})
	}
}
