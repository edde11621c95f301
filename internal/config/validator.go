package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// ValidateConfig validates configuration values and returns an error if any
// are invalid. Call this after Load has populated viper.
func ValidateConfig() error {
	var errs []string

	switch backend := viper.GetString("queue.backend"); backend {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("queue.backend must be sqlite or postgres, got: %q", backend))
	}
	if viper.GetString("queue.dsn") == "" {
		errs = append(errs, "queue.dsn must not be empty")
	}

	if viper.IsSet("agent.max_iterations") {
		if n := viper.GetInt("agent.max_iterations"); n <= 0 {
			errs = append(errs, fmt.Sprintf("agent.max_iterations must be positive, got: %d", n))
		}
	}

	if viper.IsSet("pipeline.max_build_attempts") {
		if n := viper.GetInt("pipeline.max_build_attempts"); n <= 0 {
			errs = append(errs, fmt.Sprintf("pipeline.max_build_attempts must be positive, got: %d", n))
		}
	}

	if viper.IsSet("pipeline.max_task_retries") {
		if n := viper.GetInt("pipeline.max_task_retries"); n <= 0 {
			errs = append(errs, fmt.Sprintf("pipeline.max_task_retries must be positive, got: %d", n))
		}
	}

	if viper.IsSet("ingestion.page_size") {
		if n := viper.GetInt("ingestion.page_size"); n <= 0 {
			errs = append(errs, fmt.Sprintf("ingestion.page_size must be positive, got: %d", n))
		}
	}

	if viper.IsSet("ingestion.rate_limit_ms") {
		if n := viper.GetInt("ingestion.rate_limit_ms"); n < 0 {
			errs = append(errs, fmt.Sprintf("ingestion.rate_limit_ms must not be negative, got: %d", n))
		}
	}

	if viper.IsSet("metrics_port") {
		if p := viper.GetInt("metrics_port"); p < 1 || p > 65535 {
			errs = append(errs, fmt.Sprintf("metrics_port must be between 1 and 65535, got: %d", p))
		}
	}

	if viper.GetBool("notifications.slack.enabled") {
		if viper.GetString("notifications.slack.channel") == "" {
			errs = append(errs, "notifications.slack.channel must be set when notifications.slack.enabled is true")
		}
	}

	if len(errs) > 0 {
		msg := errs[0]
		for i := 1; i < len(errs); i++ {
			msg += "\n  " + errs[i]
		}
		return fmt.Errorf("configuration validation failed:\n  %s", msg)
	}
	return nil
}

// ValidateAndExit validates the configuration and exits with a non-zero code
// if validation fails. Intended for use at process startup, before any
// queue or tracker connection is opened.
func ValidateAndExit() {
	if err := ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
