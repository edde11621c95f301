package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load initializes the configuration from file and environment variables.
func Load(cfgFile string) {
	if err := godotenv.Load(); err != nil {
		// no .env file present; environment variables and defaults still apply
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search config in the current directory named "config.yaml".
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("JOTNAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Fall back to the tracker's own conventional env var if the
	// jotnar-prefixed one isn't set.
	_ = viper.BindEnv("tracker.base_url", "JOTNAR_TRACKER_BASE_URL", "JIRA_URL")

	// Work queue
	viper.SetDefault("queue.backend", "sqlite")
	viper.SetDefault("queue.dsn", "jotnar.db")

	// Issue tracker
	viper.SetDefault("tracker.base_url", "")
	viper.SetDefault("tracker.username", "")
	viper.SetDefault("tracker.api_token", "")
	viper.SetDefault("tracker.allowed_reporter_ids", []string{})

	// Forge (dist-git / merge request host)
	viper.SetDefault("forge.base_url", "")
	viper.SetDefault("forge.token", "")

	// Lookaside cache for source tarballs
	viper.SetDefault("lookaside.base_url", "")

	// Build service
	viper.SetDefault("builder.base_url", "")
	viper.SetDefault("builder.api_token", "")

	// Kerberos, for dist-git push/clone authentication
	viper.SetDefault("kerberos.principal", "")
	viper.SetDefault("kerberos.keytab_path", "")
	viper.SetDefault("kerberos.ccache_path", "/tmp/jotnar-krb5cc")

	// LLM backend for the agent runner
	viper.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "anthropic/claude-sonnet-4.5")

	// Pipeline behavior
	viper.SetDefault("agent.max_iterations", 15)
	viper.SetDefault("pipeline.max_build_attempts", 10)
	viper.SetDefault("pipeline.max_task_retries", 3)
	viper.SetDefault("pipeline.dry_run", false)
	viper.SetDefault("pipeline.clone_base_dir", "/var/tmp/jotnar-clones")
	viper.SetDefault("pipeline.fusa_packages", []string{})

	// Ingestion sweep
	viper.SetDefault("ingestion.page_size", 50)
	viper.SetDefault("ingestion.rate_limit_ms", 200)
	viper.SetDefault("ingestion.max_backoff_seconds", 120)
	viper.SetDefault("ingestion.jql", `project = RHEL AND status = "New" ORDER BY created ASC`)

	// Kubernetes Job deployment
	viper.SetDefault("deploy.image", "")
	viper.SetDefault("deploy.namespace", "")
	viper.SetDefault("deploy.pull_policy", "IfNotPresent")

	viper.SetDefault("metrics_port", 2112)
	viper.SetDefault("verbose", false)
	viper.SetDefault("git_user_email", "jotnar-agent@example.com")
	viper.SetDefault("git_user_name", "Jötnar Agent")

	// Notification defaults
	slackEnabled := os.Getenv("SLACK_BOT_USER_TOKEN") != ""
	viper.SetDefault("notifications.slack.enabled", slackEnabled)
	viper.SetDefault("notifications.slack.channel", "#jotnar")
	viper.SetDefault("notifications.slack.events.on_merge_request_opened", true)
	viper.SetDefault("notifications.slack.events.on_build_failed", true)
	viper.SetDefault("notifications.slack.events.on_clarification_needed", true)
	viper.SetDefault("notifications.slack.events.on_pipeline_failed", true)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else {
		if os.Getenv("JOTNAR_QUEUE_BACKEND") == "" && os.Getenv("JOTNAR_MODE") == "" {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || true {
				if cfgFile == "" {
					viper.SetConfigName("config")
					viper.SetConfigType("yaml")
					viper.AddConfigPath(".")

					if err := viper.SafeWriteConfig(); err != nil {
						if _, statErr := os.Stat("config.yaml"); os.IsNotExist(statErr) {
							if err := viper.WriteConfigAs("config.yaml"); err != nil {
								fmt.Fprintf(os.Stderr, "Warning: Failed to create default config file: %v\n", err)
							} else {
								fmt.Println("Created default configuration file: config.yaml")
							}
						}
					} else {
						fmt.Println("Created default configuration file: config.yaml")
					}
				}
			}
		}
	}
}
