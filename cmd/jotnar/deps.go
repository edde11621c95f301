package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"jotnar/internal/agentrunner"
	"jotnar/internal/krb"
	"jotnar/internal/pipeline"
	"jotnar/internal/tools"
	"jotnar/internal/tools/builder"
	"jotnar/internal/tools/forge"
	"jotnar/internal/tools/lookaside"
	"jotnar/internal/tools/tracker"
	"jotnar/internal/workqueue"
)

// buildPipelineDeps wires every external system from the loaded
// configuration into a pipeline.Deps, the way the real worker commands use
// it. Each client is also registered into a shared tools.Registry so the
// agent runner can call into it mid-trajectory.
func buildPipelineDeps(logger *slog.Logger) (pipeline.Deps, workqueue.Store, error) {
	store, err := workqueue.NewStore(workqueue.Config{
		Type:             viper.GetString("queue.backend"),
		ConnectionString: viper.GetString("queue.dsn"),
	})
	if err != nil {
		return pipeline.Deps{}, nil, fmt.Errorf("open work queue: %w", err)
	}

	trackerClient := tracker.NewClient(
		viper.GetString("tracker.base_url"),
		viper.GetString("tracker.username"),
		viper.GetString("tracker.api_token"),
	)
	forgeClient := forge.NewClient(
		viper.GetString("forge.base_url"),
		viper.GetString("forge.token"),
	)
	broker := krb.NewBroker(
		viper.GetString("kerberos.principal"),
		viper.GetString("kerberos.keytab_path"),
		viper.GetString("kerberos.ccache_path"),
	)
	lookasideClient := lookaside.NewClient(viper.GetString("lookaside.base_url"), broker)
	builderClient := builder.NewClient(
		viper.GetString("builder.base_url"),
		viper.GetString("builder.api_token"),
	)

	registry := tools.NewRegistry()
	tracker.Register(registry, trackerClient)
	forge.Register(registry, forgeClient)
	lookaside.Register(registry, lookasideClient)
	builder.Register(registry, builderClient)

	transport := agentrunner.NewOpenRouterTransport(
		viper.GetString("llm.base_url"),
		viper.GetString("llm.api_key"),
		viper.GetString("llm.model"),
	)
	runner := agentrunner.NewRunner(transport, registry)

	deps := pipeline.Deps{
		Tracker:            trackerClient,
		Forge:              forgeClient,
		Builder:            builderClient,
		Runner:             runner,
		Queue:              store,
		Logger:             logger,
		AllowedReporterIDs: viper.GetStringSlice("tracker.allowed_reporter_ids"),
		MaxBuildAttempts:   viper.GetInt("pipeline.max_build_attempts"),
		CloneBaseDir:       viper.GetString("pipeline.clone_base_dir"),
		Caps:               agentrunner.Caps{MaxIterations: viper.GetInt("agent.max_iterations")},
		FuSaPackages:       viper.GetStringSlice("pipeline.fusa_packages"),
	}
	return deps, store, nil
}
