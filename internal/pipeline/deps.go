// Package pipeline is the Pipeline Controller (C6): the triage, rebase,
// backport and janitor workflows that consume tasks off the work queue and
// drive them through the tool registry and the agent runner to a terminal
// label on the issue tracker.
package pipeline

import (
	"context"
	"log/slog"

	"jotnar/internal/agentrunner"
	"jotnar/internal/tools/builder"
	"jotnar/internal/tools/forge"
	"jotnar/internal/tools/tracker"
	"jotnar/internal/workqueue"
)

// TrackerClient is the subset of tracker.Client the pipeline drives.
type TrackerClient interface {
	GetIssueDetails(ctx context.Context, key string) (tracker.Issue, error)
	SetIssueFields(ctx context.Context, in tracker.SetIssueFieldsInput) error
	AddIssueComment(ctx context.Context, key, text string) error
	ChangeIssueStatus(ctx context.Context, key, statusName string) error
	EditIssueLabels(ctx context.Context, key string, labels []string) error
	VerifyIssueAuthor(ctx context.Context, key string, allowedReporterIDs []string) (bool, error)
	CheckCVETriageEligibility(ctx context.Context, key string) (tracker.CVEEligibilityResult, error)
}

// ForgeClient is the subset of forge.Client the pipeline drives.
type ForgeClient interface {
	ForkRepository(ctx context.Context, repoURL string) (string, error)
	CloneRepository(ctx context.Context, repoURL, destDir string) error
	CheckoutNewBranch(ctx context.Context, dir, branch string) error
	StageFiles(ctx context.Context, dir string, files []string) error
	Commit(ctx context.Context, dir, message string) error
	PushToRemoteRepository(ctx context.Context, dir, branch string) error
	OpenMergeRequest(ctx context.Context, in forge.OpenMergeRequestInput) (string, error)
	AddMergeRequestLabel(ctx context.Context, mergeRequestURL, label string) error
	GetInternalRHELBranches(ctx context.Context, repoURL string) ([]string, error)
}

// BuilderClient is the subset of builder.Client the pipeline drives.
type BuilderClient interface {
	BuildPackage(ctx context.Context, in builder.BuildPackageInput) (builder.BuildResult, error)
}

// Deps wires every external system and policy knob the pipeline needs. It
// is built once at startup and passed by value to each workflow runner.
type Deps struct {
	Tracker  TrackerClient
	Forge    ForgeClient
	Builder  BuilderClient
	Runner   *agentrunner.Runner
	Queue    workqueue.Store
	Logger   *slog.Logger

	AllowedReporterIDs []string
	MaxBuildAttempts   int
	CloneBaseDir       string
	Caps               agentrunner.Caps

	// FuSaPackages is the functional-safety package list §4.6 step 8's
	// add_fusa_label fan-out checks membership against.
	FuSaPackages []string
}

func (d Deps) maxBuildAttempts() int {
	if d.MaxBuildAttempts <= 0 {
		return 10
	}
	return d.MaxBuildAttempts
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}
