package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"jotnar/internal/agentrunner"
	"jotnar/internal/commitmsg"
	"jotnar/internal/labels"
	"jotnar/internal/schema"
	"jotnar/internal/tools/builder"
	"jotnar/internal/tools/forge"
	"jotnar/internal/workflow"
	"jotnar/internal/workqueue"
)

const rebaseAgentPromptTemplate = `You are the Jötnar rebase agent. Update
the package's spec file and sources to the requested new upstream version.
If build_error is non-empty, it is the failure from a previous build
attempt against your last patch set — adjust accordingly. Respond with a
single JSON object naming the files to stage and a changelog note.`

// rebaseAgentOutput is what the rebase agent call produces each turn.
type rebaseAgentOutput struct {
	Title         string   `json:"title"`
	FilesToGitAdd []string `json:"files_to_git_add"`
	ChangelogNote string   `json:"changelog_note"`
	SRPMPath      string   `json:"srpm_path,omitempty"`
}

// RunRebase takes a task popped off a rebase queue and drives it through
// fork-and-clone, agent-edit, a build-retry loop, staging exactly once,
// the log agent, and (unless DryRun) push-and-open-merge-request, named as
// workflow steps so the build-retry loop is a step transition rather than ad
// hoc control flow.
func RunRebase(ctx context.Context, deps Deps, task schema.Task, dryRun bool) error {
	var meta schema.RebaseMetadata
	if err := task.DecodeMetadata(&meta); err != nil {
		return fmt.Errorf("rebase %s: %w", task.IssueKey, err)
	}

	pkg := meta.Package
	if pkg == "" {
		pkg = packageNameFromRepoURL(meta.RepoURL)
	}

	state := &schema.PipelineState{
		Kind:             schema.PipelineRebase,
		IssueKey:         task.IssueKey,
		RepoURL:          meta.RepoURL,
		Package:          pkg,
		TargetBranch:     meta.TargetBranch,
		UpdateBranch:     fmt.Sprintf("jotnar-%s", task.IssueKey),
		NewVersion:       meta.NewVersion,
		DryRun:           dryRun,
		FunctionalSafety: isFunctionalSafety(deps.FuSaPackages, pkg, meta.TargetBranch),
	}

	wf := workflow.New("start")
	wf.AddStep("start", deps.stepStartRebase(task))
	wf.AddStep("clone", deps.stepClone(task))
	wf.AddStep("run_agent", deps.stepRunRebaseAgent(task))
	wf.AddStep("build", deps.stepBuild(task))
	wf.AddStep("build_failed", deps.stepBuildFailed(task))
	wf.AddStep("stage", deps.stepStageAndCommit(task))
	wf.AddStep("log", deps.stepRunLogAgent(task))
	wf.AddStep("push", deps.stepPushAndOpenMergeRequest(task))

	if err := workflow.Run(wf, state); err != nil {
		return deps.failPipeline(ctx, task, state, err)
	}
	return nil
}

func (d Deps) stepStartRebase(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		if err := d.Tracker.ChangeIssueStatus(ctx, string(state.IssueKey), "In Progress"); err != nil {
			return "", fmt.Errorf("change issue status: %w", err)
		}
		return "clone", nil
	}
}

func (d Deps) stepClone(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		forkURL, err := d.Forge.ForkRepository(ctx, state.RepoURL)
		if err != nil {
			return "", fmt.Errorf("fork repository: %w", err)
		}
		state.ForkURL = forkURL

		state.CloneDir = filepath.Join(d.cloneBaseDir(), string(task.IssueKey))
		if err := d.Forge.CloneRepository(ctx, state.ForkURL, state.CloneDir); err != nil {
			return "", fmt.Errorf("clone: %w", err)
		}
		if err := d.Forge.CheckoutNewBranch(ctx, state.CloneDir, state.UpdateBranch); err != nil {
			return "", fmt.Errorf("checkout update branch: %w", err)
		}
		return "run_agent", nil
	}
}

func (d Deps) stepRunRebaseAgent(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		out, err := agentrunner.Run[rebaseAgentOutput](ctx, d.Runner, rebaseAgentPromptTemplate, state, nil, d.Caps)
		if err != nil {
			return "", fmt.Errorf("rebase agent: %w", err)
		}
		state.FilesToGitAdd = out.FilesToGitAdd
		state.ChangelogNote = out.ChangelogNote
		state.SRPMPath = out.SRPMPath
		return "build", nil
	}
}

func (d Deps) stepStageAndCommit(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		if err := d.Forge.StageFiles(ctx, state.CloneDir, state.FilesToGitAdd); err != nil {
			return "", fmt.Errorf("stage files: %w", err)
		}
		return "log", nil
	}
}

func (d Deps) stepRunLogAgent(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		if err := d.runLogAgent(ctx, state); err != nil {
			return "", err
		}
		message := commitmsg.Format(state.Title, state.Description, string(state.IssueKey))
		if err := d.Forge.Commit(ctx, state.CloneDir, message); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
		return "push", nil
	}
}

func (d Deps) stepBuild(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		if !state.DryRun {
			if err := d.Tracker.EditIssueLabels(ctx, string(state.IssueKey), []string{string(labels.Building)}); err != nil {
				d.logger().Warn("set building label failed", "issue", state.IssueKey, "err", err)
			}
		}

		result, err := d.Builder.BuildPackage(ctx, builder.BuildPackageInput{
			Package:      state.Package,
			TargetBranch: state.TargetBranch,
			SourceRef:    state.UpdateBranch,
			SRPMPath:     state.SRPMPath,
			TicketID:     string(state.IssueKey),
		})
		if err != nil {
			return "", fmt.Errorf("build: %w", err)
		}

		state.BuildAttempts++
		if result.Status == builder.BuildSuccess {
			state.BuildError = ""
			return "stage", nil
		}

		state.BuildError = result.Error
		if state.BuildAttempts >= d.maxBuildAttempts() {
			return "build_failed", nil
		}
		return "run_agent", nil
	}
}

func (d Deps) stepBuildFailed(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		if !state.DryRun {
			_ = d.Tracker.EditIssueLabels(ctx, string(state.IssueKey), []string{string(labels.BuildFailed)})
		}
		_ = d.Tracker.AddIssueComment(ctx, string(state.IssueKey), fmt.Sprintf(
			"Jötnar gave up after %d build attempts. Last failure:\n\n%s", state.BuildAttempts, state.BuildError))
		if err := d.Queue.PushTail(ctx, workqueue.ErrorList, task); err != nil {
			d.logger().Error("push to error_list failed", "issue", state.IssueKey, "err", err)
		}
		return workflow.End, nil
	}
}

func (d Deps) stepPushAndOpenMergeRequest(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		if state.DryRun {
			return workflow.End, nil
		}

		if err := d.Forge.PushToRemoteRepository(ctx, state.CloneDir, state.UpdateBranch); err != nil {
			return "", fmt.Errorf("push: %w", err)
		}

		url, err := d.Forge.OpenMergeRequest(ctx, forge.OpenMergeRequestInput{
			RepoURL:      state.RepoURL,
			SourceBranch: state.UpdateBranch,
			TargetBranch: state.TargetBranch,
			Title:        state.Title,
			Description:  commitmsg.MergeRequestDescription(state.Title, state.Description, string(state.IssueKey)),
		})
		if err != nil {
			return "", fmt.Errorf("open merge request: %w", err)
		}
		state.MergeRequestURL = url

		if err := d.Tracker.EditIssueLabels(ctx, string(state.IssueKey), []string{string(labels.MergeRequestOpened)}); err != nil {
			return "", fmt.Errorf("set merge-request-opened label: %w", err)
		}
		d.addFuSaLabel(ctx, state)
		if err := d.Tracker.AddIssueComment(ctx, string(state.IssueKey), fmt.Sprintf("Merge request opened: %s", url)); err != nil {
			return "", fmt.Errorf("comment merge request link: %w", err)
		}
		if err := d.Queue.PushTail(ctx, completedQueueFor(state.Kind), task); err != nil {
			d.logger().Error("push to completed list failed", "issue", state.IssueKey, "err", err)
		}
		return workflow.End, nil
	}
}

func (d Deps) failPipeline(ctx context.Context, task schema.Task, state *schema.PipelineState, cause error) error {
	if !state.DryRun {
		_ = d.Tracker.EditIssueLabels(ctx, string(task.IssueKey), []string{string(labels.Failed)})
	}
	_ = d.Tracker.AddIssueComment(ctx, string(task.IssueKey), fmt.Sprintf("Jötnar pipeline failed: %v", cause))
	if err := d.Queue.PushTail(ctx, workqueue.ErrorList, task); err != nil {
		d.logger().Error("push to error_list failed", "issue", task.IssueKey, "err", err)
	}
	return cause
}

func (d Deps) cloneBaseDir() string {
	if d.CloneBaseDir != "" {
		return d.CloneBaseDir
	}
	return "/var/tmp/jotnar-clones"
}

// cloneRetention is how long a clone directory survives before the janitor
// removes it.
const cloneRetention = 14 * 24 * time.Hour
