package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"jotnar/internal/agentrunner"
	"jotnar/internal/commitmsg"
	"jotnar/internal/labels"
	"jotnar/internal/schema"
	"jotnar/internal/tools/forge"
	"jotnar/internal/workflow"
)

const backportAgentPromptTemplate = `You are the Jötnar backport agent. Cherry
-pick the requested upstream commit(s) onto the package's dist-git spec
and sources for the target branch. If build_error is non-empty, it is the
failure from a previous build attempt against your last patch set — adjust
accordingly. Respond with a single JSON object naming the files to stage
and a changelog note.`

type backportAgentOutput struct {
	Title         string   `json:"title"`
	FilesToGitAdd []string `json:"files_to_git_add"`
	ChangelogNote string   `json:"changelog_note"`
	SRPMPath      string   `json:"srpm_path,omitempty"`
}

// RunBackport takes a task popped off a backport queue and drives it through the
// same fork/clone/agent/build-retry/stage-once/log/push shape as RunRebase,
// with a backport-specific agent prompt.
func RunBackport(ctx context.Context, deps Deps, task schema.Task, dryRun bool) error {
	var meta schema.BackportMetadata
	if err := task.DecodeMetadata(&meta); err != nil {
		return fmt.Errorf("backport %s: %w", task.IssueKey, err)
	}

	pkg := meta.Package
	if pkg == "" {
		pkg = packageNameFromRepoURL(meta.RepoURL)
	}

	state := &schema.PipelineState{
		Kind:             schema.PipelineBackport,
		IssueKey:         task.IssueKey,
		RepoURL:          meta.RepoURL,
		Package:          pkg,
		TargetBranch:     meta.TargetBranch,
		UpdateBranch:     fmt.Sprintf("jotnar-%s", task.IssueKey),
		UpstreamRef:      meta.UpstreamRef,
		DryRun:           dryRun,
		FunctionalSafety: isFunctionalSafety(deps.FuSaPackages, pkg, meta.TargetBranch),
	}

	wf := workflow.New("start")
	wf.AddStep("start", deps.stepStartBackport(task))
	wf.AddStep("clone", deps.stepCloneBackport(task))
	wf.AddStep("run_agent", deps.stepRunBackportAgent(task))
	wf.AddStep("build", deps.stepBuild(task))
	wf.AddStep("build_failed", deps.stepBuildFailed(task))
	wf.AddStep("stage", deps.stepStageAndCommitBackport(task))
	wf.AddStep("log", deps.stepRunLogAgentBackport(task))
	wf.AddStep("push", deps.stepPushAndOpenMergeRequestBackport(task))

	if err := workflow.Run(wf, state); err != nil {
		return deps.failPipeline(ctx, task, state, err)
	}
	return nil
}

func (d Deps) stepStartBackport(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		if err := d.Tracker.ChangeIssueStatus(ctx, string(state.IssueKey), "In Progress"); err != nil {
			return "", fmt.Errorf("change issue status: %w", err)
		}
		return "clone", nil
	}
}

func (d Deps) stepCloneBackport(task schema.Task) workflow.Step {
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

func (d Deps) stepRunBackportAgent(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		out, err := agentrunner.Run[backportAgentOutput](ctx, d.Runner, backportAgentPromptTemplate, state, nil, d.Caps)
		if err != nil {
			return "", fmt.Errorf("backport agent: %w", err)
		}
		state.FilesToGitAdd = out.FilesToGitAdd
		state.ChangelogNote = out.ChangelogNote
		state.SRPMPath = out.SRPMPath
		return "build", nil
	}
}

func (d Deps) stepStageAndCommitBackport(task schema.Task) workflow.Step {
	return func(s interface{}) (string, error) {
		state := s.(*schema.PipelineState)
		ctx := context.Background()

		if err := d.Forge.StageFiles(ctx, state.CloneDir, state.FilesToGitAdd); err != nil {
			return "", fmt.Errorf("stage files: %w", err)
		}
		return "log", nil
	}
}

func (d Deps) stepRunLogAgentBackport(task schema.Task) workflow.Step {
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

func (d Deps) stepPushAndOpenMergeRequestBackport(task schema.Task) workflow.Step {
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
