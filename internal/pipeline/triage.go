package pipeline

import (
	"context"
	"fmt"
	"strings"

	"jotnar/internal/agentrunner"
	"jotnar/internal/branchmap"
	"jotnar/internal/labels"
	"jotnar/internal/schema"
	"jotnar/internal/tools/tracker"
	"jotnar/internal/workqueue"
)

const triagePromptTemplate = `You are the Jötnar triage agent. Given an RHEL
packaging issue, decide whether it needs a version rebase, an upstream
backport, clarification from the reporter, or no engineering action at all.
Respond with a single JSON object matching the triage output schema.`

// RunTriage takes a task popped off triage_queue, classifies it, and either routes
// it onto a rebase/backport queue, marks it needing clarification, or
// closes it out as no-action — the only step of the pipeline that calls
// the triage agent.
func RunTriage(ctx context.Context, deps Deps, task schema.Task) error {
	var meta schema.TriageMetadata
	if err := task.DecodeMetadata(&meta); err != nil {
		return fmt.Errorf("triage %s: %w", task.IssueKey, err)
	}

	key := string(task.IssueKey)
	issue, err := deps.Tracker.GetIssueDetails(ctx, key)
	if err != nil {
		return fmt.Errorf("triage %s: get issue: %w", task.IssueKey, err)
	}

	eligibility, err := deps.Tracker.CheckCVETriageEligibility(ctx, key)
	if err != nil {
		return fmt.Errorf("triage %s: cve eligibility: %w", task.IssueKey, err)
	}

	if err := deps.Tracker.EditIssueLabels(ctx, key, toStrings(labels.Replace(toLabels(issue.Labels), labels.Triaging))); err != nil {
		return fmt.Errorf("triage %s: set triaging label: %w", task.IssueKey, err)
	}

	// §4.6 step 1: an ineligible CVE (Y-stream, embargoed, or missing a
	// target release) is routed straight to its terminal effect without
	// ever invoking the triage agent.
	if !eligibility.IsEligibleForTriage {
		if eligibility.Error != "" {
			return deps.failTriage(ctx, task, fmt.Errorf("cve eligibility: %s", eligibility.Error))
		}
		return deps.routeToNoAction(ctx, task, &schema.NoActionPayload{Reason: eligibility.Reason})
	}

	input := schema.TriageInput{
		IssueKey:    task.IssueKey,
		Summary:     issue.Summary,
		Description: issue.Description,
		FixVersions: issue.FixVersions,
		CVEEligible: &schema.CVEEligibility{
			IsCVE:            eligibility.IsCVE,
			NeedsInternalFix: eligibility.NeedsInternalFix,
			Eligible:         eligibility.IsEligibleForTriage,
			Reason:           eligibility.Reason,
		},
	}

	output, err := agentrunner.Run[schema.TriageOutput](ctx, deps.Runner, triagePromptTemplate, input, nil, deps.Caps)
	if err != nil {
		return deps.failTriage(ctx, task, err)
	}
	if err := output.Validate(); err != nil {
		return deps.failTriage(ctx, task, err)
	}

	switch output.Resolution {
	case schema.ResolutionRebase:
		return deps.routeToRebase(ctx, task, issue, eligibility.NeedsInternalFix, output.Rebase)
	case schema.ResolutionBackport:
		return deps.routeToBackport(ctx, task, issue, eligibility.NeedsInternalFix, output.Backport)
	case schema.ResolutionClarificationNeeded:
		return deps.routeToClarification(ctx, task, output.ClarificationNeeded)
	case schema.ResolutionNoAction:
		return deps.routeToNoAction(ctx, task, output.NoAction)
	case schema.ResolutionError:
		return deps.failTriage(ctx, task, fmt.Errorf("triage reported error: %s", output.Error.Message))
	default:
		return deps.failTriage(ctx, task, fmt.Errorf("unhandled triage resolution %q", output.Resolution))
	}
}

func (d Deps) failTriage(ctx context.Context, task schema.Task, cause error) error {
	key := string(task.IssueKey)
	_ = d.Tracker.EditIssueLabels(ctx, key, []string{string(labels.Failed)})
	_ = d.Tracker.AddIssueComment(ctx, key, fmt.Sprintf("Jötnar triage failed: %v", cause))
	if err := d.Queue.PushTail(ctx, workqueue.ErrorList, task); err != nil {
		d.logger().Error("push to error_list failed", "issue", key, "err", err)
	}
	return cause
}

func (d Deps) routeToRebase(ctx context.Context, task schema.Task, issue tracker.Issue, needsInternalFix bool, payload *schema.RebasePayload) error {
	key := string(task.IssueKey)

	// §4.6 step 3: a rebase resolution from a reporter who isn't a verified
	// organization member downgrades to clarification-needed rather than
	// acting on an untrusted request.
	verified, err := d.Tracker.VerifyIssueAuthor(ctx, key, d.AllowedReporterIDs)
	if err != nil {
		return d.failTriage(ctx, task, err)
	}
	if !verified {
		return d.routeToClarification(ctx, task, &schema.ClarificationNeededPayload{
			Question: "This issue requests a rebase, but the reporter is not a verified organization member. Please confirm the request.",
		})
	}

	repoURL, err := d.repoURLFor(ctx, issue)
	if err != nil {
		return d.failTriage(ctx, task, err)
	}

	internalBranches, err := d.Forge.GetInternalRHELBranches(ctx, repoURL)
	if err != nil {
		return d.failTriage(ctx, task, err)
	}

	result, err := branchmap.DetermineTargetBranch(schema.TargetBranchInput{
		FixVersions:          issue.FixVersions,
		CVENeedsInternalFix:  needsInternalFix,
		InternalBranchExists: len(internalBranches) > 0,
	})
	if err != nil {
		return d.failTriage(ctx, task, err)
	}

	next, err := schema.NewTask(task.IssueKey, schema.RebaseMetadata{
		TargetBranch: result.Branch,
		RepoURL:      repoURL,
		Package:      packageNameFromRepoURL(repoURL),
		NewVersion:   payload.NewVersion,
	})
	if err != nil {
		return d.failTriage(ctx, task, err)
	}

	if err := d.Queue.PushTail(ctx, rebaseQueueFor(result.Branch), next); err != nil {
		return fmt.Errorf("triage %s: enqueue rebase: %w", task.IssueKey, err)
	}
	return d.Tracker.EditIssueLabels(ctx, key, toStrings(labels.Replace(toLabels(issue.Labels), labels.Rebasing)))
}

func (d Deps) routeToBackport(ctx context.Context, task schema.Task, issue tracker.Issue, needsInternalFix bool, payload *schema.BackportPayload) error {
	key := string(task.IssueKey)
	repoURL, err := d.repoURLFor(ctx, issue)
	if err != nil {
		return d.failTriage(ctx, task, err)
	}

	internalBranches, err := d.Forge.GetInternalRHELBranches(ctx, repoURL)
	if err != nil {
		return d.failTriage(ctx, task, err)
	}

	result, err := branchmap.DetermineTargetBranch(schema.TargetBranchInput{
		FixVersions:          issue.FixVersions,
		CVENeedsInternalFix:  needsInternalFix,
		InternalBranchExists: len(internalBranches) > 0,
	})
	if err != nil {
		return d.failTriage(ctx, task, err)
	}

	next, err := schema.NewTask(task.IssueKey, schema.BackportMetadata{
		TargetBranch: result.Branch,
		RepoURL:      repoURL,
		Package:      packageNameFromRepoURL(repoURL),
		UpstreamRef:  payload.UpstreamRef,
	})
	if err != nil {
		return d.failTriage(ctx, task, err)
	}

	if err := d.Queue.PushTail(ctx, backportQueueFor(result.Branch), next); err != nil {
		return fmt.Errorf("triage %s: enqueue backport: %w", task.IssueKey, err)
	}
	return d.Tracker.EditIssueLabels(ctx, key, toStrings(labels.Replace(toLabels(issue.Labels), labels.Backporting)))
}

func (d Deps) routeToClarification(ctx context.Context, task schema.Task, payload *schema.ClarificationNeededPayload) error {
	key := string(task.IssueKey)
	if err := d.Tracker.AddIssueComment(ctx, key, payload.Question); err != nil {
		return fmt.Errorf("triage %s: comment clarification: %w", task.IssueKey, err)
	}
	if err := d.Queue.PushTail(ctx, workqueue.ClarificationNeededQueue, task); err != nil {
		return fmt.Errorf("triage %s: enqueue clarification: %w", task.IssueKey, err)
	}
	currentLabels, err := d.Tracker.GetIssueDetails(ctx, key)
	if err != nil {
		return fmt.Errorf("triage %s: reload labels: %w", task.IssueKey, err)
	}
	return d.Tracker.EditIssueLabels(ctx, key, toStrings(labels.Replace(toLabels(currentLabels.Labels), labels.ClarificationNeeded)))
}

func (d Deps) routeToNoAction(ctx context.Context, task schema.Task, payload *schema.NoActionPayload) error {
	key := string(task.IssueKey)
	if err := d.Tracker.AddIssueComment(ctx, key, fmt.Sprintf("No engineering action required: %s", payload.Reason)); err != nil {
		return fmt.Errorf("triage %s: comment no-action: %w", task.IssueKey, err)
	}
	if err := d.Queue.PushTail(ctx, workqueue.NoActionList, task); err != nil {
		return fmt.Errorf("triage %s: enqueue no-action: %w", task.IssueKey, err)
	}
	currentLabels, err := d.Tracker.GetIssueDetails(ctx, key)
	if err != nil {
		return fmt.Errorf("triage %s: reload labels: %w", task.IssueKey, err)
	}
	return d.Tracker.EditIssueLabels(ctx, key, toStrings(labels.Replace(toLabels(currentLabels.Labels), labels.NoActionNeeded)))
}

func (d Deps) repoURLFor(ctx context.Context, issue tracker.Issue) (string, error) {
	if url, ok := issue.Fields["repo_url"]; ok && url != "" {
		return url, nil
	}
	return "", fmt.Errorf("issue %s has no repo_url field", issue.Key)
}

// packageNameFromRepoURL derives the dist-git package name from a repo URL's
// last path segment, e.g. "https://gitlab.example.com/rpms/vim.git" -> "vim".
func packageNameFromRepoURL(repoURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func toLabels(ss []string) []labels.Label {
	out := make([]labels.Label, len(ss))
	for i, s := range ss {
		out[i] = labels.Label(s)
	}
	return out
}

func toStrings(ls []labels.Label) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = string(l)
	}
	return out
}
