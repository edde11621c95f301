package pipeline

import (
	"context"
	"fmt"
	"regexp"

	"jotnar/internal/agentrunner"
	"jotnar/internal/labels"
	"jotnar/internal/schema"
)

const logAgentPromptTemplate = `You are the Jötnar log agent. Given the
issue this pipeline run resolves and a summary of the changes the rebase or
backport agent made, write a commit title (no more than 80 characters) and
a short description paragraph. Do not reference the issue key; it is
appended separately. Respond with a single JSON object matching the log
output schema.`

// logAgentInput is what the log agent sees: the ticket and a plain-text
// summary of what changed, not the full diff.
type logAgentInput struct {
	IssueKey       schema.IssueKey `json:"jira_issue"`
	ChangesSummary string          `json:"changes_summary"`
}

// logAgentOutput is the {title, description} pair §4.6 step 6 produces,
// which the commit message and merge request description are built from.
type logAgentOutput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// runLogAgent is the dedicated second agent call every rebase/backport run
// makes once a build has succeeded, separate from the rebase/backport
// agent's own output, per §4.6 step 6.
func (d Deps) runLogAgent(ctx context.Context, state *schema.PipelineState) error {
	out, err := agentrunner.Run[logAgentOutput](ctx, d.Runner, logAgentPromptTemplate, logAgentInput{
		IssueKey:       state.IssueKey,
		ChangesSummary: state.ChangelogNote,
	}, nil, d.Caps)
	if err != nil {
		return fmt.Errorf("log agent: %w", err)
	}
	state.Title = out.Title
	state.Description = out.Description
	return nil
}

// fusaBranchRegex matches the branches in scope for the functional-safety
// label fan-out: CentOS Stream 9 ("c9s") or RHEL 9.x.0 for x in [0,10].
var fusaBranchRegex = regexp.MustCompile(`^c9s$|^rhel-9\.([0-9]|10)\.0$`)

// isFunctionalSafety reports whether pkg/branch is in scope for §4.6 step 8's
// add_fusa_label fan-out: the package must be on the configured
// functional-safety list and the target branch must match fusaBranchRegex.
func isFunctionalSafety(fusaPackages []string, pkg, branch string) bool {
	if !fusaBranchRegex.MatchString(branch) {
		return false
	}
	for _, p := range fusaPackages {
		if p == pkg {
			return true
		}
	}
	return false
}

// addFuSaLabel is the best-effort fan-out of §4.6 step 8: it labels both the
// ticket and (if a merge request was opened) the MR, logging rather than
// failing the run on an MR-labeling error.
func (d Deps) addFuSaLabel(ctx context.Context, state *schema.PipelineState) {
	if !state.FunctionalSafety || state.DryRun {
		return
	}

	issue, err := d.Tracker.GetIssueDetails(ctx, string(state.IssueKey))
	if err != nil {
		d.logger().Warn("fusa label: reload issue failed", "issue", state.IssueKey, "err", err)
		return
	}
	withFuSa := toStrings(labels.AddFuSa(toLabels(issue.Labels)))
	if err := d.Tracker.EditIssueLabels(ctx, string(state.IssueKey), withFuSa); err != nil {
		d.logger().Warn("fusa label: set issue label failed", "issue", state.IssueKey, "err", err)
	}

	if state.MergeRequestURL == "" {
		return
	}
	if err := d.Forge.AddMergeRequestLabel(ctx, state.MergeRequestURL, string(labels.FuSa)); err != nil {
		d.logger().Warn("fusa label: set merge request label failed", "issue", state.IssueKey, "err", err)
	}
}
