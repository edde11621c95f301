package schema

// PipelineKind distinguishes the two engineering workflows C6 can run.
type PipelineKind string

const (
	PipelineRebase   PipelineKind = "rebase"
	PipelineBackport PipelineKind = "backport"
)

// PipelineState is the mutable value a Workflow's steps read and write as
// they run; it is exclusively owned by the single goroutine driving the
// workflow for one Task, so it carries no internal locking.
type PipelineState struct {
	Kind     PipelineKind `json:"kind"`
	IssueKey IssueKey     `json:"issue_key"`
	RepoURL  string       `json:"repo_url"`
	Package  string       `json:"package"`

	TargetBranch string `json:"target_branch"`
	CloneDir     string `json:"clone_dir"`
	UpdateBranch string `json:"update_branch"`

	// ForkURL is the bot-account fork's clone URL, populated by
	// fork_and_prepare_dist_git; the clone is taken from here, while
	// RepoURL remains the canonical repo the merge request targets.
	ForkURL string `json:"fork_url,omitempty"`

	// Rebase-specific.
	NewVersion string `json:"new_version,omitempty"`

	// Backport-specific.
	UpstreamRef string   `json:"upstream_ref,omitempty"`
	CommitShas  []string `json:"commit_shas,omitempty"`

	// Populated by run_rebase_agent / run_backport_agent, consumed by
	// run_log_agent and stage_changes.
	FilesToGitAdd []string `json:"files_to_git_add,omitempty"`
	ChangelogNote string   `json:"changelog_note,omitempty"`
	SRPMPath      string   `json:"srpm_path,omitempty"`

	// Title/Description are populated by run_log_agent, once per
	// successful build, and are what the commit message and merge request
	// description are built from.
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`

	// BuildError carries the most recent build failure back into the next
	// rebase/backport agent call, so it can adjust its patch; cleared on a
	// successful build.
	BuildError string `json:"build_error,omitempty"`
	BuildAttempts int  `json:"build_attempts"`

	// DryRun suppresses push / merge-request / label side effects while
	// still running the full agent and build sequence (Scenario S6).
	DryRun bool `json:"dry_run"`

	// MergeRequestURL is set once open_merge_request succeeds.
	MergeRequestURL string `json:"merge_request_url,omitempty"`

	// FunctionalSafety is true when the target package is on the
	// functional-safety list and TargetBranch matches the functional-safety
	// regex, gating the best-effort add_fusa_label fan-out.
	FunctionalSafety bool `json:"functional_safety"`
}

// TargetBranchInput is the pure-function input for branch resolution.
type TargetBranchInput struct {
	FixVersions          []string
	CVENeedsInternalFix  bool
	InternalBranchExists bool
}

// TargetBranchResult is the pure-function output of branch resolution.
type TargetBranchResult struct {
	Branch    string
	IsZStream bool
	Internal  bool
}
