// Package forge is the dist-git forge tool family (C1): fork a package
// repository, clone it, push an update branch, and open a merge request —
// idempotently, since the pipeline may retry any of these after a crash.
// It wraps the `git` binary via os/exec with credential-masked output, the
// same way the teacher's internal/git client does.
package forge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"regexp"
	"time"
)

var (
	githubPATPattern   = regexp.MustCompile(`https://[^@:/]+@([A-Za-z0-9.-]+)`)
	basicAuthPattern   = regexp.MustCompile(`https://[^:/]+:[^@/]+@`)
)

// maskingWriter redacts credentials embedded in git's subprocess output
// before it ever reaches a log line.
type maskingWriter struct {
	w io.Writer
}

func (m maskingWriter) Write(p []byte) (int, error) {
	s := string(p)
	s = githubPATPattern.ReplaceAllString(s, "https://***@$1")
	s = basicAuthPattern.ReplaceAllString(s, "https://***@")
	return m.w.Write([]byte(s))
}

// Client wraps subprocess `git` plus a thin REST client against the forge's
// merge-request API.
type Client struct {
	ForgeBaseURL string
	ForgeToken   string
	HTTPClient   *http.Client
}

// NewClient builds a Client against the given forge API base URL.
func NewClient(forgeBaseURL, forgeToken string) *Client {
	return &Client{ForgeBaseURL: forgeBaseURL, ForgeToken: forgeToken, HTTPClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=/bin/true")
	cmd.Stdout = maskingWriter{os.Stdout}
	cmd.Stderr = maskingWriter{os.Stderr}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %v: %w", args, err)
	}
	return nil
}

func (c *Client) runGitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_ASKPASS=/bin/true")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = maskingWriter{os.Stderr}
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %v: %w", args, err)
	}
	return out.String(), nil
}

// ForkRepository forks repoURL under the bot account, returning the fork's
// clone URL. Idempotent: a fork that already exists is reported as such by
// the forge and treated as success.
func (c *Client) ForkRepository(ctx context.Context, repoURL string) (string, error) {
	forkURL, status, err := c.forgeRequest(ctx, http.MethodPost, "/fork", map[string]string{"repo_url": repoURL})
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated && status != http.StatusConflict {
		return "", fmt.Errorf("fork %s: unexpected status %d", repoURL, status)
	}
	return forkURL, nil
}

// CloneRepository clones repoURL into destDir with a bounded timeout,
// matching the teacher's 15-minute clone deadline.
func (c *Client) CloneRepository(ctx context.Context, repoURL, destDir string) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	defer cancel()
	return c.runGit(ctx, "", "clone", repoURL, destDir)
}

// RemoteBranchExists reports whether branch exists on origin.
func (c *Client) RemoteBranchExists(ctx context.Context, dir, branch string) (bool, error) {
	out, err := c.runGitOutput(ctx, dir, "ls-remote", "--heads", "origin", branch)
	if err != nil {
		return false, err
	}
	return len(out) > 0, nil
}

// CheckoutNewBranch creates (or resets, via -B) branch off the current HEAD.
func (c *Client) CheckoutNewBranch(ctx context.Context, dir, branch string) error {
	return c.runGit(ctx, dir, "checkout", "-B", branch)
}

// StageFiles adds exactly the given files (never `git add -A`), falling
// back to a *.spec glob when files is empty, per the dist-git convention of
// never staging generated artifacts.
func (c *Client) StageFiles(ctx context.Context, dir string, files []string) error {
	if len(files) == 0 {
		return c.runGit(ctx, dir, "add", "--", "*.spec")
	}
	args := append([]string{"add", "--"}, files...)
	return c.runGit(ctx, dir, args...)
}

// Commit commits staged changes with message.
func (c *Client) Commit(ctx context.Context, dir, message string) error {
	return c.runGit(ctx, dir, "commit", "-m", message)
}

// PushToRemoteRepository force-pushes-with-lease the current branch to
// origin, safe against concurrent pushes from a different run clobbering
// each other's work.
func (c *Client) PushToRemoteRepository(ctx context.Context, dir, branch string) error {
	return c.runGit(ctx, dir, "push", "--force-with-lease", "origin", "HEAD:refs/heads/"+branch)
}

// OpenMergeRequestInput is the input to OpenMergeRequest.
type OpenMergeRequestInput struct {
	RepoURL      string `json:"repo_url"`
	SourceBranch string `json:"source_branch"`
	TargetBranch string `json:"target_branch"`
	Title        string `json:"title"`
	Description  string `json:"description"`
}

// OpenMergeRequest opens a merge request, or reuses an already-open one
// (HTTP 409) for the same source/target branch pair — the rebase and
// backport workflows may retry this step after a crash, and must not open
// duplicate MRs.
func (c *Client) OpenMergeRequest(ctx context.Context, in OpenMergeRequestInput) (string, error) {
	url, status, err := c.forgeRequest(ctx, http.MethodPost, "/merge_requests", in)
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated && status != http.StatusConflict {
		return "", fmt.Errorf("open merge request for %s: unexpected status %d", in.RepoURL, status)
	}
	return url, nil
}

// AddMergeRequestLabel adds label to the merge request at mergeRequestURL, a
// best-effort fan-out for §4.6 step 8 that the caller logs and continues past
// on failure rather than failing the whole pipeline run.
func (c *Client) AddMergeRequestLabel(ctx context.Context, mergeRequestURL, label string) error {
	_, status, err := c.forgeRequest(ctx, http.MethodPost, "/merge_requests/label", map[string]string{
		"merge_request_url": mergeRequestURL,
		"label":             label,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated && status != http.StatusConflict {
		return fmt.Errorf("label merge request %s: unexpected status %d", mergeRequestURL, status)
	}
	return nil
}

// GetInternalRHELBranches lists the internal-only branches available for
// repoURL, used by the branch-mapping step to decide whether an
// internal-fix target is actually reachable.
func (c *Client) GetInternalRHELBranches(ctx context.Context, repoURL string) ([]string, error) {
	body, status, err := c.forgeRequestRaw(ctx, http.MethodGet, "/internal_branches?repo_url="+repoURL, nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("list internal branches for %s: status %d", repoURL, status)
	}
	return parseBranchList(body), nil
}
