// Package builder is the build-service tool family (C1): submit a build,
// poll it to completion, and download the resulting artifacts. Polling uses
// a fixed interval and an overall deadline, since a build service with no
// push notification is the common case for dist-git build systems.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Client is a thin REST client for the build service.
type Client struct {
	BaseURL      string
	APIToken     string
	HTTPClient   *http.Client
	PollInterval time.Duration
	PollDeadline time.Duration
}

// NewClient builds a Client with the spec's default 30-second poll interval
// and 3-hour deadline.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIToken:     apiToken,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
		PollInterval: 30 * time.Second,
		PollDeadline: 3 * time.Hour,
	}
}

// BuildStatus is the closed set of states a build can report.
type BuildStatus string

const (
	BuildPending BuildStatus = "pending"
	BuildRunning BuildStatus = "running"
	BuildSuccess BuildStatus = "success"
	BuildFailed  BuildStatus = "failed"
)

// BuildPackageInput names what to build. TicketID tags the build so it can
// be traced back to the issue that triggered it and re-submitted
// idempotently across retries; SRPMPath, when set, points the build service
// at an already-assembled SRPM instead of having it build one from SourceRef.
type BuildPackageInput struct {
	Package      string `json:"package"`
	TargetBranch string `json:"target_branch"`
	SourceRef    string `json:"source_ref"`
	SRPMPath     string `json:"srpm_path,omitempty"`
	TicketID     string `json:"ticket_id"`
}

// BuildResult is what BuildPackage returns once the build reaches a
// terminal state.
type BuildResult struct {
	BuildID string      `json:"build_id"`
	Status  BuildStatus `json:"status"`
	LogURL  string      `json:"log_url,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// BuildPackage submits a build and polls it to a terminal state, bounded by
// PollDeadline. The error returned on a failed build is nil: a failed build
// is a normal, expected outcome the caller inspects via Status/Error, not a
// transport failure.
func (c *Client) BuildPackage(ctx context.Context, in BuildPackageInput) (BuildResult, error) {
	buildID, err := c.submit(ctx, in)
	if err != nil {
		return BuildResult{}, fmt.Errorf("submit build: %w", err)
	}

	deadline := time.Now().Add(c.PollDeadline)
	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	for {
		result, err := c.poll(ctx, buildID)
		if err != nil {
			return BuildResult{}, fmt.Errorf("poll build %s: %w", buildID, err)
		}
		if result.Status == BuildSuccess || result.Status == BuildFailed {
			return result, nil
		}
		if time.Now().After(deadline) {
			return BuildResult{BuildID: buildID, Status: BuildFailed, Error: "build poll deadline exceeded"}, nil
		}

		select {
		case <-ctx.Done():
			return BuildResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) submit(ctx context.Context, in BuildPackageInput) (string, error) {
	body, status, err := c.do(ctx, http.MethodPost, "/builds", in)
	if err != nil {
		return "", err
	}
	if status >= 400 {
		return "", fmt.Errorf("status %d: %s", status, string(body))
	}
	var parsed struct {
		BuildID string `json:"build_id"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	return parsed.BuildID, nil
}

func (c *Client) poll(ctx context.Context, buildID string) (BuildResult, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/builds/"+buildID, nil)
	if err != nil {
		return BuildResult{}, err
	}
	if status >= 400 {
		return BuildResult{}, fmt.Errorf("status %d: %s", status, string(body))
	}
	var result BuildResult
	if err := json.Unmarshal(body, &result); err != nil {
		return BuildResult{}, fmt.Errorf("decode build status: %w", err)
	}
	return result, nil
}

// DownloadArtifacts fetches every build artifact into destDir.
func (c *Client) DownloadArtifacts(ctx context.Context, buildID, destDir string) ([]string, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/builds/"+buildID+"/artifacts", nil)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("list artifacts for %s: status %d", buildID, status)
	}
	var parsed struct {
		Artifacts []string `json:"artifacts"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode artifact list: %w", err)
	}

	var paths []string
	for _, name := range parsed.Artifacts {
		path, err := c.downloadOne(ctx, buildID, name, destDir)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (c *Client) downloadOne(ctx context.Context, buildID, name, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/builds/"+buildID+"/artifacts/"+name, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download artifact %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download artifact %s: status %d", name, resp.StatusCode)
	}

	destPath := filepath.Join(destDir, name)
	out, err := os.Create(destPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", destPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", fmt.Errorf("write %s: %w", destPath, err)
	}
	return destPath, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = strings.NewReader(string(raw))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
