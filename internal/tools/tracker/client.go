// Package tracker is the issue-tracker tool family (C1): get/set issue
// fields, comment, transition status, edit labels, verify the reporting
// author, and check CVE triage eligibility. It speaks plain REST + Basic
// Auth against a Jira-shaped API, the same way the teacher's internal/jira
// client does, since RHEL's issue tracker plays the same role Jira plays
// there.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Client is a minimal REST client for the issue tracker, built entirely on
// net/http + Basic Auth — no SDK, matching internal/jira/client.go.
type Client struct {
	BaseURL    string
	Username   string
	APIToken   string
	HTTPClient *http.Client
}

// NewClient builds a Client with a sane default timeout.
func NewClient(baseURL, username, apiToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Username:   username,
		APIToken:   apiToken,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.Username, c.APIToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// Issue is the subset of fields the pipeline reads off a ticket.
type Issue struct {
	Key         string            `json:"key"`
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	FixVersions []string          `json:"fix_versions"`
	Labels      []string          `json:"labels"`
	ReporterID  string            `json:"reporter_id"`
	Severity    string            `json:"severity,omitempty"`
	Embargoed   bool              `json:"embargoed,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

// Jira custom field IDs the security team maintains on CVE-tracking issues.
const (
	severityCustomField = "customfield_12316142"
	embargoCustomField  = "customfield_12324750"
)

// priorityLabels, if present on a CVE ticket, force an internal RHEL fix
// ahead of the public CentOS Stream branch regardless of severity.
var priorityLabels = []string{"compliance-priority", "contract-priority"}

// GetIssueDetails fetches an issue by key.
func (c *Client) GetIssueDetails(ctx context.Context, key string) (Issue, error) {
	body, status, err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+key, nil)
	if err != nil {
		return Issue{}, err
	}
	if status >= 400 {
		return Issue{}, fmt.Errorf("get issue %s: status %d: %s", key, status, string(body))
	}

	var raw struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string   `json:"summary"`
			Description string   `json:"description"`
			FixVersions []struct {
				Name string `json:"name"`
			} `json:"fixVersions"`
			Labels   []string `json:"labels"`
			Reporter struct {
				AccountID string `json:"accountId"`
			} `json:"reporter"`
			Severity struct {
				Value string `json:"value"`
			} `json:"customfield_12316142"`
			Embargo struct {
				Value string `json:"value"`
			} `json:"customfield_12324750"`
		} `json:"fields"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Issue{}, fmt.Errorf("decode issue %s: %w", key, err)
	}

	issue := Issue{
		Key:         raw.Key,
		Summary:     raw.Fields.Summary,
		Description: raw.Fields.Description,
		Labels:      raw.Fields.Labels,
		ReporterID:  raw.Fields.Reporter.AccountID,
		Severity:    raw.Fields.Severity.Value,
		Embargoed:   raw.Fields.Embargo.Value == "True",
	}
	for _, fv := range raw.Fields.FixVersions {
		issue.FixVersions = append(issue.FixVersions, fv.Name)
	}
	return issue, nil
}

// SetIssueFieldsInput names the fields to overwrite; only non-nil fields
// are sent, so callers can update one field without clobbering the rest.
type SetIssueFieldsInput struct {
	Key    string            `json:"key"`
	Fields map[string]string `json:"fields"`
}

// SetIssueFields patches the named fields on key.
func (c *Client) SetIssueFields(ctx context.Context, in SetIssueFieldsInput) error {
	payload := map[string]interface{}{"fields": in.Fields}
	body, status, err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+in.Key, payload)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("set fields on %s: status %d: %s", in.Key, status, string(body))
	}
	return nil
}

// AddIssueComment posts a comment, built as Atlassian Document Format so it
// renders correctly in the tracker UI.
func (c *Client) AddIssueComment(ctx context.Context, key, text string) error {
	payload := map[string]interface{}{
		"body": map[string]interface{}{
			"type":    "doc",
			"version": 1,
			"content": []map[string]interface{}{
				{
					"type": "paragraph",
					"content": []map[string]interface{}{
						{"type": "text", "text": text},
					},
				},
			},
		},
	}
	body, status, err := c.do(ctx, http.MethodPost, "/rest/api/3/issue/"+key+"/comment", payload)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("add comment on %s: status %d: %s", key, status, string(body))
	}
	return nil
}

// ChangeIssueStatus transitions key to the named status, resolving the
// status name to a transition ID first (the tracker API requires an ID, not
// a name).
func (c *Client) ChangeIssueStatus(ctx context.Context, key, statusName string) error {
	body, status, err := c.do(ctx, http.MethodGet, "/rest/api/2/issue/"+key+"/transitions", nil)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("list transitions for %s: status %d: %s", key, status, string(body))
	}

	var parsed struct {
		Transitions []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
			To   struct {
				Name string `json:"name"`
			} `json:"to"`
		} `json:"transitions"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("decode transitions for %s: %w", key, err)
	}

	var transitionID string
	for _, t := range parsed.Transitions {
		if strings.EqualFold(t.Name, statusName) || strings.EqualFold(t.To.Name, statusName) {
			transitionID = t.ID
			break
		}
	}
	if transitionID == "" {
		return fmt.Errorf("no transition to %q available on %s", statusName, key)
	}

	payload := map[string]interface{}{"transition": map[string]string{"id": transitionID}}
	respBody, respStatus, err := c.do(ctx, http.MethodPost, "/rest/api/2/issue/"+key+"/transitions", payload)
	if err != nil {
		return err
	}
	if respStatus >= 400 {
		return fmt.Errorf("transition %s to %q: status %d: %s", key, statusName, respStatus, string(respBody))
	}
	return nil
}

// EditIssueLabels replaces the full label set on key.
func (c *Client) EditIssueLabels(ctx context.Context, key string, labels []string) error {
	payload := map[string]interface{}{"fields": map[string]interface{}{"labels": labels}}
	body, status, err := c.do(ctx, http.MethodPut, "/rest/api/2/issue/"+key, payload)
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("edit labels on %s: status %d: %s", key, status, string(body))
	}
	return nil
}

// VerifyIssueAuthor reports whether the issue's reporter matches an
// allow-listed account, guarding the rebase workflow against acting on
// tickets opened by an untrusted reporter.
func (c *Client) VerifyIssueAuthor(ctx context.Context, key string, allowedReporterIDs []string) (bool, error) {
	issue, err := c.GetIssueDetails(ctx, key)
	if err != nil {
		return false, err
	}
	for _, id := range allowedReporterIDs {
		if id == issue.ReporterID {
			return true, nil
		}
	}
	return false, nil
}

// RateLimitedError is returned by SearchCandidates on a 429 response, so
// callers can apply their own backoff policy without this client needing to
// know one.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("tracker search rate limited, retry after %s", e.RetryAfter)
}

// SearchCandidates runs jql paginated by pageSize/offset, returning the
// matching issues and the total result count the tracker reports.
func (c *Client) SearchCandidates(ctx context.Context, jql string, pageSize, offset int) ([]Issue, int, error) {
	payload := map[string]interface{}{
		"jql":        jql,
		"startAt":    offset,
		"maxResults": pageSize,
		"fields":     []string{"summary", "description", "fixVersions", "labels", "reporter"},
	}
	body, status, err := c.do(ctx, http.MethodPost, "/rest/api/2/search", payload)
	if err != nil {
		return nil, 0, err
	}
	if status == http.StatusTooManyRequests {
		return nil, 0, &RateLimitedError{RetryAfter: 5 * time.Second}
	}
	if status >= 400 {
		return nil, 0, fmt.Errorf("search candidates: status %d: %s", status, string(body))
	}

	var parsed struct {
		Total  int `json:"total"`
		Issues []struct {
			Key    string `json:"key"`
			Fields struct {
				Summary     string   `json:"summary"`
				Description string   `json:"description"`
				FixVersions []struct {
					Name string `json:"name"`
				} `json:"fixVersions"`
				Labels   []string `json:"labels"`
				Reporter struct {
					AccountID string `json:"accountId"`
				} `json:"reporter"`
			} `json:"fields"`
		} `json:"issues"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, fmt.Errorf("decode search results: %w", err)
	}

	issues := make([]Issue, len(parsed.Issues))
	for i, raw := range parsed.Issues {
		issue := Issue{
			Key:         raw.Key,
			Summary:     raw.Fields.Summary,
			Description: raw.Fields.Description,
			Labels:      raw.Fields.Labels,
			ReporterID:  raw.Fields.Reporter.AccountID,
		}
		for _, fv := range raw.Fields.FixVersions {
			issue.FixVersions = append(issue.FixVersions, fv.Name)
		}
		issues[i] = issue
	}
	return issues, parsed.Total, nil
}

// CVEEligibilityResult is the step-1 short-circuit decision: whether a
// ticket is CVE-tracking and, if so, whether it is eligible for this
// pipeline to triage at all, only ever processing Z-stream CVEs and leaving
// Y-stream CVEs to be handled in the next Z-stream.
type CVEEligibilityResult struct {
	IsCVE               bool   `json:"is_cve"`
	IsEligibleForTriage bool   `json:"is_eligible_for_triage"`
	Reason              string `json:"reason"`
	NeedsInternalFix    bool   `json:"needs_internal_fix,omitempty"`
	Error               string `json:"error,omitempty"`
}

var yStreamVersion = regexp.MustCompile(`^rhel-\d+\.\d+$`)

// CheckCVETriageEligibility decides whether key should ever reach the triage
// agent. Non-CVEs are always eligible. CVEs are only eligible once they
// target a Z-stream fix version, are not embargoed, and have a target
// release at all; eligible CVEs additionally carry whether they need an
// internal RHEL fix first, based on severity and the priority labels the
// security team applies.
func (c *Client) CheckCVETriageEligibility(ctx context.Context, key string) (CVEEligibilityResult, error) {
	issue, err := c.GetIssueDetails(ctx, key)
	if err != nil {
		return CVEEligibilityResult{}, err
	}

	isCVE := false
	for _, l := range issue.Labels {
		if l == "SecurityTracking" {
			isCVE = true
			break
		}
	}
	if !isCVE {
		return CVEEligibilityResult{IsCVE: false, IsEligibleForTriage: true, Reason: "Not a CVE"}, nil
	}

	if len(issue.FixVersions) == 0 {
		return CVEEligibilityResult{
			IsCVE: true, IsEligibleForTriage: false,
			Reason: "CVE has no target release specified",
			Error:  "CVE has no target release specified",
		}, nil
	}

	targetVersion := strings.ToLower(issue.FixVersions[0])
	if yStreamVersion.MatchString(targetVersion) {
		return CVEEligibilityResult{
			IsCVE: true, IsEligibleForTriage: false,
			Reason: "Y-stream CVEs will be handled in Z-stream",
		}, nil
	}

	if issue.Embargoed {
		return CVEEligibilityResult{IsCVE: true, IsEligibleForTriage: false, Reason: "CVE is embargoed"}, nil
	}

	var matchedPriority []string
	for _, l := range issue.Labels {
		for _, p := range priorityLabels {
			if l == p {
				matchedPriority = append(matchedPriority, l)
			}
		}
	}

	lowSeverity := issue.Severity == "Low" || issue.Severity == "Moderate"
	needsInternalFix := !lowSeverity || len(matchedPriority) > 0

	var reason string
	switch {
	case !lowSeverity:
		reason = fmt.Sprintf("High severity CVE (%s) eligible for Z-stream, needs RHEL fix first", issue.Severity)
	case len(matchedPriority) > 0:
		reason = fmt.Sprintf("Priority CVE with labels %v eligible for Z-stream, needs RHEL fix first", matchedPriority)
	default:
		reason = "CVE eligible for Z-stream fix in CentOS Stream"
	}

	return CVEEligibilityResult{
		IsCVE: true, IsEligibleForTriage: true,
		Reason: reason, NeedsInternalFix: needsInternalFix,
	}, nil
}
