package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetIssueDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/issue/RHEL-1", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "bot", user)
		assert.Equal(t, "token", pass)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key": "RHEL-1",
			"fields": map[string]interface{}{
				"summary":     "Rebase bash",
				"description": "Please rebase",
				"fixVersions": []map[string]string{{"name": "rhel-9.4.0"}},
				"labels":      []string{"CVE"},
				"reporter":    map[string]string{"accountId": "acct-1"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	issue, err := c.GetIssueDetails(context.Background(), "RHEL-1")
	require.NoError(t, err)
	assert.Equal(t, "RHEL-1", issue.Key)
	assert.Equal(t, []string{"rhel-9.4.0"}, issue.FixVersions)
	assert.Equal(t, "acct-1", issue.ReporterID)
}

func TestChangeIssueStatusResolvesTransitionByName(t *testing.T) {
	var postedID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"transitions": []map[string]interface{}{
					{"id": "31", "name": "In Progress", "to": map[string]string{"name": "In Progress"}},
					{"id": "41", "name": "Blocked", "to": map[string]string{"name": "Blocked"}},
				},
			})
		case r.Method == http.MethodPost:
			var body struct {
				Transition struct {
					ID string `json:"id"`
				} `json:"transition"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			postedID = body.Transition.ID
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	err := c.ChangeIssueStatus(context.Background(), "RHEL-1", "in progress")
	require.NoError(t, err)
	assert.Equal(t, "31", postedID)
}

func TestCheckCVETriageEligibilityNonCVEAlwaysEligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key":    "RHEL-2",
			"fields": map[string]interface{}{"labels": []string{"triaged"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	result, err := c.CheckCVETriageEligibility(context.Background(), "RHEL-2")
	require.NoError(t, err)
	assert.False(t, result.IsCVE)
	assert.True(t, result.IsEligibleForTriage)
	assert.Equal(t, "Not a CVE", result.Reason)
}

func TestCheckCVETriageEligibilityHighSeverityZStreamNeedsInternalFix(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key": "RHEL-3",
			"fields": map[string]interface{}{
				"labels":             []string{"SecurityTracking"},
				"fixVersions":        []map[string]string{{"name": "rhel-9.4.z"}},
				"customfield_12316142": map[string]string{"value": "Important"},
				"customfield_12324750": map[string]string{"value": "False"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	result, err := c.CheckCVETriageEligibility(context.Background(), "RHEL-3")
	require.NoError(t, err)
	assert.True(t, result.IsCVE)
	assert.True(t, result.IsEligibleForTriage)
	assert.True(t, result.NeedsInternalFix)
	assert.Contains(t, result.Reason, "High severity CVE (Important)")
}

func TestCheckCVETriageEligibilityYStreamIneligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key": "RHEL-4",
			"fields": map[string]interface{}{
				"labels":      []string{"SecurityTracking"},
				"fixVersions": []map[string]string{{"name": "rhel-9.4"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	result, err := c.CheckCVETriageEligibility(context.Background(), "RHEL-4")
	require.NoError(t, err)
	assert.True(t, result.IsCVE)
	assert.False(t, result.IsEligibleForTriage)
	assert.Equal(t, "Y-stream CVEs will be handled in Z-stream", result.Reason)
}

func TestCheckCVETriageEligibilityEmbargoedIneligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key": "RHEL-5",
			"fields": map[string]interface{}{
				"labels":             []string{"SecurityTracking"},
				"fixVersions":        []map[string]string{{"name": "rhel-9.4.z"}},
				"customfield_12324750": map[string]string{"value": "True"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	result, err := c.CheckCVETriageEligibility(context.Background(), "RHEL-5")
	require.NoError(t, err)
	assert.True(t, result.IsCVE)
	assert.False(t, result.IsEligibleForTriage)
	assert.Equal(t, "CVE is embargoed", result.Reason)
}

func TestCheckCVETriageEligibilityNoFixVersionsIneligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"key":    "RHEL-6",
			"fields": map[string]interface{}{"labels": []string{"SecurityTracking"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	result, err := c.CheckCVETriageEligibility(context.Background(), "RHEL-6")
	require.NoError(t, err)
	assert.True(t, result.IsCVE)
	assert.False(t, result.IsEligibleForTriage)
	assert.Equal(t, "CVE has no target release specified", result.Error)
}

func TestSearchCandidatesPaginatesAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/2/search", r.URL.Path)
		var body struct {
			JQL        string `json:"jql"`
			StartAt    int    `json:"startAt"`
			MaxResults int    `json:"maxResults"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 20, body.StartAt)
		assert.Equal(t, 10, body.MaxResults)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"total": 21,
			"issues": []map[string]interface{}{
				{
					"key": "RHEL-5",
					"fields": map[string]interface{}{
						"summary":     "Rebase vim",
						"fixVersions": []map[string]string{{"name": "rhel-9.5.0"}},
						"labels":      []string{"retry_needed"},
						"reporter":    map[string]string{"accountId": "acct-2"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	issues, total, err := c.SearchCandidates(context.Background(), "project = RHEL", 10, 20)
	require.NoError(t, err)
	assert.Equal(t, 21, total)
	require.Len(t, issues, 1)
	assert.Equal(t, "RHEL-5", issues[0].Key)
	assert.Equal(t, []string{"rhel-9.5.0"}, issues[0].FixVersions)
	assert.Equal(t, []string{"retry_needed"}, issues[0].Labels)
}

func TestSearchCandidatesRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bot", "token")
	_, _, err := c.SearchCandidates(context.Background(), "project = RHEL", 10, 0)
	require.Error(t, err)
	var rle *RateLimitedError
	require.ErrorAs(t, err, &rle)
}
