package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskMetadataRoundTrip(t *testing.T) {
	meta := RebaseMetadata{TargetBranch: "rhel-9.4", RepoURL: "https://example.test/bash.git", NewVersion: "5.3"}
	task, err := NewTask("RHEL-1", meta)
	require.NoError(t, err)
	require.NotEmpty(t, task.ID)

	raw, err := json.Marshal(task)
	require.NoError(t, err)

	var decoded Task
	require.NoError(t, json.Unmarshal(raw, &decoded))

	var gotMeta RebaseMetadata
	require.NoError(t, decoded.DecodeMetadata(&gotMeta))
	assert.Equal(t, meta, gotMeta)
	assert.Equal(t, task.ID, decoded.ID)
	assert.Equal(t, IssueKey("RHEL-1"), decoded.IssueKey)
}

func TestTriageOutputValidate(t *testing.T) {
	cases := []struct {
		name    string
		out     TriageOutput
		wantErr bool
	}{
		{"valid rebase", TriageOutput{Resolution: ResolutionRebase, Rebase: &RebasePayload{NewVersion: "1.2"}}, false},
		{"missing payload", TriageOutput{Resolution: ResolutionRebase}, true},
		{"wrong payload", TriageOutput{Resolution: ResolutionRebase, Backport: &BackportPayload{UpstreamRef: "x"}}, true},
		{"two payloads", TriageOutput{Resolution: ResolutionNoAction, NoAction: &NoActionPayload{Reason: "x"}, Error: &ErrorPayload{Message: "y"}}, true},
		{"unknown resolution", TriageOutput{Resolution: "bogus"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.out.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPipelineStateRoundTrip(t *testing.T) {
	st := PipelineState{
		Kind:     PipelineRebase,
		IssueKey: "RHEL-2",
		RepoURL:  "https://example.test/bash.git",
		TargetBranch: "rhel-9.4",
		FilesToGitAdd: []string{"bash.spec"},
		DryRun: true,
	}
	raw, err := json.Marshal(st)
	require.NoError(t, err)
	var decoded PipelineState
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, st, decoded)
}
