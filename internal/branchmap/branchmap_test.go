package branchmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jotnar/internal/schema"
)

func TestDetermineTargetBranch(t *testing.T) {
	cases := []struct {
		name string
		in   schema.TargetBranchInput
		want schema.TargetBranchResult
	}{
		{
			name: "rhel 9 y-stream",
			in:   schema.TargetBranchInput{FixVersions: []string{"rhel-9.4.0"}},
			want: schema.TargetBranchResult{Branch: "rhel-9.4.0"},
		},
		{
			name: "rhel 9 z-stream",
			in:   schema.TargetBranchInput{FixVersions: []string{"rhel-9.4.z"}},
			want: schema.TargetBranchResult{Branch: "rhel-9.4.z", IsZStream: true},
		},
		{
			name: "rhel 10 uses centos stream branch",
			in:   schema.TargetBranchInput{FixVersions: []string{"rhel-10.1"}},
			want: schema.TargetBranchResult{Branch: "c10s"},
		},
		{
			name: "cve needing internal fix with internal branch available",
			in: schema.TargetBranchInput{
				FixVersions:          []string{"rhel-9.4.z"},
				CVENeedsInternalFix:  true,
				InternalBranchExists: true,
			},
			want: schema.TargetBranchResult{Branch: "internal-rhel-9.4.z", IsZStream: true, Internal: true},
		},
		{
			name: "cve needing internal fix but no internal branch falls back to public",
			in: schema.TargetBranchInput{
				FixVersions:         []string{"rhel-9.4.z"},
				CVENeedsInternalFix: true,
			},
			want: schema.TargetBranchResult{Branch: "rhel-9.4.z", IsZStream: true},
		},
		{
			name: "picks highest of multiple fix versions",
			in:   schema.TargetBranchInput{FixVersions: []string{"rhel-9.2.0", "rhel-9.4.0"}},
			want: schema.TargetBranchResult{Branch: "rhel-9.4.0"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetermineTargetBranch(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDetermineTargetBranchRejectsUnparseable(t *testing.T) {
	_, err := DetermineTargetBranch(schema.TargetBranchInput{FixVersions: []string{"not-a-version"}})
	assert.Error(t, err)
}

func TestDetermineTargetBranchRejectsEmpty(t *testing.T) {
	_, err := DetermineTargetBranch(schema.TargetBranchInput{})
	assert.Error(t, err)
}
