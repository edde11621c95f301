package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceEnforcesSingleManagedLabel(t *testing.T) {
	current := []Label{Triaging, "team-x", RetryNeeded}
	next := Rebasing

	got := Replace(current, next)

	assert.Contains(t, got, Label("team-x"))
	assert.Contains(t, got, Rebasing)
	assert.NotContains(t, got, Triaging)
	assert.NotContains(t, got, RetryNeeded)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(Failed))
	assert.True(t, IsTerminal(MergeRequestOpened))
	assert.False(t, IsTerminal(Triaging))
	assert.False(t, IsTerminal(RetryNeeded))
}

func TestHasRetryNeeded(t *testing.T) {
	assert.True(t, HasRetryNeeded([]Label{Failed, RetryNeeded}))
	assert.False(t, HasRetryNeeded([]Label{Failed}))
}
