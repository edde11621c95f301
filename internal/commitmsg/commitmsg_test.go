package commitmsg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatIncludesResolvesAndTrailer(t *testing.T) {
	msg := Format("Rebase bash to 5.3", "Updates bash to upstream 5.3.", "RHEL-123")

	assert.True(t, strings.HasPrefix(msg, "Rebase bash to 5.3\n"))
	assert.Contains(t, msg, "Updates bash to upstream 5.3.")
	assert.Contains(t, msg, "Resolves: RHEL-123")
	assert.Contains(t, msg, AgentTrailer)
}

func TestFormatWithoutDescription(t *testing.T) {
	msg := Format("Backport fix", "", "RHEL-9")
	assert.Contains(t, msg, "Resolves: RHEL-9")
	assert.NotContains(t, msg, "\n\n\n")
}
