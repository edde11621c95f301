// Package commitmsg formats the commit message and merge-request description
// the log agent's output is folded into: a human title and description, a
// Resolves trailer linking the issue, and a fixed agent-identity trailer.
package commitmsg

import (
	"fmt"
	"strings"
)

// AgentTrailer is the fixed identity line appended to every commit Jötnar
// produces, so reviewers and `git log` can tell automated commits apart from
// human ones at a glance.
const AgentTrailer = "Assisted-by: Jötnar automated packaging agent"

// Format builds a commit message of the shape:
//
//	<title>
//
//	<description>
//
//	Resolves: <issueKey>
//	Assisted-by: Jötnar automated packaging agent
func Format(title, description, issueKey string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(title))
	b.WriteString("\n")

	if d := strings.TrimSpace(description); d != "" {
		b.WriteString("\n")
		b.WriteString(d)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Resolves: %s\n", issueKey))
	b.WriteString(AgentTrailer)
	b.WriteString("\n")
	return b.String()
}

// MergeRequestDescription builds the body text for the merge request, which
// repeats the commit's description so a reviewer does not have to open
// the diff to see why the change exists.
func MergeRequestDescription(title, description, issueKey string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(description))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("Resolves: %s\n", issueKey))
	b.WriteString(AgentTrailer)
	b.WriteString("\n")
	return b.String()
}
