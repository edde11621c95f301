package schema

import "fmt"

// TriageResolution is the closed set of outcomes the triage step can reach.
type TriageResolution string

const (
	ResolutionRebase              TriageResolution = "rebase"
	ResolutionBackport            TriageResolution = "backport"
	ResolutionClarificationNeeded TriageResolution = "clarification_needed"
	ResolutionNoAction            TriageResolution = "no_action"
	ResolutionError               TriageResolution = "error"
)

var validResolutions = map[TriageResolution]bool{
	ResolutionRebase:              true,
	ResolutionBackport:            true,
	ResolutionClarificationNeeded: true,
	ResolutionNoAction:            true,
	ResolutionError:               true,
}

// TriageInput is what the triage agent call is given: the issue body plus
// whatever CVE eligibility pre-check already determined.
type TriageInput struct {
	IssueKey     IssueKey      `json:"issue_key"`
	Summary      string        `json:"summary"`
	Description  string        `json:"description"`
	FixVersions  []string      `json:"fix_versions"`
	CVEEligible  *CVEEligibility `json:"cve_eligibility,omitempty"`
}

// CVEEligibility records whether a ticket is CVE-tracking and, if so,
// whether it is eligible to be handled by this pipeline rather than routed
// elsewhere.
type CVEEligibility struct {
	IsCVE           bool   `json:"is_cve"`
	NeedsInternalFix bool  `json:"needs_internal_fix"`
	Eligible        bool   `json:"eligible"`
	Reason          string `json:"reason,omitempty"`
}

// TriageOutput is the tagged union the triage agent call produces. Exactly
// one of the per-resolution payload fields is populated, matching
// Resolution; validate with Validate() before acting on it.
type TriageOutput struct {
	Resolution TriageResolution `json:"resolution"`

	Rebase              *RebasePayload              `json:"rebase,omitempty"`
	Backport            *BackportPayload            `json:"backport,omitempty"`
	ClarificationNeeded *ClarificationNeededPayload `json:"clarification_needed,omitempty"`
	NoAction            *NoActionPayload            `json:"no_action,omitempty"`
	Error               *ErrorPayload               `json:"error,omitempty"`
}

// RebasePayload carries the data needed to drive the rebase workflow.
type RebasePayload struct {
	NewVersion string `json:"new_version"`
	UpstreamURL string `json:"upstream_url,omitempty"`
}

// BackportPayload carries the data needed to drive the backport workflow.
type BackportPayload struct {
	UpstreamRef string `json:"upstream_ref"`
	CommitShas  []string `json:"commit_shas,omitempty"`
}

// ClarificationNeededPayload explains what information is missing.
type ClarificationNeededPayload struct {
	Question string `json:"question"`
}

// NoActionPayload explains why no engineering action is required.
type NoActionPayload struct {
	Reason string `json:"reason"`
}

// ErrorPayload carries a human-readable explanation of a triage failure that
// is not itself a transport/tool error (e.g. "unparseable fix version").
type ErrorPayload struct {
	Message string `json:"message"`
}

// Validate enforces the tagged-union invariant: Resolution names exactly one
// non-nil payload field, and no other payload field is set.
func (o TriageOutput) Validate() error {
	if !validResolutions[o.Resolution] {
		return fmt.Errorf("unknown triage resolution %q", o.Resolution)
	}

	present := map[TriageResolution]bool{
		ResolutionRebase:              o.Rebase != nil,
		ResolutionBackport:            o.Backport != nil,
		ResolutionClarificationNeeded: o.ClarificationNeeded != nil,
		ResolutionNoAction:            o.NoAction != nil,
		ResolutionError:               o.Error != nil,
	}

	count := 0
	for _, ok := range present {
		if ok {
			count++
		}
	}
	if count != 1 {
		return fmt.Errorf("triage output must carry exactly one payload, found %d", count)
	}
	if !present[o.Resolution] {
		return fmt.Errorf("triage output resolution %q has no matching payload", o.Resolution)
	}
	return nil
}
