// Package labels is the closed vocabulary of issue-tracker labels Jötnar
// applies to record pipeline state on a ticket, and the single-label-at-rest
// invariant that governs how they are swapped.
package labels

// Label is one member of the closed state-label vocabulary.
type Label string

// In-progress labels: a worker currently owns the ticket.
const (
	Triaging  Label = "jotnar-triaging"
	Rebasing  Label = "jotnar-rebasing"
	Backporting Label = "jotnar-backporting"
	Building  Label = "jotnar-building"
)

// Attention-routing labels: a human needs to act before the pipeline can
// continue.
const (
	ClarificationNeeded Label = "jotnar-clarification-needed"
	NeedsReview         Label = "jotnar-needs-review"
)

// Success-terminal labels: the pipeline reached a successful end state.
const (
	MergeRequestOpened Label = "jotnar-mr-opened"
	NoActionNeeded     Label = "jotnar-no-action-needed"
)

// Failure-terminal labels: the pipeline stopped without success and will
// not retry on its own.
const (
	Failed       Label = "jotnar-failed"
	BuildFailed  Label = "jotnar-build-failed"
)

// Control labels: not a pipeline-state label by itself, but a directive an
// operator can add to re-queue a ticket that is otherwise in a terminal
// state.
const (
	RetryNeeded Label = "jotnar-retry-needed"
)

// FuSa is an additive fan-out label: it rides alongside whatever state label
// a ticket already carries rather than replacing it, so it is kept out of
// All()/Replace()'s single-label-swap set.
const FuSa Label = "jotnar-fusa"

// InProgress is the set of labels meaning "a worker owns this ticket".
var InProgress = []Label{Triaging, Rebasing, Backporting, Building}

// AttentionRouting is the set of labels meaning "needs a human".
var AttentionRouting = []Label{ClarificationNeeded, NeedsReview}

// SuccessTerminal is the set of labels meaning "pipeline finished
// successfully".
var SuccessTerminal = []Label{MergeRequestOpened, NoActionNeeded}

// FailureTerminal is the set of labels meaning "pipeline stopped, no
// automatic retry".
var FailureTerminal = []Label{Failed, BuildFailed}

// Terminal is the union of success- and failure-terminal labels.
func Terminal() []Label {
	return append(append([]Label{}, SuccessTerminal...), FailureTerminal...)
}

// All enumerates every managed label (excluding the control label, which is
// operator-applied rather than pipeline-applied).
func All() []Label {
	out := append([]Label{}, InProgress...)
	out = append(out, AttentionRouting...)
	out = append(out, Terminal()...)
	return out
}

func member(set []Label, l Label) bool {
	for _, x := range set {
		if x == l {
			return true
		}
	}
	return false
}

// IsInProgress reports whether l is one of the in-progress labels.
func IsInProgress(l Label) bool { return member(InProgress, l) }

// IsTerminal reports whether l is a success- or failure-terminal label.
func IsTerminal(l Label) bool { return member(SuccessTerminal, l) || member(FailureTerminal, l) }

// IsManaged reports whether l is part of the closed vocabulary this package
// owns (as opposed to an unrelated, operator- or third-party-applied label).
func IsManaged(l Label) bool {
	return member(All(), l) || l == RetryNeeded
}

// Replace computes the label set a ticket should carry after swapping to
// next: every managed label is removed, then next is added, enforcing the
// single-label-at-rest invariant. current may contain unmanaged labels,
// which pass through untouched.
func Replace(current []Label, next Label) []Label {
	out := make([]Label, 0, len(current)+1)
	for _, l := range current {
		if IsManaged(l) {
			continue
		}
		out = append(out, l)
	}
	return append(out, next)
}

// HasRetryNeeded reports whether the control label is present among current.
func HasRetryNeeded(current []Label) bool {
	return member(current, RetryNeeded)
}

// AddFuSa appends the FuSa label to current if it is not already present,
// leaving every other label untouched.
func AddFuSa(current []Label) []Label {
	if member(current, FuSa) {
		return current
	}
	return append(append([]Label{}, current...), FuSa)
}
