package quality

import (
	"strings"
	"time"
)

// Priority ranks how important a suggested edit is.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Weight maps a priority to its reconciliation weight. Unknown priorities
// weigh the same as medium.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// ParsePriority normalizes a priority label; anything unrecognized becomes
// medium.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityCritical:
		return PriorityCritical
	case PriorityHigh:
		return PriorityHigh
	case PriorityLow:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// SuggestedEdit is a single replacement proposed by a fixer. OriginalText is
// expected to be a verbatim substring of the document; the reconciler checks it.
type SuggestedEdit struct {
	Section       string   `json:"section"`
	OriginalText  string   `json:"originalText"`
	SuggestedText string   `json:"suggestedText"`
	Rationale     string   `json:"rationale,omitempty"`
	Priority      Priority `json:"priority"`
}

// SkippedEdit records an edit that was not applied and why.
type SkippedEdit struct {
	Edit   SuggestedEdit `json:"edit"`
	Reason string        `json:"reason"`
}

// FixerResult is the output of one fixer invocation in one round.
// A failed or timed-out fixer is represented with Err set, no edits, and zero
// confidence; it never aborts the round.
type FixerResult struct {
	FixerType      Dimension       `json:"fixerType"`
	SuggestedEdits []SuggestedEdit `json:"suggestedEdits"`
	Confidence     float64         `json:"confidence"`
	ProcessingTime time.Duration   `json:"processingTime"`
	Err            error           `json:"-"`
}

// Failed reports whether the fixer call errored.
func (r FixerResult) Failed() bool {
	return r.Err != nil
}

// FailedFixerResult builds the zero-edit, zero-confidence result that stands
// in for a fixer call that errored, panicked, or timed out.
func FailedFixerResult(d Dimension, elapsed time.Duration, err error) FixerResult {
	return FixerResult{
		FixerType:      d,
		SuggestedEdits: nil,
		Confidence:     0,
		ProcessingTime: elapsed,
		Err:            err,
	}
}

// ReconciliationResult is the single merged revision produced per round.
// Failure is non-empty when the rewrite oracle could not be used; in that case
// RevisedDocument is empty and nothing was applied.
type ReconciliationResult struct {
	RevisedDocument string          `json:"revisedDocument"`
	EditsApplied    []SuggestedEdit `json:"editsApplied"`
	EditsSkipped    []SkippedEdit   `json:"editsSkipped"`
	Failure         string          `json:"failure,omitempty"`
}

// Failed reports whether the reconciliation soft-failed.
func (r ReconciliationResult) Failed() bool {
	return r.Failure != ""
}

// DocumentOr returns the revised document, or fallback when reconciliation
// failed or produced nothing. The loop uses it so a bad rewrite can never
// drop the document.
func (r ReconciliationResult) DocumentOr(fallback string) string {
	if r.Failed() || r.RevisedDocument == "" {
		return fallback
	}
	return r.RevisedDocument
}
