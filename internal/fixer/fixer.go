// Package fixer defines the dimension-specific edit proposers deployed by the
// orchestrator. The seven variants are data-driven profiles of one generic
// implementation backed by the text-generation oracle.
package fixer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/quality"
)

// LowConfidence caps the confidence reported when a fixer found nothing
// actionable.
const LowConfidence = 0.1

// Input is the read-only snapshot a fixer analyzes.
type Input struct {
	Document string
	Score    float64
	Critique string
	Evidence []quality.Evidence
}

// Fixer proposes edits for one dimension. Implementations must not mutate the
// document and must return an empty edit list, not an error, when there is
// nothing to fix.
type Fixer interface {
	Dimension() quality.Dimension
	SuggestEdits(ctx context.Context, in Input) (quality.FixerResult, error)
}

// OracleFixer is the generic Fixer. Its profile supplies the dimension-specific
// instructions sent to the oracle.
type OracleFixer struct {
	profile  Profile
	proposer oracle.EditProposer
}

var _ Fixer = (*OracleFixer)(nil)

// NewOracleFixer creates a fixer for profile p.
func NewOracleFixer(p Profile, proposer oracle.EditProposer) *OracleFixer {
	return &OracleFixer{profile: p, proposer: proposer}
}

// Dimension returns the dimension this fixer targets.
func (f *OracleFixer) Dimension() quality.Dimension {
	return f.profile.Dimension
}

// Profile returns the fixer's instructions.
func (f *OracleFixer) Profile() Profile {
	return f.profile
}

// SuggestEdits asks the oracle for edits and keeps the actionable ones.
func (f *OracleFixer) SuggestEdits(ctx context.Context, in Input) (quality.FixerResult, error) {
	start := time.Now()
	dim := f.profile.Dimension

	proposal, err := f.proposer.ProposeEdits(ctx, oracle.EditRequest{
		Dimension: dim,
		Focus:     f.profile.Focus,
		Checks:    f.profile.Checks,
		Document:  in.Document,
		Score:     in.Score,
		Critique:  in.Critique,
		Evidence:  in.Evidence,
	})
	if err != nil {
		return quality.FailedFixerResult(dim, time.Since(start), err), fmt.Errorf("fixer %s: %w", dim, err)
	}

	edits := actionable(proposal.Edits)
	confidence := proposal.Confidence
	if len(edits) == 0 && confidence > LowConfidence {
		confidence = LowConfidence
	}
	return quality.FixerResult{
		FixerType:      dim,
		SuggestedEdits: edits,
		Confidence:     confidence,
		ProcessingTime: time.Since(start),
	}, nil
}

// actionable drops edits with no target text and edits that change nothing.
func actionable(edits []quality.SuggestedEdit) []quality.SuggestedEdit {
	var out []quality.SuggestedEdit
	for _, e := range edits {
		if strings.TrimSpace(e.OriginalText) == "" || e.OriginalText == e.SuggestedText {
			continue
		}
		out = append(out, e)
	}
	return out
}
