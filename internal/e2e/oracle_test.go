//go:build e2e

package e2e

import (
	"context"
	"strings"

	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/quality"
)

// flaggedPhrases are what each dimension's judge penalizes, 4 points per
// occurrence from a base of 8.5.
var flaggedPhrases = map[quality.Dimension]string{
	quality.Objectivity:     "unmitigated disaster",
	quality.EvidenceQuality: "Costs rose 40%.",
	quality.BiasDetection:   "Everyone agrees",
	quality.Accessibility:   "heretofore",
}

// ruleOracle is a deterministic stand-in for the language-model oracle.
type ruleOracle struct{}

func (ruleOracle) ProposeEdits(_ context.Context, req oracle.EditRequest) (*oracle.EditProposal, error) {
	doc := req.Document
	var edit quality.SuggestedEdit
	switch req.Dimension {
	case quality.Objectivity:
		edit = quality.SuggestedEdit{Section: "Summary", OriginalText: "is an unmitigated disaster", SuggestedText: "has drawn sustained criticism", Priority: quality.PriorityCritical}
	case quality.EvidenceQuality:
		edit = quality.SuggestedEdit{Section: "Summary", OriginalText: "Costs rose 40%.", SuggestedText: "Costs rose 40% (2024 audit report).", Priority: quality.PriorityHigh}
	case quality.BiasDetection:
		// Overlaps the objectivity edit while the loaded wording remains.
		edit = quality.SuggestedEdit{Section: "Summary", OriginalText: "Everyone agrees", SuggestedText: "Several reviewers argue", Priority: quality.PriorityMedium}
		if strings.Contains(doc, "Everyone agrees the program is an unmitigated disaster.") {
			edit.OriginalText = "Everyone agrees the program is an unmitigated disaster."
			edit.SuggestedText = "Several reviewers argue the program has struggled."
		}
	case quality.Accessibility:
		edit = quality.SuggestedEdit{Section: "Outlook", OriginalText: "heretofore", SuggestedText: "until now", Priority: quality.PriorityLow}
	default:
		return &oracle.EditProposal{Confidence: 0.2}, nil
	}
	if !strings.Contains(doc, edit.OriginalText) {
		return &oracle.EditProposal{Confidence: 0.2}, nil
	}
	edit.Rationale = "flagged by the " + string(req.Dimension) + " judge"
	return &oracle.EditProposal{Edits: []quality.SuggestedEdit{edit}, Confidence: 0.9}, nil
}

func (ruleOracle) Rewrite(_ context.Context, req oracle.RewriteRequest) (*oracle.RewriteResponse, error) {
	doc := req.Document
	resp := &oracle.RewriteResponse{}
	for _, e := range req.Edits {
		if !strings.Contains(doc, e.OriginalText) {
			resp.EditsNotApplicable = append(resp.EditsNotApplicable, quality.SkippedEdit{Edit: e, Reason: "text changed by an earlier edit"})
			continue
		}
		doc = strings.Replace(doc, e.OriginalText, e.SuggestedText, 1)
	}
	resp.RevisedDocument = doc
	return resp, nil
}

func (ruleOracle) Score(_ context.Context, doc string) (*quality.ConsensusResult, error) {
	scores := make(quality.DimensionScores, len(quality.Dimensions))
	critiques := make(map[quality.Dimension]string)
	total := 0.0
	for _, d := range quality.Dimensions {
		v := 8.5
		if phrase, ok := flaggedPhrases[d]; ok {
			if n := strings.Count(doc, phrase); n > 0 {
				v -= 4 * float64(n)
				critiques[d] = "contains " + phrase
			}
		}
		scores[d] = v
		total += v
	}
	return &quality.ConsensusResult{
		OverallScore:       total / float64(len(quality.Dimensions)),
		DimensionScores:    scores,
		OverallCritique:    "rule panel",
		DimensionCritiques: critiques,
	}, nil
}
