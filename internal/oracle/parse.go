package oracle

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/dusk-indust/refinery/internal/quality"
)

// decodeJSON unmarshals an oracle payload into v. Language-model agents often
// wrap JSON in code fences or prose, or emit trailing commas and unquoted
// keys, so the payload is trimmed to its outermost object and repaired before
// giving up.
func decodeJSON(raw []byte, v any) error {
	text := extractObject(string(raw))
	if text == "" {
		return fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return fmt.Errorf("%w: repair: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// extractObject strips code fences and surrounding prose, returning the span
// from the first '{' to the last '}'. Text without braces is returned trimmed
// so the repair step can still try it.
func extractObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return strings.TrimSpace(s)
}

type wireEdit struct {
	Section       string `json:"section"`
	OriginalText  string `json:"originalText"`
	SuggestedText string `json:"suggestedText"`
	Rationale     string `json:"rationale"`
	Priority      string `json:"priority"`
}

func (w wireEdit) edit() quality.SuggestedEdit {
	return quality.SuggestedEdit{
		Section:       strings.TrimSpace(w.Section),
		OriginalText:  w.OriginalText,
		SuggestedText: w.SuggestedText,
		Rationale:     strings.TrimSpace(w.Rationale),
		Priority:      quality.ParsePriority(w.Priority),
	}
}

// ParseEditProposal decodes a propose-edits payload of the form
// {"edits":[...], "confidence":0.8}. Confidence is clamped to [0,1].
func ParseEditProposal(raw []byte) (*EditProposal, error) {
	var wire struct {
		Edits      []wireEdit `json:"edits"`
		Confidence *float64   `json:"confidence"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, err
	}
	if wire.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", ErrMalformedResponse)
	}

	out := &EditProposal{Confidence: clamp01(*wire.Confidence)}
	for _, w := range wire.Edits {
		out.Edits = append(out.Edits, w.edit())
	}
	return out, nil
}

// ParseRewriteResponse decodes a rewrite-document payload. Entries of
// editsNotApplicable are matched back to the requested edits by section and
// original text so the audit trail carries the full edit. Entries naming an
// edit that was never requested are dropped.
func ParseRewriteResponse(raw []byte, requested []quality.SuggestedEdit) (*RewriteResponse, error) {
	var wire struct {
		RevisedDocument    *string `json:"revisedDocument"`
		EditsNotApplicable []struct {
			wireEdit
			Reason string `json:"reason"`
		} `json:"editsNotApplicable"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, err
	}
	if wire.RevisedDocument == nil || strings.TrimSpace(*wire.RevisedDocument) == "" {
		return nil, fmt.Errorf("%w: missing revisedDocument", ErrMalformedResponse)
	}

	out := &RewriteResponse{RevisedDocument: *wire.RevisedDocument}
	used := make([]bool, len(requested))
	for _, na := range wire.EditsNotApplicable {
		i := matchRequested(na.wireEdit, requested, used)
		if i < 0 {
			continue
		}
		used[i] = true
		reason := strings.TrimSpace(na.Reason)
		if reason == "" {
			reason = "original text not found in document"
		}
		out.EditsNotApplicable = append(out.EditsNotApplicable, quality.SkippedEdit{
			Edit:   requested[i],
			Reason: reason,
		})
	}
	return out, nil
}

// matchRequested returns the index of the first unused requested edit with
// w's original text, or -1. When w names a section it must match too.
func matchRequested(w wireEdit, requested []quality.SuggestedEdit, used []bool) int {
	section := strings.ToLower(strings.TrimSpace(w.Section))
	for i, e := range requested {
		if used[i] || e.OriginalText != w.OriginalText {
			continue
		}
		if section != "" && section != strings.ToLower(strings.TrimSpace(e.Section)) {
			continue
		}
		return i
	}
	return -1
}

// ParseConsensus decodes a score-document payload. Dimension keys may use
// kebab, camel, or snake case.
func ParseConsensus(raw []byte) (*quality.ConsensusResult, error) {
	var wire struct {
		OverallScore       *float64           `json:"overallScore"`
		DimensionScores    map[string]float64 `json:"dimensionScores"`
		OverallCritique    string             `json:"overallCritique"`
		DimensionCritiques map[string]string  `json:"dimensionCritiques"`
	}
	if err := decodeJSON(raw, &wire); err != nil {
		return nil, err
	}
	if wire.OverallScore == nil {
		return nil, fmt.Errorf("%w: missing overallScore", ErrMalformedResponse)
	}

	out := &quality.ConsensusResult{
		OverallScore:       *wire.OverallScore,
		DimensionScores:    make(quality.DimensionScores, len(wire.DimensionScores)),
		OverallCritique:    wire.OverallCritique,
		DimensionCritiques: make(map[quality.Dimension]string, len(wire.DimensionCritiques)),
	}
	for k, v := range wire.DimensionScores {
		d, err := quality.ParseDimension(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		out.DimensionScores[d] = v
	}
	for k, v := range wire.DimensionCritiques {
		d, err := quality.ParseDimension(k)
		if err != nil {
			continue
		}
		out.DimensionCritiques[d] = v
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return out, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
