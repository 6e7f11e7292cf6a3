package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/refinery/internal/quality"
)

// Oracle is an implementation of all three oracle skills.
type Oracle interface {
	EditProposer
	Rewriter
	Scorer
}

// Dispatch runs one decoded oracle request against impl and returns the
// answer in the wire form the A2A client parses. It is the server-side
// counterpart of A2AOracle.
func Dispatch(ctx context.Context, impl Oracle, skill string, payload []byte) (any, error) {
	switch skill {
	case SkillProposeEdits:
		var req EditRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("oracle: %s: decode request: %w", skill, err)
		}
		return impl.ProposeEdits(ctx, req)

	case SkillRewrite:
		var req RewriteRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("oracle: %s: decode request: %w", skill, err)
		}
		resp, err := impl.Rewrite(ctx, req)
		if err != nil {
			return nil, err
		}
		return rewriteWire(resp), nil

	case SkillScore:
		var req struct {
			Document string `json:"document"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, fmt.Errorf("oracle: %s: decode request: %w", skill, err)
		}
		return impl.Score(ctx, req.Document)

	default:
		return nil, fmt.Errorf("oracle: unknown skill %q", skill)
	}
}

type notApplicableWire struct {
	quality.SuggestedEdit
	Reason string `json:"reason"`
}

// rewriteWire flattens skipped edits to {originalText, ..., reason}.
func rewriteWire(resp *RewriteResponse) any {
	out := struct {
		RevisedDocument    string              `json:"revisedDocument"`
		EditsNotApplicable []notApplicableWire `json:"editsNotApplicable"`
	}{
		RevisedDocument:    resp.RevisedDocument,
		EditsNotApplicable: make([]notApplicableWire, 0, len(resp.EditsNotApplicable)),
	}
	for _, s := range resp.EditsNotApplicable {
		out.EditsNotApplicable = append(out.EditsNotApplicable, notApplicableWire{SuggestedEdit: s.Edit, Reason: s.Reason})
	}
	return out
}
