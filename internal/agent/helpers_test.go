package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/orchestrator"
	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/refinery"
)

const draft = "The plan is a disaster."

func uniform(v float64) quality.DimensionScores {
	s := make(quality.DimensionScores, len(quality.Dimensions))
	for _, d := range quality.Dimensions {
		s[d] = v
	}
	return s
}

// wordOracle scores 5.0 while the draft still says "disaster" and 8.4
// afterwards. Only the objectivity fixer proposes an edit.
type wordOracle struct{}

func (wordOracle) ProposeEdits(_ context.Context, req oracle.EditRequest) (*oracle.EditProposal, error) {
	if req.Dimension != quality.Objectivity || !strings.Contains(req.Document, "is a disaster") {
		return &oracle.EditProposal{Confidence: 0.1}, nil
	}
	return &oracle.EditProposal{
		Confidence: 0.9,
		Edits: []quality.SuggestedEdit{{
			Section:       "intro",
			OriginalText:  "is a disaster",
			SuggestedText: "has drawn criticism",
			Priority:      quality.PriorityHigh,
		}},
	}, nil
}

func (wordOracle) Rewrite(_ context.Context, req oracle.RewriteRequest) (*oracle.RewriteResponse, error) {
	doc := req.Document
	for _, e := range req.Edits {
		doc = strings.Replace(doc, e.OriginalText, e.SuggestedText, 1)
	}
	return &oracle.RewriteResponse{RevisedDocument: doc}, nil
}

func (wordOracle) Score(_ context.Context, doc string) (*quality.ConsensusResult, error) {
	v := 8.4
	if strings.Contains(doc, "disaster") {
		v = 5.0
	}
	return &quality.ConsensusResult{OverallScore: v, DimensionScores: uniform(v), OverallCritique: "scored"}, nil
}

func newTestService(t *testing.T, o oracle.Oracle) *refinery.Service {
	t.Helper()
	cfg := orchestrator.DefaultConfig()
	cfg.FixerTimeout = time.Second
	svc, err := refinery.New(o, refinery.Options{Engine: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}
