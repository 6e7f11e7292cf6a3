// Package oracle defines the protocol between the refinement engine and the
// external text-generation oracle: edit proposals for fixers, merged rewrites
// for the reconciler, and consensus scoring for the loop.
package oracle

import (
	"context"
	"errors"
	"net"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/quality"
)

// Skill IDs advertised by an oracle agent. A single agent may serve all three.
const (
	SkillProposeEdits = "propose-edits"
	SkillRewrite      = "rewrite-document"
	SkillScore        = "score-document"
)

// ErrMalformedResponse marks an oracle answer that could not be parsed into
// the expected structure, even after repair. It is never retried.
var ErrMalformedResponse = errors.New("oracle: malformed response")

// ErrTaskFailed is returned when the oracle agent reports a failed task.
var ErrTaskFailed = errors.New("oracle: task failed")

// EditRequest asks the oracle for dimension-specific edits to a document.
type EditRequest struct {
	Dimension quality.Dimension  `json:"dimension"`
	Focus     string             `json:"focus"`
	Checks    []string           `json:"checks,omitempty"`
	Document  string             `json:"document"`
	Score     float64            `json:"score"`
	Critique  string             `json:"critique"`
	Evidence  []quality.Evidence `json:"evidence,omitempty"`
}

// EditProposal is the oracle's parsed answer to an EditRequest.
type EditProposal struct {
	Edits      []quality.SuggestedEdit `json:"edits"`
	Confidence float64                 `json:"confidence"`
}

// RewriteRequest asks the oracle to apply a non-conflicting edit set and
// return one coherent document.
type RewriteRequest struct {
	Document string                  `json:"document"`
	Edits    []quality.SuggestedEdit `json:"edits"`
}

// RewriteResponse is the oracle's parsed rewrite. EditsNotApplicable lists the
// requested edits whose original text could not be located verbatim.
type RewriteResponse struct {
	RevisedDocument    string                `json:"revisedDocument"`
	EditsNotApplicable []quality.SkippedEdit `json:"editsNotApplicable,omitempty"`
}

// EditProposer produces suggested edits for one dimension.
type EditProposer interface {
	ProposeEdits(ctx context.Context, req EditRequest) (*EditProposal, error)
}

// Rewriter merges accepted edits into a revised document.
type Rewriter interface {
	Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error)
}

// Scorer produces a consensus verdict for a document. From the loop's point
// of view it is a pure function of the document.
type Scorer interface {
	Score(ctx context.Context, document string) (*quality.ConsensusResult, error)
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(ctx context.Context, document string) (*quality.ConsensusResult, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, document string) (*quality.ConsensusResult, error) {
	return f(ctx, document)
}

// IsTransient reports whether err is worth retrying: network failures, HTTP
// 408/429/5xx, internal agent errors, and failed oracle tasks. Malformed
// responses and context cancellation are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrTaskFailed) {
		return true
	}

	var statusErr *a2a.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var rpcErr *a2a.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code == a2a.ErrCodeInternal
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
