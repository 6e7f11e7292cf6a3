package agent

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/quality"
)

func serveOracle(t *testing.T, impl oracle.Oracle) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewOracleAgent("judge", impl, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func TestOracleAgent_ServesA2AOracle(t *testing.T) {
	srv := serveOracle(t, wordOracle{})
	remote := oracle.NewA2AOracle(a2a.NewHTTPClient(), oracle.Endpoints{
		Fixer: srv.URL, Rewrite: srv.URL, Scorer: srv.URL,
	}, nil)
	ctx := context.Background()

	proposal, err := remote.ProposeEdits(ctx, oracle.EditRequest{Dimension: quality.Objectivity, Document: draft})
	require.NoError(t, err)
	require.Len(t, proposal.Edits, 1)
	assert.Equal(t, "is a disaster", proposal.Edits[0].OriginalText)
	assert.Equal(t, quality.PriorityHigh, proposal.Edits[0].Priority)
	assert.InDelta(t, 0.9, proposal.Confidence, 1e-9)

	rewrite, err := remote.Rewrite(ctx, oracle.RewriteRequest{Document: draft, Edits: proposal.Edits})
	require.NoError(t, err)
	assert.Equal(t, "The plan has drawn criticism.", rewrite.RevisedDocument)

	consensus, err := remote.Score(ctx, rewrite.RevisedDocument)
	require.NoError(t, err)
	assert.Equal(t, 8.4, consensus.OverallScore)
	require.NoError(t, consensus.DimensionScores.Validate())
}

func TestOracleAgent_Probe(t *testing.T) {
	srv := serveOracle(t, wordOracle{})
	results := oracle.Probe(context.Background(), a2a.NewHTTPClient(), oracle.Endpoints{
		Fixer: srv.URL, Rewrite: srv.URL, Scorer: srv.URL,
	}, 0)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.True(t, r.OK(), "%s: %v", r.Skill, r.Err)
	}
}

type brokenScorer struct{ wordOracle }

func (brokenScorer) Score(context.Context, string) (*quality.ConsensusResult, error) {
	return nil, errors.New("judge panel offline")
}

func TestOracleAgent_FailuresAreTaskFailures(t *testing.T) {
	srv := serveOracle(t, brokenScorer{})
	remote := oracle.NewA2AOracle(a2a.NewHTTPClient(), oracle.Endpoints{Scorer: srv.URL}, nil)

	_, err := remote.Score(context.Background(), draft)
	require.Error(t, err)
	assert.ErrorIs(t, err, oracle.ErrTaskFailed)
	assert.Contains(t, err.Error(), "judge panel offline")
	assert.True(t, oracle.IsTransient(err))
}

func TestOracleAgent_RejectsMalformedMessages(t *testing.T) {
	oa := NewOracleAgent("judge", wordOracle{}, nil)
	msg := a2a.Message{MessageID: "m1", Role: a2a.RoleUser, Parts: []a2a.Part{a2a.TextPart(oracle.SkillScore)}}

	task, err := oa.HandleSendMessage(context.Background(), a2a.SendMessageRequest{Message: msg})
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateFailed, task.Status.State)
	assert.Contains(t, task.FailureReason(), "no data part")
}
