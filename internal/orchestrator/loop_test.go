package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/refinery/internal/fixer"
	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/quality"
)

// weakDims keeps evidence, objectivity, and bias below the deployment
// threshold until the overall score passes.
func weakDims(overall float64) quality.DimensionScores {
	if overall >= DefaultPassThreshold {
		return scores(8.5, nil)
	}
	return scores(7.5, map[quality.Dimension]float64{
		quality.EvidenceQuality: 4.0,
		quality.Objectivity:     3.5,
		quality.BiasDetection:   3.0,
	})
}

const loopDoc = "Everyone knows the plan is a disaster. Costs rose 40%."

func TestRefine_AlreadyPassingShortCircuits(t *testing.T) {
	reg, stubs := stubRegistry()
	rw := &stubRewriter{}
	scorer := &scriptedScorer{script: []float64{9}}
	r := newTestRefiner(t, reg, rw)

	res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(8.0, scores(8, nil)),
		Scorer:           scorer,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Empty(t, res.Attempts)
	assert.Equal(t, 8.0, res.FinalScore)
	assert.Equal(t, loopDoc, res.FinalDocument)
	assert.Empty(t, res.WarningReason)
	assert.NotEmpty(t, res.RunID)

	assert.Zero(t, scorer.calls, "no re-scoring")
	assert.Zero(t, rw.Calls())
	for _, s := range stubs {
		assert.Zero(t, s.calls.Load())
	}
}

func TestRefine_ImprovesThenPassesInTwoAttempts(t *testing.T) {
	reg, _ := stubRegistry(
		editsFixer(quality.EvidenceQuality, edit("", "Costs rose 40%.", "Costs rose 40% (agency report).", quality.PriorityHigh)),
		editsFixer(quality.Objectivity, edit("", "is a disaster", "has drawn criticism", quality.PriorityHigh)),
		editsFixer(quality.BiasDetection, edit("", "Everyone knows the plan", "Critics argue the plan", quality.PriorityMedium)),
	)
	rw := &stubRewriter{}
	scorer := &scriptedScorer{script: []float64{6.8, 8.1}, dims: weakDims}
	r := newTestRefiner(t, reg, rw)

	res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		RunID:            "run-42",
		Document:         loopDoc,
		InitialConsensus: consensus(4.8, weakDims(4.8)),
		Scorer:           scorer,
		MaxAttempts:      3,
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, 8.1, res.FinalScore)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, []float64{4.8, 6.8, 8.1}, res.ScoreProgression())

	first := res.Attempts[0]
	assert.Equal(t, 1, first.AttemptNumber)
	assert.Equal(t, []quality.Dimension{quality.EvidenceQuality, quality.Objectivity, quality.BiasDetection}, first.FixersDeployed)
	assert.Len(t, first.EditsApplied, 3)
	assert.True(t, first.Diff.Changed())
	assert.NotEmpty(t, first.Diff.Patch)

	// Round two targets text already rewritten in round one.
	second := res.Attempts[1]
	assert.Empty(t, second.EditsApplied)
	assert.Len(t, second.EditsSkipped, 3)
	assert.False(t, second.Diff.Changed())

	assert.Equal(t, "Critics argue the plan has drawn criticism. Costs rose 40% (agency report).", res.FinalDocument)
	assert.Equal(t, res.FinalDocument, scorer.docs[len(scorer.docs)-1])
	require.NotNil(t, res.FinalConsensus)
	assert.Equal(t, 8.1, res.FinalConsensus.OverallScore)
}

func TestRefine_FlatScoreExhaustsBudget(t *testing.T) {
	reg, _ := stubRegistry()
	scorer := &scriptedScorer{script: []float64{6.8}, dims: weakDims}
	r := newTestRefiner(t, reg, &stubRewriter{})

	res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(6.8, weakDims(6.8)),
		Scorer:           scorer,
		MaxAttempts:      3,
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, res.Attempts, 3)
	assert.NotEmpty(t, res.WarningReason)
	assert.Contains(t, res.WarningReason, "6.8")
	assert.Equal(t, 6.8, res.FinalScore)
	assert.Equal(t, loopDoc, res.FinalDocument)
}

func TestRefine_NeverExceedsMaxAttempts(t *testing.T) {
	reg, _ := stubRegistry()
	for _, max := range []int{1, 2, 5} {
		scorer := &scriptedScorer{script: []float64{2}}
		r := newTestRefiner(t, reg, &stubRewriter{})
		res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
			Document:         loopDoc,
			InitialConsensus: consensus(2, scores(2, nil)),
			Scorer:           scorer,
			MaxAttempts:      max,
		})
		require.NoError(t, err)
		assert.Len(t, res.Attempts, max)
		assert.Equal(t, max, scorer.calls)
		assert.False(t, res.Success)
	}
}

func TestRefine_DefaultMaxAttemptsIsThree(t *testing.T) {
	reg, _ := stubRegistry()
	r := newTestRefiner(t, reg, &stubRewriter{})
	res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(5, scores(5, nil)),
		Scorer:           &scriptedScorer{script: []float64{5}},
	})
	require.NoError(t, err)
	assert.Len(t, res.Attempts, DefaultMaxAttempts)
}

func TestRefine_ZeroFixerRoundStillConsumesAttempt(t *testing.T) {
	reg, stubs := stubRegistry()
	rw := &stubRewriter{}
	// Every dimension is fine individually but the overall score is low.
	scorer := &scriptedScorer{script: []float64{7.2, 8.3}, dims: func(float64) quality.DimensionScores { return scores(7.5, nil) }}
	r := newTestRefiner(t, reg, rw)

	res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(7.2, scores(7.5, nil)),
		Scorer:           scorer,
	})
	require.NoError(t, err)
	require.Len(t, res.Attempts, 2)
	assert.Empty(t, res.Attempts[0].FixersDeployed)
	assert.NotNil(t, res.Attempts[0].FixersDeployed)
	assert.Equal(t, loopDoc, scorer.docs[0], "unchanged document is re-scored")
	assert.Zero(t, rw.Calls())
	for _, s := range stubs {
		assert.Zero(t, s.calls.Load())
	}
}

func TestRefine_SoftFailedRewriteKeepsDocument(t *testing.T) {
	reg, _ := stubRegistry(editsFixer(quality.Objectivity, edit("", "is a disaster", "is debated", quality.PriorityHigh)))
	rw := &stubRewriter{fn: func(oracle.RewriteRequest) (*oracle.RewriteResponse, error) {
		return nil, oracle.ErrMalformedResponse
	}}
	scorer := &scriptedScorer{script: []float64{5}}
	r := newTestRefiner(t, reg, rw)

	res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(5, scores(8, map[quality.Dimension]float64{quality.Objectivity: 2})),
		Scorer:           scorer,
		MaxAttempts:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, loopDoc, res.FinalDocument)
	for _, doc := range scorer.docs {
		assert.Equal(t, loopDoc, doc, "scorer never sees an empty document")
	}
	assert.NotEmpty(t, res.Attempts[0].ReconcileFailure)
	assert.Empty(t, res.Attempts[0].EditsApplied)
}

func TestRefine_RecordsFixerFailures(t *testing.T) {
	failing := &stubFixer{dim: quality.Accessibility, fn: func(context.Context, fixer.Input) (quality.FixerResult, error) {
		return quality.FixerResult{}, errors.New("boom")
	}}
	reg, _ := stubRegistry(failing)
	r := newTestRefiner(t, reg, &stubRewriter{})

	res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(5, scores(8, map[quality.Dimension]float64{quality.Accessibility: 2})),
		Scorer:           &scriptedScorer{script: []float64{8.5}},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, []quality.Dimension{quality.Accessibility}, res.Attempts[0].FixerFailures)
	assert.Equal(t, []quality.Dimension{quality.Accessibility}, res.Attempts[0].FixersDeployed)
}

func TestRefine_ScoringFailurePropagates(t *testing.T) {
	reg, _ := stubRegistry()
	r := newTestRefiner(t, reg, &stubRewriter{})
	boom := errors.New("scorer unavailable")

	_, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(5, scores(5, nil)),
		Scorer: oracle.ScorerFunc(func(context.Context, string) (*quality.ConsensusResult, error) {
			return nil, boom
		}),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestRefine_InvalidScorerOutputPropagates(t *testing.T) {
	reg, _ := stubRegistry()
	r := newTestRefiner(t, reg, &stubRewriter{})

	_, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(5, scores(5, nil)),
		Scorer: oracle.ScorerFunc(func(context.Context, string) (*quality.ConsensusResult, error) {
			return consensus(5, quality.DimensionScores{}), nil
		}),
	})
	require.Error(t, err)
}

func TestRefine_InvalidInput(t *testing.T) {
	reg, _ := stubRegistry()
	r := newTestRefiner(t, reg, &stubRewriter{})
	scorer := &scriptedScorer{script: []float64{9}}
	ctx := context.Background()

	_, err := r.RefineUntilPassing(ctx, RefineRequest{InitialConsensus: consensus(5, scores(5, nil)), Scorer: scorer})
	assert.Error(t, err, "empty document")

	_, err = r.RefineUntilPassing(ctx, RefineRequest{Document: loopDoc, Scorer: scorer})
	assert.Error(t, err, "missing consensus")

	_, err = r.RefineUntilPassing(ctx, RefineRequest{Document: loopDoc, InitialConsensus: consensus(5, scores(5, nil))})
	assert.Error(t, err, "missing scorer")
}

func TestRefine_CanceledContextPropagates(t *testing.T) {
	reg, _ := stubRegistry()
	r := newTestRefiner(t, reg, &stubRewriter{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RefineUntilPassing(ctx, RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(5, scores(5, nil)),
		Scorer:           &scriptedScorer{script: []float64{5}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefine_ObserverAndMetrics(t *testing.T) {
	reg, _ := stubRegistry()
	obs := &recordingObserver{}
	metrics := MustNewMetrics(prometheus.NewRegistry())
	r := newTestRefiner(t, reg, &stubRewriter{}, WithObserver(obs), WithMetrics(metrics))

	res, err := r.RefineUntilPassing(context.Background(), RefineRequest{
		Document:         loopDoc,
		InitialConsensus: consensus(5, scores(5, nil)),
		Scorer:           &scriptedScorer{script: []float64{6, 9}},
	})
	require.NoError(t, err)
	assert.Len(t, obs.rounds, 2)
	assert.Same(t, res, obs.run)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("passed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.runs.WithLabelValues("exhausted")))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "scored", StateScored.String())
	assert.Equal(t, "deploying", StateDeploying.String())
	assert.Equal(t, "passed", StatePassed.String())
	assert.Equal(t, "exhausted", StateExhausted.String())
}
