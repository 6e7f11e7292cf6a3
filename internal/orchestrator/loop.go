package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/quality"
)

// State is the refinement loop's position.
type State int

const (
	StateScored State = iota
	StateDeploying
	StatePassed
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateScored:
		return "scored"
	case StateDeploying:
		return "deploying"
	case StatePassed:
		return "passed"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// RefineRequest is the input to RefineUntilPassing.
type RefineRequest struct {
	// RunID identifies the run in logs and traces. Generated when empty.
	RunID string

	// Document is the text to refine.
	Document string

	// InitialConsensus is the round-0 verdict on Document, computed by the
	// caller.
	InitialConsensus *quality.ConsensusResult

	// Scorer re-scores the document after every round.
	Scorer oracle.Scorer

	// MaxAttempts bounds the number of rounds. Zero uses the configured
	// default.
	MaxAttempts int

	// Evidence is optional supporting material passed to every fixer.
	Evidence []quality.Evidence
}

// Refiner drives score → orchestrate → reconcile rounds until the document
// passes or the attempt budget runs out.
type Refiner struct {
	orchestrator *FixerOrchestrator
	reconciler   *Reconciler
	cfg          Config
	settings
}

// NewRefiner wires an orchestrator and reconciler into a refinement loop.
func NewRefiner(orch *FixerOrchestrator, rec *Reconciler, cfg Config, opts ...Option) *Refiner {
	return &Refiner{
		orchestrator: orch,
		reconciler:   rec,
		cfg:          cfg,
		settings:     newSettings("refiner", opts),
	}
}

// RefineUntilPassing runs the refinement loop. Budget exhaustion is a normal
// outcome reported through RunResult.Success and WarningReason. Errors are
// returned only for invalid input, scoring failures, and cancellation.
func (r *Refiner) RefineUntilPassing(ctx context.Context, req RefineRequest) (*quality.RunResult, error) {
	if req.Document == "" {
		return nil, errors.New("orchestrator: document is empty")
	}
	if req.Scorer == nil {
		return nil, errors.New("orchestrator: scorer is required")
	}
	if err := req.InitialConsensus.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: initial consensus: %w", err)
	}
	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = r.cfg.MaxAttempts
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx, span := r.tracer.Start(ctx, "refinery.run", trace.WithAttributes(
		attribute.String("refinery.run_id", runID),
		attribute.Int("refinery.max_attempts", maxAttempts),
		attribute.Float64("refinery.initial_score", req.InitialConsensus.OverallScore),
	))
	defer span.End()
	logger := r.logger.With("run", runID)

	result := &quality.RunResult{RunID: runID, Attempts: []quality.RefinementAttempt{}}
	current := req.Document
	consensus := req.InitialConsensus.Clone()
	state := StateScored

	for state != StatePassed && state != StateExhausted {
		switch {
		case consensus.OverallScore >= r.cfg.PassThreshold:
			state = StatePassed
		case len(result.Attempts) >= maxAttempts:
			state = StateExhausted
		default:
			state = StateDeploying
			attempt, next, scored, err := r.round(ctx, len(result.Attempts)+1, current, consensus, req)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			result.Attempts = append(result.Attempts, attempt)
			r.observer.OnRoundComplete(attempt)
			current, consensus = next, scored
		}
		logger.Debug("state", "state", state, "attempts", len(result.Attempts), "score", consensus.OverallScore)
	}

	result.FinalDocument = current
	result.FinalScore = consensus.OverallScore
	result.FinalConsensus = consensus
	result.Success = state == StatePassed
	if !result.Success {
		result.WarningReason = fmt.Sprintf(
			"quality score %.1f still below %.1f after %d refinement attempts",
			consensus.OverallScore, r.cfg.PassThreshold, len(result.Attempts))
	}

	span.SetAttributes(
		attribute.Bool("refinery.success", result.Success),
		attribute.Float64("refinery.final_score", result.FinalScore),
		attribute.Int("refinery.attempts", len(result.Attempts)),
	)
	span.SetStatus(codes.Ok, "")
	r.metrics.ObserveRun(result)
	r.observer.OnRunComplete(result)
	return result, nil
}

// round runs one orchestrate → reconcile → re-score cycle. A zero-fixer round
// still re-scores and counts as an attempt.
func (r *Refiner) round(ctx context.Context, n int, document string, consensus *quality.ConsensusResult, req RefineRequest) (quality.RefinementAttempt, string, *quality.ConsensusResult, error) {
	var zero quality.RefinementAttempt
	if err := ctx.Err(); err != nil {
		return zero, "", nil, fmt.Errorf("orchestrator: attempt %d: %w", n, err)
	}

	ctx, span := r.tracer.Start(ctx, "refinery.round", trace.WithAttributes(
		attribute.Int("refinery.round", n),
		attribute.Float64("refinery.score_before", consensus.OverallScore),
	))
	defer span.End()

	start := time.Now()
	r.observer.OnRoundStart(n, consensus.OverallScore)

	orch, err := r.orchestrator.Orchestrate(ctx, n, document, consensus, req.Evidence)
	if err != nil {
		return zero, "", nil, err
	}

	rec := r.reconciler.Reconcile(ctx, document, orch.FixerResults)
	r.metrics.ObserveReconciliation(rec)
	r.observer.OnReconciled(n, rec)
	next := rec.DocumentOr(document)

	scored, err := req.Scorer.Score(ctx, next)
	if err != nil {
		return zero, "", nil, fmt.Errorf("orchestrator: score attempt %d: %w", n, err)
	}
	if err := scored.Validate(); err != nil {
		return zero, "", nil, fmt.Errorf("orchestrator: score attempt %d: %w", n, err)
	}
	span.SetAttributes(attribute.Float64("refinery.score_after", scored.OverallScore))

	attempt := quality.RefinementAttempt{
		AttemptNumber:    n,
		ScoreBefore:      consensus.OverallScore,
		ScoreAfter:       scored.OverallScore,
		FixersDeployed:   orch.FixersDeployed,
		EditsApplied:     rec.EditsApplied,
		EditsSkipped:     rec.EditsSkipped,
		FixerFailures:    orch.Failures(),
		ReconcileFailure: rec.Failure,
		Diff:             computeDiff(document, next),
		Duration:         time.Since(start),
	}
	if attempt.FixersDeployed == nil {
		attempt.FixersDeployed = []quality.Dimension{}
	}
	return attempt, next, scored, nil
}
