// Package refinery is the product-facing entry point: it scores a draft,
// refines it, applies the quality gate, and records the run.
package refinery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dusk-indust/refinery/internal/fixer"
	"github.com/dusk-indust/refinery/internal/gate"
	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/orchestrator"
	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/trace"
)

// Options configures a Service. Zero values pick the defaults; unset fields
// of Engine are filled field by field.
type Options struct {
	Engine orchestrator.Config

	// Profiles overrides the embedded fixer profiles.
	Profiles map[quality.Dimension]fixer.Profile

	// Scorer overrides the oracle's scorer, e.g. with a caching decorator.
	Scorer oracle.Scorer

	Store  trace.Store
	Ledger gate.Ledger
	Logger *slog.Logger

	// Engine options such as observers, metrics, and tracers.
	EngineOptions []orchestrator.Option
}

// Service runs refinements end to end.
type Service struct {
	refiner *orchestrator.Refiner
	scorer  oracle.Scorer
	store   trace.Store
	ledger  gate.Ledger
	logger  *slog.Logger
	now     func() time.Time
}

// New wires the fixer registry, orchestrator, reconciler, and loop on top of
// o.
func New(o oracle.Oracle, opts Options) (*Service, error) {
	cfg := opts.Engine.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var registry *fixer.Registry
	if opts.Profiles != nil {
		registry = fixer.NewOracleRegistry(o, opts.Profiles)
	} else {
		var err error
		registry, err = fixer.NewDefaultRegistry(o)
		if err != nil {
			return nil, fmt.Errorf("refinery: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	engineOpts := append([]orchestrator.Option{orchestrator.WithLogger(logger)}, opts.EngineOptions...)

	scorer := opts.Scorer
	if scorer == nil {
		scorer = o
	}
	store := opts.Store
	if store == nil {
		store = trace.NewMemStore()
	}

	return &Service{
		refiner: orchestrator.NewRefiner(
			orchestrator.NewFixerOrchestrator(registry, cfg, engineOpts...),
			orchestrator.NewReconciler(o, cfg, engineOpts...),
			cfg,
			engineOpts...,
		),
		scorer: scorer,
		store:  store,
		ledger: opts.Ledger,
		logger: logger.With("component", "service"),
		now:    time.Now,
	}, nil
}

// Request is one refinement job.
type Request struct {
	RunID    string
	Document string

	// InitialConsensus is scored by the service when nil.
	InitialConsensus *quality.ConsensusResult

	MaxAttempts int
	Evidence    []quality.Evidence
}

// Outcome is the result of Refine.
type Outcome struct {
	Result   *quality.RunResult `json:"result"`
	Decision gate.Decision      `json:"decision"`
	Refunded bool               `json:"refunded"`

	// RefundError is set when the decision called for a refund but the
	// ledger rejected it. The run itself still succeeded.
	RefundError string `json:"refundError,omitempty"`
}

// Refine scores the draft if needed, runs the refinement loop, applies the
// quality gate, settles the refund, and saves the run trace. A trace store
// failure is logged and does not fail the run.
func (s *Service) Refine(ctx context.Context, req Request) (*Outcome, error) {
	if req.Document == "" {
		return nil, errors.New("refinery: document is empty")
	}

	initial := req.InitialConsensus
	if initial == nil {
		var err error
		initial, err = s.scorer.Score(ctx, req.Document)
		if err != nil {
			return nil, fmt.Errorf("refinery: initial score: %w", err)
		}
	}

	res, err := s.refiner.RefineUntilPassing(ctx, orchestrator.RefineRequest{
		RunID:            req.RunID,
		Document:         req.Document,
		InitialConsensus: initial,
		Scorer:           s.scorer,
		MaxAttempts:      req.MaxAttempts,
		Evidence:         req.Evidence,
	})
	if err != nil {
		return nil, fmt.Errorf("refinery: %w", err)
	}

	out := &Outcome{Result: res, Decision: gate.Decide(res.FinalScore)}
	refunded, err := gate.Settle(ctx, s.ledger, res.RunID, out.Decision)
	if err != nil {
		s.logger.Error("refund failed", "run", res.RunID, "err", err)
		out.RefundError = err.Error()
	}
	out.Refunded = refunded

	rec := trace.RunRecord{
		RunID:           res.RunID,
		CreatedAt:       s.now(),
		InitialDocument: req.Document,
		Result:          res,
		Decision:        out.Decision,
		Refunded:        refunded,
	}
	if err := s.store.SaveRun(ctx, rec); err != nil {
		s.logger.Warn("save run trace", "run", res.RunID, "err", err)
	}

	s.logger.Info("run finished",
		"run", res.RunID,
		"score", res.FinalScore,
		"tier", out.Decision.Tier,
		"attempts", len(res.Attempts),
		"refunded", refunded,
	)
	return out, nil
}

// GateOutcome is the result of scoring a document without refining it.
type GateOutcome struct {
	Consensus *quality.ConsensusResult `json:"consensus"`
	Decision  gate.Decision            `json:"decision"`
}

// Gate scores document once and maps the score to a publish tier. It never
// refunds; refunds belong to paid refinement runs.
func (s *Service) Gate(ctx context.Context, document string) (*GateOutcome, error) {
	if document == "" {
		return nil, errors.New("refinery: document is empty")
	}
	c, err := s.scorer.Score(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("refinery: score: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("refinery: score: %w", err)
	}
	return &GateOutcome{Consensus: c, Decision: gate.Decide(c.OverallScore)}, nil
}

// Run returns a stored run record.
func (s *Service) Run(ctx context.Context, runID string) (*trace.RunRecord, error) {
	return s.store.GetRun(ctx, runID)
}

// Runs lists stored runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]trace.RunSummary, error) {
	return s.store.ListRuns(ctx, limit)
}

// Store exposes the trace store for exports.
func (s *Service) Store() trace.Store {
	return s.store
}

// Close releases the trace store.
func (s *Service) Close() error {
	return s.store.Close()
}
