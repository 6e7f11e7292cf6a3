// Package orchestrator implements the refinement engine: threshold-driven
// fixer deployment, concurrent fan-out, edit reconciliation, and the bounded
// refinement loop.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dusk-indust/refinery/internal/fixer"
	"github.com/dusk-indust/refinery/internal/quality"
)

// OrchestrationResult aggregates one round of fixer output.
type OrchestrationResult struct {
	FixersDeployed []quality.Dimension
	FixerResults   []quality.FixerResult
	// AllSuggestedEdits concatenates the fixers' edits in dimension
	// enumeration order, independent of completion order.
	AllSuggestedEdits []quality.SuggestedEdit
	// TotalProcessingTime is the wall-clock time of the fan-out.
	TotalProcessingTime time.Duration
}

// Failures lists the deployed dimensions whose fixer failed.
func (r *OrchestrationResult) Failures() []quality.Dimension {
	var out []quality.Dimension
	for _, res := range r.FixerResults {
		if res.Failed() {
			out = append(out, res.FixerType)
		}
	}
	return out
}

// FixerOrchestrator selects the weak dimensions of a document and runs their
// fixers concurrently.
type FixerOrchestrator struct {
	registry  *fixer.Registry
	fanout    *FanOut
	threshold float64
	settings
}

// NewFixerOrchestrator creates an orchestrator that deploys fixers from
// registry for every dimension scoring below cfg.DeployThreshold.
func NewFixerOrchestrator(registry *fixer.Registry, cfg Config, opts ...Option) *FixerOrchestrator {
	s := newSettings("fixer-orchestrator", opts)
	return &FixerOrchestrator{
		registry:  registry,
		fanout:    newFanOut(cfg.FixerTimeout, cfg.MaxConcurrentFixers, s),
		threshold: cfg.DeployThreshold,
		settings:  s,
	}
}

// Select returns the dimensions strictly below the deployment threshold in
// enumeration order.
func (o *FixerOrchestrator) Select(scores quality.DimensionScores) []quality.Dimension {
	return scores.Below(o.threshold)
}

// Orchestrate deploys the fixers for the weak dimensions of document and
// waits for all of them. Fixer failures are reported in the results, never
// as an error; only an invalid consensus is rejected.
func (o *FixerOrchestrator) Orchestrate(ctx context.Context, round int, document string, consensus *quality.ConsensusResult, evidence []quality.Evidence) (*OrchestrationResult, error) {
	if err := consensus.Validate(); err != nil {
		return nil, fmt.Errorf("orchestrator: round %d: %w", round, err)
	}

	selected := o.Select(consensus.DimensionScores)
	if len(selected) == 0 {
		o.logger.Debug("no dimension below threshold", "round", round, "threshold", o.threshold)
		return &OrchestrationResult{}, nil
	}

	ctx, span := o.tracer.Start(ctx, "refinery.orchestrate", trace.WithAttributes(
		attribute.Int("refinery.round", round),
		attribute.Int("refinery.fixers", len(selected)),
	))
	defer span.End()

	jobs := make([]fixerJob, len(selected))
	for i, d := range selected {
		f, err := o.registry.Lookup(d)
		if err != nil {
			o.logger.Warn("dimension has no fixer", "dimension", d, "err", err)
			f = missingFixer{dimension: d, err: err}
		}
		jobs[i] = fixerJob{
			fixer: f,
			input: fixer.Input{
				Document: document,
				Score:    consensus.DimensionScores[d],
				Critique: consensus.Critique(d),
				Evidence: evidence,
			},
		}
	}

	start := time.Now()
	results := o.fanout.run(ctx, round, jobs)
	out := &OrchestrationResult{
		FixersDeployed:      selected,
		FixerResults:        results,
		TotalProcessingTime: time.Since(start),
	}
	for _, res := range results {
		out.AllSuggestedEdits = append(out.AllSuggestedEdits, res.SuggestedEdits...)
	}
	span.SetAttributes(attribute.Int("refinery.edits", len(out.AllSuggestedEdits)))
	return out, nil
}

// missingFixer stands in for a selected dimension with no registered fixer
// so the gap shows up as an isolated failure.
type missingFixer struct {
	dimension quality.Dimension
	err       error
}

func (m missingFixer) Dimension() quality.Dimension { return m.dimension }

func (m missingFixer) SuggestEdits(context.Context, fixer.Input) (quality.FixerResult, error) {
	return quality.FailedFixerResult(m.dimension, 0, m.err), m.err
}
