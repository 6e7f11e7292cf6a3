package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/refinery/internal/fixer"
	"github.com/dusk-indust/refinery/internal/quality"
)

// fixerJob pairs a fixer with its read-only input snapshot.
type fixerJob struct {
	fixer fixer.Fixer
	input fixer.Input
}

// FanOut runs fixers in parallel and waits for all of them. Each fixer is
// isolated: any failure becomes a zero-edit, zero-confidence result in that
// fixer's slot and never cancels its siblings.
type FanOut struct {
	timeout time.Duration
	limit   int
	settings
}

func newFanOut(timeout time.Duration, limit int, s settings) *FanOut {
	return &FanOut{timeout: timeout, limit: limit, settings: s}
}

// run returns one result per job, in job order. It uses a plain
// errgroup.Group rather than WithContext so one failure does not cancel the
// remaining calls.
func (f *FanOut) run(ctx context.Context, round int, jobs []fixerJob) []quality.FixerResult {
	results := make([]quality.FixerResult, len(jobs))
	var g errgroup.Group
	if f.limit > 0 {
		g.SetLimit(f.limit)
	}

	for i, job := range jobs {
		f.observer.OnFixerDeployed(round, job.fixer.Dimension())
		g.Go(func() error {
			results[i] = f.runOne(ctx, round, job)
			f.observer.OnFixerComplete(round, results[i])
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func (f *FanOut) runOne(ctx context.Context, round int, job fixerJob) quality.FixerResult {
	dim := job.fixer.Dimension()
	ctx, span := f.tracer.Start(ctx, "refinery.fixer", trace.WithAttributes(
		attribute.Int("refinery.round", round),
		attribute.String("refinery.dimension", string(dim)),
	))
	defer span.End()

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := f.call(ctx, job)
	elapsed := time.Since(start)
	if err != nil {
		f.logger.Warn("fixer failed", "round", round, "dimension", dim, "elapsed", elapsed, "err", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.metrics.ObserveFixer(dim, "failed", elapsed)
		return quality.FailedFixerResult(dim, elapsed, err)
	}

	res.FixerType = dim
	if res.ProcessingTime == 0 {
		res.ProcessingTime = elapsed
	}
	span.SetAttributes(attribute.Int("refinery.edits", len(res.SuggestedEdits)))
	span.SetStatus(codes.Ok, "")
	f.metrics.ObserveFixer(dim, "ok", elapsed)
	return res
}

type fixerOutcome struct {
	res quality.FixerResult
	err error
}

// call invokes the fixer on its own goroutine so a fixer that ignores its
// context still cannot hold the round past the timeout. A panic is recovered
// into an error.
func (f *FanOut) call(ctx context.Context, job fixerJob) (quality.FixerResult, error) {
	done := make(chan fixerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fixerOutcome{err: fmt.Errorf("fixer %s panicked: %v", job.fixer.Dimension(), r)}
			}
		}()
		res, err := job.fixer.SuggestEdits(ctx, job.input)
		done <- fixerOutcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		return out.res, out.err
	case <-ctx.Done():
		return quality.FixerResult{}, fmt.Errorf("fixer %s: %w", job.fixer.Dimension(), ctx.Err())
	}
}
