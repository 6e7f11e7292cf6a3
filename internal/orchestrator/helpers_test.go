package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dusk-indust/refinery/internal/fixer"
	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/quality"
)

// scores returns a full DimensionScores set to base with overrides applied.
func scores(base float64, overrides map[quality.Dimension]float64) quality.DimensionScores {
	s := make(quality.DimensionScores, len(quality.Dimensions))
	for _, d := range quality.Dimensions {
		s[d] = base
	}
	for d, v := range overrides {
		s[d] = v
	}
	return s
}

func consensus(overall float64, dims quality.DimensionScores) *quality.ConsensusResult {
	return &quality.ConsensusResult{
		OverallScore:    overall,
		DimensionScores: dims,
		OverallCritique: "needs work",
	}
}

// stubFixer is a Fixer driven by a function. calls counts invocations.
type stubFixer struct {
	dim   quality.Dimension
	fn    func(ctx context.Context, in fixer.Input) (quality.FixerResult, error)
	calls atomic.Int32
}

func (s *stubFixer) Dimension() quality.Dimension { return s.dim }

func (s *stubFixer) SuggestEdits(ctx context.Context, in fixer.Input) (quality.FixerResult, error) {
	s.calls.Add(1)
	if s.fn == nil {
		return quality.FixerResult{FixerType: s.dim, Confidence: 0.05}, nil
	}
	return s.fn(ctx, in)
}

// editsFixer returns a stub that proposes the given edits.
func editsFixer(d quality.Dimension, edits ...quality.SuggestedEdit) *stubFixer {
	return &stubFixer{dim: d, fn: func(context.Context, fixer.Input) (quality.FixerResult, error) {
		return quality.FixerResult{FixerType: d, SuggestedEdits: edits, Confidence: 0.8}, nil
	}}
}

// stubRegistry registers a stub for every dimension, replacing any with the
// given overrides.
func stubRegistry(overrides ...*stubFixer) (*fixer.Registry, map[quality.Dimension]*stubFixer) {
	reg := fixer.NewRegistry()
	all := make(map[quality.Dimension]*stubFixer)
	for _, d := range quality.Dimensions {
		all[d] = &stubFixer{dim: d}
	}
	for _, o := range overrides {
		all[o.dim] = o
	}
	for _, f := range all {
		reg.Register(f)
	}
	return reg, all
}

// stubRewriter applies each edit with a plain string replacement unless fn
// is set.
type stubRewriter struct {
	mu    sync.Mutex
	fn    func(req oracle.RewriteRequest) (*oracle.RewriteResponse, error)
	calls int
	last  oracle.RewriteRequest
}

func (s *stubRewriter) Rewrite(_ context.Context, req oracle.RewriteRequest) (*oracle.RewriteResponse, error) {
	s.mu.Lock()
	s.calls++
	s.last = req
	s.mu.Unlock()
	if s.fn != nil {
		return s.fn(req)
	}
	doc := req.Document
	for _, e := range req.Edits {
		doc = strings.Replace(doc, e.OriginalText, e.SuggestedText, 1)
	}
	return &oracle.RewriteResponse{RevisedDocument: doc}, nil
}

func (s *stubRewriter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// scriptedScorer returns the next overall score on each call, repeating the
// last one once the script runs out. Dimension scores track the overall.
type scriptedScorer struct {
	mu     sync.Mutex
	script []float64
	dims   func(overall float64) quality.DimensionScores
	calls  int
	docs   []string
}

func (s *scriptedScorer) Score(_ context.Context, doc string) (*quality.ConsensusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	s.docs = append(s.docs, doc)
	overall := s.script[i]
	dims := scores(overall, nil)
	if s.dims != nil {
		dims = s.dims(overall)
	}
	return consensus(overall, dims), nil
}

// testConfig is DefaultConfig with retries fast enough for unit tests.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.FixerTimeout = time.Second
	cfg.Rewrite = RetryPolicy{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
	return cfg
}

func newTestRefiner(t *testing.T, reg *fixer.Registry, rw oracle.Rewriter, opts ...Option) *Refiner {
	t.Helper()
	cfg := testConfig()
	return NewRefiner(
		NewFixerOrchestrator(reg, cfg, opts...),
		NewReconciler(rw, cfg, opts...),
		cfg,
		opts...,
	)
}
