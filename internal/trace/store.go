// Package trace persists the audit trail of refinement runs.
package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dusk-indust/refinery/internal/gate"
	"github.com/dusk-indust/refinery/internal/quality"
)

var (
	// ErrRunNotFound is returned by GetRun for an unknown run ID.
	ErrRunNotFound = errors.New("trace: run not found")

	// ErrRunExists is returned by SaveRun when the run ID is already stored.
	// Run records are append-only.
	ErrRunExists = errors.New("trace: run already exists")
)

// Store is the interface for the run trace backend.
// Implementations: KuzuStore (graph database), MemStore (process-local).
type Store interface {
	io.Closer

	// InitSchema is called once before any run is saved.
	InitSchema(ctx context.Context) error

	SaveRun(ctx context.Context, rec RunRecord) error
	GetRun(ctx context.Context, runID string) (*RunRecord, error)

	// ListRuns returns summaries newest first. A non-positive limit returns
	// every run.
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)

	Stats(ctx context.Context) (*Stats, error)
}

// RunRecord is everything kept about one finished run.
type RunRecord struct {
	RunID           string             `json:"runId"`
	CreatedAt       time.Time          `json:"createdAt"`
	InitialDocument string             `json:"initialDocument"`
	Result          *quality.RunResult `json:"result"`
	Decision        gate.Decision      `json:"decision"`
	Refunded        bool               `json:"refunded"`
}

// Summary condenses the record for listings.
func (r *RunRecord) Summary() RunSummary {
	s := RunSummary{
		RunID:     r.RunID,
		CreatedAt: r.CreatedAt,
		Tier:      r.Decision.Tier,
	}
	if r.Result != nil {
		s.FinalScore = r.Result.FinalScore
		s.Success = r.Result.Success
		s.Attempts = len(r.Result.Attempts)
	}
	return s
}

// RunSummary is one row of ListRuns.
type RunSummary struct {
	RunID      string    `json:"runId"`
	CreatedAt  time.Time `json:"createdAt"`
	FinalScore float64   `json:"finalScore"`
	Success    bool      `json:"success"`
	Attempts   int       `json:"attempts"`
	Tier       gate.Tier `json:"tier"`
}

// Stats counts what a store holds.
type Stats struct {
	RunCount     int `json:"runCount"`
	AttemptCount int `json:"attemptCount"`
	EditCount    int `json:"editCount"`
}

// normalize fills the record ID from the result and stamps CreatedAt.
func (r RunRecord) normalize() (RunRecord, error) {
	if r.Result == nil {
		return r, errors.New("trace: run record has no result")
	}
	if r.RunID == "" {
		r.RunID = r.Result.RunID
	}
	if r.RunID == "" {
		return r, errors.New("trace: run record has no ID")
	}
	if r.Result.RunID != "" && r.Result.RunID != r.RunID {
		return r, fmt.Errorf("trace: record ID %q does not match result ID %q", r.RunID, r.Result.RunID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

func cloneRecord(r RunRecord) RunRecord {
	out := r
	if r.Result == nil {
		return out
	}
	res := *r.Result
	res.Attempts = make([]quality.RefinementAttempt, len(r.Result.Attempts))
	for i, a := range r.Result.Attempts {
		a.FixersDeployed = slices.Clone(a.FixersDeployed)
		a.EditsApplied = slices.Clone(a.EditsApplied)
		a.EditsSkipped = slices.Clone(a.EditsSkipped)
		a.FixerFailures = slices.Clone(a.FixerFailures)
		res.Attempts[i] = a
	}
	res.FinalConsensus = r.Result.FinalConsensus.Clone()
	out.Result = &res
	return out
}

// sortSummaries orders newest first, breaking ties by run ID.
func sortSummaries(s []RunSummary) {
	slices.SortStableFunc(s, func(a, b RunSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.RunID < b.RunID:
			return -1
		case a.RunID > b.RunID:
			return 1
		}
		return 0
	})
}
