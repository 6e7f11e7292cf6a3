// Package export renders stored refinement runs for humans and tools.
package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dusk-indust/refinery/internal/gate"
	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/trace"
)

// RunReport is the top-level JSON export structure.
type RunReport struct {
	RunID             string          `json:"runId"`
	ExportedAt        string          `json:"exportedAt"`
	CreatedAt         string          `json:"createdAt"`
	Success           bool            `json:"success"`
	FinalScore        float64         `json:"finalScore"`
	Decision          gate.Decision   `json:"decision"`
	Refunded          bool            `json:"refunded"`
	WarningReason     string          `json:"warningReason,omitempty"`
	ScoreProgression  []float64       `json:"scoreProgression"`
	TotalEditsApplied int             `json:"totalEditsApplied"`
	Attempts          []AttemptReport `json:"attempts"`
	FinalDocument     string          `json:"finalDocument"`
}

// AttemptReport describes one refinement round.
type AttemptReport struct {
	Attempt          int            `json:"attempt"`
	ScoreBefore      float64        `json:"scoreBefore"`
	ScoreAfter       float64        `json:"scoreAfter"`
	Delta            float64        `json:"delta"`
	Fixers           []string       `json:"fixers"`
	FixerFailures    []string       `json:"fixerFailures,omitempty"`
	Applied          int            `json:"applied"`
	Skipped          int            `json:"skipped"`
	SkipReasons      map[string]int `json:"skipReasons,omitempty"`
	ReconcileFailure string         `json:"reconcileFailure,omitempty"`
	CharsInserted    int            `json:"charsInserted"`
	CharsDeleted     int            `json:"charsDeleted"`
	DurationMS       int64          `json:"durationMs"`
}

// ExportRun loads runID from store and builds its report.
func ExportRun(ctx context.Context, store trace.Store, runID string) (*RunReport, error) {
	rec, err := store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return BuildReport(rec), nil
}

// BuildReport condenses a run record into a RunReport.
func BuildReport(rec *trace.RunRecord) *RunReport {
	res := rec.Result
	report := &RunReport{
		RunID:             rec.RunID,
		ExportedAt:        time.Now().UTC().Format(time.RFC3339),
		CreatedAt:         rec.CreatedAt.UTC().Format(time.RFC3339),
		Success:           res.Success,
		FinalScore:        res.FinalScore,
		Decision:          rec.Decision,
		Refunded:          rec.Refunded,
		WarningReason:     res.WarningReason,
		ScoreProgression:  res.ScoreProgression(),
		TotalEditsApplied: res.TotalEditsApplied(),
		Attempts:          make([]AttemptReport, 0, len(res.Attempts)),
		FinalDocument:     res.FinalDocument,
	}
	for _, a := range res.Attempts {
		report.Attempts = append(report.Attempts, attemptReport(a))
	}
	return report
}

func attemptReport(a quality.RefinementAttempt) AttemptReport {
	ar := AttemptReport{
		Attempt:          a.AttemptNumber,
		ScoreBefore:      a.ScoreBefore,
		ScoreAfter:       a.ScoreAfter,
		Delta:            a.ScoreAfter - a.ScoreBefore,
		Fixers:           dimensionNames(a.FixersDeployed),
		Applied:          len(a.EditsApplied),
		Skipped:          len(a.EditsSkipped),
		ReconcileFailure: a.ReconcileFailure,
		CharsInserted:    a.Diff.Inserted,
		CharsDeleted:     a.Diff.Deleted,
		DurationMS:       a.Duration.Milliseconds(),
	}
	if len(a.FixerFailures) > 0 {
		ar.FixerFailures = dimensionNames(a.FixerFailures)
	}
	if len(a.EditsSkipped) > 0 {
		ar.SkipReasons = make(map[string]int)
		for _, s := range a.EditsSkipped {
			ar.SkipReasons[s.Reason]++
		}
	}
	return ar
}

func dimensionNames(ds []quality.Dimension) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}

// SummaryRows flattens run summaries into table rows for the CLI, newest
// first.
func SummaryRows(runs []trace.RunSummary) [][]string {
	sorted := append([]trace.RunSummary(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	rows := make([][]string, 0, len(sorted))
	for _, r := range sorted {
		rows = append(rows, []string{
			r.RunID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			fmt.Sprintf("%.1f", r.FinalScore),
			string(r.Tier),
			fmt.Sprintf("%d", r.Attempts),
		})
	}
	return rows
}
