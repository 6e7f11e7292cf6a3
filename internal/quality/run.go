package quality

import "time"

// DiffStats summarizes how much one attempt changed the document.
type DiffStats struct {
	Inserted int    `json:"inserted"`
	Deleted  int    `json:"deleted"`
	Patch    string `json:"patch,omitempty"`
}

// Changed reports whether the attempt altered the document at all.
func (d DiffStats) Changed() bool {
	return d.Inserted > 0 || d.Deleted > 0
}

// RefinementAttempt is one append-only audit record of a refinement round.
type RefinementAttempt struct {
	AttemptNumber  int             `json:"attemptNumber"`
	ScoreBefore    float64         `json:"scoreBefore"`
	ScoreAfter     float64         `json:"scoreAfter"`
	FixersDeployed []Dimension     `json:"fixersDeployed"`
	EditsApplied   []SuggestedEdit `json:"editsApplied"`
	EditsSkipped   []SkippedEdit   `json:"editsSkipped"`

	FixerFailures    []Dimension   `json:"fixerFailures,omitempty"`
	ReconcileFailure string        `json:"reconcileFailure,omitempty"`
	Diff             DiffStats     `json:"diff"`
	Duration         time.Duration `json:"duration"`
}

// RunResult is the immutable outcome of one refineUntilPassing run.
type RunResult struct {
	RunID          string              `json:"runId"`
	FinalDocument  string              `json:"finalDocument"`
	FinalScore     float64             `json:"finalScore"`
	Success        bool                `json:"success"`
	Attempts       []RefinementAttempt `json:"attempts"`
	WarningReason  string              `json:"warningReason,omitempty"`
	FinalConsensus *ConsensusResult    `json:"finalConsensus,omitempty"`
}

// ScoreProgression returns the overall score before the first attempt
// followed by the score after each attempt.
func (r *RunResult) ScoreProgression() []float64 {
	if len(r.Attempts) == 0 {
		return []float64{r.FinalScore}
	}
	out := make([]float64, 0, len(r.Attempts)+1)
	out = append(out, r.Attempts[0].ScoreBefore)
	for _, a := range r.Attempts {
		out = append(out, a.ScoreAfter)
	}
	return out
}

// TotalEditsApplied counts applied edits across every attempt.
func (r *RunResult) TotalEditsApplied() int {
	n := 0
	for _, a := range r.Attempts {
		n += len(a.EditsApplied)
	}
	return n
}
