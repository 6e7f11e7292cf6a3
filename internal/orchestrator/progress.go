package orchestrator

import (
	"fmt"

	"github.com/dusk-indust/refinery/internal/quality"
)

// Phase identifies where in a round a progress event happened.
type Phase int

const (
	PhaseFixing Phase = iota
	PhaseReconciling
	PhaseScoring
)

func (p Phase) String() string {
	names := [...]string{"fixing", "reconciling", "scoring"}
	if int(p) >= 0 && int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// ProgressEvent is emitted to the user while a run executes.
type ProgressEvent struct {
	Round   int
	Phase   Phase
	Section string
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of one unit of work within a round.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// ProgressReporter emits progress events through a buffered channel. It
// implements Observer so it can be handed straight to the engine.
type ProgressReporter struct {
	ch chan ProgressEvent
}

var _ Observer = (*ProgressReporter)(nil)

// NewProgressReporter creates a ProgressReporter with a buffered channel of size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		ch: make(chan ProgressEvent, 64),
	}
}

// Emit sends a progress event in a non-blocking fashion.
// If the channel is full, the event is silently dropped.
func (pr *ProgressReporter) Emit(event ProgressEvent) {
	select {
	case pr.ch <- event:
	default:
		// Drop the event if the channel is full.
	}
}

// Subscribe returns a read-only channel for consuming progress events.
func (pr *ProgressReporter) Subscribe() <-chan ProgressEvent {
	return pr.ch
}

// Close closes the progress event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

func (pr *ProgressReporter) OnRoundStart(round int, score float64) {
	pr.Emit(ProgressEvent{
		Round:   round,
		Phase:   PhaseFixing,
		Section: "round",
		Status:  ProgressPending,
		Message: fmt.Sprintf("score %.1f", score),
	})
}

func (pr *ProgressReporter) OnFixerDeployed(round int, d quality.Dimension) {
	pr.Emit(ProgressEvent{Round: round, Phase: PhaseFixing, Section: string(d), Status: ProgressWorking})
}

func (pr *ProgressReporter) OnFixerComplete(round int, res quality.FixerResult) {
	ev := ProgressEvent{Round: round, Phase: PhaseFixing, Section: string(res.FixerType), Status: ProgressComplete}
	if res.Failed() {
		ev.Status = ProgressFailed
		ev.Message = res.Err.Error()
	} else {
		ev.Message = fmt.Sprintf("%d edits", len(res.SuggestedEdits))
	}
	pr.Emit(ev)
}

func (pr *ProgressReporter) OnReconciled(round int, res quality.ReconciliationResult) {
	ev := ProgressEvent{Round: round, Phase: PhaseReconciling, Section: "reconcile", Status: ProgressComplete}
	if res.Failed() {
		ev.Status = ProgressFailed
		ev.Message = res.Failure
	} else {
		ev.Message = fmt.Sprintf("%d applied, %d skipped", len(res.EditsApplied), len(res.EditsSkipped))
	}
	pr.Emit(ev)
}

func (pr *ProgressReporter) OnRoundComplete(a quality.RefinementAttempt) {
	pr.Emit(ProgressEvent{
		Round:   a.AttemptNumber,
		Phase:   PhaseScoring,
		Section: "rescore",
		Status:  ProgressComplete,
		Message: fmt.Sprintf("%.1f -> %.1f", a.ScoreBefore, a.ScoreAfter),
	})
}

// OnRunComplete does nothing; the owner closes the reporter.
func (pr *ProgressReporter) OnRunComplete(*quality.RunResult) {}

// FormatProgress formats a ProgressEvent as a human-readable status line.
func FormatProgress(event ProgressEvent) string {
	switch event.Status {
	case ProgressPending:
		if event.Message != "" {
			return fmt.Sprintf("  ○ %s (%s)", event.Section, event.Message)
		}
		return fmt.Sprintf("  ○ %s (pending)", event.Section)
	case ProgressWorking:
		return fmt.Sprintf("  ● %s...", event.Section)
	case ProgressComplete:
		if event.Message != "" {
			return fmt.Sprintf("  ✓ %s complete (%s)", event.Section, event.Message)
		}
		return fmt.Sprintf("  ✓ %s complete", event.Section)
	case ProgressFailed:
		return fmt.Sprintf("  ✗ %s failed: %s", event.Section, event.Message)
	default:
		return fmt.Sprintf("  ? %s (unknown status)", event.Section)
	}
}

// FormatRoundHeader formats a round header for display.
// Returns: "[{name}] Round {N}"
func FormatRoundHeader(name string, round int) string {
	return fmt.Sprintf("[%s] Round %d", name, round)
}
