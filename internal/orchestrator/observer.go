package orchestrator

import (
	"log/slog"

	"github.com/dusk-indust/refinery/internal/quality"
)

// Observer receives engine lifecycle events. Fixer events arrive from
// concurrent goroutines.
type Observer interface {
	OnRoundStart(round int, score float64)
	OnFixerDeployed(round int, d quality.Dimension)
	OnFixerComplete(round int, res quality.FixerResult)
	OnReconciled(round int, res quality.ReconciliationResult)
	OnRoundComplete(attempt quality.RefinementAttempt)
	OnRunComplete(res *quality.RunResult)
}

// NopObserver ignores every event. Embed it to implement only the events
// you need.
type NopObserver struct{}

func (NopObserver) OnRoundStart(int, float64) {}
func (NopObserver) OnFixerDeployed(int, quality.Dimension) {}
func (NopObserver) OnFixerComplete(int, quality.FixerResult) {}
func (NopObserver) OnReconciled(int, quality.ReconciliationResult) {}
func (NopObserver) OnRoundComplete(quality.RefinementAttempt) {}
func (NopObserver) OnRunComplete(*quality.RunResult) {}

// MultiObserver fans every event out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) OnRoundStart(round int, score float64) {
	for _, o := range m {
		o.OnRoundStart(round, score)
	}
}

func (m MultiObserver) OnFixerDeployed(round int, d quality.Dimension) {
	for _, o := range m {
		o.OnFixerDeployed(round, d)
	}
}

func (m MultiObserver) OnFixerComplete(round int, res quality.FixerResult) {
	for _, o := range m {
		o.OnFixerComplete(round, res)
	}
}

func (m MultiObserver) OnReconciled(round int, res quality.ReconciliationResult) {
	for _, o := range m {
		o.OnReconciled(round, res)
	}
}

func (m MultiObserver) OnRoundComplete(attempt quality.RefinementAttempt) {
	for _, o := range m {
		o.OnRoundComplete(attempt)
	}
}

func (m MultiObserver) OnRunComplete(res *quality.RunResult) {
	for _, o := range m {
		o.OnRunComplete(res)
	}
}

// LogObserver writes engine events as structured log records.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates a LogObserver. A nil logger uses slog.Default.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogObserver{logger: logger}
}

func (l *LogObserver) OnRoundStart(round int, score float64) {
	l.logger.Info("refinement round started", "round", round, "score", score)
}

func (l *LogObserver) OnFixerDeployed(round int, d quality.Dimension) {
	l.logger.Debug("fixer deployed", "round", round, "dimension", d)
}

func (l *LogObserver) OnFixerComplete(round int, res quality.FixerResult) {
	if res.Failed() {
		l.logger.Warn("fixer failed", "round", round, "dimension", res.FixerType, "err", res.Err)
		return
	}
	l.logger.Debug("fixer complete",
		"round", round,
		"dimension", res.FixerType,
		"edits", len(res.SuggestedEdits),
		"confidence", res.Confidence,
		"elapsed", res.ProcessingTime,
	)
}

func (l *LogObserver) OnReconciled(round int, res quality.ReconciliationResult) {
	if res.Failed() {
		l.logger.Warn("reconciliation failed softly", "round", round, "reason", res.Failure)
		return
	}
	l.logger.Info("edits reconciled", "round", round, "applied", len(res.EditsApplied), "skipped", len(res.EditsSkipped))
}

func (l *LogObserver) OnRoundComplete(a quality.RefinementAttempt) {
	l.logger.Info("refinement round complete",
		"round", a.AttemptNumber,
		"before", a.ScoreBefore,
		"after", a.ScoreAfter,
		"fixers", len(a.FixersDeployed),
	)
}

func (l *LogObserver) OnRunComplete(res *quality.RunResult) {
	if !res.Success {
		l.logger.Warn("refinement exhausted", "run", res.RunID, "score", res.FinalScore, "reason", res.WarningReason)
		return
	}
	l.logger.Info("refinement passed", "run", res.RunID, "score", res.FinalScore, "attempts", len(res.Attempts))
}
