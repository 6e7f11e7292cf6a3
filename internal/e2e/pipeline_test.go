//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/agent"
	"github.com/dusk-indust/refinery/internal/config"
	"github.com/dusk-indust/refinery/internal/export"
	"github.com/dusk-indust/refinery/internal/gate"
	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/orchestrator"
	"github.com/dusk-indust/refinery/internal/refinery"
)

const finalDraft = `# Transit Expansion Review

## Summary
Several reviewers argue the program has drawn sustained criticism. Costs rose 40% (2024 audit report).

## Outlook
Ridership until now lagged forecasts, and service until now ran below capacity.
`

func fixtureDraft(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", "fixtures", "draft.md"))
	require.NoError(t, err)
	return string(data)
}

type recordingLedger struct {
	requests []gate.RefundRequest
}

func (l *recordingLedger) Refund(_ context.Context, req gate.RefundRequest) error {
	l.requests = append(l.requests, req)
	return nil
}

// pipeline is a refinery agent whose service reaches a rule oracle agent over
// A2A, both served in-process.
type pipeline struct {
	svc      *refinery.Service
	refinery *httptest.Server

	// drain closes the progress reporter and returns every event seen.
	drain func() []orchestrator.ProgressEvent
}

func startPipeline(t *testing.T, pc *config.ProjectConfig, ledger gate.Ledger) *pipeline {
	t.Helper()

	oracleSrv := httptest.NewServer(agent.NewOracleAgent("rule-panel", ruleOracle{}, nil).Routes())
	t.Cleanup(oracleSrv.Close)
	pc.Oracle.Endpoints = oracle.Endpoints{Fixer: oracleSrv.URL, Rewrite: oracleSrv.URL, Scorer: oracleSrv.URL}

	p := &pipeline{}
	reporter := orchestrator.NewProgressReporter()
	svc, err := refinery.FromConfig(context.Background(), pc, ledger, nil, orchestrator.WithObserver(reporter))
	require.NoError(t, err)
	p.svc = svc

	var (
		events []orchestrator.ProgressEvent
		once   sync.Once
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range reporter.Subscribe() {
			events = append(events, ev)
		}
	}()
	p.drain = func() []orchestrator.ProgressEvent {
		once.Do(reporter.Close)
		<-done
		return events
	}
	t.Cleanup(func() {
		p.drain()
		_ = svc.Close()
	})

	p.refinery = httptest.NewServer(agent.NewRefinementAgent(svc, nil).Routes())
	t.Cleanup(p.refinery.Close)
	return p
}

func (p *pipeline) send(t *testing.T, skill string, payload any) *a2a.Task {
	t.Helper()
	msg, err := agent.NewRequest(skill, payload)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	task, err := a2a.NewHTTPClient().SendMessage(ctx, p.refinery.URL, a2a.SendMessageRequest{Message: msg})
	require.NoError(t, err)
	return task
}

// TestPipeline_E2E_RefinesToPass drives a draft through two rounds: the
// first applies three edits and skips the overlapping bias edit, the second
// finishes the bias and accessibility fixes.
func TestPipeline_E2E_RefinesToPass(t *testing.T) {
	ledger := &recordingLedger{}
	p := startPipeline(t, &config.ProjectConfig{}, ledger)

	task := p.send(t, agent.SkillRefine, agent.RefineInput{Document: fixtureDraft(t), RunID: "e2e-pass"})
	require.Equal(t, a2a.TaskStateCompleted, task.Status.State, task.FailureReason())

	payload, err := task.Payload()
	require.NoError(t, err)
	var out refinery.Outcome
	require.NoError(t, json.Unmarshal(payload, &out))

	res := out.Result
	assert.True(t, res.Success)
	assert.Equal(t, finalDraft, res.FinalDocument)
	assert.Equal(t, gate.TierHigh, out.Decision.Tier)
	assert.Empty(t, ledger.requests)

	require.Len(t, res.Attempts, 2)
	first, second := res.Attempts[0], res.Attempts[1]
	assert.Len(t, first.FixersDeployed, 4)
	assert.Len(t, first.EditsApplied, 3)
	require.Len(t, first.EditsSkipped, 1)
	assert.Equal(t, orchestrator.ConflictReason("Summary"), first.EditsSkipped[0].Reason)
	assert.Len(t, second.FixersDeployed, 2)
	assert.Len(t, second.EditsApplied, 2)
	assert.Empty(t, second.EditsSkipped)
	assert.InDelta(t, 8.5, res.FinalScore, 1e-9)

	progression := res.ScoreProgression()
	for i := 1; i < len(progression); i++ {
		assert.Greater(t, progression[i], progression[i-1], "score must rise every round")
	}

	rec, err := p.svc.Run(context.Background(), "e2e-pass")
	require.NoError(t, err)
	report := export.BuildReport(rec)
	assert.Equal(t, 5, report.TotalEditsApplied)
	assert.Equal(t, 1, report.Attempts[0].SkipReasons[orchestrator.ConflictReason("Summary")])
}

// TestPipeline_E2E_BudgetExhaustedRefunds gives the engine a single attempt,
// which is not enough to pass, and checks the refund.
func TestPipeline_E2E_BudgetExhaustedRefunds(t *testing.T) {
	ledger := &recordingLedger{}
	p := startPipeline(t, &config.ProjectConfig{MaxAttempts: 1}, ledger)

	task := p.send(t, agent.SkillRefine, agent.RefineInput{Document: fixtureDraft(t), RunID: "e2e-budget"})
	require.Equal(t, a2a.TaskStateCompleted, task.Status.State, task.FailureReason())

	payload, err := task.Payload()
	require.NoError(t, err)
	var out refinery.Outcome
	require.NoError(t, json.Unmarshal(payload, &out))

	assert.False(t, out.Result.Success)
	assert.Len(t, out.Result.Attempts, 1)
	assert.NotEmpty(t, out.Result.WarningReason)
	assert.Equal(t, gate.TierAcceptable, out.Decision.Tier, "7.4 is publishable with a warning")
	assert.False(t, out.Refunded)
	assert.Empty(t, ledger.requests)
}

func TestPipeline_E2E_QualityGate(t *testing.T) {
	p := startPipeline(t, &config.ProjectConfig{}, nil)

	task := p.send(t, agent.SkillGate, agent.GateInput{Document: fixtureDraft(t)})
	require.Equal(t, a2a.TaskStateCompleted, task.Status.State)
	payload, err := task.Payload()
	require.NoError(t, err)

	var out refinery.GateOutcome
	require.NoError(t, json.Unmarshal(payload, &out))
	assert.Equal(t, gate.TierFailed, out.Decision.Tier)
	assert.True(t, out.Decision.Refund)
	assert.Equal(t, "contains heretofore", out.Consensus.DimensionCritiques["accessibility"])
}

func TestPipeline_E2E_ProgressEvents(t *testing.T) {
	p := startPipeline(t, &config.ProjectConfig{}, nil)
	task := p.send(t, agent.SkillRefine, agent.RefineInput{Document: fixtureDraft(t)})
	require.Equal(t, a2a.TaskStateCompleted, task.Status.State)

	rounds := map[int]bool{}
	var rescored int
	for _, ev := range p.drain() {
		rounds[ev.Round] = true
		if ev.Phase == orchestrator.PhaseScoring && ev.Status == orchestrator.ProgressComplete {
			rescored++
		}
	}
	assert.True(t, rounds[1])
	assert.True(t, rounds[2])
	assert.Equal(t, 2, rescored)
}
