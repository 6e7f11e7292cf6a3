package mcptools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/refinery/internal/export"
	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/refinery"
)

const defaultListLimit = 20

// RefineryService handles MCP tool calls against a refinement service.
type RefineryService struct {
	svc *refinery.Service
}

// NewRefineryService creates a RefineryService backed by svc.
func NewRefineryService(svc *refinery.Service) *RefineryService {
	return &RefineryService{svc: svc}
}

// RefineDocument runs the refinement loop and the quality gate on a draft.
func (s *RefineryService) RefineDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RefineDocumentInput,
) (*mcp.CallToolResult, RefineDocumentOutput, error) {
	if input.Document == "" {
		return nil, RefineDocumentOutput{}, fmt.Errorf("document is required")
	}

	evidence := make([]quality.Evidence, 0, len(input.Evidence))
	for _, e := range input.Evidence {
		evidence = append(evidence, quality.Evidence{Source: e.Source, Title: e.Title, URL: e.URL, Excerpt: e.Excerpt})
	}

	out, err := s.svc.Refine(ctx, refinery.Request{
		RunID:       input.RunID,
		Document:    input.Document,
		MaxAttempts: input.MaxAttempts,
		Evidence:    evidence,
	})
	if err != nil {
		return nil, RefineDocumentOutput{}, fmt.Errorf("refine: %w", err)
	}

	res := out.Result
	return nil, RefineDocumentOutput{
		RunID:            res.RunID,
		Success:          res.Success,
		FinalScore:       res.FinalScore,
		Tier:             string(out.Decision.Tier),
		Verdict:          out.Decision.String(),
		Refunded:         out.Refunded,
		Attempts:         len(res.Attempts),
		ScoreProgression: res.ScoreProgression(),
		EditsApplied:     res.TotalEditsApplied(),
		WarningReason:    res.WarningReason,
		FinalDocument:    res.FinalDocument,
	}, nil
}

// QualityGate scores a document once and reports its publish tier.
func (s *RefineryService) QualityGate(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input QualityGateInput,
) (*mcp.CallToolResult, QualityGateOutput, error) {
	out, err := s.svc.Gate(ctx, input.Document)
	if err != nil {
		return nil, QualityGateOutput{}, err
	}

	scores := make(map[string]float64, len(out.Consensus.DimensionScores))
	for d, v := range out.Consensus.DimensionScores {
		scores[string(d)] = v
	}
	return nil, QualityGateOutput{
		OverallScore:    out.Consensus.OverallScore,
		Tier:            string(out.Decision.Tier),
		Publishable:     out.Decision.Publishable,
		WarningBadge:    out.Decision.WarningBadge,
		DimensionScores: scores,
		Critique:        out.Consensus.OverallCritique,
	}, nil
}

// GetRun returns one stored run as a report or a Mermaid score diagram.
func (s *RefineryService) GetRun(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetRunInput,
) (*mcp.CallToolResult, GetRunOutput, error) {
	if input.RunID == "" {
		return nil, GetRunOutput{}, fmt.Errorf("runId is required")
	}
	rec, err := s.svc.Run(ctx, input.RunID)
	if err != nil {
		return nil, GetRunOutput{}, err
	}

	switch input.Format {
	case "mermaid":
		return nil, GetRunOutput{RunID: rec.RunID, Mermaid: export.RunMermaid(rec)}, nil
	case "", "json":
	default:
		return nil, GetRunOutput{}, fmt.Errorf("unknown format %q (want json or mermaid)", input.Format)
	}

	report := export.BuildReport(rec)
	detail := &RunDetail{
		Success:          report.Success,
		FinalScore:       report.FinalScore,
		Tier:             string(report.Decision.Tier),
		Refunded:         report.Refunded,
		ScoreProgression: report.ScoreProgression,
		Attempts:         make([]AttemptDetail, 0, len(report.Attempts)),
		FinalDocument:    report.FinalDocument,
	}
	for _, a := range report.Attempts {
		detail.Attempts = append(detail.Attempts, AttemptDetail{
			Attempt:     a.Attempt,
			ScoreBefore: a.ScoreBefore,
			ScoreAfter:  a.ScoreAfter,
			Fixers:      a.Fixers,
			Applied:     a.Applied,
			Skipped:     a.Skipped,
		})
	}
	return nil, GetRunOutput{RunID: rec.RunID, Report: detail}, nil
}

// ListRuns lists stored runs, newest first.
func (s *RefineryService) ListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	runs, err := s.svc.Runs(ctx, limit)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}

	out := ListRunsOutput{Runs: make([]RunSummary, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, RunSummary{
			RunID:      r.RunID,
			CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
			FinalScore: r.FinalScore,
			Success:    r.Success,
			Attempts:   r.Attempts,
			Tier:       string(r.Tier),
		})
	}
	return nil, out, nil
}
