package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/refinery"
)

// Version is reported on every agent card.
const Version = "0.1.0"

// RefineInput is the data part of a refine-document message.
type RefineInput struct {
	Document         string                   `json:"document"`
	RunID            string                   `json:"runId,omitempty"`
	MaxAttempts      int                      `json:"maxAttempts,omitempty"`
	Evidence         []quality.Evidence       `json:"evidence,omitempty"`
	InitialConsensus *quality.ConsensusResult `json:"initialConsensus,omitempty"`
}

// GateInput is the data part of a quality-gate message.
type GateInput struct {
	Document string `json:"document"`
}

// RefinementAgent serves the refinement service over A2A.
type RefinementAgent struct {
	*BaseAgent
	svc *refinery.Service
}

// NewRefinementAgent creates a RefinementAgent backed by svc.
func NewRefinementAgent(svc *refinery.Service, logger *slog.Logger) *RefinementAgent {
	card := a2a.AgentCard{
		Name:        "refinery",
		Description: "Scores a draft on seven quality dimensions and refines it until it passes or the attempt budget runs out",
		Version:     Version,
		Skills: []a2a.AgentSkill{
			{
				ID:          SkillRefine,
				Name:        "Refine Document",
				Description: "Runs the refinement loop on a document and returns the run result and gate decision",
				Tags:        []string{"refinement", "quality"},
			},
			{
				ID:          SkillGate,
				Name:        "Quality Gate",
				Description: "Scores a document and returns its publish tier without refining it",
				Tags:        []string{"quality", "gate"},
			},
		},
		DefaultInputModes:  []string{"text/plain", "application/json"},
		DefaultOutputModes: []string{"text/plain", "application/json"},
	}

	ra := &RefinementAgent{svc: svc}
	ra.BaseAgent = NewBaseAgent(card, ra.processMessage, logger)
	return ra
}

// processMessage routes on the message text, which names the skill.
func (ra *RefinementAgent) processMessage(ctx context.Context, _ *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
	switch skill := msg.Text(); skill {
	case SkillRefine:
		return ra.refine(ctx, msg)
	case SkillGate:
		return ra.gate(ctx, msg)
	default:
		return nil, fmt.Errorf("unknown skill %q", skill)
	}
}

func (ra *RefinementAgent) refine(ctx context.Context, msg a2a.Message) ([]a2a.Artifact, error) {
	var in RefineInput
	if err := decodeInput(msg, &in); err != nil {
		return nil, err
	}
	out, err := ra.svc.Refine(ctx, refinery.Request{
		RunID:            in.RunID,
		Document:         in.Document,
		InitialConsensus: in.InitialConsensus,
		MaxAttempts:      in.MaxAttempts,
		Evidence:         in.Evidence,
	})
	if err != nil {
		return nil, err
	}

	data, err := a2a.DataPart(out)
	if err != nil {
		return nil, fmt.Errorf("encode outcome: %w", err)
	}
	return []a2a.Artifact{
		{
			ArtifactID:  out.Result.RunID + "-outcome",
			Name:        "outcome",
			Description: out.Decision.String(),
			Parts:       []a2a.Part{data},
		},
		{
			ArtifactID: out.Result.RunID + "-document",
			Name:       "document",
			Parts:      []a2a.Part{a2a.TextPart(out.Result.FinalDocument)},
		},
	}, nil
}

func (ra *RefinementAgent) gate(ctx context.Context, msg a2a.Message) ([]a2a.Artifact, error) {
	var in GateInput
	if err := decodeInput(msg, &in); err != nil {
		return nil, err
	}
	out, err := ra.svc.Gate(ctx, in.Document)
	if err != nil {
		return nil, err
	}
	data, err := a2a.DataPart(out)
	if err != nil {
		return nil, fmt.Errorf("encode gate outcome: %w", err)
	}
	return []a2a.Artifact{{
		ArtifactID:  a2a.NewTaskID(),
		Name:        "gate",
		Description: out.Decision.String(),
		Parts:       []a2a.Part{data},
	}}, nil
}

func decodeInput(msg a2a.Message, v any) error {
	data := msg.Data()
	if data == nil {
		return fmt.Errorf("message %s carries no data part", msg.MessageID)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

// NewRequest builds the message a client sends to invoke skill with payload.
func NewRequest(skill string, payload any) (a2a.Message, error) {
	data, err := a2a.DataPart(payload)
	if err != nil {
		return a2a.Message{}, fmt.Errorf("encode %s payload: %w", skill, err)
	}
	return a2a.Message{
		MessageID: a2a.NewTaskID(),
		Role:      a2a.RoleUser,
		Parts:     []a2a.Part{a2a.TextPart(skill), data},
	}, nil
}
