package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/oracle"
)

// OracleAgent serves an oracle implementation over A2A so that remote
// engines can reach it through oracle.A2AOracle.
type OracleAgent struct {
	*BaseAgent
	impl oracle.Oracle
}

// NewOracleAgent creates an OracleAgent that advertises all three oracle
// skills and answers them with impl.
func NewOracleAgent(name string, impl oracle.Oracle, logger *slog.Logger) *OracleAgent {
	card := a2a.AgentCard{
		Name:        name,
		Description: "Proposes dimension edits, rewrites documents, and scores them",
		Version:     Version,
		Skills: []a2a.AgentSkill{
			{ID: oracle.SkillProposeEdits, Name: "Propose Edits", Description: "Suggests targeted edits for one quality dimension", Tags: []string{"fixer"}},
			{ID: oracle.SkillRewrite, Name: "Rewrite Document", Description: "Applies a batch of edits in a single coherent rewrite", Tags: []string{"rewrite"}},
			{ID: oracle.SkillScore, Name: "Score Document", Description: "Scores a document on every quality dimension", Tags: []string{"scoring"}},
		},
		DefaultInputModes:  []string{"application/json"},
		DefaultOutputModes: []string{"application/json"},
	}

	oa := &OracleAgent{impl: impl}
	oa.BaseAgent = NewBaseAgent(card, oa.processMessage, logger)
	return oa
}

func (oa *OracleAgent) processMessage(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error) {
	skill, payload, err := oracle.ParseRequest(msg)
	if err != nil {
		return nil, err
	}
	out, err := oracle.Dispatch(ctx, oa.impl, skill, payload)
	if err != nil {
		return nil, err
	}
	part, err := a2a.DataPart(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s response: %w", skill, err)
	}
	return []a2a.Artifact{{
		ArtifactID: task.ID + "-" + skill,
		Name:       skill,
		Parts:      []a2a.Part{part},
	}}, nil
}
