package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/quality"
)

// Compile-time interface checks.
var (
	_ EditProposer = (*A2AOracle)(nil)
	_ Rewriter     = (*A2AOracle)(nil)
	_ Scorer       = (*A2AOracle)(nil)
)

// Endpoints locates the oracle agents. Any two may share a URL when one
// agent advertises several skills.
type Endpoints struct {
	Fixer   string `yaml:"fixer,omitempty"`
	Rewrite string `yaml:"rewrite,omitempty"`
	Scorer  string `yaml:"scorer,omitempty"`
}

// A2AOracle talks to oracle agents over A2A. Each call sends one blocking
// message whose first part names the skill and whose second part carries the
// request as structured data; the answer is read from the task's artifacts.
type A2AOracle struct {
	client    a2a.Client
	endpoints Endpoints
	logger    *slog.Logger
}

// NewA2AOracle creates an oracle client. A nil logger uses slog.Default.
func NewA2AOracle(client a2a.Client, endpoints Endpoints, logger *slog.Logger) *A2AOracle {
	if logger == nil {
		logger = slog.Default()
	}
	return &A2AOracle{
		client:    client,
		endpoints: endpoints,
		logger:    logger.With("component", "oracle"),
	}
}

// ProposeEdits asks the fixer endpoint for edits on one dimension.
func (o *A2AOracle) ProposeEdits(ctx context.Context, req EditRequest) (*EditProposal, error) {
	raw, err := o.call(ctx, o.endpoints.Fixer, SkillProposeEdits, req)
	if err != nil {
		return nil, err
	}
	return ParseEditProposal(raw)
}

// Rewrite asks the rewrite endpoint to merge edits into the document.
func (o *A2AOracle) Rewrite(ctx context.Context, req RewriteRequest) (*RewriteResponse, error) {
	raw, err := o.call(ctx, o.endpoints.Rewrite, SkillRewrite, req)
	if err != nil {
		return nil, err
	}
	return ParseRewriteResponse(raw, req.Edits)
}

// Score asks the scorer endpoint for a consensus verdict.
func (o *A2AOracle) Score(ctx context.Context, document string) (*quality.ConsensusResult, error) {
	raw, err := o.call(ctx, o.endpoints.Scorer, SkillScore, struct {
		Document string `json:"document"`
	}{document})
	if err != nil {
		return nil, err
	}
	return ParseConsensus(raw)
}

func (o *A2AOracle) call(ctx context.Context, endpoint, skill string, payload any) ([]byte, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("oracle: %s: no endpoint configured", skill)
	}
	data, err := a2a.DataPart(payload)
	if err != nil {
		return nil, fmt.Errorf("oracle: %s: marshal request: %w", skill, err)
	}

	req := a2a.SendMessageRequest{
		Message: a2a.Message{
			MessageID: a2a.NewTaskID(),
			Role:      a2a.RoleUser,
			Parts:     []a2a.Part{a2a.TextPart(skill), data},
		},
		Configuration: &a2a.SendMessageConfig{
			AcceptedOutputModes: []string{"application/json", "text/plain"},
			Blocking:            true,
		},
	}

	task, err := o.client.SendMessage(ctx, endpoint, req)
	if err != nil {
		return nil, fmt.Errorf("oracle: %s: %w", skill, err)
	}
	if task.Status.State == a2a.TaskStateFailed {
		return nil, fmt.Errorf("%w: %s: %s", ErrTaskFailed, skill, task.FailureReason())
	}

	raw, err := task.Payload()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, skill, err)
	}
	o.logger.Debug("oracle answered", "skill", skill, "task", task.ID, "bytes", len(raw))
	return raw, nil
}

// ParseRequest splits an incoming oracle message into its skill ID and data
// payload. It is the server-side counterpart of the message layout used by
// A2AOracle.
func ParseRequest(msg a2a.Message) (skill string, payload []byte, err error) {
	skill = msg.Text()
	if skill == "" {
		return "", nil, fmt.Errorf("oracle: message %s names no skill", msg.MessageID)
	}
	payload = msg.Data()
	if payload == nil {
		return "", nil, fmt.Errorf("oracle: message %s carries no data part", msg.MessageID)
	}
	return skill, payload, nil
}
