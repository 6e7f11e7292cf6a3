// Package agent exposes refinement and oracle capabilities as A2A agents.
package agent

import (
	"context"
	"net/http"

	"github.com/dusk-indust/refinery/internal/a2a"
)

// Agent is the interface that all A2A agents in this module implement.
type Agent interface {
	// Card returns the agent's A2A Agent Card.
	Card() a2a.AgentCard

	// HandleTask processes an A2A task and returns the completed task.
	HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error)

	// Routes returns the agent's HTTP handler for mounting or httptest.
	Routes() http.Handler

	// Start launches the agent's HTTP server on the given address.
	Start(ctx context.Context, addr string) error

	// Stop gracefully shuts down the agent.
	Stop(ctx context.Context) error
}

// Role identifies an agent type.
type Role string

const (
	RoleRefinery Role = "refinery"
	RoleOracle   Role = "oracle"
)

// Skill IDs served by the refinery agent.
const (
	SkillRefine = "refine-document"
	SkillGate   = "quality-gate"
)
