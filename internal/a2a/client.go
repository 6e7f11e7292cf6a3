package a2a

import "context"

// Client is the interface for an A2A client that sends tasks to agents.
type Client interface {
	// SendMessage sends a message to an agent and returns the task.
	// For blocking mode, waits until the task reaches a terminal state.
	SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error)

	// GetTask retrieves a task by ID from a specific agent.
	GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error)

	// DiscoverAgent fetches the Agent Card from a well-known URI.
	DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error)
}
