package agent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dusk-indust/refinery/internal/a2a"
)

// Compile-time interface checks.
var (
	_ Agent       = (*BaseAgent)(nil)
	_ a2a.Handler = (*BaseAgent)(nil)
)

// ProcessFunc is the function that concrete agents implement to handle
// incoming messages. It receives the task (in WORKING state) and the message,
// and returns artifacts to attach to the completed task.
type ProcessFunc func(ctx context.Context, task *a2a.Task, msg a2a.Message) ([]a2a.Artifact, error)

// BaseAgent provides shared boilerplate for agents. It composes an A2A server
// and task store, implementing both the Agent and a2a.Handler interfaces.
// Concrete agents embed BaseAgent and provide a ProcessFunc.
type BaseAgent struct {
	server  *a2a.Server
	store   *a2a.TaskStore
	card    a2a.AgentCard
	process ProcessFunc
	logger  *slog.Logger
}

// NewBaseAgent creates a BaseAgent with the given card and process function.
func NewBaseAgent(card a2a.AgentCard, process ProcessFunc, logger *slog.Logger) *BaseAgent {
	if logger == nil {
		logger = slog.Default()
	}
	b := &BaseAgent{
		store:   a2a.NewTaskStore(),
		card:    card,
		process: process,
		logger:  logger.With("component", "agent", "agent", card.Name),
	}
	b.server = a2a.NewServer(card, b)
	return b
}

// Card returns the agent's A2A Agent Card.
func (b *BaseAgent) Card() a2a.AgentCard {
	return b.card
}

// HandleTask processes an A2A task with a message and returns the completed
// task. When processing fails the task is stored as FAILED and returned
// together with the error.
func (b *BaseAgent) HandleTask(ctx context.Context, task a2a.Task, msg a2a.Message) (*a2a.Task, error) {
	task.Status = a2a.TaskStatus{
		State:     a2a.TaskStateSubmitted,
		Timestamp: time.Now(),
	}
	if err := b.store.Create(task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	if err := b.store.Update(task.ID, func(t *a2a.Task) {
		t.Status = a2a.TaskStatus{
			State:     a2a.TaskStateWorking,
			Timestamp: time.Now(),
		}
	}); err != nil {
		return nil, fmt.Errorf("update task to working: %w", err)
	}

	start := time.Now()
	artifacts, err := b.process(ctx, &task, msg)
	if err != nil {
		b.logger.Warn("task failed", "task", task.ID, "elapsed", time.Since(start), "err", err)
		_ = b.store.Update(task.ID, func(t *a2a.Task) {
			t.Status = a2a.TaskStatus{
				State:     a2a.TaskStateFailed,
				Timestamp: time.Now(),
				Message:   &a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart(err.Error())}},
			}
		})
		result, _ := b.store.Get(task.ID)
		return result, err
	}

	if err := b.store.Update(task.ID, func(t *a2a.Task) {
		t.Status = a2a.TaskStatus{
			State:     a2a.TaskStateCompleted,
			Timestamp: time.Now(),
		}
		t.Artifacts = artifacts
	}); err != nil {
		return nil, fmt.Errorf("update task to completed: %w", err)
	}
	b.logger.Debug("task completed", "task", task.ID, "elapsed", time.Since(start))

	return b.store.Get(task.ID)
}

// Routes returns the agent's HTTP handler.
func (b *BaseAgent) Routes() http.Handler {
	return b.server.Routes()
}

// Start launches the agent's HTTP server on the given address.
func (b *BaseAgent) Start(ctx context.Context, addr string) error {
	return b.server.Start(ctx, addr)
}

// Stop gracefully shuts down the agent.
func (b *BaseAgent) Stop(ctx context.Context) error {
	return b.server.Stop(ctx)
}

// --- a2a.Handler implementation ---

// HandleSendMessage creates a task from the incoming message and processes
// it. A processing failure is reported to the caller as a FAILED task rather
// than a JSON-RPC error.
func (b *BaseAgent) HandleSendMessage(ctx context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	task := a2a.Task{
		ID:        a2a.NewTaskID(),
		ContextID: req.Message.ContextID,
	}
	result, err := b.HandleTask(ctx, task, req.Message)
	if err != nil && result != nil && result.Status.State == a2a.TaskStateFailed {
		return result, nil
	}
	return result, err
}

// HandleGetTask retrieves a task by ID from the store.
func (b *BaseAgent) HandleGetTask(_ context.Context, req a2a.GetTaskRequest) (*a2a.Task, error) {
	return b.store.Get(req.ID)
}
