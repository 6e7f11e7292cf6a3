package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/quality"
)

// fakeAgent answers oracle skills with canned payloads.
type fakeAgent struct {
	answer func(skill string, payload []byte) (*a2a.Task, error)
}

func (f *fakeAgent) HandleSendMessage(_ context.Context, req a2a.SendMessageRequest) (*a2a.Task, error) {
	skill, payload, err := ParseRequest(req.Message)
	if err != nil {
		return nil, err
	}
	return f.answer(skill, payload)
}

func (f *fakeAgent) HandleGetTask(_ context.Context, req a2a.GetTaskRequest) (*a2a.Task, error) {
	return nil, a2a.ErrTaskNotFound
}

func textTask(text string) *a2a.Task {
	return &a2a.Task{
		ID:        a2a.NewTaskID(),
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted, Timestamp: time.Now()},
		Artifacts: []a2a.Artifact{{ArtifactID: "out", Parts: []a2a.Part{a2a.TextPart(text)}}},
	}
}

func startAgent(t *testing.T, answer func(skill string, payload []byte) (*a2a.Task, error)) *A2AOracle {
	t.Helper()
	srv := a2a.NewServer(a2a.AgentCard{Name: "oracle"}, &fakeAgent{answer: answer})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return NewA2AOracle(a2a.NewHTTPClient(), Endpoints{Fixer: ts.URL, Rewrite: ts.URL, Scorer: ts.URL}, nil)
}

func TestA2AOracle_ProposeEdits(t *testing.T) {
	o := startAgent(t, func(skill string, payload []byte) (*a2a.Task, error) {
		assert.Equal(t, SkillProposeEdits, skill)
		var req EditRequest
		require.NoError(t, json.Unmarshal(payload, &req))
		assert.Equal(t, quality.Objectivity, req.Dimension)
		assert.Equal(t, 3.5, req.Score)
		return textTask(`{"edits":[{"section":"Intro","originalText":"obviously","suggestedText":"arguably","priority":"critical"}],"confidence":0.9}`), nil
	})

	p, err := o.ProposeEdits(context.Background(), EditRequest{
		Dimension: quality.Objectivity,
		Document:  "It is obviously true.",
		Score:     3.5,
	})
	require.NoError(t, err)
	require.Len(t, p.Edits, 1)
	assert.Equal(t, quality.PriorityCritical, p.Edits[0].Priority)
	assert.Equal(t, 0.9, p.Confidence)
}

func TestA2AOracle_RewriteAndScore(t *testing.T) {
	o := startAgent(t, func(skill string, payload []byte) (*a2a.Task, error) {
		switch skill {
		case SkillRewrite:
			data, _ := a2a.DataPart(map[string]any{"revisedDocument": "It is arguably true."})
			return &a2a.Task{
				ID:        "t-rw",
				Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
				Artifacts: []a2a.Artifact{{Parts: []a2a.Part{data}}},
			}, nil
		case SkillScore:
			return textTask(`{"overallScore": 8.2, "dimensionScores": {"logical-coherence":8,"internal-consistency":8,"evidence-quality":8,"accessibility":8,"objectivity":8,"factual-accuracy":8,"bias-detection":8}}`), nil
		}
		return nil, fmt.Errorf("unexpected skill %s", skill)
	})
	ctx := context.Background()

	rw, err := o.Rewrite(ctx, RewriteRequest{Document: "It is obviously true."})
	require.NoError(t, err)
	assert.Equal(t, "It is arguably true.", rw.RevisedDocument)

	c, err := o.Score(ctx, rw.RevisedDocument)
	require.NoError(t, err)
	assert.Equal(t, 8.2, c.OverallScore)
}

func TestA2AOracle_FailedTaskIsTransient(t *testing.T) {
	o := startAgent(t, func(string, []byte) (*a2a.Task, error) {
		return &a2a.Task{
			ID: "t-fail",
			Status: a2a.TaskStatus{
				State:   a2a.TaskStateFailed,
				Message: &a2a.Message{Role: a2a.RoleAgent, Parts: []a2a.Part{a2a.TextPart("rate limited")}},
			},
		}, nil
	})

	_, err := o.Rewrite(context.Background(), RewriteRequest{Document: "d"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTaskFailed)
	assert.Contains(t, err.Error(), "rate limited")
	assert.True(t, IsTransient(err))
}

func TestA2AOracle_NoEndpoint(t *testing.T) {
	o := NewA2AOracle(a2a.NewHTTPClient(), Endpoints{}, nil)
	_, err := o.Score(context.Background(), "doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no endpoint")
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"malformed", fmt.Errorf("wrap: %w", ErrMalformedResponse), false},
		{"canceled", context.Canceled, false},
		{"429", &a2a.HTTPStatusError{StatusCode: http.StatusTooManyRequests}, true},
		{"503", fmt.Errorf("oracle: x: %w", &a2a.HTTPStatusError{StatusCode: http.StatusServiceUnavailable}), true},
		{"400", &a2a.HTTPStatusError{StatusCode: http.StatusBadRequest}, false},
		{"rpc internal", &a2a.RPCError{Code: a2a.ErrCodeInternal}, true},
		{"rpc invalid params", &a2a.RPCError{Code: a2a.ErrCodeInvalidParams}, false},
		{"plain", errors.New("boom"), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestCachingScorer(t *testing.T) {
	var calls atomic.Int32
	inner := ScorerFunc(func(_ context.Context, doc string) (*quality.ConsensusResult, error) {
		calls.Add(1)
		if doc == "bad" {
			return nil, errors.New("scorer down")
		}
		scores := make(quality.DimensionScores)
		for _, d := range quality.Dimensions {
			scores[d] = 7
		}
		return &quality.ConsensusResult{OverallScore: 7, DimensionScores: scores}, nil
	})

	c, err := NewCachingScorer(inner, 8)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Score(ctx, "doc")
	require.NoError(t, err)
	first.DimensionScores[quality.Objectivity] = 1

	second, err := c.Score(ctx, "doc")
	require.NoError(t, err)
	assert.Equal(t, 7.0, second.DimensionScores[quality.Objectivity], "cached copy is isolated from callers")
	assert.Equal(t, int32(1), calls.Load())

	_, err = c.Score(ctx, "bad")
	require.Error(t, err)
	_, err = c.Score(ctx, "bad")
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "errors are not cached")
	assert.Equal(t, 1, c.Len())

	_, err = NewCachingScorer(inner, 0)
	require.Error(t, err)
}
