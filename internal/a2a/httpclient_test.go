package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler is a convenience that decodes a JSONRPCRequest and writes back a JSONRPCResponse.
func rpcHandler(t *testing.T, fn func(req JSONRPCRequest) JSONRPCResponse) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method, "A2A always uses POST")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req JSONRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, JSONRPCVersion, req.JSONRPC)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(fn(req)))
	}
}

func userMessage(text string) SendMessageRequest {
	return SendMessageRequest{
		Message: Message{
			MessageID: "msg-1",
			Role:      RoleUser,
			Parts:     []Part{TextPart(text)},
		},
	}
}

func TestSendMessage_HappyPath(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		assert.Equal(t, MethodSendMessage, req.Method)

		var params SendMessageRequest
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, "propose-edits", params.Message.Text())

		data, err := DataPart(map[string]any{"confidence": 0.7})
		require.NoError(t, err)
		result, err := json.Marshal(Task{
			ID:     "task-001",
			Status: TaskStatus{State: TaskStateCompleted, Timestamp: time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)},
			Artifacts: []Artifact{
				{ArtifactID: "art-1", Name: "edits", Parts: []Part{data}},
			},
		})
		require.NoError(t, err)
		return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
	}))
	defer ts.Close()

	task, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, userMessage("propose-edits"))
	require.NoError(t, err)
	assert.Equal(t, "task-001", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)

	payload, err := task.Payload()
	require.NoError(t, err)
	assert.JSONEq(t, `{"confidence":0.7}`, string(payload))
}

func TestSendMessage_RPCError(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		return JSONRPCResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Error:   &JSONRPCError{Code: ErrCodeInternal, Message: "model overloaded"},
		}
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, userMessage("x"))
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrCodeInternal, rpcErr.Code)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestSendMessage_HTTPStatusError(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer ts.Close()

			task, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, userMessage("x"))
			require.Error(t, err)
			assert.Nil(t, task)

			var statusErr *HTTPStatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tc.status, statusErr.StatusCode)
			assert.Equal(t, tc.temporary, statusErr.Temporary())

			var rpcErr *RPCError
			assert.False(t, errors.As(err, &rpcErr), "HTTP-level errors should not be RPCError")
		})
	}
}

func TestContextTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	task, err := NewHTTPClient().SendMessage(ctx, ts.URL, userMessage("slow"))
	require.Error(t, err)
	assert.Nil(t, task)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDiscoverAgent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/.well-known/agent-card.json", r.URL.Path)
		_ = json.NewEncoder(w).Encode(AgentCard{
			Name:   "oracle",
			Skills: []AgentSkill{{ID: "rewrite-document"}},
		})
	}))
	defer ts.Close()

	card, err := NewHTTPClient(WithTimeout(time.Second)).DiscoverAgent(context.Background(), ts.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "oracle", card.Name)
	assert.True(t, card.HasSkill("rewrite-document"))
	assert.False(t, card.HasSkill("propose-edits"))
}

func TestTask_Payload(t *testing.T) {
	textOnly := &Task{ID: "t1", Artifacts: []Artifact{{Parts: []Part{TextPart(`{"a":1}`)}}}}
	payload, err := textOnly.Payload()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(payload))

	empty := &Task{ID: "t2"}
	_, err = empty.Payload()
	require.Error(t, err)

	failed := &Task{Status: TaskStatus{
		State:   TaskStateFailed,
		Message: &Message{Parts: []Part{TextPart("quota exceeded")}},
	}}
	assert.Equal(t, "quota exceeded", failed.FailureReason())
	assert.Equal(t, "failed", (&Task{Status: TaskStatus{State: TaskStateFailed}}).FailureReason())
}
