package a2a

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStore_CreateGetUpdate(t *testing.T) {
	s := NewTaskStore()
	require.NoError(t, s.Create(Task{ID: "t1", Status: TaskStatus{State: TaskStateSubmitted}}))
	require.Error(t, s.Create(Task{ID: "t1"}), "duplicate IDs are rejected")

	require.NoError(t, s.Update("t1", func(t *Task) {
		t.Status.State = TaskStateCompleted
		t.Artifacts = []Artifact{{ArtifactID: "a", Parts: []Part{TextPart("x")}}}
	}))

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, got.Status.State)

	// Mutating the copy must not leak into the store.
	got.Artifacts[0].Parts[0].Text = "mutated"
	again, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, "x", again.Artifacts[0].Parts[0].Text)
	assert.Equal(t, 1, s.Len())
}

func TestTaskStore_NotFound(t *testing.T) {
	s := NewTaskStore()
	_, err := s.Get("nope")
	assert.True(t, errors.Is(err, ErrTaskNotFound))
	assert.True(t, errors.Is(s.Update("nope", func(*Task) {}), ErrTaskNotFound))
}

func TestTaskStore_ConcurrentAccess(t *testing.T) {
	s := NewTaskStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewTaskID()
			_ = s.Create(Task{ID: id})
			_, _ = s.Get(id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
