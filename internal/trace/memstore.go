package trace

import (
	"context"
	"fmt"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
// Records are copied on the way in and out.
type MemStore struct {
	mu   sync.RWMutex
	runs map[string]RunRecord
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{runs: make(map[string]RunRecord)}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

func (m *MemStore) SaveRun(_ context.Context, rec RunRecord) error {
	rec, err := rec.normalize()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[rec.RunID]; ok {
		return fmt.Errorf("trace: save run %s: %w", rec.RunID, ErrRunExists)
	}
	m.runs[rec.RunID] = cloneRecord(rec)
	return nil
}

func (m *MemStore) GetRun(_ context.Context, runID string) (*RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("trace: get run %s: %w", runID, ErrRunNotFound)
	}
	out := cloneRecord(rec)
	return &out, nil
}

func (m *MemStore) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	m.mu.RLock()
	out := make([]RunSummary, 0, len(m.runs))
	for _, rec := range m.runs {
		out = append(out, rec.Summary())
	}
	m.mu.RUnlock()

	sortSummaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) Stats(_ context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := &Stats{RunCount: len(m.runs)}
	for _, rec := range m.runs {
		st.AttemptCount += len(rec.Result.Attempts)
		for _, a := range rec.Result.Attempts {
			st.EditCount += len(a.EditsApplied) + len(a.EditsSkipped)
		}
	}
	return st, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
