package trace

import (
	"context"
	"errors"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendKuzu   = "kuzu"
)

// ErrKuzuUnavailable is returned when the binary was built without cgo.
var ErrKuzuUnavailable = errors.New("trace: kuzu backend requires a cgo build")

// Open creates a store for backend and initializes its schema. For kuzu an
// empty path opens an in-memory database.
func Open(ctx context.Context, backend, path string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch backend {
	case "", BackendMemory:
		s = NewMemStore()
	case BackendKuzu:
		s, err = openKuzu(path)
	default:
		return nil, fmt.Errorf("trace: unknown store backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	if err := s.InitSchema(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
