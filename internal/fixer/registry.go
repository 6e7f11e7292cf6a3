package fixer

import (
	"fmt"
	"sync"

	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/quality"
)

// Registry is the dimension → fixer lookup table used by the orchestrator.
// Adding a dimension means registering a fixer; the orchestrator is unchanged.
type Registry struct {
	mu     sync.RWMutex
	fixers map[quality.Dimension]Fixer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fixers: make(map[quality.Dimension]Fixer)}
}

// NewOracleRegistry registers one OracleFixer per profile.
func NewOracleRegistry(proposer oracle.EditProposer, profiles map[quality.Dimension]Profile) *Registry {
	r := NewRegistry()
	for _, d := range quality.Dimensions {
		if p, ok := profiles[d]; ok {
			r.Register(NewOracleFixer(p, proposer))
		}
	}
	return r
}

// NewDefaultRegistry registers the embedded profiles against proposer.
func NewDefaultRegistry(proposer oracle.EditProposer) (*Registry, error) {
	profiles, err := LoadProfiles()
	if err != nil {
		return nil, err
	}
	return NewOracleRegistry(proposer, profiles), nil
}

// Register adds or replaces the fixer for f.Dimension().
func (r *Registry) Register(f Fixer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fixers[f.Dimension()] = f
}

// Lookup returns the fixer for d.
func (r *Registry) Lookup(d quality.Dimension) (Fixer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.fixers[d]
	if !ok {
		return nil, fmt.Errorf("fixer: no fixer registered for %s", d)
	}
	return f, nil
}

// Dimensions returns the registered dimensions in enumeration order.
func (r *Registry) Dimensions() []quality.Dimension {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []quality.Dimension
	for _, d := range quality.Dimensions {
		if _, ok := r.fixers[d]; ok {
			out = append(out, d)
		}
	}
	return out
}
