package refinery

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/config"
	"github.com/dusk-indust/refinery/internal/fixer"
	"github.com/dusk-indust/refinery/internal/gate"
	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/orchestrator"
	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/trace"
)

// FromConfig builds a Service that reaches its oracle agents over A2A as
// described by pc. The caller owns the returned service and must Close it.
func FromConfig(ctx context.Context, pc *config.ProjectConfig, ledger gate.Ledger, logger *slog.Logger, opts ...orchestrator.Option) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine, err := pc.Resolve()
	if err != nil {
		return nil, err
	}

	var clientOpts []a2a.ClientOption
	if pc.Oracle.Timeout > 0 {
		clientOpts = append(clientOpts, a2a.WithTimeout(pc.Oracle.Timeout))
	}
	o := oracle.NewA2AOracle(a2a.NewHTTPClient(clientOpts...), pc.Oracle.Endpoints, logger)

	var scorer oracle.Scorer = o
	if pc.Oracle.CacheSize > 0 {
		scorer, err = oracle.NewCachingScorer(o, pc.Oracle.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("refinery: %w", err)
		}
	}

	var profiles map[quality.Dimension]fixer.Profile
	if pc.ProfilesDir != "" {
		profiles, err = fixer.LoadProfilesFS(os.DirFS(pc.ProfilesDir), ".")
		if err != nil {
			return nil, err
		}
	}

	store, err := trace.Open(ctx, pc.Store.Backend, pc.Store.Path)
	if err != nil {
		return nil, err
	}

	svc, err := New(o, Options{
		Engine:        engine,
		Profiles:      profiles,
		Scorer:        scorer,
		Store:         store,
		Ledger:        ledger,
		Logger:        logger,
		EngineOptions: append([]orchestrator.Option{orchestrator.WithMetrics(orchestrator.DefaultMetrics())}, opts...),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}
