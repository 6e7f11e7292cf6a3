package orchestrator

import (
	"context"
	"fmt"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// Default engine settings.
const (
	DefaultDeployThreshold = 7.0
	DefaultPassThreshold   = 8.0
	DefaultMaxAttempts     = 3
	DefaultFixerTimeout    = 2 * time.Minute
)

// RetryPolicy bounds the exponential backoff around the rewrite call.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// MaxElapsedTime stops retrying once exceeded. Zero means no limit
	// beyond MaxRetries.
	MaxElapsedTime time.Duration
}

// DefaultRetryPolicy returns the rewrite retry policy used when none is
// configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		MaxElapsedTime:  time.Minute,
	}
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = p.MaxElapsedTime
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// Config holds the thresholds and budgets of a refinement engine.
type Config struct {
	// DeployThreshold is the per-dimension score below which a fixer is
	// deployed. Dimensions at or above it are skipped.
	DeployThreshold float64

	// PassThreshold is the overall score at or above which a run stops.
	PassThreshold float64

	// MaxAttempts bounds the number of refinement rounds per run.
	MaxAttempts int

	// FixerTimeout bounds a single fixer call. Zero disables the timeout.
	FixerTimeout time.Duration

	// MaxConcurrentFixers limits parallel fixer calls. Zero means one
	// goroutine per deployed fixer.
	MaxConcurrentFixers int

	// Rewrite is the retry policy for the reconciler's rewrite call.
	Rewrite RetryPolicy
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		DeployThreshold: DefaultDeployThreshold,
		PassThreshold:   DefaultPassThreshold,
		MaxAttempts:     DefaultMaxAttempts,
		FixerTimeout:    DefaultFixerTimeout,
		Rewrite:         DefaultRetryPolicy(),
	}
}

// WithDefaults returns c with every unset field taken from DefaultConfig.
// Zero thresholds and a zero attempt budget count as unset. FixerTimeout and
// MaxConcurrentFixers keep their zero meaning. A zero retry policy is
// replaced whole; otherwise only its zero intervals are filled, so an
// explicit MaxRetries of 0 still disables retries.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.DeployThreshold == 0 {
		c.DeployThreshold = def.DeployThreshold
	}
	if c.PassThreshold == 0 {
		c.PassThreshold = def.PassThreshold
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Rewrite == (RetryPolicy{}) {
		c.Rewrite = def.Rewrite
		return c
	}
	if c.Rewrite.InitialInterval == 0 {
		c.Rewrite.InitialInterval = def.Rewrite.InitialInterval
	}
	if c.Rewrite.MaxInterval == 0 {
		c.Rewrite.MaxInterval = def.Rewrite.MaxInterval
	}
	return c
}

// Validate checks that thresholds are on the 0–10 scale and budgets are
// positive.
func (c Config) Validate() error {
	if c.DeployThreshold < 0 || c.DeployThreshold > 10 {
		return fmt.Errorf("orchestrator: deploy threshold %.2f outside 0–10", c.DeployThreshold)
	}
	if c.PassThreshold < 0 || c.PassThreshold > 10 {
		return fmt.Errorf("orchestrator: pass threshold %.2f outside 0–10", c.PassThreshold)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("orchestrator: max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.FixerTimeout < 0 || c.MaxConcurrentFixers < 0 {
		return fmt.Errorf("orchestrator: fixer timeout and concurrency must not be negative")
	}
	return nil
}
