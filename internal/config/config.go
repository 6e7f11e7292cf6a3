// Package config loads project-level engine settings from refinery.yml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/orchestrator"
)

// ProjectConfig holds project-level settings loaded from refinery.yml.
// Unset fields fall back to the engine defaults in Resolve.
type ProjectConfig struct {
	DeployThreshold     *float64      `yaml:"deployThreshold,omitempty"`
	PassThreshold       *float64      `yaml:"passThreshold,omitempty"`
	MaxAttempts         int           `yaml:"maxAttempts,omitempty"`
	FixerTimeout        time.Duration `yaml:"fixerTimeout,omitempty"`
	MaxConcurrentFixers int           `yaml:"maxConcurrentFixers,omitempty"`
	Rewrite             RetryConfig   `yaml:"rewrite,omitempty"`
	Oracle              OracleConfig  `yaml:"oracle,omitempty"`
	Store               StoreConfig   `yaml:"store,omitempty"`
	MetricsAddr         string        `yaml:"metricsAddr,omitempty"`
	ProfilesDir         string        `yaml:"profilesDir,omitempty"`
	Verbose             bool          `yaml:"verbose,omitempty"`
}

// RetryConfig overrides the rewrite retry policy.
type RetryConfig struct {
	MaxRetries      *uint64       `yaml:"maxRetries,omitempty"`
	InitialInterval time.Duration `yaml:"initialInterval,omitempty"`
	MaxInterval     time.Duration `yaml:"maxInterval,omitempty"`
	MaxElapsedTime  time.Duration `yaml:"maxElapsedTime,omitempty"`
}

// OracleConfig locates the oracle agents.
type OracleConfig struct {
	oracle.Endpoints `yaml:",inline"`

	// Timeout bounds each HTTP call to an oracle agent.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// CacheSize enables score memoization when positive.
	CacheSize int `yaml:"cacheSize,omitempty"`
}

// StoreConfig selects the run trace backend.
type StoreConfig struct {
	Backend string `yaml:"backend,omitempty"` // memory | kuzu
	Path    string `yaml:"path,omitempty"`
}

// Load attempts to read refinery.yml or refinery.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"refinery.yml", "refinery.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", name, err)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}

// Resolve merges the project settings over orchestrator.DefaultConfig and
// validates the result.
func (c *ProjectConfig) Resolve() (orchestrator.Config, error) {
	cfg := orchestrator.DefaultConfig()
	if c.DeployThreshold != nil {
		cfg.DeployThreshold = *c.DeployThreshold
	}
	if c.PassThreshold != nil {
		cfg.PassThreshold = *c.PassThreshold
	}
	if c.MaxAttempts != 0 {
		cfg.MaxAttempts = c.MaxAttempts
	}
	if c.FixerTimeout != 0 {
		cfg.FixerTimeout = c.FixerTimeout
	}
	if c.MaxConcurrentFixers != 0 {
		cfg.MaxConcurrentFixers = c.MaxConcurrentFixers
	}

	r := c.Rewrite
	if r.MaxRetries != nil {
		cfg.Rewrite.MaxRetries = *r.MaxRetries
	}
	if r.InitialInterval != 0 {
		cfg.Rewrite.InitialInterval = r.InitialInterval
	}
	if r.MaxInterval != 0 {
		cfg.Rewrite.MaxInterval = r.MaxInterval
	}
	if r.MaxElapsedTime != 0 {
		cfg.Rewrite.MaxElapsedTime = r.MaxElapsedTime
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
