package oracle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dusk-indust/refinery/internal/a2a"
)

// DefaultProbeTimeout bounds each agent card fetch during Probe.
const DefaultProbeTimeout = 2 * time.Second

// ProbeResult reports what one configured endpoint offers.
type ProbeResult struct {
	Endpoint string
	Skill    string
	Agent    string
	Err      error
}

// OK reports whether the endpoint answered and advertises the skill.
func (r ProbeResult) OK() bool {
	return r.Err == nil
}

// Probe fetches the agent card behind every configured endpoint in parallel
// and checks that it advertises the skill the engine will call.
func Probe(ctx context.Context, client a2a.Client, endpoints Endpoints, timeout time.Duration) []ProbeResult {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	targets := []struct{ endpoint, skill string }{
		{endpoints.Fixer, SkillProposeEdits},
		{endpoints.Rewrite, SkillRewrite},
		{endpoints.Scorer, SkillScore},
	}

	results := make([]ProbeResult, len(targets))
	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = probeOne(ctx, client, target.endpoint, target.skill, timeout)
		}()
	}
	wg.Wait()
	return results
}

func probeOne(ctx context.Context, client a2a.Client, endpoint, skill string, timeout time.Duration) (res ProbeResult) {
	res = ProbeResult{Endpoint: endpoint, Skill: skill}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("oracle: probe %s panicked: %v", endpoint, r)
		}
	}()

	if endpoint == "" {
		res.Err = fmt.Errorf("oracle: %s: no endpoint configured", skill)
		return res
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	card, err := client.DiscoverAgent(probeCtx, strings.TrimSuffix(endpoint, "/"))
	if err != nil {
		res.Err = fmt.Errorf("oracle: probe %s: %w", endpoint, err)
		return res
	}
	res.Agent = card.Name
	if !card.HasSkill(skill) {
		res.Err = fmt.Errorf("oracle: agent %q at %s does not advertise %s", card.Name, endpoint, skill)
	}
	return res
}
