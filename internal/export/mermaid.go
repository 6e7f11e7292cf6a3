package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/refinery/internal/trace"
)

// GenerateMermaid produces a Mermaid flowchart of a stored run's score
// progression.
func GenerateMermaid(ctx context.Context, store trace.Store, runID string) (string, error) {
	rec, err := store.GetRun(ctx, runID)
	if err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	return RunMermaid(rec), nil
}

// RunMermaid renders one node per score: the initial score, then one per
// attempt labeled with its edit counts. The last node is styled by outcome.
func RunMermaid(rec *trace.RunRecord) string {
	res := rec.Result
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	progression := res.ScoreProgression()
	sb.WriteString(fmt.Sprintf("  S0[\"initial %.1f\"]\n", progression[0]))
	for i, a := range res.Attempts {
		label := fmt.Sprintf("attempt %d: %.1f<br/>%d applied, %d skipped",
			a.AttemptNumber, a.ScoreAfter, len(a.EditsApplied), len(a.EditsSkipped))
		if a.ReconcileFailure != "" {
			label += "<br/>rewrite failed"
		}
		sb.WriteString(fmt.Sprintf("  S%d[\"%s\"]\n", i+1, label))
		sb.WriteString(fmt.Sprintf("  S%d -->|%s| S%d\n", i, fixerLabel(len(a.FixersDeployed)), i+1))
	}

	last := len(res.Attempts)
	class := "pass"
	if !res.Success {
		class = "fail"
	}
	sb.WriteString("  classDef pass fill:#d4f7d4,stroke:#2e7d32\n")
	sb.WriteString("  classDef fail fill:#fde0dc,stroke:#c62828\n")
	sb.WriteString(fmt.Sprintf("  class S%d %s\n", last, class))
	return sb.String()
}

func fixerLabel(n int) string {
	if n == 1 {
		return "1 fixer"
	}
	return fmt.Sprintf("%d fixers", n)
}
