// Package gate maps a final refinement score to a publish tier and decides
// whether the consumed credit is refunded.
package gate

import (
	"context"
	"fmt"
	"log/slog"
)

// Tier is the publish tier assigned to a finished document.
type Tier string

const (
	TierHigh       Tier = "high"
	TierAcceptable Tier = "acceptable"
	TierFailed     Tier = "failed"
)

// Tier boundaries on the 0–10 scale. Both comparisons are inclusive on the
// lower bound: 8.0 is high, 6.0 is acceptable.
const (
	HighThreshold       = 8.0
	AcceptableThreshold = 6.0
)

// Decision is the quality gate's verdict for one run.
type Decision struct {
	Score        float64 `json:"score"`
	Tier         Tier    `json:"tier"`
	Publishable  bool    `json:"publishable"`
	WarningBadge bool    `json:"warningBadge"`
	Refund       bool    `json:"refund"`
}

// Decide maps score to a tier.
func Decide(score float64) Decision {
	switch {
	case score >= HighThreshold:
		return Decision{Score: score, Tier: TierHigh, Publishable: true}
	case score >= AcceptableThreshold:
		return Decision{Score: score, Tier: TierAcceptable, Publishable: true, WarningBadge: true}
	default:
		return Decision{Score: score, Tier: TierFailed, Refund: true}
	}
}

func (d Decision) String() string {
	switch d.Tier {
	case TierHigh:
		return fmt.Sprintf("%.1f/10 high quality, publishable", d.Score)
	case TierAcceptable:
		return fmt.Sprintf("%.1f/10 acceptable, publishable with warning", d.Score)
	default:
		return fmt.Sprintf("%.1f/10 failed quality gate, credit refunded", d.Score)
	}
}

// RefundRequest identifies the unit of paid usage being returned.
type RefundRequest struct {
	RunID  string
	Score  float64
	Reason string
}

// Ledger is the credit ledger collaborator. Its storage is owned by the
// surrounding product.
type Ledger interface {
	Refund(ctx context.Context, req RefundRequest) error
}

// Settle refunds the consumed credit through l when the decision calls for
// it. It reports whether a refund was issued. A nil ledger never refunds.
func Settle(ctx context.Context, l Ledger, runID string, d Decision) (bool, error) {
	if !d.Refund || l == nil {
		return false, nil
	}
	req := RefundRequest{
		RunID:  runID,
		Score:  d.Score,
		Reason: fmt.Sprintf("quality score %.2f below %.1f", d.Score, AcceptableThreshold),
	}
	if err := l.Refund(ctx, req); err != nil {
		return false, fmt.Errorf("gate: refund run %s: %w", runID, err)
	}
	return true, nil
}

// LogLedger records refunds in the log only. It stands in for a real credit
// ledger when the engine runs outside the product, e.g. from the CLI.
type LogLedger struct {
	Logger *slog.Logger
}

// Refund logs req and always succeeds.
func (l LogLedger) Refund(_ context.Context, req RefundRequest) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("credit refunded", "component", "gate", "run", req.RunID, "score", req.Score, "reason", req.Reason)
	return nil
}
