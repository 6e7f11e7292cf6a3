package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dusk-indust/refinery/internal/oracle"
	"github.com/dusk-indust/refinery/internal/quality"
)

// Skip reasons recorded by the reconciler.
const (
	ReasonNotFound      = "original text not found in document"
	ReasonRewriteFailed = "rewrite failed; edit not applied"
)

// AgreementBonus is added to an edit's priority weight for every other fixer
// that proposed the same original text in the same section.
const AgreementBonus = 0.5

// ConflictReason is the skip reason for an edit that lost to a higher-ranked
// overlapping edit.
func ConflictReason(section string) string {
	return fmt.Sprintf("conflicts with higher-priority edit in section %q", section)
}

// Plan is the reconciler's accept/skip decision before the rewrite call.
type Plan struct {
	Accepted []quality.SuggestedEdit
	Skipped  []quality.SkippedEdit
}

type candidate struct {
	edit   quality.SuggestedEdit
	source quality.Dimension
	score  float64
}

type sectionGroup struct {
	name       string
	candidates []candidate
}

// PlanEdits selects a non-conflicting subset of the fixers' edits.
//
// Edits whose original text is empty or absent from document are skipped
// first. The rest are grouped by normalized section, ranked by priority
// weight plus agreement bonus, and accepted greedily: an edit is kept only if
// its original text neither contains nor is contained in an already accepted
// edit's original text in the same section. Ties keep dimension enumeration
// order, so the outcome does not depend on fixer completion order.
func PlanEdits(document string, results []quality.FixerResult) Plan {
	ordered := append([]quality.FixerResult(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].FixerType.Index() < ordered[j].FixerType.Index()
	})

	var plan Plan
	var groups []*sectionGroup
	byKey := make(map[string]*sectionGroup)
	for _, res := range ordered {
		for _, e := range res.SuggestedEdits {
			if e.OriginalText == "" || !strings.Contains(document, e.OriginalText) {
				plan.Skipped = append(plan.Skipped, quality.SkippedEdit{Edit: e, Reason: ReasonNotFound})
				continue
			}
			key := normalizeSection(e.Section)
			g, ok := byKey[key]
			if !ok {
				g = &sectionGroup{name: strings.TrimSpace(e.Section)}
				byKey[key] = g
				groups = append(groups, g)
			}
			g.candidates = append(g.candidates, candidate{edit: e, source: res.FixerType})
		}
	}

	for _, g := range groups {
		scoreGroup(g.candidates)
		sort.SliceStable(g.candidates, func(i, j int) bool {
			return g.candidates[i].score > g.candidates[j].score
		})

		var accepted []quality.SuggestedEdit
		for _, c := range g.candidates {
			if conflictsWithAny(c.edit, accepted) {
				plan.Skipped = append(plan.Skipped, quality.SkippedEdit{Edit: c.edit, Reason: ConflictReason(g.name)})
				continue
			}
			accepted = append(accepted, c.edit)
		}
		plan.Accepted = append(plan.Accepted, accepted...)
	}
	return plan
}

// scoreGroup sets each candidate's score to its priority weight plus the
// agreement bonus for each distinct other fixer proposing identical original
// text within the group.
func scoreGroup(cs []candidate) {
	for i := range cs {
		agreeing := make(map[quality.Dimension]struct{})
		for j := range cs {
			if cs[j].source != cs[i].source && cs[j].edit.OriginalText == cs[i].edit.OriginalText {
				agreeing[cs[j].source] = struct{}{}
			}
		}
		cs[i].score = cs[i].edit.Priority.Weight() + AgreementBonus*float64(len(agreeing))
	}
}

// Conflicts reports whether two edits target overlapping text: identical
// original text or one contained in the other. Short common substrings can
// make unrelated edits conflict; the check errs toward skipping.
func Conflicts(a, b quality.SuggestedEdit) bool {
	return strings.Contains(a.OriginalText, b.OriginalText) || strings.Contains(b.OriginalText, a.OriginalText)
}

func conflictsWithAny(e quality.SuggestedEdit, accepted []quality.SuggestedEdit) bool {
	for _, a := range accepted {
		if Conflicts(e, a) {
			return true
		}
	}
	return false
}

func normalizeSection(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Reconciler merges a round's fixer output into one revised document.
type Reconciler struct {
	rewriter oracle.Rewriter
	retry    RetryPolicy
	settings
}

// NewReconciler creates a reconciler that applies accepted edits through
// rewriter, retrying transient failures per cfg.Rewrite.
func NewReconciler(rewriter oracle.Rewriter, cfg Config, opts ...Option) *Reconciler {
	return &Reconciler{
		rewriter: rewriter,
		retry:    cfg.Rewrite,
		settings: newSettings("reconciler", opts),
	}
}

// Reconcile never returns an error. With nothing accepted it returns document
// unchanged without calling the oracle. When the rewrite cannot be obtained
// it soft-fails: RevisedDocument is empty, nothing is applied, every accepted
// edit is skipped with ReasonRewriteFailed, and Failure carries the cause.
func (r *Reconciler) Reconcile(ctx context.Context, document string, results []quality.FixerResult) quality.ReconciliationResult {
	plan := PlanEdits(document, results)
	if len(plan.Accepted) == 0 {
		return quality.ReconciliationResult{
			RevisedDocument: document,
			EditsApplied:    []quality.SuggestedEdit{},
			EditsSkipped:    plan.Skipped,
		}
	}

	resp, err := r.rewrite(ctx, document, plan.Accepted)
	if err != nil {
		r.logger.Warn("rewrite failed, keeping document", "edits", len(plan.Accepted), "err", err)
		skipped := plan.Skipped
		for _, e := range plan.Accepted {
			skipped = append(skipped, quality.SkippedEdit{Edit: e, Reason: ReasonRewriteFailed})
		}
		return quality.ReconciliationResult{
			EditsApplied: []quality.SuggestedEdit{},
			EditsSkipped: skipped,
			Failure:      err.Error(),
		}
	}

	// Accepted edits never share section and original text, so the pair
	// identifies one edit. Every accepted edit lands in exactly one list.
	notApplicable := make(map[string]string, len(resp.EditsNotApplicable))
	for _, na := range resp.EditsNotApplicable {
		notApplicable[editKey(na.Edit)] = na.Reason
	}
	applied := make([]quality.SuggestedEdit, 0, len(plan.Accepted))
	skipped := plan.Skipped
	for _, e := range plan.Accepted {
		reason, skip := notApplicable[editKey(e)]
		if !skip {
			applied = append(applied, e)
			continue
		}
		skipped = append(skipped, quality.SkippedEdit{Edit: e, Reason: reason})
		delete(notApplicable, editKey(e))
	}
	if len(notApplicable) > 0 {
		r.logger.Warn("rewrite reported edits that were not requested", "count", len(notApplicable))
	}
	return quality.ReconciliationResult{
		RevisedDocument: resp.RevisedDocument,
		EditsApplied:    applied,
		EditsSkipped:    skipped,
	}
}

func editKey(e quality.SuggestedEdit) string {
	return normalizeSection(e.Section) + "\x00" + e.OriginalText
}

// rewrite calls the oracle with bounded exponential backoff. Only transient
// errors are retried.
func (r *Reconciler) rewrite(ctx context.Context, document string, edits []quality.SuggestedEdit) (*oracle.RewriteResponse, error) {
	ctx, span := r.tracer.Start(ctx, "refinery.rewrite", trace.WithAttributes(
		attribute.Int("refinery.edits", len(edits)),
	))
	defer span.End()

	var resp *oracle.RewriteResponse
	op := func() error {
		out, err := r.rewriter.Rewrite(ctx, oracle.RewriteRequest{Document: document, Edits: edits})
		if err != nil {
			if !oracle.IsTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = out
		return nil
	}
	notify := func(err error, wait time.Duration) {
		r.metrics.IncRewriteRetry()
		r.logger.Warn("rewrite failed, retrying", "wait", wait, "err", err)
	}

	if err := backoff.RetryNotify(op, r.retry.newBackOff(ctx), notify); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("orchestrator: rewrite: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return resp, nil
}
