package orchestrator

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dusk-indust/refinery/internal/quality"
)

// computeDiff summarizes how one round changed the document: inserted and
// deleted rune counts and a patch in diff-match-patch text form.
func computeDiff(before, after string) quality.DiffStats {
	if before == after {
		return quality.DiffStats{}
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var stats quality.DiffStats
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			stats.Inserted += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			stats.Deleted += utf8.RuneCountInString(d.Text)
		}
	}
	stats.Patch = dmp.PatchToText(dmp.PatchMake(before, diffs))
	return stats
}
