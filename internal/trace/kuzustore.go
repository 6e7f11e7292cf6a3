//go:build cgo

package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	kuzu "github.com/kuzudb/go-kuzu"

	"github.com/dusk-indust/refinery/internal/gate"
	"github.com/dusk-indust/refinery/internal/quality"
)

// timeLayout is fixed width so created_at strings sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// KuzuStore implements Store on KuzuDB. A run is stored as a graph:
// Run -HAS_ATTEMPT-> Attempt -APPLIED-> Edit and Attempt -SKIPPED{reason}-> Edit.
// It requires CGO because the go-kuzu driver wraps KuzuDB's C library.
type KuzuStore struct {
	mu   sync.Mutex
	db   *kuzu.Database
	conn *kuzu.Connection
}

var _ Store = (*KuzuStore)(nil)

// NewKuzuStore creates a KuzuStore backed by an in-memory KuzuDB instance.
func NewKuzuStore() (*KuzuStore, error) {
	return openKuzuDB(":memory:")
}

// NewKuzuFileStore creates a KuzuStore backed by a file-based KuzuDB at
// dbPath. KuzuDB creates the leaf directory itself.
func NewKuzuFileStore(dbPath string) (*KuzuStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("kuzu: create parent directory: %w", err)
	}
	return openKuzuDB(dbPath)
}

func openKuzuDB(path string) (*KuzuStore, error) {
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("kuzu: open database: %w", err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kuzu: open connection: %w", err)
	}
	return &KuzuStore{db: db, conn: conn}, nil
}

func openKuzu(path string) (Store, error) {
	if path == "" {
		return NewKuzuStore()
	}
	return NewKuzuFileStore(path)
}

// Close releases the KuzuDB connection and database.
func (s *KuzuStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return nil
}

// ---------- Schema setup ----------

// Node tables must precede relationship tables.
var ddlStatements = []string{
	`CREATE NODE TABLE IF NOT EXISTS Run(
		id STRING,
		created_at STRING,
		initial_document STRING,
		final_document STRING,
		final_score DOUBLE,
		success BOOLEAN,
		warning STRING,
		attempts INT64,
		tier STRING,
		publishable BOOLEAN,
		warning_badge BOOLEAN,
		refund BOOLEAN,
		refunded BOOLEAN,
		final_consensus STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Attempt(
		id STRING,
		seq INT64,
		score_before DOUBLE,
		score_after DOUBLE,
		fixers STRING,
		fixer_failures STRING,
		reconcile_failure STRING,
		chars_inserted INT64,
		chars_deleted INT64,
		patch STRING,
		duration_ns INT64,
		PRIMARY KEY(id)
	)`,
	`CREATE NODE TABLE IF NOT EXISTS Edit(
		id STRING,
		idx INT64,
		section STRING,
		original_text STRING,
		suggested_text STRING,
		rationale STRING,
		priority STRING,
		PRIMARY KEY(id)
	)`,
	`CREATE REL TABLE IF NOT EXISTS HAS_ATTEMPT(FROM Run TO Attempt)`,
	`CREATE REL TABLE IF NOT EXISTS APPLIED(FROM Attempt TO Edit)`,
	`CREATE REL TABLE IF NOT EXISTS SKIPPED(FROM Attempt TO Edit, reason STRING)`,
}

// InitSchema creates all node and relationship tables if they do not exist.
func (s *KuzuStore) InitSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range ddlStatements {
		if err := s.execRaw(stmt); err != nil {
			return fmt.Errorf("kuzu: init schema: %w", err)
		}
	}
	return nil
}

// ---------- Write operations ----------

// SaveRun writes the whole run graph in one transaction.
func (s *KuzuStore) SaveRun(_ context.Context, rec RunRecord) error {
	rec, err := rec.normalize()
	if err != nil {
		return err
	}
	consensus, err := json.Marshal(rec.Result.FinalConsensus)
	if err != nil {
		return fmt.Errorf("kuzu: encode consensus: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.query("MATCH (r:Run {id: $id}) RETURN r.id", map[string]any{"id": rec.RunID})
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		return fmt.Errorf("trace: save run %s: %w", rec.RunID, ErrRunExists)
	}

	if err := s.execRaw("BEGIN TRANSACTION"); err != nil {
		return fmt.Errorf("kuzu: begin: %w", err)
	}
	if err := s.writeRun(rec, string(consensus)); err != nil {
		_ = s.execRaw("ROLLBACK")
		return fmt.Errorf("kuzu: save run %s: %w", rec.RunID, err)
	}
	if err := s.execRaw("COMMIT"); err != nil {
		return fmt.Errorf("kuzu: commit: %w", err)
	}
	return nil
}

func (s *KuzuStore) writeRun(rec RunRecord, consensus string) error {
	res := rec.Result
	err := s.exec(
		`CREATE (r:Run {
			id: $id,
			created_at: $created,
			initial_document: $initial,
			final_document: $final,
			final_score: $score,
			success: $success,
			warning: $warning,
			attempts: $attempts,
			tier: $tier,
			publishable: $publishable,
			warning_badge: $badge,
			refund: $refund,
			refunded: $refunded,
			final_consensus: $consensus
		})`,
		map[string]any{
			"id":          rec.RunID,
			"created":     rec.CreatedAt.Format(timeLayout),
			"initial":     rec.InitialDocument,
			"final":       res.FinalDocument,
			"score":       res.FinalScore,
			"success":     res.Success,
			"warning":     res.WarningReason,
			"attempts":    int64(len(res.Attempts)),
			"tier":        string(rec.Decision.Tier),
			"publishable": rec.Decision.Publishable,
			"badge":       rec.Decision.WarningBadge,
			"refund":      rec.Decision.Refund,
			"refunded":    rec.Refunded,
			"consensus":   consensus,
		},
	)
	if err != nil {
		return err
	}

	for _, a := range res.Attempts {
		attemptID := fmt.Sprintf("%s#%d", rec.RunID, a.AttemptNumber)
		if err := s.writeAttempt(rec.RunID, attemptID, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *KuzuStore) writeAttempt(runID, attemptID string, a quality.RefinementAttempt) error {
	err := s.exec(
		`CREATE (a:Attempt {
			id: $id,
			seq: $seq,
			score_before: $before,
			score_after: $after,
			fixers: $fixers,
			fixer_failures: $failures,
			reconcile_failure: $reconcile,
			chars_inserted: $ins,
			chars_deleted: $del,
			patch: $patch,
			duration_ns: $dur
		})`,
		map[string]any{
			"id":        attemptID,
			"seq":       int64(a.AttemptNumber),
			"before":    a.ScoreBefore,
			"after":     a.ScoreAfter,
			"fixers":    joinDimensions(a.FixersDeployed),
			"failures":  joinDimensions(a.FixerFailures),
			"reconcile": a.ReconcileFailure,
			"ins":       int64(a.Diff.Inserted),
			"del":       int64(a.Diff.Deleted),
			"patch":     a.Diff.Patch,
			"dur":       int64(a.Duration),
		},
	)
	if err != nil {
		return err
	}
	err = s.exec(
		`MATCH (r:Run {id: $src}), (a:Attempt {id: $dst})
		 CREATE (r)-[:HAS_ATTEMPT]->(a)`,
		map[string]any{"src": runID, "dst": attemptID},
	)
	if err != nil {
		return err
	}

	idx := 0
	for _, e := range a.EditsApplied {
		editID := fmt.Sprintf("%s#%d", attemptID, idx)
		if err := s.writeEdit(editID, idx, e); err != nil {
			return err
		}
		err := s.exec(
			`MATCH (a:Attempt {id: $src}), (e:Edit {id: $dst})
			 CREATE (a)-[:APPLIED]->(e)`,
			map[string]any{"src": attemptID, "dst": editID},
		)
		if err != nil {
			return err
		}
		idx++
	}
	for _, sk := range a.EditsSkipped {
		editID := fmt.Sprintf("%s#%d", attemptID, idx)
		if err := s.writeEdit(editID, idx, sk.Edit); err != nil {
			return err
		}
		err := s.exec(
			`MATCH (a:Attempt {id: $src}), (e:Edit {id: $dst})
			 CREATE (a)-[:SKIPPED {reason: $reason}]->(e)`,
			map[string]any{"src": attemptID, "dst": editID, "reason": sk.Reason},
		)
		if err != nil {
			return err
		}
		idx++
	}
	return nil
}

func (s *KuzuStore) writeEdit(id string, idx int, e quality.SuggestedEdit) error {
	return s.exec(
		`CREATE (e:Edit {
			id: $id,
			idx: $idx,
			section: $section,
			original_text: $original,
			suggested_text: $suggested,
			rationale: $rationale,
			priority: $priority
		})`,
		map[string]any{
			"id":        id,
			"idx":       int64(idx),
			"section":   e.Section,
			"original":  e.OriginalText,
			"suggested": e.SuggestedText,
			"rationale": e.Rationale,
			"priority":  string(e.Priority),
		},
	)
}

// ---------- Read operations ----------

// GetRun rebuilds a run record from its graph.
func (s *KuzuStore) GetRun(_ context.Context, runID string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.query(
		`MATCH (r:Run {id: $id})
		 RETURN r.created_at, r.initial_document, r.final_document, r.final_score,
		        r.success, r.warning, r.tier, r.publishable, r.warning_badge,
		        r.refund, r.refunded, r.final_consensus`,
		map[string]any{"id": runID},
	)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("trace: get run %s: %w", runID, ErrRunNotFound)
	}
	r := rows[0]

	created, err := time.Parse(timeLayout, toString(r[0]))
	if err != nil {
		return nil, fmt.Errorf("kuzu: run %s created_at: %w", runID, err)
	}
	var consensus *quality.ConsensusResult
	if raw := toString(r[11]); raw != "" && raw != "null" {
		if err := json.Unmarshal([]byte(raw), &consensus); err != nil {
			return nil, fmt.Errorf("kuzu: run %s consensus: %w", runID, err)
		}
	}

	score := toFloat64(r[3])
	rec := &RunRecord{
		RunID:           runID,
		CreatedAt:       created,
		InitialDocument: toString(r[1]),
		Result: &quality.RunResult{
			RunID:          runID,
			FinalDocument:  toString(r[2]),
			FinalScore:     score,
			Success:        toBool(r[4]),
			WarningReason:  toString(r[5]),
			FinalConsensus: consensus,
		},
		Decision: gate.Decision{
			Score:        score,
			Tier:         gate.Tier(toString(r[6])),
			Publishable:  toBool(r[7]),
			WarningBadge: toBool(r[8]),
			Refund:       toBool(r[9]),
		},
		Refunded: toBool(r[10]),
	}

	attempts, err := s.readAttempts(runID)
	if err != nil {
		return nil, err
	}
	rec.Result.Attempts = attempts
	return rec, nil
}

func (s *KuzuStore) readAttempts(runID string) ([]quality.RefinementAttempt, error) {
	rows, err := s.query(
		`MATCH (r:Run {id: $id})-[:HAS_ATTEMPT]->(a:Attempt)
		 RETURN a.id, a.seq, a.score_before, a.score_after, a.fixers, a.fixer_failures,
		        a.reconcile_failure, a.chars_inserted, a.chars_deleted, a.patch, a.duration_ns
		 ORDER BY a.seq`,
		map[string]any{"id": runID},
	)
	if err != nil {
		return nil, err
	}

	out := make([]quality.RefinementAttempt, 0, len(rows))
	for _, r := range rows {
		a := quality.RefinementAttempt{
			AttemptNumber:    toInt(r[1]),
			ScoreBefore:      toFloat64(r[2]),
			ScoreAfter:       toFloat64(r[3]),
			FixersDeployed:   splitDimensions(toString(r[4])),
			ReconcileFailure: toString(r[6]),
			Diff: quality.DiffStats{
				Inserted: toInt(r[7]),
				Deleted:  toInt(r[8]),
				Patch:    toString(r[9]),
			},
			Duration: time.Duration(toInt64(r[10])),
		}
		if a.FixersDeployed == nil {
			a.FixersDeployed = []quality.Dimension{}
		}
		a.FixerFailures = splitDimensions(toString(r[5]))

		if a.EditsApplied, err = s.readApplied(toString(r[0])); err != nil {
			return nil, err
		}
		if a.EditsSkipped, err = s.readSkipped(toString(r[0])); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *KuzuStore) readApplied(attemptID string) ([]quality.SuggestedEdit, error) {
	rows, err := s.query(
		`MATCH (a:Attempt {id: $id})-[:APPLIED]->(e:Edit)
		 RETURN e.section, e.original_text, e.suggested_text, e.rationale, e.priority
		 ORDER BY e.idx`,
		map[string]any{"id": attemptID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]quality.SuggestedEdit, 0, len(rows))
	for _, r := range rows {
		out = append(out, rowToEdit(r))
	}
	return out, nil
}

func (s *KuzuStore) readSkipped(attemptID string) ([]quality.SkippedEdit, error) {
	rows, err := s.query(
		`MATCH (a:Attempt {id: $id})-[k:SKIPPED]->(e:Edit)
		 RETURN e.section, e.original_text, e.suggested_text, e.rationale, e.priority, k.reason
		 ORDER BY e.idx`,
		map[string]any{"id": attemptID},
	)
	if err != nil {
		return nil, err
	}
	out := make([]quality.SkippedEdit, 0, len(rows))
	for _, r := range rows {
		out = append(out, quality.SkippedEdit{Edit: rowToEdit(r), Reason: toString(r[5])})
	}
	return out, nil
}

// ListRuns returns run summaries newest first.
func (s *KuzuStore) ListRuns(_ context.Context, limit int) ([]RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cypher := `MATCH (r:Run)
		RETURN r.id, r.created_at, r.final_score, r.success, r.attempts, r.tier
		ORDER BY r.created_at DESC, r.id`
	var params map[string]any
	if limit > 0 {
		cypher += " LIMIT $lim"
		params = map[string]any{"lim": int64(limit)}
	}
	rows, err := s.query(cypher, params)
	if err != nil {
		return nil, err
	}

	out := make([]RunSummary, 0, len(rows))
	for _, r := range rows {
		created, err := time.Parse(timeLayout, toString(r[1]))
		if err != nil {
			return nil, fmt.Errorf("kuzu: run %s created_at: %w", toString(r[0]), err)
		}
		out = append(out, RunSummary{
			RunID:      toString(r[0]),
			CreatedAt:  created,
			FinalScore: toFloat64(r[2]),
			Success:    toBool(r[3]),
			Attempts:   toInt(r[4]),
			Tier:       gate.Tier(toString(r[5])),
		})
	}
	return out, nil
}

// Stats returns node counts.
func (s *KuzuStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.countTable("Run")
	if err != nil {
		return nil, err
	}
	attempts, err := s.countTable("Attempt")
	if err != nil {
		return nil, err
	}
	edits, err := s.countTable("Edit")
	if err != nil {
		return nil, err
	}
	return &Stats{RunCount: runs, AttemptCount: attempts, EditCount: edits}, nil
}

// ---------- Internal helpers ----------

// execRaw runs an unparameterized statement.
func (s *KuzuStore) execRaw(cypher string) error {
	res, err := s.conn.Query(cypher)
	if err != nil {
		return err
	}
	res.Close()
	return nil
}

// exec runs a parameterized Cypher statement that produces no result rows.
func (s *KuzuStore) exec(cypher string, params map[string]any) error {
	stmt, err := s.conn.Prepare(cypher)
	if err != nil {
		return fmt.Errorf("kuzu: prepare: %w", err)
	}
	defer stmt.Close()

	res, err := s.conn.Execute(stmt, params)
	if err != nil {
		return fmt.Errorf("kuzu: execute: %w", err)
	}
	res.Close()
	return nil
}

// query runs a Cypher statement and collects all result rows in column
// order.
func (s *KuzuStore) query(cypher string, params map[string]any) ([][]any, error) {
	var res *kuzu.QueryResult
	var err error

	if len(params) == 0 {
		res, err = s.conn.Query(cypher)
	} else {
		var stmt *kuzu.PreparedStatement
		stmt, err = s.conn.Prepare(cypher)
		if err != nil {
			return nil, fmt.Errorf("kuzu: prepare: %w", err)
		}
		defer stmt.Close()
		res, err = s.conn.Execute(stmt, params)
	}
	if err != nil {
		return nil, fmt.Errorf("kuzu: query: %w", err)
	}
	defer res.Close()

	var rows [][]any
	for res.HasNext() {
		tuple, err := res.Next()
		if err != nil {
			return nil, fmt.Errorf("kuzu: next: %w", err)
		}
		vals, err := tuple.GetAsSlice()
		if err != nil {
			return nil, fmt.Errorf("kuzu: row values: %w", err)
		}
		rows = append(rows, vals)
	}
	return rows, nil
}

// countTable returns the number of rows in a node table. table is always an
// internal constant.
func (s *KuzuStore) countTable(table string) (int, error) {
	rows, err := s.query(fmt.Sprintf("MATCH (n:%s) RETURN count(n)", table), nil)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return 0, nil
	}
	return toInt(rows[0][0]), nil
}

// rowToEdit converts the first five columns of a row into a SuggestedEdit.
// Column order: section, original_text, suggested_text, rationale, priority.
func rowToEdit(r []any) quality.SuggestedEdit {
	return quality.SuggestedEdit{
		Section:       toString(r[0]),
		OriginalText:  toString(r[1]),
		SuggestedText: toString(r[2]),
		Rationale:     toString(r[3]),
		Priority:      quality.Priority(toString(r[4])),
	}
}

func joinDimensions(ds []quality.Dimension) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = string(d)
	}
	return strings.Join(parts, ",")
}

func splitDimensions(s string) []quality.Dimension {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]quality.Dimension, len(parts))
	for i, p := range parts {
		out[i] = quality.Dimension(p)
	}
	return out
}

// ---------- Type coercion helpers ----------
// KuzuDB returns typed Go values (int64, float64, bool, string).

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func toInt(v any) int {
	return int(toInt64(v))
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toBool(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
}
