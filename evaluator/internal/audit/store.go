// Package audit persists every decision with its reasons and recommendations
// in SQLite, giving an append-only trail of what was decided, when and why.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vvmguard/vvmguard/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id                   TEXT PRIMARY KEY,
	entity_id            TEXT NOT NULL,
	profile_id           TEXT NOT NULL,
	decision_code        TEXT NOT NULL,
	status               TEXT NOT NULL,
	stage                TEXT NOT NULL,
	alert_level          TEXT NOT NULL,
	her                  REAL,
	degradation_hours    REAL,
	budget_consumed_pct  REAL,
	thaw_remaining_hours REAL,
	result_json          TEXT NOT NULL,
	evaluated_at         TEXT NOT NULL,
	recorded_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS evaluations_entity_idx
	ON evaluations (entity_id, evaluated_at);

CREATE TABLE IF NOT EXISTS evaluation_notes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_id TEXT NOT NULL,
	seq           INTEGER NOT NULL,
	kind          TEXT NOT NULL CHECK (kind IN ('reason', 'recommendation')),
	rule          TEXT,
	message       TEXT NOT NULL,
	FOREIGN KEY (evaluation_id) REFERENCES evaluations(id)
);
`

// timeLayout is fixed-width so that timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record is one stored evaluation.
type Record struct {
	ID              string
	EntityID        string
	ProfileID       string
	DecisionCode    types.DecisionCode
	Status          types.Status
	Stage           types.Stage
	AlertLevel      types.AlertLevel
	HER             float64
	EvaluatedAt     time.Time
	RecordedAt      time.Time
	Reasons         []types.Reason
	Recommendations []string
}

// Store is the SQLite-backed audit trail.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens a SQLite database and runs migrations.
// Use ":memory:" for a throwaway in-process trail.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores res with its reasons and recommendations in one transaction
// and returns the new evaluation id.
func (s *Store) Record(ctx context.Context, res types.DecisionResult) (string, error) {
	id := uuid.New().String()

	body, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("audit: marshal result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("audit: begin tx: %w", err)
	}
	defer tx.Rollback()

	var thaw any
	if res.ThawRemainingHours != nil {
		thaw = *res.ThawRemainingHours
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO evaluations (id, entity_id, profile_id, decision_code, status, stage, alert_level,
		 her, degradation_hours, budget_consumed_pct, thaw_remaining_hours, result_json, evaluated_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, res.EntityID, res.ProfileID, string(res.DecisionCode), string(res.Status), res.Stage.String(),
		string(res.AlertLevel), nullIfNaN(res.HER), nullIfNaN(res.DegradationHours),
		nullIfNaN(res.StabilityBudgetConsumedPct), thaw, string(body),
		res.EvaluatedAt.UTC().Format(timeLayout), s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("audit: insert evaluation: %w", err)
	}

	seq := 0
	for _, r := range res.Reasons {
		if err := insertNote(ctx, tx, id, seq, "reason", r.Rule, r.Message); err != nil {
			return "", err
		}
		seq++
	}
	for _, rec := range res.Recommendations {
		if err := insertNote(ctx, tx, id, seq, "recommendation", "", rec); err != nil {
			return "", err
		}
		seq++
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("audit: commit: %w", err)
	}
	return id, nil
}

func insertNote(ctx context.Context, tx *sql.Tx, evalID string, seq int, kind, rule, message string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO evaluation_notes (evaluation_id, seq, kind, rule, message) VALUES (?, ?, ?, ?, ?)`,
		evalID, seq, kind, nullIfEmpty(rule), message,
	)
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", kind, err)
	}
	return nil
}

// History returns up to limit evaluations of entityID, newest first.
// A non-positive limit returns every evaluation.
func (s *Store) History(ctx context.Context, entityID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.query(ctx,
		`SELECT id, entity_id, profile_id, decision_code, status, stage, alert_level, her, evaluated_at, recorded_at
		 FROM evaluations WHERE entity_id = ?
		 ORDER BY evaluated_at DESC, recorded_at DESC LIMIT ?`,
		entityID, limit,
	)
}

// LastRejection returns the newest evaluation of entityID whose decision was
// a rejection. The bool is false when the entity was never rejected.
func (s *Store) LastRejection(ctx context.Context, entityID string) (Record, bool, error) {
	recs, err := s.query(ctx,
		`SELECT id, entity_id, profile_id, decision_code, status, stage, alert_level, her, evaluated_at, recorded_at
		 FROM evaluations WHERE entity_id = ? AND substr(decision_code, 1, 9) = 'REJECTED_'
		 ORDER BY evaluated_at DESC, recorded_at DESC LIMIT 1`,
		entityID,
	)
	if err != nil || len(recs) == 0 {
		return Record{}, false, err
	}
	return recs[0], true, nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                   Record
			stage               string
			her                 sql.NullFloat64
			evaluated, recorded string
		)
		if err := rows.Scan(&r.ID, &r.EntityID, &r.ProfileID, &r.DecisionCode, &r.Status, &stage,
			&r.AlertLevel, &her, &evaluated, &recorded); err != nil {
			return nil, fmt.Errorf("audit: scan evaluation: %w", err)
		}
		if err := r.Stage.UnmarshalText([]byte(stage)); err != nil {
			return nil, fmt.Errorf("audit: evaluation %s: %w", r.ID, err)
		}
		r.HER = math.NaN()
		if her.Valid {
			r.HER = her.Float64
		}
		if r.EvaluatedAt, err = time.Parse(timeLayout, evaluated); err != nil {
			return nil, fmt.Errorf("audit: evaluation %s: parse evaluated_at: %w", r.ID, err)
		}
		if r.RecordedAt, err = time.Parse(timeLayout, recorded); err != nil {
			return nil, fmt.Errorf("audit: evaluation %s: parse recorded_at: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate history: %w", err)
	}

	for i := range out {
		if err := s.loadNotes(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) loadNotes(ctx context.Context, r *Record) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, rule, message FROM evaluation_notes WHERE evaluation_id = ? ORDER BY seq`,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("audit: query notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			kind, message string
			rule          sql.NullString
		)
		if err := rows.Scan(&kind, &rule, &message); err != nil {
			return fmt.Errorf("audit: scan note: %w", err)
		}
		if kind == "reason" {
			r.Reasons = append(r.Reasons, types.Reason{Rule: rule.String, Message: message})
		} else {
			r.Recommendations = append(r.Recommendations, message)
		}
	}
	return rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNaN(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
