// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists frozen runs in SQLite and exports them as YAML or
// JSON.
//
// Each run is stored twice: as the full document (one JSON column, the
// source of truth for loading and exports) and as rows in the runs,
// phases, ideas, and tool_calls tables so runs and ideas can be listed and
// filtered in SQL.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/niche-engine/pkg/types"
)

const (
	dbFile     = "runs.db"
	exportsDir = "exports"
	timeLayout = time.RFC3339Nano
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// Store manages the run database under one directory.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates dir/runs.db and its schema.
func Open(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the store's base directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			graph TEXT NOT NULL,
			industry TEXT NOT NULL,
			market_type TEXT,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			document TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS phases (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			node_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			started_at TEXT,
			ended_at TEXT,
			error TEXT,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS ideas (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			id TEXT NOT NULL,
			niche_id TEXT,
			status TEXT NOT NULL,
			problem_statement TEXT NOT NULL,
			value_proposition TEXT,
			feasibility REAL,
			evidence_refs TEXT,
			rejection_reason TEXT,
			PRIMARY KEY (run_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ideas_status ON ideas(status)`,
		`CREATE TABLE IF NOT EXISTS tool_calls (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			tool TEXT NOT NULL,
			node_id TEXT,
			started_at TEXT,
			latency_ms INTEGER,
			attempts INTEGER,
			outcome TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, seq)
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save stores a run document, replacing any earlier save of the same run.
func (s *Store) Save(ctx context.Context, d Document) error {
	if d.Run.RunID == "" {
		return errors.New("document has no run id")
	}
	doc, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Replacing the run row cascades to its phases, ideas, and tool calls.
	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, d.Run.RunID); err != nil {
		return fmt.Errorf("deleting previous save: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, graph, industry, market_type, status, started_at, ended_at, document)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Run.RunID, d.Graph, d.Input.Industry, string(d.Input.MarketType), string(d.Run.Status),
		formatTime(d.Run.StartedAt), formatTime(d.Run.EndedAt), string(doc),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for i, p := range d.Run.PhaseLog {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO phases (run_id, seq, node_id, outcome, started_at, ended_at, error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			d.Run.RunID, i, p.NodeID, string(p.Outcome), formatTime(p.StartedAt), formatTime(p.EndedAt), p.Error,
		)
		if err != nil {
			return fmt.Errorf("inserting phase %s: %w", p.NodeID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ideas (run_id, id, niche_id, status, problem_statement, value_proposition, feasibility, evidence_refs, rejection_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing idea insert: %w", err)
	}
	defer stmt.Close()
	for _, idea := range d.Ideas {
		refs, _ := json.Marshal(idea.EvidenceRefs)
		_, err := stmt.ExecContext(ctx,
			d.Run.RunID, idea.ID, idea.NicheID, string(idea.Status), idea.ProblemStatement,
			idea.ValueProposition, idea.FeasibilityScore, string(refs), idea.RejectionReason,
		)
		if err != nil {
			return fmt.Errorf("inserting idea %s: %w", idea.ID, err)
		}
	}

	for i, r := range d.ToolLog {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tool_calls (run_id, seq, tool, node_id, started_at, latency_ms, attempts, outcome, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			d.Run.RunID, i, r.Tool, r.NodeID, formatTime(r.StartedAt), r.Latency.Milliseconds(), r.Attempts, r.Outcome, r.Error,
		)
		if err != nil {
			return fmt.Errorf("inserting tool call %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// Load returns the stored document of a run.
func (s *Store) Load(ctx context.Context, runID string) (Document, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM runs WHERE id = ?`, runID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return Document{}, fmt.Errorf("loading run %s: %w", runID, err)
	}
	var d Document
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		return Document{}, fmt.Errorf("decoding run %s: %w", runID, err)
	}
	return d, nil
}

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID        string          `json:"id" yaml:"id"`
	Graph     string          `json:"graph" yaml:"graph"`
	Industry  string          `json:"industry" yaml:"industry"`
	Status    types.RunStatus `json:"status" yaml:"status"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time       `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	Ideas     int             `json:"ideas" yaml:"ideas"`
	Validated int             `json:"validated" yaml:"validated"`
	Failures  int             `json:"failures" yaml:"failures"`
}

// List returns up to limit runs, newest first. Zero means no limit.
func (s *Store) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.graph, r.industry, r.status, r.started_at, r.ended_at,
			(SELECT count(*) FROM ideas i WHERE i.run_id = r.id),
			(SELECT count(*) FROM ideas i WHERE i.run_id = r.id AND i.status = ?),
			(SELECT count(*) FROM phases p WHERE p.run_id = r.id AND p.outcome = ?)
		FROM runs r
		ORDER BY r.started_at DESC, r.id
		LIMIT ?`,
		string(types.IdeaValidated), string(types.OutcomeFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r              RunSummary
			status         string
			started, ended sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Graph, &r.Industry, &status, &started, &ended, &r.Ideas, &r.Validated, &r.Failures); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Status = types.RunStatus(status)
		r.StartedAt = parseTime(started)
		r.EndedAt = parseTime(ended)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Delete removes a run and its rows.
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
