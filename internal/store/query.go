// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pdiddy/niche-engine/pkg/types"
)

// IdeaQuery filters ideas across stored runs. Zero fields do not filter.
type IdeaQuery struct {
	// Text matches problem statements and value propositions,
	// case-insensitively.
	Text string

	Status types.IdeaStatus
	RunID  string

	// Evidence keeps ideas citing this evidence id.
	Evidence string

	MinFeasibility float64

	// Limit bounds the result count (default 50).
	Limit int
}

// IdeaRow is an idea with the run it came from.
type IdeaRow struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	Industry string `json:"industry" yaml:"industry"`
	types.Idea
}

// Ideas returns ideas matching q, most feasible first.
func (s *Store) Ideas(ctx context.Context, q IdeaQuery) ([]IdeaRow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(
		`SELECT i.run_id, r.industry, i.id, i.niche_id, i.status, i.problem_statement,
			i.value_proposition, i.feasibility, i.evidence_refs, i.rejection_reason
		FROM ideas i
		JOIN runs r ON r.id = i.run_id
		WHERE 1=1`)
	if q.Text != "" {
		qb.WriteString(` AND (i.problem_statement LIKE ? OR i.value_proposition LIKE ?)`)
		pattern := "%" + q.Text + "%"
		args = append(args, pattern, pattern)
	}
	if q.Status != "" {
		qb.WriteString(` AND i.status = ?`)
		args = append(args, string(q.Status))
	}
	if q.RunID != "" {
		qb.WriteString(` AND i.run_id = ?`)
		args = append(args, q.RunID)
	}
	if q.Evidence != "" {
		qb.WriteString(` AND EXISTS (SELECT 1 FROM json_each(i.evidence_refs) WHERE value = ?)`)
		args = append(args, q.Evidence)
	}
	if q.MinFeasibility > 0 {
		qb.WriteString(` AND i.feasibility >= ?`)
		args = append(args, q.MinFeasibility)
	}
	qb.WriteString(` ORDER BY i.feasibility DESC, i.run_id, i.id LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying ideas: %w", err)
	}
	defer rows.Close()

	var out []IdeaRow
	for rows.Next() {
		var (
			r                     IdeaRow
			status                string
			niche, vp, refs, rejR sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Industry, &r.ID, &niche, &status, &r.ProblemStatement,
			&vp, &r.FeasibilityScore, &refs, &rejR); err != nil {
			return nil, fmt.Errorf("scanning idea: %w", err)
		}
		r.Status = types.IdeaStatus(status)
		r.NicheID = niche.String
		r.ValueProposition = vp.String
		r.RejectionReason = rejR.String
		if refs.Valid {
			_ = json.Unmarshal([]byte(refs.String), &r.EvidenceRefs)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
