package store

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

type attemptRepo struct {
	drv *entsql.Driver
}

func (r *attemptRepo) Save(ctx context.Context, a Attempt) error {
	query, args := entsql.Dialect(dialect.SQLite).
		Insert(tableAttemptResults).
		Columns("session_id", "assessment_id", "title", "score", "passed",
			"correct", "total", "time_taken", "auto_submitted", "completed_at").
		Values(a.SessionID, a.AssessmentID, a.Title, a.Score, a.Passed,
			a.Correct, a.Total, a.TimeTakenSeconds, a.AutoSubmitted, formatTime(a.CompletedAt)).
		OnConflict(entsql.ConflictColumns("session_id"), entsql.DoNothing()).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

func (r *attemptRepo) Recent(ctx context.Context, limit int) ([]Attempt, error) {
	b := entsql.Dialect(dialect.SQLite)
	sel := b.Select("session_id", "assessment_id", "title", "score", "passed",
		"correct", "total", "time_taken", "auto_submitted", "completed_at").
		From(b.Table(tableAttemptResults)).
		OrderBy(entsql.Desc("completed_at"), entsql.Desc("id"))
	if limit > 0 {
		sel.Limit(limit)
	}

	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var (
			a  Attempt
			ts string
		)
		if err := rows.Scan(&a.SessionID, &a.AssessmentID, &a.Title, &a.Score, &a.Passed,
			&a.Correct, &a.Total, &a.TimeTakenSeconds, &a.AutoSubmitted, &ts); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("decode attempt %s time: %w", a.SessionID, err)
		}
		a.CompletedAt = t
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}
