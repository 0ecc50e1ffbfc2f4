package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/hangeul/internal/events"
)

type eventRepo struct {
	drv *entsql.Driver
	seq *sequenceCounter
}

func (r *eventRepo) Append(ctx context.Context, ev events.SessionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	query, args := entsql.Dialect(dialect.SQLite).
		Insert(tableSessionEvents).
		Columns("sequence", "event_id", "session_id", "assessment_id", "action", "payload", "timestamp").
		Values(seqNum, ev.ID, ev.SessionID, ev.AssessmentID, string(ev.Type), string(payload), formatTime(ev.Timestamp)).
		Query()
	if err := r.drv.Exec(ctx, query, args, nil); err != nil {
		return fmt.Errorf("save session event: %w", err)
	}
	return nil
}

func (r *eventRepo) Query(ctx context.Context, opts QueryOpts) ([]EventRecord, error) {
	b := entsql.Dialect(dialect.SQLite)
	sel := b.Select("sequence", "event_id", "session_id", "assessment_id", "action", "payload", "timestamp").
		From(b.Table(tableSessionEvents))

	if opts.SessionID != "" {
		sel.Where(entsql.EQ("session_id", opts.SessionID))
	}
	if opts.After > 0 {
		sel.Where(entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		sel.Where(entsql.LT("sequence", opts.Before))
	}
	if !opts.From.IsZero() {
		sel.Where(entsql.GTE("timestamp", formatTime(opts.From)))
	}
	if !opts.To.IsZero() {
		sel.Where(entsql.LTE("timestamp", formatTime(opts.To)))
	}
	sel.OrderBy("timestamp", "sequence")
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var (
			rec     EventRecord
			action  string
			payload string
			ts      string
		)
		if err := rows.Scan(&rec.Sequence, &rec.EventID, &rec.SessionID, &rec.AssessmentID, &action, &payload, &ts); err != nil {
			return nil, fmt.Errorf("scan session event: %w", err)
		}
		rec.Action = events.Type(action)
		if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode event %d payload: %w", rec.Sequence, err)
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("decode event %d timestamp: %w", rec.Sequence, err)
		}
		rec.Timestamp = t
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session events: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
