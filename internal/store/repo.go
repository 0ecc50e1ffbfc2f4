package store

import (
	"context"
	"time"

	"github.com/abhisek/hangeul/internal/events"
)

// timeLayout sorts lexicographically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	SessionID string    // only this session ("" = all)
	Limit     int       // max results (0 = unlimited)
	After     int64     // sequence > After
	Before    int64     // sequence < Before
	From      time.Time // timestamp >= From
	To        time.Time // timestamp <= To
}

// EventRecord is one journaled lifecycle event.
type EventRecord struct {
	Sequence     int64
	EventID      string
	SessionID    string
	AssessmentID string
	Action       events.Type
	Payload      events.SessionEvent
	Timestamp    time.Time
}

// EventRepo provides append and query access to lifecycle events.
type EventRepo interface {
	// Append records ev with the next sequence number.
	Append(ctx context.Context, ev events.SessionEvent) error

	// Query returns events in timestamp order, ties broken by sequence.
	Query(ctx context.Context, opts QueryOpts) ([]EventRecord, error)
}

// Attempt is a completed, scored session.
type Attempt struct {
	SessionID        string
	AssessmentID     string
	Title            string
	Score            int
	Passed           bool
	Correct          int
	Total            int
	TimeTakenSeconds int
	AutoSubmitted    bool
	CompletedAt      time.Time
}

// AttemptRepo stores completed attempts for the local history view.
type AttemptRepo interface {
	// Save records an attempt. Saving the same session twice keeps the first.
	Save(ctx context.Context, a Attempt) error

	// Recent returns up to limit attempts, newest first. A limit of 0 or
	// less returns all.
	Recent(ctx context.Context, limit int) ([]Attempt, error)
}
