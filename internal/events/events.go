// Package events carries session lifecycle events from the controller to
// in-process consumers such as the journal.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/hangeul/internal/assessment"
)

// Type identifies a lifecycle event.
type Type string

const (
	TypeStarted      Type = "session.started"
	TypeSubmitting   Type = "session.submitting"
	TypeCompleted    Type = "session.completed"
	TypeSubmitFailed Type = "session.submit_failed"
	TypeLoadFailed   Type = "session.load_failed"
	TypeReset        Type = "session.reset"
)

// Topic is the pub/sub topic lifecycle events are published on.
const Topic = "session.lifecycle"

// SessionEvent is one lifecycle transition of a session.
type SessionEvent struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	SessionID    string    `json:"session_id"`
	AssessmentID string    `json:"assessment_id"`
	Title        string    `json:"title,omitempty"`
	Timestamp    time.Time `json:"timestamp"`

	QuestionCount    int                `json:"question_count,omitempty"`
	Answered         int                `json:"answered,omitempty"`
	TimeTakenSeconds int                `json:"time_taken_seconds,omitempty"`
	AutoSubmitted    bool               `json:"auto_submitted,omitempty"`
	Result           *assessment.Result `json:"result,omitempty"`

	// Error is set on failure events. Network is true when the failure was
	// a retryable transport problem.
	Error   string `json:"error,omitempty"`
	Network bool   `json:"network,omitempty"`
}

// New creates an event with a fresh ID.
func New(typ Type, sessionID, assessmentID string, at time.Time) SessionEvent {
	return SessionEvent{
		ID:           uuid.NewString(),
		Type:         typ,
		SessionID:    sessionID,
		AssessmentID: assessmentID,
		Timestamp:    at,
	}
}

// Publisher accepts lifecycle events. Implementations must not block the
// caller on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev SessionEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, SessionEvent) error { return nil }
