package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abhisek/hangeul/internal/events"
	"github.com/abhisek/hangeul/internal/logging"
)

// Subscriber is the consuming side of the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context, handler events.Handler) (<-chan struct{}, error)
}

// Journal appends every lifecycle event it receives and records an attempt
// for each completed session.
type Journal struct {
	events   EventRepo
	attempts AttemptRepo
	logger   *slog.Logger
}

// NewJournal creates a Journal writing to s.
func NewJournal(s *Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Journal{
		events:   s.EventRepo(),
		attempts: s.AttemptRepo(),
		logger:   logger.With("component", "journal"),
	}
}

// Run subscribes the journal to sub. The returned channel closes once the
// subscription ends.
func (j *Journal) Run(ctx context.Context, sub Subscriber) (<-chan struct{}, error) {
	done, err := sub.Subscribe(ctx, j.Handle)
	if err != nil {
		return nil, fmt.Errorf("journal subscribe: %w", err)
	}
	return done, nil
}

// Handle journals one event.
func (j *Journal) Handle(ctx context.Context, ev events.SessionEvent) error {
	if err := j.events.Append(ctx, ev); err != nil {
		return err
	}
	j.logger.Debug("journaled event", "event_type", ev.Type, "session_id", ev.SessionID)

	if ev.Type != events.TypeCompleted || ev.Result == nil {
		return nil
	}
	a := Attempt{
		SessionID:        ev.SessionID,
		AssessmentID:     ev.AssessmentID,
		Title:            ev.Title,
		Score:            ev.Result.Score,
		Passed:           ev.Result.Passed,
		Correct:          ev.Result.CorrectAnswers,
		Total:            ev.Result.TotalQuestions,
		TimeTakenSeconds: ev.TimeTakenSeconds,
		AutoSubmitted:    ev.AutoSubmitted,
		CompletedAt:      ev.Timestamp,
	}
	if err := j.attempts.Save(ctx, a); err != nil {
		return err
	}
	j.logger.Info("attempt recorded",
		"session_id", a.SessionID,
		"assessment_id", a.AssessmentID,
		"score", a.Score)
	return nil
}
