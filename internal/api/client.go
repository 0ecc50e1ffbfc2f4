package api

import (
	"context"

	"github.com/abhisek/hangeul/internal/assessment"
)

// Client is the consumed surface of the content backend.
type Client interface {
	// Categories lists content categories, optionally filtered by type.
	Categories(ctx context.Context, typ assessment.Type) ([]assessment.Category, error)

	// Assessments lists quizzes/exams, optionally filtered by category and type.
	Assessments(ctx context.Context, categoryID string, typ assessment.Type) ([]assessment.Assessment, error)

	// AssessmentQuestions loads the immutable question set for a session.
	// Implementations return either the full validated set or an error.
	AssessmentQuestions(ctx context.Context, assessmentID string) ([]assessment.Question, error)

	// SubmitAssessment sends the full answer set and returns the scored result.
	SubmitAssessment(ctx context.Context, assessmentID string, req assessment.SubmitRequest) (*assessment.Result, error)

	// AssessmentResults lists past attempts, optionally for one assessment.
	AssessmentResults(ctx context.Context, assessmentID string) ([]assessment.HistoryEntry, error)

	// Leaderboard lists ranked scores for a type, optionally for one assessment.
	Leaderboard(ctx context.Context, typ assessment.Type, assessmentID string) ([]assessment.LeaderboardEntry, error)
}

type contextKey string

const idempotencyKey contextKey = "api_idempotency_key"

// WithIdempotencyKey attaches a key sent as the Idempotency-Key header.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKey, key)
}

// IdempotencyKeyFrom extracts the idempotency key from the context.
func IdempotencyKeyFrom(ctx context.Context) string {
	if v, ok := ctx.Value(idempotencyKey).(string); ok {
		return v
	}
	return ""
}
