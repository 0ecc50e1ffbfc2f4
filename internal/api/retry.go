package api

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/abhisek/hangeul/internal/assessment"
)

// RetryConfig configures retry behavior for idempotent reads.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// RetryClient is a decorator that retries network failures on read
// endpoints with exponential backoff and jitter. Submissions pass through
// untouched: a submit is retried only when the user asks.
type RetryClient struct {
	inner  Client
	config RetryConfig
}

var _ Client = (*RetryClient)(nil)

// WithRetry wraps a Client with retry logic for reads.
func WithRetry(c Client, cfg RetryConfig) Client {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryClient{inner: c, config: cfg}
}

func (r *RetryClient) Categories(ctx context.Context, typ assessment.Type) ([]assessment.Category, error) {
	return retry(ctx, r, func() ([]assessment.Category, error) {
		return r.inner.Categories(ctx, typ)
	})
}

func (r *RetryClient) Assessments(ctx context.Context, categoryID string, typ assessment.Type) ([]assessment.Assessment, error) {
	return retry(ctx, r, func() ([]assessment.Assessment, error) {
		return r.inner.Assessments(ctx, categoryID, typ)
	})
}

func (r *RetryClient) AssessmentQuestions(ctx context.Context, assessmentID string) ([]assessment.Question, error) {
	return retry(ctx, r, func() ([]assessment.Question, error) {
		return r.inner.AssessmentQuestions(ctx, assessmentID)
	})
}

func (r *RetryClient) SubmitAssessment(ctx context.Context, assessmentID string, req assessment.SubmitRequest) (*assessment.Result, error) {
	return r.inner.SubmitAssessment(ctx, assessmentID, req)
}

func (r *RetryClient) AssessmentResults(ctx context.Context, assessmentID string) ([]assessment.HistoryEntry, error) {
	return retry(ctx, r, func() ([]assessment.HistoryEntry, error) {
		return r.inner.AssessmentResults(ctx, assessmentID)
	})
}

func (r *RetryClient) Leaderboard(ctx context.Context, typ assessment.Type, assessmentID string) ([]assessment.LeaderboardEntry, error) {
	return retry(ctx, r, func() ([]assessment.LeaderboardEntry, error) {
		return r.inner.Leaderboard(ctx, typ, assessmentID)
	})
}

func retry[T any](ctx context.Context, r *RetryClient, call func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := range r.config.MaxAttempts {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsRetryable(err) {
			return zero, err
		}

		// Last attempt, don't sleep.
		if attempt == r.config.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}
	return zero, lastErr
}

// backoff computes the wait duration for the given attempt.
func (r *RetryClient) backoff(attempt int) time.Duration {
	wait := float64(r.config.InitialWait) * math.Pow(r.config.Multiplier, float64(attempt))
	if wait > float64(r.config.MaxWait) {
		wait = float64(r.config.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
