package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/hangeul/internal/assessment"
)

func retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		InitialWait: 1 * time.Millisecond,
		MaxWait:     10 * time.Millisecond,
		Multiplier:  2.0,
	}
}

func netErr() error {
	return &NetworkError{Op: "test", StatusCode: 503, Err: errors.New("unavailable")}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	mock := NewMockClient()
	mock.AddQuestions(QuestionsResponse{Err: netErr()})
	mock.AddQuestions(QuestionsResponse{Questions: []assessment.Question{{ID: "q1"}}})
	c := WithRetry(mock, retryConfig())

	qs, err := c.AssessmentQuestions(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, qs, 1)
	assert.Equal(t, 2, mock.CallCount("AssessmentQuestions"))
}

func TestRetry_AllAttemptsFail(t *testing.T) {
	mock := NewMockClient()
	for range 3 {
		mock.AddQuestions(QuestionsResponse{Err: netErr()})
	}
	c := WithRetry(mock, retryConfig())

	_, err := c.AssessmentQuestions(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, 3, mock.CallCount("AssessmentQuestions"))
}

func TestRetry_PayloadErrorNotRetried(t *testing.T) {
	mock := NewMockClient()
	mock.AddQuestions(QuestionsResponse{Err: &PayloadError{Op: "load", Err: errors.New("bad")}})
	c := WithRetry(mock, retryConfig())

	_, err := c.AssessmentQuestions(context.Background(), "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
	assert.Equal(t, 1, mock.CallCount("AssessmentQuestions"))
}

func TestRetry_SubmitNeverRetried(t *testing.T) {
	mock := NewMockClient()
	mock.AddSubmit(SubmitResponse{Err: netErr()})
	mock.AddSubmit(SubmitResponse{Result: &assessment.Result{Score: 100}})
	c := WithRetry(mock, retryConfig())

	_, err := c.SubmitAssessment(context.Background(), "a", assessment.SubmitRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, mock.CallCount("SubmitAssessment"))
}

func TestRetry_ContextCanceledDuringBackoff(t *testing.T) {
	mock := NewMockClient()
	mock.AddQuestions(QuestionsResponse{Err: netErr()})
	mock.AddQuestions(QuestionsResponse{Err: netErr()})
	c := WithRetry(mock, RetryConfig{
		MaxAttempts: 2,
		InitialWait: time.Hour,
		MaxWait:     time.Hour,
		Multiplier:  1,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.AssessmentQuestions(ctx, "a")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, mock.CallCount("AssessmentQuestions"))
}

func TestRetry_BackoffBounds(t *testing.T) {
	r := &RetryClient{config: RetryConfig{
		MaxAttempts: 5,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     300 * time.Millisecond,
		Multiplier:  2,
	}}
	for attempt := range 5 {
		wait := r.backoff(attempt)
		assert.LessOrEqual(t, wait, 360*time.Millisecond, "attempt %d", attempt)
		assert.GreaterOrEqual(t, wait, 80*time.Millisecond, "attempt %d", attempt)
	}
}

func TestRetry_StopsWhenCallerContextIsDone(t *testing.T) {
	mock := NewMockClient()
	mock.AddQuestions(QuestionsResponse{Err: netErr()})
	mock.AddQuestions(QuestionsResponse{Questions: []assessment.Question{{ID: "q1"}}})
	c := WithRetry(mock, retryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.AssessmentQuestions(ctx, "a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetwork))
	assert.Equal(t, 1, mock.CallCount("AssessmentQuestions"))
}
