package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/hangeul/internal/assessment"
)

// Status is the lifecycle phase of a session.
type Status int

const (
	StatusIdle       Status = iota // No session
	StatusLoading                  // Fetching questions
	StatusInProgress               // Answering, timer running
	StatusSubmitting               // Submission in flight
	StatusCompleted                // Scored by the server
	StatusError                    // Load or submit failed; Retry or Reset
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusInProgress:
		return "in_progress"
	case StatusSubmitting:
		return "submitting"
	case StatusCompleted:
		return "completed"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

var (
	// ErrInvalidTransition matches every *TransitionError.
	ErrInvalidTransition = errors.New("invalid transition")

	ErrUnknownQuestion = errors.New("unknown question")
	ErrUnknownOption   = errors.New("unknown option")

	// ErrTimeExpired rejects answers once the countdown has reached zero.
	ErrTimeExpired = errors.New("time expired")

	// ErrNoQuestions is the load error for an assessment without questions.
	ErrNoQuestions = errors.New("assessment has no questions")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session controller closed")
)

// TransitionError is an operation invoked in a status that does not allow it.
type TransitionError struct {
	Op   string
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: not allowed while %s", e.Op, e.From)
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// State is an immutable snapshot of the session published to observers.
type State struct {
	// Generation increases on every Start and Reset.
	Generation uint64

	SessionID  string
	Assessment assessment.Assessment
	Status     Status

	// Questions is shared between snapshots and must not be modified.
	Questions    []assessment.Question
	CurrentIndex int

	// Answers maps question ID to option ID. Each snapshot owns its copy.
	Answers map[string]string

	StartedAt        time.Time
	RemainingSeconds int

	// Timed is false for assessments without a duration.
	Timed bool

	// Expired is set once the countdown reached zero.
	Expired bool

	// TimeTakenSeconds is the value sent with the latest submission.
	TimeTakenSeconds int
	AutoSubmitted    bool
	Result           *assessment.Result

	// Err is the surfaced load or submit error, if any. ErrFrom tells which
	// phase produced it.
	Err     error
	ErrFrom Status
}

// Current returns the question at CurrentIndex.
func (s State) Current() (assessment.Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return assessment.Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// AnswerFor returns the chosen option for a question.
func (s State) AnswerFor(questionID string) (string, bool) {
	o, ok := s.Answers[questionID]
	return o, ok
}

// Answered returns the number of answered questions.
func (s State) Answered() int { return len(s.Answers) }

// CanRetry reports whether Retry has something to redo.
func (s State) CanRetry() bool {
	switch s.Status {
	case StatusError:
		return true
	case StatusInProgress:
		return s.Err != nil
	default:
		return false
	}
}
