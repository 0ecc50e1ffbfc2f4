package api

import (
	"context"
	"errors"
	"sync"

	"github.com/abhisek/hangeul/internal/assessment"
)

// ErrNoMockResponse is returned when a MockClient queue is empty.
var ErrNoMockResponse = errors.New("mock: no canned response")

// MockCall records one call made against a MockClient.
type MockCall struct {
	Method       string
	AssessmentID string
	Submit       *assessment.SubmitRequest
	IdemKey      string
}

// QuestionsResponse is a canned AssessmentQuestions result.
type QuestionsResponse struct {
	Questions []assessment.Question
	Err       error

	// Wait, when non-nil, blocks the call until closed or ctx is done.
	Wait <-chan struct{}
}

// SubmitResponse is a canned SubmitAssessment result.
type SubmitResponse struct {
	Result *assessment.Result
	Err    error
	Wait   <-chan struct{}
}

// MockClient is a deterministic Client for testing. Question loads and
// submissions are answered from FIFO queues; listings return the static
// fields. All calls are recorded.
type MockClient struct {
	mu        sync.Mutex
	questions []QuestionsResponse
	submits   []SubmitResponse
	Calls     []MockCall

	CategoryList    []assessment.Category
	AssessmentList  []assessment.Assessment
	HistoryList     []assessment.HistoryEntry
	LeaderboardList []assessment.LeaderboardEntry

	// ListErr, when set, fails Categories and Assessments.
	ListErr error
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// AddQuestions appends a canned question-load response.
func (m *MockClient) AddQuestions(resp QuestionsResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions = append(m.questions, resp)
}

// AddSubmit appends a canned submit response.
func (m *MockClient) AddSubmit(resp SubmitResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submits = append(m.submits, resp)
}

// CallCount returns the number of calls made to method.
func (m *MockClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// SubmitCalls returns a copy of every recorded submit call.
func (m *MockClient) SubmitCalls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCall
	for _, c := range m.Calls {
		if c.Method == "SubmitAssessment" {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockClient) record(c MockCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
}

func (m *MockClient) Categories(_ context.Context, typ assessment.Type) ([]assessment.Category, error) {
	m.record(MockCall{Method: "Categories"})
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []assessment.Category
	for _, c := range m.CategoryList {
		if typ == "" || c.Type == typ {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockClient) Assessments(_ context.Context, categoryID string, typ assessment.Type) ([]assessment.Assessment, error) {
	m.record(MockCall{Method: "Assessments"})
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []assessment.Assessment
	for _, a := range m.AssessmentList {
		if (categoryID == "" || a.CategoryID == categoryID) && (typ == "" || a.Type == typ) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MockClient) AssessmentQuestions(ctx context.Context, assessmentID string) ([]assessment.Question, error) {
	m.record(MockCall{Method: "AssessmentQuestions", AssessmentID: assessmentID})

	m.mu.Lock()
	if len(m.questions) == 0 {
		m.mu.Unlock()
		return nil, ErrNoMockResponse
	}
	resp := m.questions[0]
	m.questions = m.questions[1:]
	m.mu.Unlock()

	if err := wait(ctx, resp.Wait); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Questions, nil
}

func (m *MockClient) SubmitAssessment(ctx context.Context, assessmentID string, req assessment.SubmitRequest) (*assessment.Result, error) {
	r := req
	m.record(MockCall{
		Method:       "SubmitAssessment",
		AssessmentID: assessmentID,
		Submit:       &r,
		IdemKey:      IdempotencyKeyFrom(ctx),
	})

	m.mu.Lock()
	if len(m.submits) == 0 {
		m.mu.Unlock()
		return nil, ErrNoMockResponse
	}
	resp := m.submits[0]
	m.submits = m.submits[1:]
	m.mu.Unlock()

	if err := wait(ctx, resp.Wait); err != nil {
		return nil, err
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Result, nil
}

func (m *MockClient) AssessmentResults(_ context.Context, assessmentID string) ([]assessment.HistoryEntry, error) {
	m.record(MockCall{Method: "AssessmentResults", AssessmentID: assessmentID})
	return m.HistoryList, nil
}

func (m *MockClient) Leaderboard(_ context.Context, _ assessment.Type, assessmentID string) ([]assessment.LeaderboardEntry, error) {
	m.record(MockCall{Method: "Leaderboard", AssessmentID: assessmentID})
	return m.LeaderboardList, nil
}

func wait(ctx context.Context, ch <-chan struct{}) error {
	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
