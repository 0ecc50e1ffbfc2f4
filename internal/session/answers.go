package session

import (
	"maps"

	"github.com/abhisek/hangeul/internal/assessment"
)

// AnswerStore maps question IDs to the chosen option ID. It has a single
// writer, the Controller, and does no locking of its own.
type AnswerStore struct {
	answers map[string]string
}

// NewAnswerStore creates an empty store.
func NewAnswerStore() *AnswerStore {
	return &AnswerStore{answers: make(map[string]string)}
}

// Upsert records optionID for questionID, replacing any earlier choice.
func (s *AnswerStore) Upsert(questionID, optionID string) {
	s.answers[questionID] = optionID
}

// Get returns the chosen option for questionID.
func (s *AnswerStore) Get(questionID string) (string, bool) {
	o, ok := s.answers[questionID]
	return o, ok
}

// Clear removes every answer.
func (s *AnswerStore) Clear() {
	clear(s.answers)
}

// Len returns the number of answered questions.
func (s *AnswerStore) Len() int {
	return len(s.answers)
}

// Snapshot returns a copy of all answers.
func (s *AnswerStore) Snapshot() map[string]string {
	return maps.Clone(s.answers)
}

// Ordered returns the answers in question order, skipping unanswered
// questions. This is the submission payload.
func (s *AnswerStore) Ordered(questions []assessment.Question) []assessment.AnswerChoice {
	out := make([]assessment.AnswerChoice, 0, len(s.answers))
	for _, q := range questions {
		if o, ok := s.answers[q.ID]; ok {
			out = append(out, assessment.AnswerChoice{QuestionID: q.ID, OptionID: o})
		}
	}
	return out
}
