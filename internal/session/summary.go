package session

import "github.com/abhisek/hangeul/internal/assessment"

// Summary holds the data displayed on the result screen.
type Summary struct {
	Title            string
	Result           assessment.Result
	Answered         int
	Unanswered       int
	TimeTakenSeconds int
	AutoSubmitted    bool
	Review           []ReviewItem
}

// ReviewItem pairs a question with the learner's choice for review.
type ReviewItem struct {
	Index       int
	QuestionID  string
	Text        string
	Chosen      string // option ID, empty when unanswered
	Correct     string // option ID
	Explanation string
}

// IsCorrect reports whether the chosen option is the correct one.
func (r ReviewItem) IsCorrect() bool {
	return r.Chosen != "" && r.Chosen == r.Correct
}

// BuildSummary creates a Summary from a completed session snapshot.
func BuildSummary(s State) Summary {
	sum := Summary{
		Title:            s.Assessment.Title,
		Answered:         len(s.Answers),
		TimeTakenSeconds: s.TimeTakenSeconds,
		AutoSubmitted:    s.AutoSubmitted,
	}
	if s.Result != nil {
		sum.Result = *s.Result
	}

	unanswered := 0
	for i, q := range s.Questions {
		chosen, ok := s.Answers[q.ID]
		if !ok {
			unanswered++
		}
		sum.Review = append(sum.Review, ReviewItem{
			Index:       i,
			QuestionID:  q.ID,
			Text:        q.Text,
			Chosen:      chosen,
			Correct:     q.CorrectOptionID(),
			Explanation: q.Explanation,
		})
	}
	sum.Unanswered = unanswered
	return sum
}
