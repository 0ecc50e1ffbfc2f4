package assessment

import "time"

// Type distinguishes short practice quizzes from graded exams.
type Type string

const (
	TypeQuiz Type = "quiz"
	TypeExam Type = "exam"
)

// Kind describes the primary medium of a question or option.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// MediaType is the inferred type of a remote media asset.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
)

// Placement controls where a prompt box is rendered relative to the question.
type Placement string

const (
	PlacementTop    Placement = "top"
	PlacementMiddle Placement = "middle"
	PlacementBottom Placement = "bottom"
)

// MaxMediaRefs is the maximum number of media attachments on a question.
const MaxMediaRefs = 3

// OptionCount is the number of answer options on every question.
const OptionCount = 4

// Category groups assessments on the selection screen.
type Category struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Type Type   `json:"type" yaml:"type"`
}

// Assessment is a listing entry for a quiz or exam.
type Assessment struct {
	ID         string `json:"id" yaml:"id"`
	CategoryID string `json:"category_id" yaml:"category_id"`
	Title      string `json:"title" yaml:"title"`
	Type       Type   `json:"type" yaml:"type"`

	// DurationSeconds is the allotted time. Zero means untimed.
	DurationSeconds int `json:"duration_seconds" yaml:"duration_seconds"`

	QuestionCount int `json:"question_count" yaml:"question_count"`

	// PassingScore is the minimum percentage score to pass.
	PassingScore int `json:"passing_score" yaml:"passing_score"`
}

// MediaRef is a remote media attachment on a question.
type MediaRef struct {
	URL  string    `json:"url" yaml:"url"`
	Type MediaType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Option is one of the four answer choices on a question. For image and
// audio options Content holds the media URL.
type Option struct {
	ID      string `json:"id" yaml:"id"`
	Content string `json:"content" yaml:"content"`
	Kind    Kind   `json:"kind" yaml:"kind"`
}

// PromptBox is an auxiliary passage or media panel shown with a question.
type PromptBox struct {
	Text      string    `json:"text,omitempty" yaml:"text,omitempty"`
	MediaURL  string    `json:"media_url,omitempty" yaml:"media_url,omitempty"`
	Placement Placement `json:"placement" yaml:"placement"`
}

// Question is immutable once loaded into a session.
type Question struct {
	ID string `json:"id" yaml:"id"`

	// Text is rich text (may contain markup) displayed verbatim.
	Text string `json:"text" yaml:"text"`

	Kind      Kind       `json:"kind" yaml:"kind"`
	MediaRefs []MediaRef `json:"media_refs,omitempty" yaml:"media_refs,omitempty"`
	Options   []Option   `json:"options" yaml:"options"`

	CorrectOptionIndex int        `json:"correct_option_index" yaml:"correct_option_index"`
	Explanation        string     `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	PromptBox          *PromptBox `json:"prompt_box,omitempty" yaml:"prompt_box,omitempty"`
}

// AnswerChoice is a single (question, option) pair in a submission.
type AnswerChoice struct {
	QuestionID string `json:"question_id"`
	OptionID   string `json:"option_id"`
}

// SubmitRequest is the full answer set sent when an attempt ends.
type SubmitRequest struct {
	Answers          []AnswerChoice `json:"answers"`
	TimeTakenSeconds int            `json:"time_taken_seconds"`
	AutoSubmitted    bool           `json:"auto_submitted"`
}

// Result is the server's scoring of a submission.
type Result struct {
	Score          int  `json:"score"`
	Passed         bool `json:"passed"`
	CorrectAnswers int  `json:"correct_answers"`
	TotalQuestions int  `json:"total_questions"`
}

// HistoryEntry is one past attempt returned by the results endpoint.
type HistoryEntry struct {
	AssessmentID     string    `json:"assessment_id"`
	Title            string    `json:"title"`
	Score            int       `json:"score"`
	Passed           bool      `json:"passed"`
	CorrectAnswers   int       `json:"correct_answers"`
	TotalQuestions   int       `json:"total_questions"`
	TimeTakenSeconds int       `json:"time_taken_seconds"`
	CompletedAt      time.Time `json:"completed_at"`
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Attempts    int    `json:"attempts"`
}
