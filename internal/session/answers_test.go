package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/hangeul/internal/assessment"
)

func TestAnswerStore_UpsertReplaces(t *testing.T) {
	s := NewAnswerStore()
	s.Upsert("q3", "B")
	s.Upsert("q3", "D")

	assert.Equal(t, 1, s.Len())
	o, ok := s.Get("q3")
	require.True(t, ok)
	assert.Equal(t, "D", o)

	_, ok = s.Get("q4")
	assert.False(t, ok)
}

func TestAnswerStore_SnapshotIsCopy(t *testing.T) {
	s := NewAnswerStore()
	s.Upsert("q1", "A")

	snap := s.Snapshot()
	snap["q1"] = "C"
	snap["q2"] = "B"

	o, _ := s.Get("q1")
	assert.Equal(t, "A", o)
	assert.Equal(t, 1, s.Len())
}

func TestAnswerStore_Clear(t *testing.T) {
	s := NewAnswerStore()
	s.Upsert("q1", "A")
	s.Upsert("q2", "B")
	s.Clear()

	assert.Zero(t, s.Len())
	assert.Empty(t, s.Snapshot())
}

func TestAnswerStore_OrderedFollowsQuestions(t *testing.T) {
	qs := []assessment.Question{{ID: "z"}, {ID: "a"}, {ID: "m"}, {ID: "b"}}
	s := NewAnswerStore()
	s.Upsert("b", "D")
	s.Upsert("z", "A")
	s.Upsert("m", "C")

	assert.Equal(t, []assessment.AnswerChoice{
		{QuestionID: "z", OptionID: "A"},
		{QuestionID: "m", OptionID: "C"},
		{QuestionID: "b", OptionID: "D"},
	}, s.Ordered(qs))
}

func TestAnswerStore_OrderedEmpty(t *testing.T) {
	got := NewAnswerStore().Ordered([]assessment.Question{{ID: "q1"}})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
