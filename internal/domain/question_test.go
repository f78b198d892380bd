package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDifficultyLevels(t *testing.T) {
	for i, d := range Difficulties {
		assert.Equal(t, i, d.Level())
		assert.True(t, d.Valid())
	}
	assert.Equal(t, -1, Difficulty("legendary").Level())
	assert.False(t, Difficulty("legendary").Valid())

	d, err := ParseDifficulty("  Advanced ")
	require.NoError(t, err)
	assert.Equal(t, Advanced, d)
	_, err = ParseDifficulty("hard")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQuestionValidate(t *testing.T) {
	valid := func() *Question {
		return NewQuestion("go", "channels", Beginner, MultipleChoice, "Which blocks?",
			[]string{"unbuffered send", "closed receive"}, "unbuffered send", "")
	}

	tests := []struct {
		name   string
		mutate func(q *Question)
		ok     bool
	}{
		{"valid multiple choice", func(q *Question) {}, true},
		{"missing subject", func(q *Question) { q.Subject = " " }, false},
		{"missing topic", func(q *Question) { q.Topic = "" }, false},
		{"missing difficulty", func(q *Question) { q.Difficulty = "" }, false},
		{"unknown difficulty", func(q *Question) { q.Difficulty = "hard" }, false},
		{"missing type", func(q *Question) { q.Type = "" }, false},
		{"unknown type", func(q *Question) { q.Type = "essay" }, false},
		{"missing prompt", func(q *Question) { q.Prompt = "" }, false},
		{"one option", func(q *Question) { q.Options = q.Options[:1] }, false},
		{"answer not an option", func(q *Question) { q.CorrectAnswer = "neither" }, false},
		{"true false", func(q *Question) { q.Type, q.Options, q.CorrectAnswer = TrueFalse, nil, "False" }, true},
		{"true false bad answer", func(q *Question) { q.Type, q.CorrectAnswer = TrueFalse, "maybe" }, false},
		{"short answer", func(q *Question) { q.Type, q.Options, q.CorrectAnswer = ShortAnswer, nil, "select" }, true},
		{"short answer empty", func(q *Question) { q.Type, q.CorrectAnswer = ShortAnswer, "  " }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := valid()
			tt.mutate(q)
			err := q.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	var nilQ *Question
	assert.ErrorIs(t, nilQ.Validate(), ErrValidation)
}

func TestCheckAnswer(t *testing.T) {
	mc := &Question{Type: MultipleChoice, Options: []string{"Paris", "Rome", "Oslo"}, CorrectAnswer: "Rome"}
	assert.True(t, mc.CheckAnswer(" rome "))
	assert.True(t, mc.CheckAnswer("B"))
	assert.False(t, mc.CheckAnswer("a"))
	assert.False(t, mc.CheckAnswer("z"))
	assert.False(t, mc.CheckAnswer(""))

	tf := &Question{Type: TrueFalse, CorrectAnswer: "true"}
	assert.True(t, tf.CheckAnswer("TRUE"))
	assert.False(t, tf.CheckAnswer("false"))
}

func TestDomainErrorMatching(t *testing.T) {
	err := NewSessionNotFoundError("abc")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "abc", err.Context["session_id"])

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	cause := errors.New("connection refused")
	src := NewSourceError(cause)
	assert.ErrorIs(t, src, cause)
	assert.Equal(t, "question source failed: connection refused", src.Error())
}

func TestQuizConfigValidate(t *testing.T) {
	assert.NoError(t, (&QuizConfig{QuestionCount: 5}).Validate())
	assert.ErrorIs(t, (&QuizConfig{QuestionCount: -1}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&QuizConfig{DifficultyLevels: []Difficulty{"x"}}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&QuizConfig{StartingDifficulty: "x"}).Validate(), ErrValidation)
}
