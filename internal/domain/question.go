package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Difficulty is the named difficulty of a question. Its ordinal position
// (beginner=0 ... expert=3) is what the optimizer works with.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
	Expert       Difficulty = "expert"
)

// Difficulties lists every level in ordinal order.
var Difficulties = []Difficulty{Beginner, Intermediate, Advanced, Expert}

// MaxLevel is the highest difficulty ordinal.
const MaxLevel = 3

// Level returns the ordinal of d, or -1 if d is not a recognized level.
func (d Difficulty) Level() int {
	switch d {
	case Beginner:
		return 0
	case Intermediate:
		return 1
	case Advanced:
		return 2
	case Expert:
		return 3
	default:
		return -1
	}
}

// Valid reports whether d is one of the four recognized levels.
func (d Difficulty) Valid() bool {
	return d.Level() >= 0
}

// ParseDifficulty accepts a difficulty name in any case.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", NewValidationError(fmt.Sprintf("unrecognized difficulty: %q", s))
	}
	return d, nil
}

// QuestionType is the answer format of a question.
type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
	ShortAnswer    QuestionType = "short_answer"
)

func (t QuestionType) Valid() bool {
	switch t {
	case MultipleChoice, TrueFalse, ShortAnswer:
		return true
	}
	return false
}

// Question is immutable once created; callers share *Question values freely.
type Question struct {
	ID            string
	Subject       string
	Topic         string
	Difficulty    Difficulty
	Type          QuestionType
	Prompt        string
	Options       []string
	CorrectAnswer string
	Explanation   string
	AIGenerated   bool
	CreatedAt     time.Time
}

// NewQuestion creates a Question with a fresh id.
func NewQuestion(subject, topic string, difficulty Difficulty, qtype QuestionType, prompt string, options []string, correctAnswer, explanation string) *Question {
	return &Question{
		ID:            uuid.NewString(),
		Subject:       subject,
		Topic:         topic,
		Difficulty:    difficulty,
		Type:          qtype,
		Prompt:        prompt,
		Options:       options,
		CorrectAnswer: correctAnswer,
		Explanation:   explanation,
		CreatedAt:     time.Now(),
	}
}

// Validate validates the question
func (q *Question) Validate() error {
	if q == nil {
		return NewValidationError("question is required")
	}
	if strings.TrimSpace(q.ID) == "" {
		return NewValidationError("id is required")
	}
	if strings.TrimSpace(q.Subject) == "" {
		return NewValidationError("subject is required")
	}
	if strings.TrimSpace(q.Topic) == "" {
		return NewValidationError("topic is required")
	}
	if q.Difficulty == "" {
		return NewValidationError("difficulty is required")
	}
	if !q.Difficulty.Valid() {
		return NewValidationError(fmt.Sprintf("unrecognized difficulty: %q", q.Difficulty))
	}
	if q.Type == "" {
		return NewValidationError("question type is required")
	}
	if !q.Type.Valid() {
		return NewValidationError(fmt.Sprintf("unrecognized question type: %q", q.Type))
	}
	if strings.TrimSpace(q.Prompt) == "" {
		return NewValidationError("prompt is required")
	}

	switch q.Type {
	case MultipleChoice:
		if len(q.Options) < 2 {
			return NewValidationError("multiple choice question needs at least two options")
		}
		found := false
		for _, opt := range q.Options {
			if normalizeAnswer(opt) == normalizeAnswer(q.CorrectAnswer) {
				found = true
				break
			}
		}
		if !found {
			return NewValidationError("correct answer must be one of the options")
		}
	case TrueFalse:
		a := normalizeAnswer(q.CorrectAnswer)
		if a != "true" && a != "false" {
			return NewValidationError("true/false answer must be \"true\" or \"false\"")
		}
	case ShortAnswer:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return NewValidationError("short answer question needs a correct answer")
		}
	}
	return nil
}

// CheckAnswer scores a learner's answer. Comparison ignores case and
// surrounding whitespace; for multiple choice an option letter ("B") is
// accepted as well as the option text.
func (q *Question) CheckAnswer(answer string) bool {
	given := normalizeAnswer(answer)
	want := normalizeAnswer(q.CorrectAnswer)
	if given == want {
		return true
	}
	if q.Type == MultipleChoice && len(given) == 1 {
		idx := int(given[0] - 'a')
		if idx >= 0 && idx < len(q.Options) {
			return normalizeAnswer(q.Options[idx]) == want
		}
	}
	return false
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
