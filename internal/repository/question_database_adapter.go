package repository

import (
	"context"
	"fmt"
	"time"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/repository/models"
	"adaptive-quiz/internal/util"
)

const listQuestionsQuery = `SELECT
		id "id",
		subject "subject",
		topic "topic",
		difficulty "difficulty",
		question_type "question_type",
		prompt "prompt",
		options "options",
		correct_answer "correct_answer",
		explanation "explanation",
		ai_generated "ai_generated",
		created_at "created_at"
	FROM questions
	ORDER BY created_at, id`

const insertQuestionQuery = `INSERT INTO questions (
		id, subject, topic, difficulty, question_type, prompt,
		options, correct_answer, explanation, ai_generated, created_at
	) VALUES (
		:1, :2, :3, :4, :5, :6, :7, :8, :9, :10, :11
	)`

// QuestionDatabaseAdapter implements domain.QuestionRepository on Oracle.
type QuestionDatabaseAdapter struct {
	db DBTX
}

func NewQuestionDatabaseAdapter(db DBTX) domain.QuestionRepository {
	return &QuestionDatabaseAdapter{db: db}
}

// ListQuestions returns the whole catalog, oldest first.
func (a *QuestionDatabaseAdapter) ListQuestions(ctx context.Context) ([]*domain.Question, error) {
	var rows []models.Question
	if err := GetExecutor(ctx, a.db).SelectContext(ctx, &rows, listQuestionsQuery); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	out := make([]*domain.Question, 0, len(rows))
	for i := range rows {
		out = append(out, toDomainQuestion(&rows[i]))
	}
	return out, nil
}

// SaveQuestions inserts each question. Run it inside WithTransaction to make
// the batch atomic.
func (a *QuestionDatabaseAdapter) SaveQuestions(ctx context.Context, questions []*domain.Question) error {
	exec := GetExecutor(ctx, a.db)
	for _, q := range questions {
		m := toModelQuestion(q)
		if m.CreatedAt.IsZero() {
			m.CreatedAt = time.Now()
		}
		_, err := exec.ExecContext(ctx, insertQuestionQuery,
			m.ID,
			m.Subject,
			m.Topic,
			m.Difficulty,
			m.QuestionType,
			m.Prompt,
			m.Options,
			m.CorrectAnswer,
			m.Explanation,
			m.AIGenerated,
			m.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save question %s: %w", q.ID, err)
		}
	}
	return nil
}

func toModelQuestion(q *domain.Question) *models.Question {
	ai := 0
	if q.AIGenerated {
		ai = 1
	}
	return &models.Question{
		ID:            q.ID,
		Subject:       q.Subject,
		Topic:         q.Topic,
		Difficulty:    string(q.Difficulty),
		QuestionType:  string(q.Type),
		Prompt:        q.Prompt,
		Options:       models.StringSlice(q.Options),
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   util.StringToNullString(q.Explanation),
		AIGenerated:   ai,
		CreatedAt:     q.CreatedAt,
	}
}

func toDomainQuestion(m *models.Question) *domain.Question {
	var options []string
	if len(m.Options) > 0 {
		options = []string(m.Options)
	}
	return &domain.Question{
		ID:            m.ID,
		Subject:       m.Subject,
		Topic:         m.Topic,
		Difficulty:    domain.Difficulty(m.Difficulty),
		Type:          domain.QuestionType(m.QuestionType),
		Prompt:        m.Prompt,
		Options:       options,
		CorrectAnswer: m.CorrectAnswer,
		Explanation:   m.Explanation.String,
		AIGenerated:   m.AIGenerated == 1,
		CreatedAt:     m.CreatedAt,
	}
}
