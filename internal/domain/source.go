package domain

import "context"

// SourceConfig tells a QuestionSource what to produce.
type SourceConfig struct {
	Subject          string
	QuestionCount    int
	DifficultyLevels []Difficulty
	Topics           []string
	RandomizeOptions bool
}

// QuestionSource turns raw text into questions. Implementations may return
// fewer questions than requested.
type QuestionSource interface {
	Generate(ctx context.Context, text string, cfg SourceConfig) ([]*Question, error)
}

// QuestionRepository persists the question catalog.
type QuestionRepository interface {
	ListQuestions(ctx context.Context) ([]*Question, error)
	SaveQuestions(ctx context.Context, questions []*Question) error
}

// TransactionManager runs fn inside a transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
