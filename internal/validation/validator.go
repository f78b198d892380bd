package validation

import (
	"fmt"
	"strings"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/dto"
	"adaptive-quiz/internal/util"
)

const (
	MaxQuestionCount = 100
	MaxSearchLimit   = 200
	maxTitleLength   = 200
	maxSourceLength  = 50000
	maxAnswerLength  = 2000
	maxTimeTaken     = 24 * 60 * 60
	maxBatchSize     = 500
)

// Validator provides request validation functionality
type Validator struct{}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateSessionID accepts only ULIDs, the format session ids are issued in.
func (v *Validator) ValidateSessionID(id string) domain.ValidationErrors {
	if strings.TrimSpace(id) == "" {
		return domain.ValidationErrors{domain.NewMissingFieldError("session_id")}
	}
	if !util.IsULID(id) {
		return domain.ValidationErrors{domain.NewInvalidFormatError("session_id", id)}
	}
	return nil
}

// ValidateCreateQuizRequest validates the create quiz request
func (v *Validator) ValidateCreateQuizRequest(req *dto.CreateQuizRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if len(req.Title) > maxTitleLength {
		errors = append(errors, domain.NewOutOfRangeError("title", len(req.Title), 0, maxTitleLength))
	}
	if len(req.SourceText) > maxSourceLength {
		errors = append(errors, domain.NewOutOfRangeError("source_text", len(req.SourceText), 0, maxSourceLength))
	}
	errors = append(errors, v.validateConfig(&req.Config)...)
	return errors
}

func (v *Validator) validateConfig(cfg *dto.QuizConfigRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if cfg.QuestionCount < 0 || cfg.QuestionCount > MaxQuestionCount {
		errors = append(errors, domain.NewOutOfRangeError("config.question_count", cfg.QuestionCount, 0, MaxQuestionCount))
	}
	for i, d := range cfg.DifficultyLevels {
		if _, err := domain.ParseDifficulty(d); err != nil {
			errors = append(errors, domain.NewInvalidFormatError(fmt.Sprintf("config.difficulty_levels[%d]", i), d))
		}
	}
	if cfg.StartingDifficulty != "" {
		if _, err := domain.ParseDifficulty(cfg.StartingDifficulty); err != nil {
			errors = append(errors, domain.NewInvalidFormatError("config.starting_difficulty", cfg.StartingDifficulty))
		}
	}
	for i, t := range cfg.Topics {
		if strings.TrimSpace(t) == "" {
			errors = append(errors, domain.NewMissingFieldError(fmt.Sprintf("config.topics[%d]", i)))
		}
	}
	return errors
}

// ValidateSubmitAnswerRequest validates the submit answer request
func (v *Validator) ValidateSubmitAnswerRequest(req *dto.SubmitAnswerRequest) domain.ValidationErrors {
	var errors domain.ValidationErrors

	if strings.TrimSpace(req.QuestionID) == "" {
		errors = append(errors, domain.NewMissingFieldError("question_id"))
	}
	if strings.TrimSpace(req.Answer) == "" {
		errors = append(errors, domain.NewMissingFieldError("answer"))
	} else if len(req.Answer) > maxAnswerLength {
		errors = append(errors, domain.NewOutOfRangeError("answer", len(req.Answer), 1, maxAnswerLength))
	}
	if req.TimeTaken < 0 || req.TimeTaken > maxTimeTaken {
		errors = append(errors, domain.NewOutOfRangeError("time_taken", req.TimeTaken, 0, maxTimeTaken))
	}
	return errors
}

// ValidateAddQuestionsRequest checks every question of the batch.
func (v *Validator) ValidateAddQuestionsRequest(req *dto.AddQuestionsRequest) domain.ValidationErrors {
	if len(req.Questions) == 0 || len(req.Questions) > maxBatchSize {
		return domain.ValidationErrors{domain.NewOutOfRangeError("questions", len(req.Questions), 1, maxBatchSize)}
	}

	var errors domain.ValidationErrors
	for i, q := range req.Questions {
		if err := q.ToDomain().Validate(); err != nil {
			var msg string
			if de, ok := err.(*domain.DomainError); ok {
				msg = de.Message
			} else {
				msg = err.Error()
			}
			errors = append(errors, domain.ValidationError{Field: fmt.Sprintf("questions[%d]", i), Message: msg})
		}
	}
	return errors
}

// ValidateSearchLimit validates the search limit
func (v *Validator) ValidateSearchLimit(limit int) domain.ValidationErrors {
	if limit < 0 || limit > MaxSearchLimit {
		return domain.ValidationErrors{domain.NewOutOfRangeError("limit", limit, 0, MaxSearchLimit)}
	}
	return nil
}
