package dto

import (
	"adaptive-quiz/internal/domain"
)

// QuizConfigRequest is the learner-facing quiz configuration.
type QuizConfigRequest struct {
	Subject            string   `json:"subject"`
	Topics             []string `json:"topics"`
	DifficultyLevels   []string `json:"difficulty_levels"`
	QuestionCount      int      `json:"question_count"`
	StartingDifficulty string   `json:"starting_difficulty"`
	RandomizeQuestions bool     `json:"randomize_questions"`
	RandomizeOptions   bool     `json:"randomize_options"`
	AdaptiveDifficulty bool     `json:"adaptive_difficulty"`
	PlanSequence       bool     `json:"plan_sequence"`
	Remediation        bool     `json:"remediation"`
}

// ToDomain converts the request. Difficulty names must already be validated.
func (r QuizConfigRequest) ToDomain() domain.QuizConfig {
	cfg := domain.QuizConfig{
		Subject:            r.Subject,
		Topics:             r.Topics,
		QuestionCount:      r.QuestionCount,
		RandomizeQuestions: r.RandomizeQuestions,
		RandomizeOptions:   r.RandomizeOptions,
		AdaptiveDifficulty: r.AdaptiveDifficulty,
		PlanSequence:       r.PlanSequence,
		Remediation:        r.Remediation,
	}
	for _, s := range r.DifficultyLevels {
		if d, err := domain.ParseDifficulty(s); err == nil {
			cfg.DifficultyLevels = append(cfg.DifficultyLevels, d)
		}
	}
	if r.StartingDifficulty != "" {
		if d, err := domain.ParseDifficulty(r.StartingDifficulty); err == nil {
			cfg.StartingDifficulty = d
		}
	}
	return cfg
}

// CreateQuizRequest represents the request body of POST /quizzes
type CreateQuizRequest struct {
	Title      string            `json:"title"`
	SourceText string            `json:"source_text"`
	Config     QuizConfigRequest `json:"config"`
}

// SessionResponse is returned when a quiz session is created.
type SessionResponse struct {
	SessionID          string `json:"session_id"`
	Title              string `json:"title"`
	StartingDifficulty string `json:"starting_difficulty"`
	TotalQuestions     int    `json:"total_questions"`
	Adaptive           bool   `json:"adaptive"`
}

func NewSessionResponse(info *domain.SessionInfo) SessionResponse {
	return SessionResponse{
		SessionID:          info.SessionID,
		Title:              info.Title,
		StartingDifficulty: string(info.StartingDifficulty),
		TotalQuestions:     info.TotalQuestions,
		Adaptive:           info.Adaptive,
	}
}

// QuestionResponse presents a question without its answer.
type QuestionResponse struct {
	ID         string   `json:"id"`
	Subject    string   `json:"subject"`
	Topic      string   `json:"topic"`
	Difficulty string   `json:"difficulty"`
	Type       string   `json:"type"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options,omitempty"`
}

func NewQuestionResponse(q *domain.Question) QuestionResponse {
	return QuestionResponse{
		ID:         q.ID,
		Subject:    q.Subject,
		Topic:      q.Topic,
		Difficulty: string(q.Difficulty),
		Type:       string(q.Type),
		Prompt:     q.Prompt,
		Options:    q.Options,
	}
}

// NextQuestionResponse carries either a question or the completion flag.
type NextQuestionResponse struct {
	Complete   bool              `json:"complete"`
	Question   *QuestionResponse `json:"question,omitempty"`
	Remaining  int               `json:"remaining"`
	Difficulty string            `json:"difficulty"`
}

func NewNextQuestionResponse(res *domain.NextQuestionResult) NextQuestionResponse {
	out := NextQuestionResponse{
		Complete:   res.Complete,
		Remaining:  res.Remaining,
		Difficulty: string(res.Difficulty),
	}
	if res.Question != nil {
		q := NewQuestionResponse(res.Question)
		out.Question = &q
	}
	return out
}

// SubmitAnswerRequest represents the request body of POST /quizzes/:id/answers
type SubmitAnswerRequest struct {
	QuestionID string  `json:"question_id"`
	Answer     string  `json:"answer"`
	TimeTaken  float64 `json:"time_taken"`
}

// AnswerFeedbackResponse is returned for each submitted answer.
type AnswerFeedbackResponse struct {
	Correct           bool    `json:"correct"`
	CorrectAnswer     string  `json:"correct_answer"`
	Explanation       string  `json:"explanation,omitempty"`
	TimeTaken         float64 `json:"time_taken"`
	Score             float64 `json:"score"`
	CurrentDifficulty string  `json:"current_difficulty"`
	Remaining         int     `json:"remaining"`
}

func NewAnswerFeedbackResponse(fb *domain.AnswerFeedback) AnswerFeedbackResponse {
	return AnswerFeedbackResponse{
		Correct:           fb.Correct,
		CorrectAnswer:     fb.CorrectAnswer,
		Explanation:       fb.Explanation,
		TimeTaken:         fb.TimeTaken,
		Score:             fb.Score,
		CurrentDifficulty: string(fb.CurrentDifficulty),
		Remaining:         fb.Remaining,
	}
}

// QuestionRequest is one question of POST /questions
type QuestionRequest struct {
	Subject       string   `json:"subject"`
	Topic         string   `json:"topic"`
	Difficulty    string   `json:"difficulty"`
	Type          string   `json:"type"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// ToDomain builds a new question with a fresh id. The result still has to
// pass Question.Validate.
func (r QuestionRequest) ToDomain() *domain.Question {
	d, err := domain.ParseDifficulty(r.Difficulty)
	if err != nil {
		d = domain.Difficulty(r.Difficulty)
	}
	return domain.NewQuestion(r.Subject, r.Topic, d, domain.QuestionType(r.Type),
		r.Prompt, r.Options, r.CorrectAnswer, r.Explanation)
}

// AddQuestionsRequest represents the request body of POST /questions
type AddQuestionsRequest struct {
	Questions []QuestionRequest `json:"questions"`
}

// AddQuestionsResponse lists the ids assigned to the added questions.
type AddQuestionsResponse struct {
	Added int      `json:"added"`
	IDs   []string `json:"ids"`
}

// SearchQuestionsResponse is returned by GET /questions/search
type SearchQuestionsResponse struct {
	Count     int                `json:"count"`
	Questions []QuestionResponse `json:"questions"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Questions int               `json:"questions"`
	Checks    map[string]string `json:"checks,omitempty"`
}
