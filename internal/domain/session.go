package domain

import "time"

// QuizConfig holds the learner-facing options of a quiz session.
type QuizConfig struct {
	Subject            string
	Topics             []string
	DifficultyLevels   []Difficulty
	QuestionCount      int
	StartingDifficulty Difficulty // empty: lowest difficulty among candidates
	RandomizeQuestions bool
	RandomizeOptions   bool
	AdaptiveDifficulty bool
	// PlanSequence pre-orders a non-adaptive quiz with the optimizer's staged plan.
	PlanSequence bool
	// Remediation re-serves a missed topic ahead of normal ordering.
	Remediation bool
}

// Validate validates the quiz configuration
func (c *QuizConfig) Validate() error {
	if c.QuestionCount < 0 {
		return NewValidationError("question count must not be negative")
	}
	for _, d := range c.DifficultyLevels {
		if !d.Valid() {
			return NewValidationError("unrecognized difficulty: " + string(d))
		}
	}
	if c.StartingDifficulty != "" && !c.StartingDifficulty.Valid() {
		return NewValidationError("unrecognized starting difficulty: " + string(c.StartingDifficulty))
	}
	return nil
}

// PerformanceRecord is appended once per answered question and never changed.
type PerformanceRecord struct {
	QuestionID string
	Topic      string
	Correct    bool
	TimeTaken  float64 // seconds
	Difficulty Difficulty
	Score      float64 // derived performance score in [0,1]
	AnsweredAt time.Time
}

// SessionInfo is returned when a session is created.
type SessionInfo struct {
	SessionID          string
	Title              string
	StartingDifficulty Difficulty
	TotalQuestions     int
	Adaptive           bool
}

// NextQuestionResult carries either the served question or the completion signal.
type NextQuestionResult struct {
	Question   *Question
	Complete   bool
	Remaining  int
	Difficulty Difficulty // session difficulty the question was chosen for
}

// AnswerFeedback is returned for each submitted answer.
type AnswerFeedback struct {
	Correct           bool
	CorrectAnswer     string
	Explanation       string
	TimeTaken         float64
	Score             float64
	CurrentDifficulty Difficulty
	Remaining         int
}

// Tally counts correct answers out of a total.
type Tally struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// ProgressionAnalysis describes how difficulty evolved over a session.
type ProgressionAnalysis struct {
	AverageScore      float64 `json:"average_score"`
	ScoreVariance     float64 `json:"score_variance"`
	DifficultyChanges int     `json:"difficulty_changes"`
	Smoothness        float64 `json:"smoothness"`
}

// Recommendation is the suggested difficulty for a learner's next quiz.
type Recommendation struct {
	Difficulty Difficulty `json:"recommended_difficulty"`
	Confidence float64    `json:"confidence"`
	Reasoning  string     `json:"reasoning"`
	// PerformanceByDifficulty is the mean score per level over the recent window.
	PerformanceByDifficulty map[Difficulty]float64 `json:"performance_by_difficulty,omitempty"`
}

// QueueStatus is a snapshot of a session's pending questions.
type QueueStatus struct {
	Pending          int                `json:"pending"`
	TotalAdded       int                `json:"total_added"`
	TotalServed      int                `json:"total_served"`
	Distribution     map[Difficulty]int `json:"distribution"`
	NextDifficulties []Difficulty       `json:"next_difficulties"`
}

// StatsSummary aggregates a session's PerformanceRecords.
type StatsSummary struct {
	SessionID              string               `json:"session_id"`
	TotalQuestions         int                  `json:"total_questions"`
	CorrectAnswers         int                  `json:"correct_answers"`
	IncorrectAnswers       int                  `json:"incorrect_answers"`
	Accuracy               float64              `json:"accuracy"`
	AverageTimePerQuestion float64              `json:"average_time_per_question"`
	DifficultyBreakdown    map[Difficulty]Tally `json:"difficulty_breakdown"`
	TopicPerformance       map[string]float64   `json:"topic_performance"`
	PerformanceTrend       []float64            `json:"performance_trend"`
	Progression            ProgressionAnalysis  `json:"progression"`
	Recommendation         Recommendation       `json:"recommendation"`
	QueueStatus            *QueueStatus         `json:"queue_status,omitempty"` // live sessions only
	CurrentDifficulty      Difficulty           `json:"current_difficulty"`
	Remaining              int                  `json:"remaining"`
	Complete               bool                 `json:"complete"`
	Ended                  bool                 `json:"ended"`
}

// IndexStatistics is a read-only snapshot of the question catalog.
type IndexStatistics struct {
	TotalQuestions int                     `json:"total_questions"`
	ByDifficulty   map[Difficulty]int      `json:"by_difficulty"`
	ByType         map[QuestionType]int    `json:"by_type"`
	Subjects       map[string]SubjectStats `json:"subjects"`
}

type SubjectStats struct {
	Total  int                   `json:"total"`
	Topics map[string]TopicStats `json:"topics"`
}

type TopicStats struct {
	Total        int                `json:"total"`
	ByDifficulty map[Difficulty]int `json:"by_difficulty"`
}
