package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/queue"
)

// servedSlot holds the question currently in front of the learner. It stays
// in place after being answered so a repeated submission can be rejected.
type servedSlot struct {
	question *domain.Question // as served, with options in served order
	servedAt time.Time
	answered bool
}

type sessionState struct {
	mu sync.Mutex

	id        string
	title     string
	config    domain.QuizConfig
	createdAt time.Time
	rng       *rand.Rand

	queue     *queue.SessionQueue
	questions map[string]*domain.Question
	order     []string // question ids in seed order
	total     int

	records []domain.PerformanceRecord
	current domain.Difficulty
	served  *servedSlot

	// remediation bookkeeping
	remediated map[string]bool
	overrideID string // remediation pick that the next serve must not reorder away

	complete   bool
	ended      bool
	finishedAt time.Time
}

func (s *sessionState) awaitingAnswer() bool {
	return s.served != nil && !s.served.answered
}

func (s *sessionState) remaining() int {
	if s.queue == nil {
		return 0
	}
	return s.queue.Remaining()
}

func (s *sessionState) finished() bool {
	return s.complete || s.ended
}

// release drops the queue once the session can no longer serve questions.
func (s *sessionState) release(now time.Time) {
	if s.queue != nil {
		s.queue.Clear()
		s.queue = nil
	}
	if s.finishedAt.IsZero() {
		s.finishedAt = now
	}
}

func (s *sessionState) scores() []float64 {
	out := make([]float64, len(s.records))
	for i, r := range s.records {
		out[i] = r.Score
	}
	return out
}

// servedCopy returns q as this session presents it. Shuffled options live
// on a copy; the shared catalog question is never modified.
func (s *sessionState) servedCopy(q *domain.Question) *domain.Question {
	if !s.config.RandomizeOptions || q.Type != domain.MultipleChoice || len(q.Options) < 2 {
		return q
	}
	cp := *q
	cp.Options = append([]string(nil), q.Options...)
	s.rng.Shuffle(len(cp.Options), func(i, j int) {
		cp.Options[i], cp.Options[j] = cp.Options[j], cp.Options[i]
	})
	return &cp
}
