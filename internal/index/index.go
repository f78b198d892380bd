// Package index holds the shared question catalog, organised as
// subject -> topic -> difficulty buckets.
//
// The tree is stored flat: questions live in an append-only arena and each
// (subject, topic, difficulty) path maps to the arena positions of its
// bucket. Readers take a snapshot of the slice headers under a read lock and
// iterate without holding it; the arena and buckets only ever grow, so the
// elements visible through a snapshot never change.
package index

import (
	"fmt"
	"iter"
	"sync"

	"adaptive-quiz/internal/domain"
)

// Path identifies one difficulty bucket.
type Path struct {
	Subject    string
	Topic      string
	Difficulty domain.Difficulty
}

// Filter selects questions. Empty fields match everything; several topics or
// difficulties match any of them.
type Filter struct {
	Subject      string
	Topics       []string
	Difficulties []domain.Difficulty
}

// ByPath builds a filter from optional subject, topic and difficulty values.
func ByPath(subject, topic string, difficulty domain.Difficulty) Filter {
	f := Filter{Subject: subject}
	if topic != "" {
		f.Topics = []string{topic}
	}
	if difficulty != "" {
		f.Difficulties = []domain.Difficulty{difficulty}
	}
	return f
}

// QuestionIndex is safe for concurrent readers. Inserts are serialized by a
// single writer lock.
type QuestionIndex struct {
	mu      sync.RWMutex
	arena   []*domain.Question
	byID    map[string]int
	buckets map[Path][]int

	// subject and topic insertion order, for stable traversal
	subjects []string
	topics   map[string][]string
	topicSet map[[2]string]struct{}
}

// New returns an empty index.
func New() *QuestionIndex {
	return &QuestionIndex{
		byID:     make(map[string]int),
		buckets:  make(map[Path][]int),
		topics:   make(map[string][]string),
		topicSet: make(map[[2]string]struct{}),
	}
}

// Insert validates q and appends it to the bucket at its path, creating the
// subject, topic and bucket on first use.
func (x *QuestionIndex) Insert(q *domain.Question) error {
	if err := q.Validate(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, exists := x.byID[q.ID]; exists {
		return domain.NewValidationError(fmt.Sprintf("duplicate question id: %s", q.ID))
	}
	x.insertLocked(q)
	return nil
}

// CheckBatch reports whether InsertBatch would accept questions, without
// changing the index.
func (x *QuestionIndex) CheckBatch(questions []*domain.Question) error {
	if err := validateBatch(questions); err != nil {
		return err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.checkExistingLocked(questions)
}

// InsertBatch commits all questions or none of them.
func (x *QuestionIndex) InsertBatch(questions []*domain.Question) error {
	if err := validateBatch(questions); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkExistingLocked(questions); err != nil {
		return err
	}
	for _, q := range questions {
		x.insertLocked(q)
	}
	return nil
}

func validateBatch(questions []*domain.Question) error {
	seen := make(map[string]struct{}, len(questions))
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return domain.NewError(domain.CodeValidation, fmt.Sprintf("question %d rejected", i), err)
		}
		if _, dup := seen[q.ID]; dup {
			return domain.NewValidationError(fmt.Sprintf("duplicate question id in batch: %s", q.ID))
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

func (x *QuestionIndex) checkExistingLocked(questions []*domain.Question) error {
	for _, q := range questions {
		if _, exists := x.byID[q.ID]; exists {
			return domain.NewValidationError(fmt.Sprintf("duplicate question id: %s", q.ID))
		}
	}
	return nil
}

func (x *QuestionIndex) insertLocked(q *domain.Question) {
	path := Path{Subject: q.Subject, Topic: q.Topic, Difficulty: q.Difficulty}
	if _, ok := x.topics[q.Subject]; !ok {
		x.subjects = append(x.subjects, q.Subject)
		x.topics[q.Subject] = nil
	}
	if _, ok := x.topicSet[[2]string{q.Subject, q.Topic}]; !ok {
		x.topicSet[[2]string{q.Subject, q.Topic}] = struct{}{}
		x.topics[q.Subject] = append(x.topics[q.Subject], q.Topic)
	}

	pos := len(x.arena)
	x.arena = append(x.arena, q)
	x.byID[q.ID] = pos
	x.buckets[path] = append(x.buckets[path], pos)
}

// Get returns the question with the given id.
func (x *QuestionIndex) Get(id string) (*domain.Question, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	pos, ok := x.byID[id]
	if !ok {
		return nil, false
	}
	return x.arena[pos], true
}

// Len returns the number of indexed questions.
func (x *QuestionIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.arena)
}

// Query returns the questions matching f in insertion order. The sequence is
// lazy and can be ranged over more than once; each pass sees the index as it
// is when the pass starts. A filter that matches nothing yields nothing.
func (x *QuestionIndex) Query(f Filter) iter.Seq[*domain.Question] {
	return func(yield func(*domain.Question) bool) {
		arena, lists := x.snapshot(f)
		if len(lists) == 0 {
			return
		}
		// k-way merge: every bucket is ascending in arena position, so the
		// smallest head across buckets is the next question in insertion order.
		heads := make([]int, len(lists))
		for {
			best := -1
			for i, l := range lists {
				if heads[i] >= len(l) {
					continue
				}
				if best < 0 || l[heads[i]] < lists[best][heads[best]] {
					best = i
				}
			}
			if best < 0 {
				return
			}
			pos := lists[best][heads[best]]
			heads[best]++
			if !yield(arena[pos]) {
				return
			}
		}
	}
}

func (x *QuestionIndex) snapshot(f Filter) ([]*domain.Question, [][]int) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var subjects []string
	if f.Subject != "" {
		if _, ok := x.topics[f.Subject]; !ok {
			return nil, nil
		}
		subjects = []string{f.Subject}
	} else {
		subjects = x.subjects
	}

	difficulties := domain.Difficulties
	if len(f.Difficulties) > 0 {
		difficulties = distinct(f.Difficulties)
	}
	filterTopics := distinct(f.Topics)

	var lists [][]int
	for _, s := range subjects {
		topics := x.topics[s]
		if len(filterTopics) > 0 {
			topics = filterTopics
		}
		for _, t := range topics {
			for _, d := range difficulties {
				if b := x.buckets[Path{Subject: s, Topic: t, Difficulty: d}]; len(b) > 0 {
					lists = append(lists, b)
				}
			}
		}
	}
	return x.arena, lists
}

func distinct[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Collect materializes up to limit questions from seq; limit <= 0 means all.
func Collect(seq iter.Seq[*domain.Question], limit int) []*domain.Question {
	var out []*domain.Question
	for q := range seq {
		out = append(out, q)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Statistics returns question counts per subject, topic and difficulty.
func (x *QuestionIndex) Statistics() domain.IndexStatistics {
	x.mu.RLock()
	defer x.mu.RUnlock()

	stats := domain.IndexStatistics{
		TotalQuestions: len(x.arena),
		ByDifficulty:   make(map[domain.Difficulty]int),
		ByType:         make(map[domain.QuestionType]int),
		Subjects:       make(map[string]domain.SubjectStats, len(x.subjects)),
	}
	for _, q := range x.arena {
		stats.ByType[q.Type]++
	}
	for _, s := range x.subjects {
		subject := domain.SubjectStats{Topics: make(map[string]domain.TopicStats)}
		for _, t := range x.topics[s] {
			topic := domain.TopicStats{ByDifficulty: make(map[domain.Difficulty]int)}
			for _, d := range domain.Difficulties {
				n := len(x.buckets[Path{Subject: s, Topic: t, Difficulty: d}])
				if n == 0 {
					continue
				}
				topic.ByDifficulty[d] = n
				topic.Total += n
				stats.ByDifficulty[d] += n
			}
			subject.Topics[t] = topic
			subject.Total += topic.Total
		}
		stats.Subjects[s] = subject
	}
	return stats
}
