// Package queue implements the per-session ordering of pending questions.
package queue

import (
	"fmt"
	"math/rand/v2"

	"adaptive-quiz/internal/domain"
)

// Item is a pending question as the queue sees it.
type Item struct {
	ID         string
	Difficulty domain.Difficulty
}

// Status is a snapshot of queue counters.
type Status = domain.QueueStatus

const statusPreview = 5

// SessionQueue is owned by exactly one session and is not safe for
// concurrent use; the owning session's lock serializes access.
//
// Pending items live in items[head:]. Popping advances head, so Next is
// O(1); the consumed prefix is reclaimed once it dominates the slice.
type SessionQueue struct {
	items   []Item
	head    int
	pending map[string]struct{}
	rng     *rand.Rand

	totalAdded  int
	totalServed int
}

// Option configures a SessionQueue.
type Option func(*SessionQueue)

// WithRand makes shuffling deterministic.
func WithRand(r *rand.Rand) Option {
	return func(q *SessionQueue) {
		q.rng = r
	}
}

// New returns an empty queue.
func New(opts ...Option) *SessionQueue {
	q := &SessionQueue{pending: make(map[string]struct{})}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Seed replaces the pending sequence with items. With randomize set the
// order is a uniform Fisher-Yates permutation; otherwise it is kept as given.
func (q *SessionQueue) Seed(items []Item, randomize bool) error {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" {
			return domain.NewValidationError("queue item id is required")
		}
		if !it.Difficulty.Valid() {
			return domain.NewValidationError(fmt.Sprintf("queue item %s has unrecognized difficulty %q", it.ID, it.Difficulty))
		}
		if _, dup := seen[it.ID]; dup {
			return domain.NewValidationError(fmt.Sprintf("duplicate queue item: %s", it.ID))
		}
		seen[it.ID] = struct{}{}
	}

	seeded := make([]Item, len(items))
	copy(seeded, items)
	if randomize {
		for i := len(seeded) - 1; i > 0; i-- {
			j := q.intN(i + 1)
			seeded[i], seeded[j] = seeded[j], seeded[i]
		}
	}

	q.items = seeded
	q.head = 0
	q.pending = seen
	q.totalAdded += len(seeded)
	return nil
}

func (q *SessionQueue) intN(n int) int {
	if q.rng != nil {
		return q.rng.IntN(n)
	}
	return rand.IntN(n)
}

// Next removes and returns the front item. An empty queue returns an
// EMPTY_QUEUE error, which callers treat as completion.
func (q *SessionQueue) Next() (Item, error) {
	if q.Remaining() == 0 {
		return Item{}, domain.NewError(domain.CodeEmptyQueue, "no pending questions", nil)
	}
	it := q.items[q.head]
	q.items[q.head] = Item{}
	q.head++
	delete(q.pending, it.ID)
	q.totalServed++
	q.compact()
	return it, nil
}

func (q *SessionQueue) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}
	if q.head > 32 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		q.items = q.items[:n]
		q.head = 0
	}
}

// Reorder moves the pending item closest in difficulty to target to the
// front. Ties go to the earliest item; the rest keep their relative order.
func (q *SessionQueue) Reorder(target domain.Difficulty) error {
	want := target.Level()
	if want < 0 {
		return domain.NewValidationError(fmt.Sprintf("unrecognized difficulty: %q", target))
	}
	if q.Remaining() < 2 {
		return nil
	}

	best, bestDist := q.head, -1
	for i := q.head; i < len(q.items); i++ {
		d := abs(q.items[i].Difficulty.Level() - want)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	q.moveToFront(best)
	return nil
}

func (q *SessionQueue) moveToFront(i int) {
	if i == q.head {
		return
	}
	it := q.items[i]
	copy(q.items[q.head+1:i+1], q.items[q.head:i])
	q.items[q.head] = it
}

// InsertPriority puts item at the front. An item that is already pending
// is moved there instead of being added twice.
func (q *SessionQueue) InsertPriority(item Item) error {
	if item.ID == "" {
		return domain.NewValidationError("queue item id is required")
	}
	if !item.Difficulty.Valid() {
		return domain.NewValidationError(fmt.Sprintf("unrecognized difficulty: %q", item.Difficulty))
	}
	if _, ok := q.pending[item.ID]; ok {
		for i := q.head; i < len(q.items); i++ {
			if q.items[i].ID == item.ID {
				q.moveToFront(i)
				return nil
			}
		}
	}

	if q.head > 0 {
		q.head--
		q.items[q.head] = item
	} else {
		q.items = append(q.items, Item{})
		copy(q.items[1:], q.items)
		q.items[0] = item
	}
	q.pending[item.ID] = struct{}{}
	q.totalAdded++
	return nil
}

// Front returns the next item without removing it.
func (q *SessionQueue) Front() (Item, bool) {
	if q.Remaining() == 0 {
		return Item{}, false
	}
	return q.items[q.head], true
}

// Peek returns up to n upcoming items without removing them.
func (q *SessionQueue) Peek(n int) []Item {
	if n <= 0 {
		return nil
	}
	n = min(n, q.Remaining())
	out := make([]Item, n)
	copy(out, q.items[q.head:q.head+n])
	return out
}

// Contains reports whether id is pending.
func (q *SessionQueue) Contains(id string) bool {
	_, ok := q.pending[id]
	return ok
}

// Remaining returns the number of pending items.
func (q *SessionQueue) Remaining() int {
	return len(q.items) - q.head
}

// Status reports counters and the pending difficulty distribution.
func (q *SessionQueue) Status() Status {
	s := Status{
		Pending:      q.Remaining(),
		TotalAdded:   q.totalAdded,
		TotalServed:  q.totalServed,
		Distribution: make(map[domain.Difficulty]int, len(domain.Difficulties)),
	}
	for _, it := range q.items[q.head:] {
		s.Distribution[it.Difficulty]++
	}
	for _, it := range q.Peek(statusPreview) {
		s.NextDifficulties = append(s.NextDifficulties, it.Difficulty)
	}
	return s
}

// Clear drops every pending item and resets the counters.
func (q *SessionQueue) Clear() {
	q.items = nil
	q.head = 0
	q.pending = make(map[string]struct{})
	q.totalAdded = 0
	q.totalServed = 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
