package queue_test

import (
	"math/rand/v2"
	"slices"
	"testing"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(spec ...string) []queue.Item {
	// pairs of id, difficulty
	out := make([]queue.Item, 0, len(spec)/2)
	for i := 0; i+1 < len(spec); i += 2 {
		out = append(out, queue.Item{ID: spec[i], Difficulty: domain.Difficulty(spec[i+1])})
	}
	return out
}

func drain(t *testing.T, q *queue.SessionQueue) []string {
	t.Helper()
	var out []string
	for q.Remaining() > 0 {
		it, err := q.Next()
		require.NoError(t, err)
		out = append(out, it.ID)
	}
	return out
}

func TestSeed_PreservesOrder(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Seed(items("a", "beginner", "b", "expert", "c", "advanced"), false))

	assert.Equal(t, 3, q.Remaining())
	assert.Equal(t, []string{"a", "b", "c"}, drain(t, q))
}

func TestSeed_ShuffleIsPermutation(t *testing.T) {
	in := items("a", "beginner", "b", "beginner", "c", "intermediate", "d", "advanced", "e", "expert", "f", "expert")
	q := queue.New(queue.WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, q.Seed(in, true))

	got := drain(t, q)
	want := []string{"a", "b", "c", "d", "e", "f"}
	assert.ElementsMatch(t, want, got)

	// same seed, same order
	q2 := queue.New(queue.WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, q2.Seed(in, true))
	assert.Equal(t, got, drain(t, q2))

	// the caller's slice is left alone
	assert.Equal(t, "a", in[0].ID)
}

func TestSeed_ShuffleCoversAllPositions(t *testing.T) {
	in := items("a", "beginner", "b", "beginner", "c", "beginner")
	r := rand.New(rand.NewPCG(7, 7))
	firsts := map[string]int{}
	for i := 0; i < 300; i++ {
		q := queue.New(queue.WithRand(r))
		require.NoError(t, q.Seed(in, true))
		it, err := q.Next()
		require.NoError(t, err)
		firsts[it.ID]++
	}
	assert.Len(t, firsts, 3)
	for id, n := range firsts {
		assert.Greater(t, n, 50, id)
	}
}

func TestSeed_Rejects(t *testing.T) {
	q := queue.New()

	err := q.Seed(items("a", "beginner", "a", "expert"), false)
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = q.Seed(items("a", "impossible"), false)
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = q.Seed([]queue.Item{{Difficulty: domain.Beginner}}, false)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, q.Remaining())
}

func TestNext_EmptyQueue(t *testing.T) {
	q := queue.New()
	_, err := q.Next()
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)

	require.NoError(t, q.Seed(items("a", "beginner"), false))
	_, err = q.Next()
	require.NoError(t, err)
	_, err = q.Next()
	assert.ErrorIs(t, err, domain.ErrEmptyQueue)
}

func TestReorder(t *testing.T) {
	tests := []struct {
		name   string
		seed   []queue.Item
		target domain.Difficulty
		want   []string
	}{
		{
			name:   "exact match promoted, others keep order",
			seed:   items("a", "beginner", "b", "intermediate", "c", "advanced", "d", "advanced"),
			target: domain.Advanced,
			want:   []string{"c", "a", "b", "d"},
		},
		{
			name:   "closest distance wins",
			seed:   items("a", "beginner", "b", "expert", "c", "intermediate"),
			target: domain.Advanced,
			want:   []string{"b", "a", "c"},
		},
		{
			name:   "exact match beats earlier near misses",
			seed:   items("a", "beginner", "b", "advanced", "c", "intermediate"),
			target: domain.Intermediate,
			want:   []string{"c", "a", "b"},
		},
		{
			name:   "equal distance either side picks earliest",
			seed:   items("a", "expert", "b", "advanced", "c", "beginner"),
			target: domain.Intermediate,
			want:   []string{"b", "a", "c"},
		},
		{
			name:   "front already best",
			seed:   items("a", "expert", "b", "beginner"),
			target: domain.Expert,
			want:   []string{"a", "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := queue.New()
			require.NoError(t, q.Seed(tt.seed, false))
			require.NoError(t, q.Reorder(tt.target))
			assert.Equal(t, tt.want, drain(t, q))
		})
	}
}

func TestReorder_AfterPartialDrain(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Seed(items("a", "beginner", "b", "beginner", "c", "expert", "d", "beginner"), false))
	_, err := q.Next()
	require.NoError(t, err)

	require.NoError(t, q.Reorder(domain.Expert))
	assert.Equal(t, []string{"c", "b", "d"}, drain(t, q))
	assert.ErrorIs(t, q.Reorder("nope"), domain.ErrValidation)
}

func TestInsertPriority(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Seed(items("a", "beginner", "b", "intermediate"), false))

	require.NoError(t, q.InsertPriority(queue.Item{ID: "r", Difficulty: domain.Beginner}))
	front, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, "r", front.ID)

	// moving a pending id keeps ids unique
	require.NoError(t, q.InsertPriority(queue.Item{ID: "b", Difficulty: domain.Intermediate}))
	assert.Equal(t, 3, q.Remaining())

	_, err := q.Next()
	require.NoError(t, err)
	// reuse the slot freed at the head
	require.NoError(t, q.InsertPriority(queue.Item{ID: "x", Difficulty: domain.Expert}))
	assert.Equal(t, []string{"x", "r", "a"}, drain(t, q))
	assert.False(t, q.Contains("x"))
}

func TestPeekStatusClear(t *testing.T) {
	q := queue.New()
	require.NoError(t, q.Seed(items(
		"a", "beginner", "b", "beginner", "c", "intermediate",
		"d", "advanced", "e", "expert", "f", "expert", "g", "expert",
	), false))
	_, err := q.Next()
	require.NoError(t, err)

	peek := q.Peek(2)
	assert.Equal(t, []string{"b", "c"}, []string{peek[0].ID, peek[1].ID})
	assert.Len(t, q.Peek(100), 6)
	assert.Nil(t, q.Peek(0))

	st := q.Status()
	assert.Equal(t, 6, st.Pending)
	assert.Equal(t, 7, st.TotalAdded)
	assert.Equal(t, 1, st.TotalServed)
	assert.Equal(t, 3, st.Distribution[domain.Expert])
	assert.Equal(t, 1, st.Distribution[domain.Beginner])
	assert.Equal(t, []domain.Difficulty{domain.Beginner, domain.Intermediate, domain.Advanced, domain.Expert, domain.Expert}, st.NextDifficulties)

	q.Clear()
	assert.Equal(t, 0, q.Remaining())
	assert.Equal(t, queue.Status{Distribution: map[domain.Difficulty]int{}}, q.Status())
}

func TestLongRunCompaction(t *testing.T) {
	q := queue.New()
	var in []queue.Item
	var want []string
	for i := 0; i < 200; i++ {
		id := string(rune('A'+i%26)) + string(rune('0'+i/26))
		in = append(in, queue.Item{ID: id, Difficulty: domain.Difficulties[i%4]})
		want = append(want, id)
	}
	require.NoError(t, q.Seed(in, false))

	var got []string
	for i := 0; i < 150; i++ {
		it, err := q.Next()
		require.NoError(t, err)
		got = append(got, it.ID)
	}
	got = append(got, drain(t, q)...)
	assert.True(t, slices.Equal(want, got))
}
