package optimizer_test

import (
	"math"
	"sync"
	"testing"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/optimizer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOptimizer(t *testing.T, memo optimizer.Memo) *optimizer.Optimizer {
	t.Helper()
	o, err := optimizer.New(optimizer.DefaultPolicy(), memo)
	require.NoError(t, err)
	return o
}

func TestNextDifficulty_AtMostOneStep(t *testing.T) {
	o := newOptimizer(t, optimizer.NewLRUMemo(128))
	buckets := optimizer.DefaultPolicy().Buckets

	for _, current := range domain.Difficulties {
		for b := 0; b <= buckets; b++ {
			for _, perf := range []float64{float64(b) / float64(buckets), math.Min(1, float64(b)/float64(buckets)+0.013)} {
				next, err := o.NextDifficulty(current, perf)
				require.NoError(t, err)
				step := next.Level() - current.Level()
				assert.LessOrEqual(t, step, 1, "current=%s perf=%v", current, perf)
				assert.GreaterOrEqual(t, step, -1, "current=%s perf=%v", current, perf)
			}
		}
	}
}

func TestNextDifficulty_Direction(t *testing.T) {
	o := newOptimizer(t, nil)

	tests := []struct {
		name    string
		current domain.Difficulty
		perf    float64
		want    domain.Difficulty
	}{
		{"strong performance climbs", domain.Beginner, 1.0, domain.Intermediate},
		{"strong performance climbs from advanced", domain.Advanced, 0.95, domain.Expert},
		{"weak performance drops", domain.Expert, 0.1, domain.Advanced},
		{"matching performance stays", domain.Intermediate, 1.0 / 3, domain.Intermediate},
		{"floor holds", domain.Beginner, 0, domain.Beginner},
		{"ceiling holds", domain.Expert, 1, domain.Expert},
		// halfway between two levels: climbing carries a cost, staying does not
		{"halfway stays put", domain.Intermediate, 0.5, domain.Intermediate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := o.NextDifficulty(tt.current, tt.perf)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextDifficulty_Errors(t *testing.T) {
	o := newOptimizer(t, nil)

	for _, perf := range []float64{-0.01, 1.01, math.NaN(), math.Inf(1)} {
		_, err := o.NextDifficulty(domain.Beginner, perf)
		assert.ErrorIs(t, err, domain.ErrOptimizerBounds, "perf=%v", perf)
	}
	_, err := o.NextDifficulty("legendary", 0.5)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNextDifficulty_MemoizesPerBucket(t *testing.T) {
	memo := optimizer.NewLRUMemo(16)
	o := newOptimizer(t, memo)

	first, err := o.NextDifficulty(domain.Intermediate, 0.80)
	require.NoError(t, err)
	// same bucket (0.80 and 0.81 both round to 16 of 20)
	second, err := o.NextDifficulty(domain.Intermediate, 0.81)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats := memo.Stats()
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, 1, stats.Size)
}

func TestNextDifficulty_SharedMemoIsConsistent(t *testing.T) {
	memo := optimizer.NewLRUMemo(4)
	shared := newOptimizer(t, memo)
	fresh := newOptimizer(t, nil)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				current := domain.Difficulties[(i+w)%4]
				perf := float64((i*7+w)%101) / 100
				got, err := shared.NextDifficulty(current, perf)
				assert.NoError(t, err)
				want, _ := fresh.NextDifficulty(current, perf)
				assert.Equal(t, want, got)
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, memo.Stats().Size, 4)
	assert.Positive(t, memo.Stats().Evictions)
}

func TestOptimizeSequence(t *testing.T) {
	o := newOptimizer(t, nil)

	for _, n := range []int{1, 2, 5, 12} {
		for _, start := range domain.Difficulties {
			plan, err := o.OptimizeSequence(n, start)
			require.NoError(t, err)
			require.Len(t, plan, n)
			assert.Equal(t, start, plan[0])
			for i := 1; i < len(plan); i++ {
				require.True(t, plan[i].Valid())
				step := plan[i].Level() - plan[i-1].Level()
				assert.True(t, step >= -1 && step <= 1, "plan %v", plan)
			}
		}
	}

	plan, err := o.OptimizeSequence(5, domain.Beginner)
	require.NoError(t, err)
	assert.Equal(t, []domain.Difficulty{domain.Beginner, domain.Intermediate, domain.Advanced, domain.Advanced, domain.Advanced}, plan)

	again, err := o.OptimizeSequence(5, domain.Beginner)
	require.NoError(t, err)
	assert.Equal(t, plan, again)
}

func TestOptimizeSequence_Edges(t *testing.T) {
	o := newOptimizer(t, nil)

	plan, err := o.OptimizeSequence(0, domain.Expert)
	require.NoError(t, err)
	assert.Empty(t, plan)

	_, err = o.OptimizeSequence(-1, domain.Expert)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = o.OptimizeSequence(3, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestScoreAndRecentPerformance(t *testing.T) {
	o := newOptimizer(t, nil)

	assert.InDelta(t, 1.0, o.Score(true, 0), 1e-9)
	assert.InDelta(t, 0.7, o.Score(true, 60), 1e-9)
	assert.InDelta(t, 0.7, o.Score(true, 600), 1e-9)
	assert.InDelta(t, 0.15, o.Score(false, 30), 1e-9)
	assert.InDelta(t, 0.3, o.Score(false, -5), 1e-9)

	_, ok := o.RecentPerformance(nil)
	assert.False(t, ok)
	perf, ok := o.RecentPerformance([]float64{0, 0, 1, 1, 0.4})
	require.True(t, ok)
	assert.InDelta(t, 0.8, perf, 1e-9)
	perf, ok = o.RecentPerformance([]float64{0.5})
	require.True(t, ok)
	assert.InDelta(t, 0.5, perf, 1e-9)
}

func TestRemediate(t *testing.T) {
	o := newOptimizer(t, nil)

	got, err := o.Remediate(domain.Expert, domain.Beginner)
	require.NoError(t, err)
	assert.Equal(t, domain.Beginner, got)

	got, err = o.Remediate(domain.Intermediate, domain.Advanced)
	require.NoError(t, err)
	assert.Equal(t, domain.Intermediate, got)

	_, err = o.Remediate("x", domain.Beginner)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRecommend(t *testing.T) {
	o := newOptimizer(t, optimizer.NewLRUMemo(16))
	rec := func(d domain.Difficulty, score float64) domain.PerformanceRecord {
		return domain.PerformanceRecord{Difficulty: d, Score: score}
	}

	t.Run("no history", func(t *testing.T) {
		got, err := o.Recommend(nil)
		require.NoError(t, err)
		assert.Equal(t, domain.Intermediate, got.Difficulty)
		assert.Equal(t, 0.5, got.Confidence)
		assert.Empty(t, got.PerformanceByDifficulty)
	})

	t.Run("steps from the best level", func(t *testing.T) {
		got, err := o.Recommend([]domain.PerformanceRecord{
			rec(domain.Beginner, 1.0),
			rec(domain.Advanced, 0.2),
			rec(domain.Beginner, 0.8),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.Intermediate, got.Difficulty)
		assert.Equal(t, 0.95, got.Confidence)
		assert.InDelta(t, 0.9, got.PerformanceByDifficulty[domain.Beginner], 1e-9)
		assert.InDelta(t, 0.2, got.PerformanceByDifficulty[domain.Advanced], 1e-9)
		assert.Contains(t, got.Reasoning, "beginner")
	})

	t.Run("middling score stays put", func(t *testing.T) {
		got, err := o.Recommend([]domain.PerformanceRecord{rec(domain.Intermediate, 0.5)})
		require.NoError(t, err)
		assert.Equal(t, domain.Intermediate, got.Difficulty)
		assert.InDelta(t, 0.7, got.Confidence, 1e-9)
	})

	t.Run("only the last ten answers count", func(t *testing.T) {
		records := []domain.PerformanceRecord{rec(domain.Expert, 1), rec(domain.Expert, 1)}
		for range 10 {
			records = append(records, rec(domain.Beginner, 0.5))
		}
		got, err := o.Recommend(records)
		require.NoError(t, err)
		assert.Equal(t, domain.Intermediate, got.Difficulty)
		assert.Len(t, got.PerformanceByDifficulty, 1)
		assert.NotContains(t, got.PerformanceByDifficulty, domain.Expert)
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := o.Recommend([]domain.PerformanceRecord{rec("legendary", 0.5)})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestAnalyzeProgression(t *testing.T) {
	o := newOptimizer(t, nil)

	a, err := o.AnalyzeProgression(
		[]domain.Difficulty{domain.Beginner, domain.Intermediate, domain.Intermediate, domain.Expert},
		[]float64{1, 0.5, 0.5, 0},
	)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, a.AverageScore, 1e-9)
	assert.InDelta(t, 0.125, a.ScoreVariance, 1e-9)
	assert.Equal(t, 2, a.DifficultyChanges)
	assert.InDelta(t, 1-3.0/9, a.Smoothness, 1e-9)

	empty, err := o.AnalyzeProgression(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, empty.Smoothness)

	_, err = o.AnalyzeProgression([]domain.Difficulty{domain.Beginner}, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPolicyValidate(t *testing.T) {
	p := optimizer.DefaultPolicy()
	p.Window = 0
	_, err := optimizer.New(p, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	p = optimizer.DefaultPolicy()
	p.CorrectnessWeight, p.TimeWeight = 0, 0
	_, err = optimizer.New(p, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLRUMemo_EvictionHook(t *testing.T) {
	var evicted []optimizer.MemoKey
	memo := optimizer.NewLRUMemo(2, optimizer.WithEvictionHook(func(k optimizer.MemoKey, _ int) {
		evicted = append(evicted, k)
	}))

	memo.Put(optimizer.MemoKey{Level: 0, Bucket: 1}, 1)
	memo.Put(optimizer.MemoKey{Level: 1, Bucket: 1}, 1)
	_, ok := memo.Get(optimizer.MemoKey{Level: 0, Bucket: 1}) // refresh
	require.True(t, ok)
	memo.Put(optimizer.MemoKey{Level: 2, Bucket: 1}, 2)

	assert.Equal(t, []optimizer.MemoKey{{Level: 1, Bucket: 1}}, evicted)
	_, ok = memo.Get(optimizer.MemoKey{Level: 1, Bucket: 1})
	assert.False(t, ok)
	assert.Equal(t, uint64(1), memo.Stats().Evictions)
}
