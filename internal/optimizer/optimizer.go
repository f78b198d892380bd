// Package optimizer decides how quiz difficulty should move from observed
// performance.
//
// Levels are the ordinals 0..3 of domain.Difficulty. A decision weighs how
// well a level matches the learner's recent performance against the cost of
// moving there, and only levels one step away are considered.
package optimizer

import (
	"fmt"
	"math"

	"adaptive-quiz/internal/domain"
)

// Policy holds the tunable parameters of the optimizer.
type Policy struct {
	CorrectnessWeight float64
	TimeWeight        float64
	// SlowAnswerSeconds is the response time at which speed counts as zero.
	SlowAnswerSeconds float64
	// Window is how many recent scores feed a decision.
	Window int
	// Buckets quantizes performance for memoization.
	Buckets           int
	UpCost            float64
	DownCost          float64
	TargetPerformance float64
}

// DefaultPolicy returns the stock parameters.
func DefaultPolicy() Policy {
	return Policy{
		CorrectnessWeight: 0.7,
		TimeWeight:        0.3,
		SlowAnswerSeconds: 60,
		Window:            3,
		Buckets:           20,
		UpCost:            0.10,
		DownCost:          0.05,
		TargetPerformance: 0.7,
	}
}

// Validate validates the policy
func (p Policy) Validate() error {
	if p.CorrectnessWeight < 0 || p.TimeWeight < 0 || p.CorrectnessWeight+p.TimeWeight <= 0 {
		return domain.NewValidationError("score weights must be non-negative and not both zero")
	}
	if p.SlowAnswerSeconds <= 0 {
		return domain.NewValidationError("slow answer threshold must be positive")
	}
	if p.Window < 1 {
		return domain.NewValidationError("performance window must be at least 1")
	}
	if p.Buckets < 1 {
		return domain.NewValidationError("bucket count must be at least 1")
	}
	if p.UpCost < 0 || p.DownCost < 0 {
		return domain.NewValidationError("transition costs must not be negative")
	}
	if p.TargetPerformance < 0 || p.TargetPerformance > 1 {
		return domain.NewValidationError("target performance must be within [0,1]")
	}
	return nil
}

// Optimizer is safe for concurrent use when its Memo is.
type Optimizer struct {
	policy Policy
	memo   Memo
}

// New builds an optimizer. A nil memo disables memoization.
func New(policy Policy, memo Memo) (*Optimizer, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if memo == nil {
		memo = noopMemo{}
	}
	return &Optimizer{policy: policy, memo: memo}, nil
}

// Policy returns the parameters the optimizer was built with.
func (o *Optimizer) Policy() Policy {
	return o.policy
}

// Score turns one answer into a performance score in [0,1].
func (o *Optimizer) Score(correct bool, timeTakenSeconds float64) float64 {
	var c float64
	if correct {
		c = 1
	}
	speed := clamp01(1 - timeTakenSeconds/o.policy.SlowAnswerSeconds)
	total := o.policy.CorrectnessWeight + o.policy.TimeWeight
	return clamp01((o.policy.CorrectnessWeight*c + o.policy.TimeWeight*speed) / total)
}

// RecentPerformance averages the last Window scores. No scores means no
// evidence, reported as ok=false.
func (o *Optimizer) RecentPerformance(scores []float64) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	recent := scores[max(0, len(scores)-o.policy.Window):]
	var sum float64
	for _, s := range recent {
		sum += s
	}
	return sum / float64(len(recent)), true
}

// NextDifficulty picks the level for the next question. The result is at
// most one step away from current.
func (o *Optimizer) NextDifficulty(current domain.Difficulty, perf float64) (domain.Difficulty, error) {
	level := current.Level()
	if level < 0 {
		return "", domain.NewValidationError(fmt.Sprintf("unrecognized difficulty: %q", current))
	}
	if math.IsNaN(perf) || perf < 0 || perf > 1 {
		return "", domain.NewOptimizerBoundsError(perf)
	}

	bucket := o.bucket(perf)
	key := MemoKey{Level: level, Bucket: bucket}
	if next, ok := o.memo.Get(key); ok {
		return domain.Difficulties[next], nil
	}

	// decide from the bucket's representative score so every caller that
	// lands in this bucket would store the same answer
	rep := float64(bucket) / float64(o.policy.Buckets)
	next := o.bestStep(level, func(l int) float64 {
		return o.reward(l, rep) - o.cost(level, l)
	})
	o.memo.Put(key, next)
	return domain.Difficulties[next], nil
}

func (o *Optimizer) bucket(perf float64) int {
	return int(math.Round(perf * float64(o.policy.Buckets)))
}

// bestStep returns the reachable level with the highest value. Ties prefer
// the smaller move, then the lower level.
func (o *Optimizer) bestStep(from int, value func(l int) float64) int {
	const eps = 1e-9
	best, bestVal := from, value(from)
	for _, l := range []int{from - 1, from + 1} {
		if l < 0 || l > domain.MaxLevel {
			continue
		}
		if v := value(l); v > bestVal+eps {
			best, bestVal = l, v
		}
	}
	return best
}

// reward is how closely level l matches the level performance p supports.
func (o *Optimizer) reward(l int, p float64) float64 {
	return 1 - math.Abs(float64(l)-p*domain.MaxLevel)/domain.MaxLevel
}

func (o *Optimizer) cost(from, to int) float64 {
	switch {
	case to > from:
		return o.policy.UpCost * float64(to-from)
	case to < from:
		return o.policy.DownCost * float64(from-to)
	default:
		return 0
	}
}

// OptimizeSequence plans n difficulties starting at start, assuming the
// learner performs at the policy's target performance throughout.
func (o *Optimizer) OptimizeSequence(n int, start domain.Difficulty) ([]domain.Difficulty, error) {
	if n < 0 {
		return nil, domain.NewValidationError("question count must not be negative")
	}
	startLevel := start.Level()
	if startLevel < 0 {
		return nil, domain.NewValidationError(fmt.Sprintf("unrecognized difficulty: %q", start))
	}
	if n == 0 {
		return []domain.Difficulty{}, nil
	}

	const levels = domain.MaxLevel + 1
	p := o.policy.TargetPerformance

	// best[s][l]: value of being at level l for stages s..n-1
	best := make([][levels]float64, n)
	for l := 0; l < levels; l++ {
		best[n-1][l] = o.reward(l, p)
	}
	for s := n - 2; s >= 0; s-- {
		for l := 0; l < levels; l++ {
			nextStage := &best[s+1]
			from := l
			next := o.bestStep(from, func(to int) float64 { return nextStage[to] - o.cost(from, to) })
			best[s][l] = o.reward(l, p) + nextStage[next] - o.cost(from, next)
		}
	}

	plan := make([]domain.Difficulty, n)
	plan[0] = start
	cur := startLevel
	for s := 1; s < n; s++ {
		stage := &best[s]
		from := cur
		cur = o.bestStep(from, func(to int) float64 { return stage[to] - o.cost(from, to) })
		plan[s] = domain.Difficulties[cur]
	}
	return plan, nil
}

// Remediate is the explicit override used after a missed question: the
// session drops straight to the missed level, however far that is, and
// never rises because of a miss.
func (o *Optimizer) Remediate(current, missed domain.Difficulty) (domain.Difficulty, error) {
	if !current.Valid() {
		return "", domain.NewValidationError(fmt.Sprintf("unrecognized difficulty: %q", current))
	}
	if !missed.Valid() {
		return "", domain.NewValidationError(fmt.Sprintf("unrecognized difficulty: %q", missed))
	}
	if missed.Level() < current.Level() {
		return missed, nil
	}
	return current, nil
}

const recommendationWindow = 10

// Recommend suggests a difficulty from the last answers: the level with the
// best mean score is stepped with NextDifficulty. Ties go to the level seen
// first. Without history it suggests intermediate at confidence 0.5.
func (o *Optimizer) Recommend(records []domain.PerformanceRecord) (domain.Recommendation, error) {
	if len(records) == 0 {
		return domain.Recommendation{
			Difficulty: domain.Intermediate,
			Confidence: 0.5,
			Reasoning:  "No performance history available",
		}, nil
	}

	recent := records[max(0, len(records)-recommendationWindow):]
	sums := make(map[domain.Difficulty]float64)
	counts := make(map[domain.Difficulty]int)
	var order []domain.Difficulty
	for _, r := range recent {
		if counts[r.Difficulty] == 0 {
			order = append(order, r.Difficulty)
		}
		sums[r.Difficulty] += r.Score
		counts[r.Difficulty]++
	}

	means := make(map[domain.Difficulty]float64, len(order))
	best := order[0]
	for _, d := range order {
		means[d] = sums[d] / float64(counts[d])
		if means[d] > means[best] {
			best = d
		}
	}

	next, err := o.NextDifficulty(best, means[best])
	if err != nil {
		return domain.Recommendation{}, err
	}
	return domain.Recommendation{
		Difficulty:              next,
		Confidence:              math.Min(0.95, means[best]+0.2),
		Reasoning:               fmt.Sprintf("Based on %.1f%% performance in %s questions", means[best]*100, best),
		PerformanceByDifficulty: means,
	}, nil
}

// AnalyzeProgression summarizes how a session's difficulty evolved.
// Smoothness is 1 when the level never moved and 0 when every step was a
// full-range jump.
func (o *Optimizer) AnalyzeProgression(levels []domain.Difficulty, scores []float64) (domain.ProgressionAnalysis, error) {
	var a domain.ProgressionAnalysis
	if len(levels) != len(scores) {
		return a, domain.NewValidationError(fmt.Sprintf("%d levels but %d scores", len(levels), len(scores)))
	}
	if len(levels) == 0 {
		a.Smoothness = 1
		return a, nil
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	a.AverageScore = sum / float64(len(scores))
	for _, s := range scores {
		d := s - a.AverageScore
		a.ScoreVariance += d * d
	}
	a.ScoreVariance /= float64(len(scores))

	a.Smoothness = 1
	if len(levels) > 1 {
		var moved int
		for i := 1; i < len(levels); i++ {
			step := levels[i].Level() - levels[i-1].Level()
			if step != 0 {
				a.DifficultyChanges++
			}
			moved += abs(step)
		}
		a.Smoothness = 1 - float64(moved)/float64((len(levels)-1)*domain.MaxLevel)
	}
	return a, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
