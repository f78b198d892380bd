package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/index"
	"adaptive-quiz/internal/optimizer"
	"adaptive-quiz/internal/queue"
	"adaptive-quiz/internal/util"

	"go.uber.org/zap"
)

const performanceTrendSize = 5

// GenerateQuizRequest is the input of GenerateQuiz.
type GenerateQuizRequest struct {
	Title      string
	SourceText string
	Config     domain.QuizConfig
}

// SessionCoordinator drives quiz sessions over the shared question index.
type SessionCoordinator interface {
	GenerateQuiz(ctx context.Context, req GenerateQuizRequest) (*domain.SessionInfo, error)
	CreateSession(ctx context.Context, title string, cfg domain.QuizConfig) (*domain.SessionInfo, error)
	NextQuestion(ctx context.Context, sessionID string) (*domain.NextQuestionResult, error)
	SubmitAnswer(ctx context.Context, sessionID, questionID, answer string, timeTaken float64) (*domain.AnswerFeedback, error)
	SessionStats(ctx context.Context, sessionID string) (*domain.StatsSummary, error)
	EndSession(ctx context.Context, sessionID string) error
	TreeStructure() domain.IndexStatistics
	SearchQuestions(filter index.Filter, limit int) []*domain.Question
	GetQuestion(id string) (*domain.Question, error)
	PurgeEnded(olderThan time.Duration) int
}

// CoordinatorConfig carries the quiz-level settings.
type CoordinatorConfig struct {
	DefaultQuestionCount int
	SourceTimeout        time.Duration
	ArchiveTimeout       time.Duration
}

// CoordinatorOption configures the coordinator.
type CoordinatorOption func(*sessionCoordinator)

// WithQuestionSource sets the generator used for source text. Without one
// every generation goes straight to the sample generator.
func WithQuestionSource(src domain.QuestionSource) CoordinatorOption {
	return func(c *sessionCoordinator) {
		c.source = src
	}
}

// WithArchive sets where ended sessions' stats are kept.
func WithArchive(a SessionArchive) CoordinatorOption {
	return func(c *sessionCoordinator) {
		c.archive = a
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *sessionCoordinator) {
		c.now = now
	}
}

// WithRandFactory supplies the random source for each new session.
func WithRandFactory(fn func() *rand.Rand) CoordinatorOption {
	return func(c *sessionCoordinator) {
		c.newRand = fn
	}
}

type sessionCoordinator struct {
	index     *index.QuestionIndex
	optimizer *optimizer.Optimizer
	source    domain.QuestionSource
	fallback  domain.QuestionSource
	archive   SessionArchive
	cfg       CoordinatorConfig
	logger    *zap.Logger
	now       func() time.Time
	newRand   func() *rand.Rand

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// NewSessionCoordinator creates a new instance of the session coordinator.
func NewSessionCoordinator(
	idx *index.QuestionIndex,
	opt *optimizer.Optimizer,
	cfg CoordinatorConfig,
	logger *zap.Logger,
	opts ...CoordinatorOption,
) SessionCoordinator {
	c := &sessionCoordinator{
		index:     idx,
		optimizer: opt,
		fallback:  NewSampleSource(),
		archive:   noopSessionArchive{},
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		sessions: make(map[string]*sessionState),
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.cfg.DefaultQuestionCount <= 0 {
		c.cfg.DefaultQuestionCount = 10
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// GenerateQuiz builds a session from source text when given, otherwise from
// the index. Generation never fails outright for lack of content: the sample
// generator stands in when the source or the index comes up empty.
func (c *sessionCoordinator) GenerateQuiz(ctx context.Context, req GenerateQuizRequest) (*domain.SessionInfo, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = c.cfg.DefaultQuestionCount
	}
	title := c.title(req.Title, cfg.Subject)

	if strings.TrimSpace(req.SourceText) == "" {
		candidates := c.candidates(cfg)
		if len(candidates) == 0 {
			c.logger.Info("No indexed questions match, using sample questions",
				zap.String("subject", cfg.Subject), zap.Strings("topics", cfg.Topics))
			generated, err := c.generateFallback(ctx, title, cfg)
			if err != nil {
				return nil, err
			}
			candidates = generated
		}
		return c.createSession(title, cfg, candidates)
	}

	generated, err := c.generate(ctx, req.SourceText, cfg)
	if err != nil {
		return nil, err
	}
	return c.createSession(title, cfg, generated)
}

func (c *sessionCoordinator) title(title, subject string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if subject != "" {
		return subject + " quiz"
	}
	return "Quiz"
}

func (c *sessionCoordinator) sourceConfig(cfg domain.QuizConfig) domain.SourceConfig {
	return domain.SourceConfig{
		Subject:          cfg.Subject,
		QuestionCount:    cfg.QuestionCount,
		DifficultyLevels: cfg.DifficultyLevels,
		Topics:           cfg.Topics,
		RandomizeOptions: cfg.RandomizeOptions,
	}
}

// generate asks the configured source, bounded by SourceTimeout, and falls
// back to the sample generator on failure or an empty result. Generated
// questions belong to the new session only; the shared index is filled by
// ingest.
func (c *sessionCoordinator) generate(ctx context.Context, text string, cfg domain.QuizConfig) ([]*domain.Question, error) {
	var questions []*domain.Question
	if c.source != nil {
		srcCtx := ctx
		if c.cfg.SourceTimeout > 0 {
			var cancel context.CancelFunc
			srcCtx, cancel = context.WithTimeout(ctx, c.cfg.SourceTimeout)
			defer cancel()
		}
		generated, err := c.source.Generate(srcCtx, text, c.sourceConfig(cfg))
		if err != nil {
			c.logger.Warn("Question source failed, using sample questions", zap.Error(err))
		}
		questions = validQuestions(generated, c.logger)
	}
	if len(questions) == 0 {
		fallback, err := c.fallback.Generate(ctx, text, c.sourceConfig(cfg))
		if err != nil {
			return nil, domain.NewSourceError(err)
		}
		questions = validQuestions(fallback, c.logger)
	}
	if len(questions) == 0 {
		return nil, domain.NewSourceError(errors.New("no questions could be generated"))
	}
	return questions, nil
}

func (c *sessionCoordinator) generateFallback(ctx context.Context, text string, cfg domain.QuizConfig) ([]*domain.Question, error) {
	questions, err := c.fallback.Generate(ctx, text, c.sourceConfig(cfg))
	if err != nil {
		return nil, domain.NewSourceError(err)
	}
	questions = validQuestions(questions, c.logger)
	if len(questions) == 0 {
		return nil, domain.NewValidationError("no questions match the quiz configuration")
	}
	return questions, nil
}

func validQuestions(in []*domain.Question, logger *zap.Logger) []*domain.Question {
	out := make([]*domain.Question, 0, len(in))
	for _, q := range in {
		if err := q.Validate(); err != nil {
			logger.Warn("Skipping invalid generated question", zap.Error(err))
			continue
		}
		out = append(out, q)
	}
	return out
}

// CreateSession starts a session over the indexed questions matching cfg.
func (c *sessionCoordinator) CreateSession(_ context.Context, title string, cfg domain.QuizConfig) (*domain.SessionInfo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.QuestionCount == 0 {
		cfg.QuestionCount = c.cfg.DefaultQuestionCount
	}
	return c.createSession(c.title(title, cfg.Subject), cfg, c.candidates(cfg))
}

func (c *sessionCoordinator) candidates(cfg domain.QuizConfig) []*domain.Question {
	return index.Collect(c.index.Query(index.Filter{
		Subject:      cfg.Subject,
		Topics:       cfg.Topics,
		Difficulties: cfg.DifficultyLevels,
	}), 0)
}

func (c *sessionCoordinator) createSession(title string, cfg domain.QuizConfig, candidates []*domain.Question) (*domain.SessionInfo, error) {
	if len(candidates) == 0 {
		return nil, domain.NewValidationError("no questions match the quiz configuration")
	}
	rng := c.newRand()

	chosen := candidates
	if cfg.QuestionCount > 0 && cfg.QuestionCount < len(candidates) {
		chosen = append([]*domain.Question(nil), candidates...)
		if cfg.RandomizeQuestions {
			rng.Shuffle(len(chosen), func(i, j int) { chosen[i], chosen[j] = chosen[j], chosen[i] })
		}
		chosen = chosen[:cfg.QuestionCount]
	}

	start := cfg.StartingDifficulty
	if start == "" {
		start = lowestDifficulty(chosen)
	}

	items := make([]queue.Item, len(chosen))
	questions := make(map[string]*domain.Question, len(chosen))
	for i, q := range chosen {
		items[i] = queue.Item{ID: q.ID, Difficulty: q.Difficulty}
		questions[q.ID] = q
	}

	randomize := cfg.RandomizeQuestions
	if !cfg.AdaptiveDifficulty && cfg.PlanSequence {
		plan, err := c.optimizer.OptimizeSequence(len(items), start)
		if err != nil {
			return nil, err
		}
		items = orderByPlan(items, plan)
		randomize = false
	}

	q := queue.New(queue.WithRand(rng))
	if err := q.Seed(items, randomize); err != nil {
		return nil, err
	}
	order := make([]string, 0, len(items))
	for _, it := range q.Peek(len(items)) {
		order = append(order, it.ID)
	}

	s := &sessionState{
		id:         util.NewULID(),
		title:      title,
		config:     cfg,
		createdAt:  c.now(),
		rng:        rng,
		queue:      q,
		questions:  questions,
		order:      order,
		total:      len(items),
		current:    start,
		remediated: make(map[string]bool),
	}

	c.mu.Lock()
	c.sessions[s.id] = s
	c.mu.Unlock()

	c.logger.Info("Quiz session created",
		zap.String("session_id", s.id),
		zap.Int("questions", s.total),
		zap.String("starting_difficulty", string(start)),
		zap.Bool("adaptive", cfg.AdaptiveDifficulty),
	)
	return &domain.SessionInfo{
		SessionID:          s.id,
		Title:              title,
		StartingDifficulty: start,
		TotalQuestions:     s.total,
		Adaptive:           cfg.AdaptiveDifficulty,
	}, nil
}

func lowestDifficulty(qs []*domain.Question) domain.Difficulty {
	lowest := qs[0].Difficulty
	for _, q := range qs[1:] {
		if q.Difficulty.Level() < lowest.Level() {
			lowest = q.Difficulty
		}
	}
	return lowest
}

// orderByPlan assigns to each planned level the earliest remaining item
// closest to it.
func orderByPlan(items []queue.Item, plan []domain.Difficulty) []queue.Item {
	left := append([]queue.Item(nil), items...)
	out := make([]queue.Item, 0, len(items))
	for _, level := range plan {
		best := 0
		for i := 1; i < len(left); i++ {
			if distance(left[i].Difficulty, level) < distance(left[best].Difficulty, level) {
				best = i
			}
		}
		out = append(out, left[best])
		left = append(left[:best], left[best+1:]...)
	}
	return out
}

func distance(a, b domain.Difficulty) int {
	d := a.Level() - b.Level()
	if d < 0 {
		return -d
	}
	return d
}

func (c *sessionCoordinator) lookup(sessionID string) (*sessionState, error) {
	c.mu.RLock()
	s, ok := c.sessions[sessionID]
	c.mu.RUnlock()
	if !ok {
		return nil, domain.NewSessionNotFoundError(sessionID)
	}
	return s, nil
}

// NextQuestion serves the next question. An exhausted queue completes the
// session and is reported as Complete, not as an error.
func (c *sessionCoordinator) NextQuestion(ctx context.Context, sessionID string) (*domain.NextQuestionResult, error) {
	s, err := c.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil, domain.NewInvalidStateError("session has ended").WithContext("session_id", sessionID)
	}
	if s.complete {
		current := s.current
		s.mu.Unlock()
		return &domain.NextQuestionResult{Complete: true, Difficulty: current}, nil
	}
	if s.awaitingAnswer() {
		s.mu.Unlock()
		return nil, domain.NewInvalidStateError("a question is already awaiting an answer").
			WithContext("question_id", s.served.question.ID)
	}

	front, ok := s.queue.Front()
	remediating := ok && s.overrideID != "" && front.ID == s.overrideID
	if s.config.AdaptiveDifficulty && !remediating {
		if err := s.queue.Reorder(s.current); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}
	s.overrideID = ""

	item, err := s.queue.Next()
	if err != nil {
		if !errors.Is(err, domain.ErrEmptyQueue) {
			s.mu.Unlock()
			return nil, err
		}
		s.complete = true
		s.release(c.now())
		stats := c.buildStats(s)
		s.mu.Unlock()

		c.logger.Info("Quiz session complete", zap.String("session_id", sessionID))
		c.archiveStats(ctx, stats)
		return &domain.NextQuestionResult{Complete: true, Difficulty: stats.CurrentDifficulty}, nil
	}

	q := s.servedCopy(s.questions[item.ID])
	s.served = &servedSlot{question: q, servedAt: c.now()}
	if !s.config.AdaptiveDifficulty {
		s.current = q.Difficulty
	}
	res := &domain.NextQuestionResult{
		Question:   q,
		Remaining:  s.remaining(),
		Difficulty: s.current,
	}
	s.mu.Unlock()
	return res, nil
}

// SubmitAnswer scores the answer to the served question and moves the
// session difficulty.
func (c *sessionCoordinator) SubmitAnswer(_ context.Context, sessionID, questionID, answer string, timeTaken float64) (*domain.AnswerFeedback, error) {
	if timeTaken < 0 {
		return nil, domain.NewValidationError("time taken must not be negative")
	}
	s, err := c.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil, domain.NewInvalidStateError("session has ended").WithContext("session_id", sessionID)
	}
	if s.served == nil {
		return nil, domain.NewInvalidStateError("no question has been served")
	}
	if s.served.question.ID != questionID {
		return nil, domain.NewInvalidStateError("answer does not match the served question").
			WithContext("question_id", questionID)
	}
	if s.served.answered {
		return nil, domain.NewInvalidStateError("question already answered").
			WithContext("question_id", questionID)
	}

	q := s.served.question
	correct := q.CheckAnswer(answer)
	score := c.optimizer.Score(correct, timeTaken)
	s.records = append(s.records, domain.PerformanceRecord{
		QuestionID: q.ID,
		Topic:      q.Topic,
		Correct:    correct,
		TimeTaken:  timeTaken,
		Difficulty: q.Difficulty,
		Score:      score,
		AnsweredAt: c.now(),
	})
	s.served.answered = true

	if s.config.AdaptiveDifficulty {
		perf, _ := c.optimizer.RecentPerformance(s.scores())
		next, err := c.optimizer.NextDifficulty(s.current, perf)
		if err != nil {
			return nil, err
		}
		s.current = next
	}
	if !correct && s.config.Remediation {
		if err := c.remediate(s, q); err != nil {
			return nil, err
		}
	}

	return &domain.AnswerFeedback{
		Correct:           correct,
		CorrectAnswer:     q.CorrectAnswer,
		Explanation:       q.Explanation,
		TimeTaken:         timeTaken,
		Score:             score,
		CurrentDifficulty: s.current,
		Remaining:         s.remaining(),
	}, nil
}

// remediate puts a question on the missed topic at the front: a pending one
// at or below the missed difficulty if there is one, otherwise the missed
// question itself, once.
func (c *sessionCoordinator) remediate(s *sessionState, missed *domain.Question) error {
	var pick *queue.Item
	for _, id := range s.order {
		if !s.queue.Contains(id) {
			continue
		}
		q := s.questions[id]
		if q.Topic != missed.Topic || q.Difficulty.Level() > missed.Difficulty.Level() {
			continue
		}
		if pick == nil || q.Difficulty.Level() > pick.Difficulty.Level() {
			pick = &queue.Item{ID: q.ID, Difficulty: q.Difficulty}
		}
	}
	if pick == nil {
		if s.remediated[missed.ID] {
			return nil
		}
		s.remediated[missed.ID] = true
		pick = &queue.Item{ID: missed.ID, Difficulty: missed.Difficulty}
	}
	if err := s.queue.InsertPriority(*pick); err != nil {
		return err
	}

	level, err := c.optimizer.Remediate(s.current, pick.Difficulty)
	if err != nil {
		return err
	}
	s.current = level
	s.overrideID = pick.ID
	c.logger.Debug("Remediation queued",
		zap.String("session_id", s.id),
		zap.String("question_id", pick.ID),
		zap.String("difficulty", string(level)),
	)
	return nil
}

// SessionStats reports on a live session, or on an archived one once it has
// been purged from memory.
func (c *sessionCoordinator) SessionStats(ctx context.Context, sessionID string) (*domain.StatsSummary, error) {
	s, err := c.lookup(sessionID)
	if err == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return c.buildStats(s), nil
	}

	archived, archErr := c.archive.Get(ctx, sessionID)
	if archErr != nil {
		if errors.Is(archErr, ErrArchivedStatsNotFound) {
			return nil, err
		}
		return nil, archErr
	}
	return archived, nil
}

// EndSession is idempotent; ending an ended session is a no-op.
func (c *sessionCoordinator) EndSession(ctx context.Context, sessionID string) error {
	s, err := c.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return nil
	}
	s.ended = true
	s.served = nil
	s.release(c.now())
	stats := c.buildStats(s)
	s.mu.Unlock()

	c.logger.Info("Quiz session ended",
		zap.String("session_id", sessionID),
		zap.Int("answered", stats.TotalQuestions),
	)
	c.archiveStats(ctx, stats)
	return nil
}

// archiveStats failures are logged; the session outcome does not depend on them.
func (c *sessionCoordinator) archiveStats(ctx context.Context, stats *domain.StatsSummary) {
	archCtx := context.WithoutCancel(ctx)
	if c.cfg.ArchiveTimeout > 0 {
		var cancel context.CancelFunc
		archCtx, cancel = context.WithTimeout(archCtx, c.cfg.ArchiveTimeout)
		defer cancel()
	}
	if err := c.archive.Put(archCtx, stats); err != nil {
		c.logger.Error("Failed to archive session stats",
			zap.String("session_id", stats.SessionID),
			zap.Error(err),
		)
	}
}

// buildStats must be called with s.mu held.
func (c *sessionCoordinator) buildStats(s *sessionState) *domain.StatsSummary {
	stats := &domain.StatsSummary{
		SessionID:           s.id,
		TotalQuestions:      len(s.records),
		DifficultyBreakdown: make(map[domain.Difficulty]domain.Tally),
		TopicPerformance:    make(map[string]float64),
		PerformanceTrend:    []float64{},
		CurrentDifficulty:   s.current,
		Remaining:           s.remaining(),
		Complete:            s.complete,
		Ended:               s.ended,
	}

	var totalTime float64
	topics := make(map[string]domain.Tally)
	levels := make([]domain.Difficulty, len(s.records))
	for i, r := range s.records {
		totalTime += r.TimeTaken
		levels[i] = r.Difficulty

		tally := stats.DifficultyBreakdown[r.Difficulty]
		topic := topics[r.Topic]
		tally.Total++
		topic.Total++
		if r.Correct {
			stats.CorrectAnswers++
			tally.Correct++
			topic.Correct++
		}
		stats.DifficultyBreakdown[r.Difficulty] = tally
		topics[r.Topic] = topic
	}
	stats.IncorrectAnswers = stats.TotalQuestions - stats.CorrectAnswers
	if stats.TotalQuestions > 0 {
		stats.Accuracy = float64(stats.CorrectAnswers) / float64(stats.TotalQuestions)
		stats.AverageTimePerQuestion = totalTime / float64(stats.TotalQuestions)
	}
	for name, t := range topics {
		stats.TopicPerformance[name] = float64(t.Correct) / float64(t.Total)
	}

	scores := s.scores()
	stats.PerformanceTrend = append(stats.PerformanceTrend, scores[max(0, len(scores)-performanceTrendSize):]...)
	if p, err := c.optimizer.AnalyzeProgression(levels, scores); err == nil {
		stats.Progression = p
	}
	if r, err := c.optimizer.Recommend(s.records); err == nil {
		stats.Recommendation = r
	}
	if s.queue != nil {
		qs := s.queue.Status()
		stats.QueueStatus = &qs
	}
	return stats
}

func (c *sessionCoordinator) TreeStructure() domain.IndexStatistics {
	return c.index.Statistics()
}

// GetQuestion looks a catalog question up by id.
func (c *sessionCoordinator) GetQuestion(id string) (*domain.Question, error) {
	q, ok := c.index.Get(id)
	if !ok {
		return nil, domain.NewNotFoundError(fmt.Sprintf("question not found: %s", id)).WithContext("question_id", id)
	}
	return q, nil
}

func (c *sessionCoordinator) SearchQuestions(filter index.Filter, limit int) []*domain.Question {
	return index.Collect(c.index.Query(filter), limit)
}

// PurgeEnded drops finished sessions older than olderThan from memory.
// Their final stats remain available through the archive.
func (c *sessionCoordinator) PurgeEnded(olderThan time.Duration) int {
	cutoff := c.now().Add(-olderThan)
	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for id, s := range c.sessions {
		s.mu.Lock()
		expired := s.finished() && !s.finishedAt.After(cutoff)
		s.mu.Unlock()
		if expired {
			delete(c.sessions, id)
			purged++
		}
	}
	if purged > 0 {
		c.logger.Info("Purged finished sessions", zap.Int("count", purged))
	}
	return purged
}

