package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/index"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Document is one piece of source text to turn into questions.
type Document struct {
	Name string
	Text string
}

// IngestResult reports what an ingest committed.
type IngestResult struct {
	Documents int
	Questions int
}

// IngestConfig bounds the fan-out of an ingest.
type IngestConfig struct {
	Concurrency   int
	SourceTimeout time.Duration
}

// IngestService fills the question index from source documents and from the
// catalog store. Repository and transaction manager may both be nil, in which
// case only the index is written.
type IngestService struct {
	index  *index.QuestionIndex
	source domain.QuestionSource
	repo   domain.QuestionRepository
	tx     domain.TransactionManager
	cfg    IngestConfig
	logger *zap.Logger

	mu sync.Mutex // serializes check, commit and index insert
}

// NewIngestService creates a new instance of IngestService.
func NewIngestService(
	idx *index.QuestionIndex,
	source domain.QuestionSource,
	repo domain.QuestionRepository,
	tx domain.TransactionManager,
	cfg IngestConfig,
	logger *zap.Logger,
) *IngestService {
	if source == nil {
		source = NewSampleSource()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{index: idx, source: source, repo: repo, tx: tx, cfg: cfg, logger: logger}
}

// Ingest generates questions for every document and commits them together.
// A failing document aborts the whole ingest; nothing is committed.
func (s *IngestService) Ingest(ctx context.Context, docs []Document, cfg domain.SourceConfig) (*IngestResult, error) {
	if len(docs) == 0 {
		return nil, domain.NewValidationError("no documents to ingest")
	}
	s.logger.Info("Starting ingest", zap.Int("documents", len(docs)), zap.String("subject", cfg.Subject))

	results := make([][]*domain.Question, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, doc := range docs {
		g.Go(func() error {
			qs, err := s.generate(gctx, doc, cfg)
			if err != nil {
				return fmt.Errorf("document %q: %w", doc.Name, err)
			}
			results[i] = qs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("Ingest aborted", zap.Error(err))
		return nil, err
	}

	var all []*domain.Question
	for _, qs := range results {
		all = append(all, qs...)
	}
	if err := s.AddQuestions(ctx, all); err != nil {
		return nil, err
	}

	s.logger.Info("Ingest completed", zap.Int("documents", len(docs)), zap.Int("questions", len(all)))
	return &IngestResult{Documents: len(docs), Questions: len(all)}, nil
}

func (s *IngestService) generate(ctx context.Context, doc Document, cfg domain.SourceConfig) ([]*domain.Question, error) {
	if s.cfg.SourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SourceTimeout)
		defer cancel()
	}
	qs, err := s.source.Generate(ctx, doc.Text, cfg)
	if err != nil {
		return nil, domain.NewSourceError(err)
	}
	if len(qs) == 0 {
		return nil, domain.NewValidationError("no questions generated")
	}
	s.logger.Debug("Generated questions for document", zap.String("document", doc.Name), zap.Int("count", len(qs)))
	return qs, nil
}

// AddQuestions persists questions and adds them to the index as one unit. The
// index is checked before the store transaction and written only after it
// commits, so a failed commit leaves both untouched.
func (s *IngestService) AddQuestions(ctx context.Context, questions []*domain.Question) error {
	if len(questions) == 0 {
		return domain.NewValidationError("no questions to add")
	}
	for i, q := range questions {
		if err := q.Validate(); err != nil {
			return domain.NewError(domain.CodeValidation, fmt.Sprintf("question %d rejected", i), err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil || s.tx == nil {
		return s.index.InsertBatch(questions)
	}
	if err := s.index.CheckBatch(questions); err != nil {
		return err
	}
	if err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SaveQuestions(ctx, questions)
	}); err != nil {
		return err
	}
	if err := s.index.InsertBatch(questions); err != nil {
		// stored but not indexed; LoadCatalog picks them up on restart
		s.logger.Error("Committed questions could not be indexed", zap.Int("questions", len(questions)), zap.Error(err))
		return domain.NewInternalError("questions stored but not indexed", err)
	}
	return nil
}

// LoadCatalog fills the index from the catalog store.
func (s *IngestService) LoadCatalog(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}
	qs, err := s.repo.ListQuestions(ctx)
	if err != nil {
		return 0, domain.NewInternalError("failed to load question catalog", err)
	}
	if len(qs) == 0 {
		s.logger.Info("Question catalog is empty")
		return 0, nil
	}
	if err := s.index.InsertBatch(qs); err != nil {
		return 0, err
	}
	s.logger.Info("Loaded question catalog", zap.Int("questions", len(qs)))
	return len(qs), nil
}
