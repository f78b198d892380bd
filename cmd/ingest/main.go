package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path"
	"sort"
	"strings"
	"syscall"

	"adaptive-quiz/internal/adapter/quizgen"
	"adaptive-quiz/internal/config"
	"adaptive-quiz/internal/database"
	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/index"
	"adaptive-quiz/internal/logger"
	"adaptive-quiz/internal/repository"
	"adaptive-quiz/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Generate questions from text files and store them in the catalog",
	RunE:  runIngest,
}

func init() {
	rootCmd.Flags().String("subject", "", "subject the generated questions belong to (required)")
	rootCmd.Flags().String("dir", "", "directory of .txt or .md source documents (required)")
	rootCmd.Flags().Int("count", 5, "questions to generate per document")
	rootCmd.Flags().StringSlice("topic", nil, "restrict generated topics")
	rootCmd.Flags().StringSlice("difficulty", nil, "restrict generated difficulties")
	rootCmd.Flags().Int("concurrency", 0, "documents processed at once (defaults to ingest.concurrency)")
	_ = rootCmd.MarkFlagRequired("subject")
	_ = rootCmd.MarkFlagRequired("dir")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	dir, _ := cmd.Flags().GetString("dir")
	count, _ := cmd.Flags().GetInt("count")
	topics, _ := cmd.Flags().GetStringSlice("topic")
	difficulties, _ := cmd.Flags().GetStringSlice("difficulty")
	concurrency, _ := cmd.Flags().GetInt("concurrency")

	levels, err := parseDifficulties(difficulties)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Initialize(cfg.Logger); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Sync()
	l := logger.Get()

	docs, err := readDocuments(os.DirFS(dir))
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("no .txt or .md files in %s", dir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		repo domain.QuestionRepository
		tx   domain.TransactionManager
	)
	if cfg.DB.Enabled() {
		db, err := database.NewSQLXOracleDB(ctx, cfg.GetDSN())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		repo = repository.NewQuestionDatabaseAdapter(db)
		tx = repository.NewTransactionManagerAdapter(db)
	} else {
		l.Warn("Database is not configured. Generated questions will not be persisted.")
	}

	var source domain.QuestionSource
	if cfg.LLM.Enabled() {
		source, err = quizgen.NewOllamaQuestionSource(cfg.LLM.Server, cfg.LLM.Model, cfg.LLM.Timeout, l)
		if err != nil {
			return err
		}
	} else {
		l.Warn("LLM is not configured. Using the built-in sample question generator.")
	}

	if concurrency <= 0 {
		concurrency = cfg.Ingest.Concurrency
	}
	svc := service.NewIngestService(index.New(), source, repo, tx, service.IngestConfig{
		Concurrency:   concurrency,
		SourceTimeout: cfg.LLM.Timeout,
	}, l)

	res, err := svc.Ingest(ctx, docs, domain.SourceConfig{
		Subject:          subject,
		QuestionCount:    count,
		DifficultyLevels: levels,
		Topics:           topics,
	})
	if err != nil {
		return err
	}
	l.Info("Ingest finished", zap.Int("documents", res.Documents), zap.Int("questions", res.Questions))
	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d questions from %d documents\n", res.Questions, res.Documents)
	return nil
}

// readDocuments loads every .txt and .md file at the top level of fsys,
// sorted by name. Blank files are skipped.
func readDocuments(fsys fs.FS) ([]service.Document, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var docs []service.Document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(e.Name())) {
		case ".txt", ".md":
		default:
			continue
		}
		b, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(string(b))
		if text == "" {
			continue
		}
		docs = append(docs, service.Document{Name: e.Name(), Text: text})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

func parseDifficulties(values []string) ([]domain.Difficulty, error) {
	levels := make([]domain.Difficulty, 0, len(values))
	for _, v := range values {
		d, err := domain.ParseDifficulty(v)
		if err != nil {
			return nil, err
		}
		levels = append(levels, d)
	}
	return levels, nil
}
