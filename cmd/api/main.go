package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"adaptive-quiz/internal/adapter"
	"adaptive-quiz/internal/adapter/quizgen"
	"adaptive-quiz/internal/cache"
	"adaptive-quiz/internal/config"
	"adaptive-quiz/internal/database"
	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/handler"
	"adaptive-quiz/internal/index"
	"adaptive-quiz/internal/logger"
	"adaptive-quiz/internal/middleware"
	"adaptive-quiz/internal/optimizer"
	"adaptive-quiz/internal/repository"
	"adaptive-quiz/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// requestLogger is a middleware that logs HTTP requests
func requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Get().Info("HTTP Request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.IP()),
		)
		return err
	}
}

func policyFromConfig(cfg config.OptimizerConfig) optimizer.Policy {
	return optimizer.Policy{
		CorrectnessWeight: cfg.CorrectnessWeight,
		TimeWeight:        cfg.TimeWeight,
		SlowAnswerSeconds: cfg.SlowAnswerSeconds,
		Window:            cfg.Window,
		Buckets:           cfg.Buckets,
		UpCost:            cfg.UpCost,
		DownCost:          cfg.DownCost,
		TargetPerformance: cfg.TargetPerformance,
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		panic(err)
	}
	appLogger := logger.Get()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	idx := index.New()

	// Catalog store
	var (
		repo domain.QuestionRepository
		tx   domain.TransactionManager
	)
	if cfg.DB.Enabled() {
		db, err := database.NewSQLXOracleDB(ctx, cfg.GetDSN())
		if err != nil {
			appLogger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repo = repository.NewQuestionDatabaseAdapter(db)
		tx = repository.NewTransactionManagerAdapter(db)
		appLogger.Info("Question catalog store connected")
	} else {
		appLogger.Warn("Database is not configured. Questions live in memory only.")
	}

	// Session archive
	var cacheAdapter domain.Cache
	if cfg.Redis.Enabled() {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			appLogger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		cacheAdapter = adapter.NewRedisCacheAdapter(redisClient)
		appLogger.Info("Successfully connected to Redis")
	} else {
		appLogger.Warn("Redis is not configured. Ended sessions are not archived.")
	}
	archive := service.NewSessionArchive(cacheAdapter, cfg.Archive.TTL)

	// Question source
	var source domain.QuestionSource
	if cfg.LLM.Enabled() {
		llmSource, err := quizgen.NewOllamaQuestionSource(cfg.LLM.Server, cfg.LLM.Model, cfg.LLM.Timeout, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to create LLM question source", zap.Error(err))
		}
		source = llmSource
		appLogger.Info("LLM question source initialized", zap.String("model", cfg.LLM.Model))
	} else {
		appLogger.Warn("LLM is not configured. Using the built-in sample question generator.")
	}

	ingest := service.NewIngestService(idx, source, repo, tx, service.IngestConfig{
		Concurrency:   cfg.Ingest.Concurrency,
		SourceTimeout: cfg.Quiz.SourceTimeout,
	}, appLogger)
	if n, err := ingest.LoadCatalog(ctx); err != nil {
		appLogger.Fatal("Failed to load question catalog", zap.Error(err))
	} else {
		appLogger.Info("Question index ready", zap.Int("questions", n))
	}

	memo := optimizer.NewLRUMemo(cfg.Optimizer.MemoSize)
	opt, err := optimizer.New(policyFromConfig(cfg.Optimizer), memo)
	if err != nil {
		appLogger.Fatal("Invalid optimizer policy", zap.Error(err))
	}

	opts := []service.CoordinatorOption{service.WithArchive(archive)}
	if source != nil {
		opts = append(opts, service.WithQuestionSource(source))
	}
	coordinator := service.NewSessionCoordinator(idx, opt, service.CoordinatorConfig{
		DefaultQuestionCount: cfg.Quiz.DefaultQuestionCount,
		SourceTimeout:        cfg.Quiz.SourceTimeout,
		ArchiveTimeout:       cfg.Archive.Timeout,
	}, appLogger, opts...)

	go purgeLoop(ctx, coordinator, memo, cfg.Quiz)

	checks := map[string]handler.Pinger{}
	if cacheAdapter != nil {
		checks["redis"] = cacheAdapter
	}
	quizHandler := handler.NewQuizHandler(coordinator, ingest)
	healthHandler := handler.NewHealthHandler(coordinator, checks)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.WriteTimeout,
		BodyLimit:    10 * 1024 * 1024,
		ErrorHandler: middleware.ErrorHandler(),
	})
	app.Use(requestLogger())
	app.Use(cors.New(cors.Config{AllowOrigins: "*", AllowMethods: "GET,POST,DELETE,OPTIONS", AllowHeaders: "Origin,Content-Type,Accept", MaxAge: 300}))
	app.Use(recover.New())

	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)
	quizHandler.RegisterRoutes(api, middleware.NewValidationMiddleware())

	go func() {
		appLogger.Info("Starting server", zap.Int("port", cfg.Server.Port), zap.String("env", cfg.Logger.Env))
		if err := app.Listen(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
			appLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	appLogger.Info("Server exited gracefully")
}

// purgeLoop drops finished sessions once they are past retention.
func purgeLoop(ctx context.Context, coordinator service.SessionCoordinator, memo *optimizer.LRUMemo, cfg config.QuizConfig) {
	if cfg.PurgeInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.PurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged := coordinator.PurgeEnded(cfg.SessionRetention)
			stats := memo.Stats()
			logger.Get().Debug("Session purge tick",
				zap.Int("purged", purged),
				zap.Uint64("memo_hits", stats.Hits),
				zap.Uint64("memo_misses", stats.Misses),
				zap.Int("memo_size", stats.Size),
			)
		}
	}
}
