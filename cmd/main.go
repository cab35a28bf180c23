package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RixGem/progresspath/internal/ai"
	"github.com/RixGem/progresspath/internal/api"
	"github.com/RixGem/progresspath/internal/archive"
	"github.com/RixGem/progresspath/internal/cache"
	"github.com/RixGem/progresspath/internal/config"
	"github.com/RixGem/progresspath/internal/generate"
	"github.com/RixGem/progresspath/internal/logger"
	"github.com/RixGem/progresspath/internal/middleware"
	"github.com/RixGem/progresspath/internal/refresh"
	"github.com/RixGem/progresspath/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Per-batch defaults for a batch of five: mostly English with a couple
// of target-language quotes, themed around the app's learning focus.
var (
	defaultLanguageMix     = map[string]int{"en": 3, "es": 1, "fr": 1}
	defaultCategoryWeights = map[string]int{"motivation": 2, "learning": 2, "wisdom": 1}
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: "stdout",
		Pretty: cfg.Env == "development",
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Msg("Starting application...")

	// Connect Postgres. A missing DATABASE_URL is not fatal here: the
	// pipeline's own validation reports it (together with any other
	// missing keys) on the trigger endpoint.
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = store.NewPool(context.Background(), cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database pool")
		}
		defer pool.Close()
	} else {
		log.Warn().Msg("DATABASE_URL not set; refresh runs will fail validation")
	}

	quoteStore := store.NewQuoteStore(pool, cfg.DBTimeout)
	if pool != nil {
		if err := quoteStore.InitSchema(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database schema")
		}
	}

	// Run-summary cache; falls back to in-memory when Redis is down so
	// the pipeline itself stays available.
	var summaries cache.RunSummaryCache
	summaries, err := cache.NewRedisClient(cfg.RedisURL, cfg.RedisPrefix)
	if err != nil {
		log.Warn().Err(err).Msg("Redis unavailable, using in-memory run summary cache")
		summaries = cache.NewMockRunSummaryCache()
	}
	defer func() {
		if err := summaries.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing run summary cache")
		}
	}()

	// Optional R2 archiver for outgoing datasets
	var archiver refresh.DatasetArchiver
	if cfg.ArchiveEnabled() {
		a, err := archive.New(context.Background(), archive.Config{
			Endpoint:  cfg.R2Endpoint,
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			Bucket:    cfg.R2Bucket,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize archive client")
		}
		archiver = a
	}

	// Generative client and batch generator
	gemini := ai.NewGeminiClient(cfg.AIApiKey, cfg.AIModel, cfg.AITimeout, cfg.AITokensPerItem)
	generator := generate.New(gemini, generate.Options{
		TargetCount:          cfg.TargetCount,
		BatchSize:            cfg.BatchSize,
		MaxRetries:           cfg.MaxRetries,
		InitialRetryDelay:    cfg.InitialRetryDelay,
		BatchPause:           cfg.BatchPause,
		LanguageDistribution: defaultLanguageMix,
		CategoryWeights:      defaultCategoryWeights,
	})

	pipeline := refresh.NewPipeline(cfg, generator, quoteStore, archiver, summaries)

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	// Setup API routes
	api.SetupRoutes(app, api.NewHandlers(cfg, pipeline, summaries), cfg)

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
