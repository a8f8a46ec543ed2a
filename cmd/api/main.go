package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/intervexa/interview-api/internal/config"
	"github.com/intervexa/interview-api/internal/database"
	"github.com/intervexa/interview-api/internal/handler"
	"github.com/intervexa/interview-api/internal/middleware"
	"github.com/intervexa/interview-api/internal/models"
	"github.com/intervexa/interview-api/internal/observability"
	"github.com/intervexa/interview-api/internal/repository"
	"github.com/intervexa/interview-api/internal/router"
	"github.com/intervexa/interview-api/internal/scorer"
	"github.com/intervexa/interview-api/internal/service"
	"github.com/intervexa/interview-api/internal/worker"
	"github.com/intervexa/interview-api/pkg/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Session{}, &models.Question{}, &models.Answer{}, &models.AnswerAnalysis{}, &models.Result{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	answerRepo := repository.NewAnswerRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	resultRepo := repository.NewResultRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	scorers := buildScorers(cfg, logger)

	pool := worker.NewPool(cfg.WorkerCount, cfg.QueueSize, logger)
	pool.Start()

	tracker := service.NewStatusTracker(answerRepo, analysisRepo, redisClient, natsConn, cfg.EventChannelBase, validate, logger)
	evaluationService := service.NewEvaluationService(answerRepo, tracker, pool, scorers, cfg.ScorerBudget, validate, logger)
	resultService := service.NewResultService(sessionRepo, answerRepo, analysisRepo, resultRepo, logger)

	trackerCtx, stopTracker := context.WithCancel(context.Background())
	defer stopTracker()
	tracker.Start(trackerCtx)

	evaluationHandler := handler.NewEvaluationHandler(evaluationService, tracker, logger)
	webhookHandler := handler.NewWebhookHandler(tracker, cfg.WebhookSecret, logger)
	resultHandler := handler.NewResultHandler(resultService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	app.Get("/metrics", observability.MetricsHandler())
	router.Register(app, cfg, router.Dependencies{
		EvaluationHandler: evaluationHandler,
		WebhookHandler:    webhookHandler,
		ResultHandler:     resultHandler,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, pool, stopTracker)
}

// buildScorers picks the scoring strategy once, at startup. Remote backends
// win when configured, the OpenAI scorer covers content when enabled, and
// the deterministic heuristics fill every remaining slot.
func buildScorers(cfg config.Config, logger zerolog.Logger) []scorer.Scorer {
	var scorers []scorer.Scorer

	var client *scoring.Client
	if cfg.ScoringContentURL != "" || cfg.ScoringVocalURL != "" || cfg.ScoringVisualURL != "" {
		client = scoring.NewClient(scoring.Config{
			APIKey:      cfg.ScoringAPIKey,
			MaxRetries:  cfg.ScoringRetries,
			BackoffBase: cfg.BackoffBase,
			CallTimeout: cfg.ScoringTimeout,
		}, logger)
	}

	breakerCfg := scoring.BreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		RecoveryTimeout:  cfg.BreakerRecovery,
	}

	remote := func(dimension scorer.Dimension, url string) scorer.Scorer {
		backend := scoring.Backend{
			Name:    string(dimension),
			URL:     url,
			Breaker: scoring.NewBreaker(string(dimension), breakerCfg, logger),
		}
		return scorer.NewRemoteScorer(dimension, backend, client, cfg.ScoringTimeout, logger)
	}

	if cfg.ScoringContentURL != "" {
		scorers = append(scorers, remote(scorer.DimensionContent, cfg.ScoringContentURL))
	} else if cfg.AIProvider == "openai" && cfg.OpenAIAPIKey != "" {
		aiScorer, err := scorer.NewOpenAIContentScorer(scorer.OpenAIConfig{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.OpenAIModel,
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai scorer: %v", err)
		}
		scorers = append(scorers, aiScorer)
	} else {
		scorers = append(scorers, scorer.NewHeuristicContentScorer())
	}

	if cfg.ScoringVocalURL != "" {
		scorers = append(scorers, remote(scorer.DimensionVocal, cfg.ScoringVocalURL))
	} else {
		scorers = append(scorers, scorer.NewHeuristicVocalScorer())
	}

	if cfg.ScoringVisualURL != "" {
		scorers = append(scorers, remote(scorer.DimensionVisual, cfg.ScoringVisualURL))
	} else {
		scorers = append(scorers, scorer.NewHeuristicVisualScorer())
	}

	return scorers
}

func waitForShutdown(app *fiber.App, pool *worker.Pool, stopTracker context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if err := pool.Shutdown(ctx); err != nil {
		log.Printf("worker pool shutdown failed: %v", err)
	}

	stopTracker()

	log.Println("server stopped")
}
