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

	"github.com/geometria-labs/geometria-api/internal/config"
	"github.com/geometria-labs/geometria-api/internal/database"
	"github.com/geometria-labs/geometria-api/internal/handler"
	"github.com/geometria-labs/geometria-api/internal/middleware"
	"github.com/geometria-labs/geometria-api/internal/models"
	"github.com/geometria-labs/geometria-api/internal/repository"
	"github.com/geometria-labs/geometria-api/internal/router"
	"github.com/geometria-labs/geometria-api/internal/service"
	"github.com/geometria-labs/geometria-api/pkg/ai"
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

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Worksheet{},
		&models.WorksheetSection{},
		&models.WorksheetSubmission{},
		&models.SectionSubmission{},
		&models.AssessmentRecord{},
		&models.Rubric{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional: caching and event fan-out degrade to no-ops.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, caching disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, event fan-out disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	worksheetRepo := repository.NewWorksheetRepository(db)
	worksheetSubmissionRepo := repository.NewWorksheetSubmissionRepository(db)
	sectionSubmissionRepo := repository.NewSectionSubmissionRepository(db)
	assessmentRepo := repository.NewAssessmentRepository(db)
	rubricRepo := repository.NewRubricRepository(db)

	var evaluator ai.Evaluator
	if cfg.OpenAIAPIKey != "" {
		openaiEvaluator, err := ai.NewOpenAIEvaluator(ai.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.OpenAIModel,
			MaxTokens: cfg.OpenAIMaxTokens,
			Logger:    logger,
		})
		if err != nil {
			log.Fatalf("failed to create openai evaluator: %v", err)
		}
		evaluator = openaiEvaluator
	} else {
		logger.Warn().Msg("no openai api key configured, assessment endpoint disabled")
	}

	seedService := service.NewSeedService(worksheetRepo, rubricRepo, logger)
	if err := seedService.Seed(context.Background()); err != nil {
		log.Fatalf("failed to seed content catalog: %v", err)
	}

	contentService := service.NewContentService(worksheetRepo, redisClient, cfg.ContentCacheTTL, logger)
	worksheetService := service.NewWorksheetService(worksheetSubmissionRepo, sectionSubmissionRepo, validate, logger)
	sectionService := service.NewSectionService(contentService, sectionSubmissionRepo, logger)
	notifier := service.NewAssessmentNotifier(redisClient, natsConn, cfg.EventChannelBase, logger)
	assessmentService := service.NewAssessmentService(assessmentRepo, rubricRepo, evaluator, notifier, logger)

	worksheetHandler := handler.NewWorksheetHandler(worksheetService, logger)
	sectionHandler := handler.NewSectionHandler(sectionService, logger)
	assessmentHandler := handler.NewAssessmentHandler(assessmentService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		WorksheetHandler:  worksheetHandler,
		SectionHandler:    sectionHandler,
		AssessmentHandler: assessmentHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
		AssessRateLimiter: middleware.RateLimit("assess", cfg.AssessRateLimit, cfg.AssessRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
