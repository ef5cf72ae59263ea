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
	"gorm.io/gorm"

	"github.com/noah-isme/mathla-api/internal/config"
	"github.com/noah-isme/mathla-api/internal/database"
	"github.com/noah-isme/mathla-api/internal/handler"
	"github.com/noah-isme/mathla-api/internal/middleware"
	"github.com/noah-isme/mathla-api/internal/ratelimit"
	"github.com/noah-isme/mathla-api/internal/repository"
	"github.com/noah-isme/mathla-api/internal/router"
	"github.com/noah-isme/mathla-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL, !cfg.IsProduction() && level <= zerolog.DebugLevel)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
	} else {
		logger.Warn().Msg("redis url not set; gradebook cache and cross-node events disabled")
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	rosterRepo := repository.NewRosterRepository(db)
	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	gradebookCache := service.NewGradebookCache(redisClient, cfg.GradebookCacheTTL, logger)
	eventBus := service.NewSubmissionEventBus(redisClient, cfg.EventsChannel, natsConn, logger)
	eventBus.Start(ctx)

	activityService := service.NewActivityService(activityRepo, logger)
	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Submissions: submissionRepo,
		Assignments: assignmentRepo,
		Roster:      rosterRepo,
		Users:       userRepo,
		Activity:    activityService,
		Events:      eventBus,
		Cache:       gradebookCache,
		Validator:   validate,
		Logger:      logger,
	})
	gradebookService := service.NewGradebookService(userRepo, rosterRepo, submissionRepo, submissionService, gradebookCache, logger)
	rosterService := service.NewRosterService(assignmentRepo, rosterRepo, activityService, gradebookCache, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.CORSAllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler:     handler.NewSubmissionHandler(submissionService, activityService, logger),
		SubmissionFeedHandler: handler.NewSubmissionFeedHandler(eventBus, logger),
		GradebookHandler:      handler.NewGradebookHandler(gradebookService, logger),
		RosterHandler:         handler.NewRosterHandler(rosterService, logger),
		HealthProbes:          healthProbes(db, redisClient, natsConn),
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret, ratelimit.NewSlidingWindow(cfg.AuthMaxAttempts, cfg.AuthAttemptWindow)),
		RateLimiter:           middleware.RateLimit("api", cfg.APIRateLimit, cfg.APIRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancel)
}

func healthProbes(db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) map[string]handler.HealthProbe {
	probes := map[string]handler.HealthProbe{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		probes["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if natsConn != nil {
		probes["nats"] = func(context.Context) error {
			if !natsConn.IsConnected() {
				return nats.ErrConnectionClosed
			}
			return nil
		}
	}
	return probes
}

func waitForShutdown(app *fiber.App, stopWorkers context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
