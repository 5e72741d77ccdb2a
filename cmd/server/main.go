package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/drivetest-backend/internal/config"
	"github.com/stemsi/drivetest-backend/internal/database"
	"github.com/stemsi/drivetest-backend/internal/datasource"
	"github.com/stemsi/drivetest-backend/internal/exam"
	"github.com/stemsi/drivetest-backend/internal/handler"
	"github.com/stemsi/drivetest-backend/internal/logger"
	"github.com/stemsi/drivetest-backend/internal/messaging"
	"github.com/stemsi/drivetest-backend/internal/router"
	"github.com/stemsi/drivetest-backend/internal/service"
	"github.com/stemsi/drivetest-backend/internal/storage"
	"github.com/stemsi/drivetest-backend/internal/validator"
	"github.com/stemsi/drivetest-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("data_source", cfg.DataSource).
		Str("log_level", cfg.LogLevel).
		Msg("Starting DriveTest Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Background workers run on their own context so they outlive request
	// shutdown long enough to drain.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	// ─── Data Source ───────────────────────────────────────────────────
	// Chosen once here; nothing below branches on it.
	var (
		source datasource.Source
		sink   service.ResponseSink
	)
	switch cfg.DataSource {
	case config.DataSourceFixture:
		fixture := datasource.NewFixture()
		source = fixture
		sink = service.NewDirectResponseSink(fixture)
		log.Warn().
			Str("student", datasource.DemoStudentEmail).
			Str("admin", datasource.DemoAdminEmail).
			Msg("Using in-memory fixture data; nothing is persisted")

	default:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()

		rdb, err := database.NewRedisClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		pg := datasource.NewPostgres(pool)
		source = pg
		sink = worker.NewResponseQueue(rdb)
		startResponseWorker(workerCtx, &workers, pg, rdb, log)
	}

	// ─── Exam-Completed Events ─────────────────────────────────────────
	var publisher messaging.Publisher = messaging.NopPublisher{}
	if cfg.AMQPURL != "" {
		rp, err := messaging.NewRabbitPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		publisher = rp
		log.Info().Str("queue", messaging.QueueExamCompleted).Msg("Publishing exam-completed events")
	}
	defer publisher.Close()

	// ─── Image Storage ─────────────────────────────────────────────────
	var store storage.ObjectStore
	if cfg.S3.Enabled() {
		s3, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to object storage")
		}
		store = s3
		log.Info().Str("endpoint", cfg.S3.Endpoint).Str("bucket", cfg.S3.Bucket).Msg("Storing uploads in object storage")
	} else {
		local, err := storage.NewLocalStore(cfg.UploadDir, router.UploadsPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to prepare upload directory")
		}
		store = local
	}

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, source)
	reporter := service.NewResultReporter(source, sink, publisher, log)
	loader := exam.NewLoader(source, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	sessionService := service.NewExamSessionService(loader, reporter, source, log)
	questionService := service.NewQuestionService(source, log)
	billingService := service.NewBillingService(source, log)
	mediaService := service.NewMediaService(store, cfg.MaxUploadBytes)
	dashboardService := service.NewDashboardService(source, source, sessionService)

	workers.Add(1)
	go func() {
		defer workers.Done()
		sessionService.Run(workerCtx)
	}()

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:      handler.NewAuthHandler(authService),
		Exam:      handler.NewExamHandler(sessionService),
		WS:        handler.NewWSHandler(sessionService, log, cfg.AllowedOrigins),
		Question:  handler.NewQuestionHandler(questionService),
		Media:     handler.NewMediaHandler(mediaService),
		Dashboard: handler.NewDashboardHandler(dashboardService),
		Billing:   handler.NewBillingHandler(billingService),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(ctx, authService, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop live sessions; unfinished ones stay open in the store.
	sessionService.Close()

	// 3. Stop background workers and wait for queues to drain.
	workerCancel()
	workers.Wait()

	log.Info().Msg("Shutdown complete")
}

func startResponseWorker(ctx context.Context, wg *sync.WaitGroup, store worker.ResponseStore, rdb *redis.Client, log zerolog.Logger) {
	w := worker.NewResponseWorker(store, rdb, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Start(ctx)
	}()
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
