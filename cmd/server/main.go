package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SessionPulse/internal/api"
	"SessionPulse/internal/config"
	"SessionPulse/internal/db"
	"SessionPulse/internal/email"
	"SessionPulse/internal/metrics"
	"SessionPulse/internal/models"
	"SessionPulse/internal/scheduler"
	"SessionPulse/internal/worker"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database (sessions)
	// ------------------------------------------------
	pgStore, pool, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()

	sessions := db.NewSessionRepository(pool)

	// ------------------------------------------------
	// Job Store
	// ------------------------------------------------
	var store scheduler.JobStore

	switch cfg.StoreBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		store = db.NewRedisStore(client)
	case "memory":
		logger.Warn("using in-memory job store, jobs are lost on restart")
		store = db.NewMemoryStore()
	default:
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal("job store migration failed", zap.Error(err))
		}
		store = pgStore
	}

	if !store.IsAvailable(ctx) {
		logger.Warn("job store not reachable at startup", zap.String("backend", cfg.StoreBackend))
	}

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Rate Limiter
	// ------------------------------------------------
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit)

	// ------------------------------------------------
	// Email Dispatch
	// ------------------------------------------------
	var (
		dispatch scheduler.Dispatcher
		instant  scheduler.InstantSender
	)

	switch cfg.DispatchMode {
	case "console":
		console := &email.ConsoleDispatcher{Log: logger}
		dispatch, instant = console, console
	default:
		provider := email.NewProviderClient(email.ProviderConfig{
			APIKey:     cfg.ProviderAPIKey,
			BaseURL:    cfg.ProviderBaseURL,
			From:       cfg.MailFrom,
			Timeout:    cfg.ProviderTimeout,
			MaxRetries: cfg.ProviderRetryAttempts,
			Limiter:    limiter,
			Log:        logger,
		})
		dispatch, instant = provider, email.ImmediateDispatch{Provider: provider}
	}

	if cfg.SMTPHost != "" {
		instant = &email.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Retries:  30,
		}
	}

	renderer, err := email.NewRenderer(cfg.AppBaseURL, cfg.Location())
	if err != nil {
		logger.Fatal("failed to load email templates", zap.Error(err))
	}

	// ------------------------------------------------
	// Scheduler
	// ------------------------------------------------
	svc := scheduler.New(store, dispatch, renderer, logger, scheduler.WithInstantSender(instant))

	// ------------------------------------------------
	// Delivery Event Channel (webhook -> workers)
	// ------------------------------------------------
	events := make(chan models.DeliveryEvent, cfg.EventBufferSize)

	// ------------------------------------------------
	// Worker Pool
	// ------------------------------------------------
	var wg sync.WaitGroup

	worker.StartPool(
		ctx,
		&wg,
		cfg.WorkerCount,
		events,
		svc,
		logger,
	)

	// ------------------------------------------------
	// HTTP API Server
	// ------------------------------------------------
	apiHandler := &api.Handler{
		Scheduler:     svc,
		Sessions:      sessions,
		Store:         store,
		Events:        events,
		WebhookSecret: cfg.ProviderWebhookSecret,
		Validate:      validator.New(),
		Log:           logger,
	}

	apiServer := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           apiHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api server started", zap.String("port", cfg.APIPort))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down services...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Stop accepting webhooks before closing the queue
	stopAPI(shutdownCtx, apiServer, events, logger)

	// Wait workers to finish
	wg.Wait()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("application shutdown complete")
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// stopAPI shuts the webhook server down and then closes the event queue. A
// handler still running after a failed shutdown may send, so the queue then
// stays open and workers leave on the root context instead.
func stopAPI(ctx context.Context, srv shutdowner, events chan models.DeliveryEvent, logger *zap.Logger) {
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("api shutdown failed, leaving event queue open", zap.Error(err))
		return
	}
	close(events)
}
