package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"cardiovision/internal/agent"
	"cardiovision/internal/config"
	"cardiovision/internal/consultation"
	"cardiovision/internal/identity"
	"cardiovision/internal/observability/metrics"
	"cardiovision/internal/platform/telegram"
	"cardiovision/internal/report"
	"cardiovision/pkg/logging"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Infrastructure
	db, err := connectDB(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := runMigrations(cfg.MigrationsPath, cfg.DatabaseURL, logger); err != nil {
		return err
	}

	var (
		consultationMetrics *metrics.ConsultationMetrics
		metricsHandler      http.Handler
	)
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		consultationMetrics = metrics.NewConsultationMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	idProvider, closeIdentity, err := buildIdentity(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeIdentity()

	// 2. Clients
	aiClient := agent.NewClient(agent.Config{
		APIKey:       cfg.OpenRouterAPIKey,
		BaseURL:      cfg.OpenRouterBaseURL,
		Model:        cfg.AIModel,
		Timeout:      cfg.AITimeout,
		MaxRetries:   cfg.AIMaxRetries,
		RetryBackoff: cfg.AIRetryBackoff,
	}, agent.WithMetrics(consultationMetrics), agent.WithLogger(logger.With("component", "ai")))
	if !aiClient.Configured() {
		logger.Warn("OPENROUTER_API_KEY is not set; AI narratives are disabled")
	}

	var sender report.Sender
	if cfg.AlertsEnabled() {
		sender = telegram.NewClient(cfg.TelegramBotToken)
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN or DOCTOR_CHAT_ID not set; high-risk alerts are disabled")
	}
	reportSvc := report.NewService(sender, cfg.DoctorChatID, cfg.ReportFontPath, logger.With("component", "report"))

	// 3. Services
	deps := consultation.Deps{
		Repo:    consultation.NewRepository(db),
		AI:      aiClient,
		Metrics: consultationMetrics,
		Logger:  logger.With("component", "consultation"),
	}
	if sender != nil {
		deps.Alerts = reportSvc
	}
	consultationSvc := consultation.NewService(deps)
	consultationHandler := consultation.NewHandler(consultationSvc, reportSvc, logger)

	// 4. Router
	router := setupRouter(routerDeps{
		Logger:         logger,
		DB:             db,
		Identity:       idProvider,
		Consultation:   consultationHandler,
		Metrics:        metricsHandler,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// AI calls can take up to AI_TIMEOUT per attempt.
		WriteTimeout: cfg.AITimeout*time.Duration(cfg.AIMaxRetries+1) + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func connectDB(ctx context.Context, dsn string, logger *logging.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	attempt := 0
	backoff := retry.WithMaxRetries(9, retry.NewConstant(2*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			logger.Info("waiting for database", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("connected to database")
	return db, nil
}

func runMigrations(source, dsn string, logger *logging.Logger) error {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return fmt.Errorf("migration init: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up: %w", err)
	}
	logger.Info("migrations applied", "source", source)
	return nil
}

func buildIdentity(ctx context.Context, cfg *config.Config, logger *logging.Logger) (identity.Provider, func(), error) {
	if cfg.IdentityMode != config.IdentityModeRedis {
		logger.Info("identity from request headers", "user_header", identity.HeaderUserID)
		return identity.HeaderProvider{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("identity from redis sessions", "addr", cfg.RedisAddr)
	return identity.NewRedisSessionProvider(client), func() { _ = client.Close() }, nil
}
