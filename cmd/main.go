package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httphandler "donation-gateway/internal/adapters/http"
	"donation-gateway/internal/adapters/messaging/kafka"
	"donation-gateway/internal/adapters/messaging/mock"
	"donation-gateway/internal/adapters/provider/asaas"
	"donation-gateway/internal/adapters/provider/sandbox"
	"donation-gateway/internal/adapters/storage/postgres"
	"donation-gateway/internal/adapters/storage/redis"
	"donation-gateway/internal/app"
	"donation-gateway/internal/config"
	"donation-gateway/internal/core/ports"
	"donation-gateway/internal/observability"
)

const serviceName = "donation-gateway"

func main() {
	// --- 1. Configuration and Logging ---
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	if err := godotenv.Load(); err != nil {
		fallbackLogger.Info("No .env file found, relying on environment variables")
	}
	cfg, err := config.Load(configPath())
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("Application starting", "env", cfg.App.Env, "port", cfg.Server.Port, "provider", cfg.Provider.Kind)

	// --- 2. Observability ---
	shutdownTracer, err := observability.InitTracer(cfg.Jaeger.Port, serviceName)
	if err != nil {
		logger.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("Failed to shutdown tracer", "error", err)
		}
	}()

	// --- 3. Dependencies ---
	ctx := context.Background()

	var provider ports.PaymentProvider
	switch cfg.Provider.Kind {
	case "sandbox":
		provider = sandbox.New()
		logger.Warn("Using the in-memory sandbox provider; no real charges will be created")
	default:
		provider = asaas.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey, cfg.Provider.Timeout(), logger)
	}

	// PostgreSQL is optional: without it charges are only logged.
	var recorder ports.ChargeRecorder
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if cfg.Postgres.RunMigrations {
			if err := postgres.Migrate(ctx, pool); err != nil {
				logger.Error("Failed to run migrations", "error", err)
				os.Exit(1)
			}
		}
		recorder = postgres.NewRepository(pool, logger)
		logger.Info("Connected to PostgreSQL")
	}

	var sink ports.NotificationSink
	switch cfg.Notifications.Sink {
	case "kafka":
		publisher, err := kafka.NewPublisher(ctx, strings.Split(cfg.Kafka.BootstrapServers, ","), cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Error("Failed to create Kafka publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		sink = publisher
		logger.Info("Kafka publisher created", "topic", cfg.Kafka.Topic)
	default:
		sink = mock.NewSink(logger)
	}

	// Redis dedup in front of the sink is optional as well.
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("Failed to close Redis client", "error", err)
			}
		}()
		sink = redis.NewDedupSink(rdb, sink, time.Duration(cfg.Redis.DedupTTLSeconds)*time.Second, logger)
		logger.Info("Connected to Redis")
	}

	// --- 4. Service Layer ---
	builder := app.NewIntentBuilder(cfg.Donation)
	gateway := app.NewGateway(provider, logger)
	donationService := app.NewDonationService(builder, gateway, recorder, logger)
	webhookService := app.NewWebhookService(app.NewReconciler(logger), sink, recorder, logger)

	donationHandler := httphandler.NewDonationHandler(donationService, logger)
	webhookHandler := httphandler.NewWebhookHandler(webhookService, cfg.Provider.WebhookToken, logger)

	// --- 5. HTTP Router ---
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		observability.NewLoggerMiddleware(logger),
		observability.NewMetricsMiddleware(serviceName),
		observability.NewTracingMiddleware(serviceName),
	)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status":   "healthy",
			"service":  serviceName,
			"provider": provider.Name(),
		}); err != nil {
			logger.Error("Failed to write health response", "error", err)
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	// The donation form is served from the charity's site, not from this host.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{"POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
		r.Post("/donations", donationHandler.HandleCreateDonation)
	})
	r.Post("/webhooks/payments", webhookHandler.HandleWebhook)

	// --- 6. HTTP Server ---
	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
		// Provider calls run inside the request, so writes wait up to two provider timeouts.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2*cfg.Provider.Timeout() + 5*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Server exited properly")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "configs/config.yaml"
}
