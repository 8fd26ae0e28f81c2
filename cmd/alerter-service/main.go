package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/twmb/franz-go/pkg/kgo"

	"donation-gateway/internal/adapters/messaging/kafka"
	"donation-gateway/internal/config"
	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/observability"
)

// Simplified webhook structure from Alertmanager
type AlertWebhook struct {
	Alerts []struct {
		Status string `json:"status"`
		Labels struct {
			Alertname string `json:"alertname"`
			Severity  string `json:"severity"`
		} `json:"labels"`
		Annotations struct {
			Summary string `json:"summary"`
		} `json:"annotations"`
	} `json:"alerts"`
}

func alertHandler(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	var webhook AlertWebhook
	if err := json.NewDecoder(r.Body).Decode(&webhook); err != nil {
		logger.Error("Failed to decode webhook", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	for _, alert := range webhook.Alerts {
		logger.Info("ALERT",
			"status", alert.Status,
			"alertname", alert.Labels.Alertname,
			"severity", alert.Labels.Severity,
			"summary", alert.Annotations.Summary,
		)
	}
	w.WriteHeader(http.StatusOK)
}

// handleRecord logs admin notifications (chargebacks). Donor notifications belong to the mailer.
func handleRecord(record *kgo.Record, logger *slog.Logger) {
	if kafka.Header(record, kafka.HeaderAudience) != string(domain.AudienceAdmin) {
		return
	}
	n, err := kafka.DecodeRecord(record)
	if err != nil {
		logger.Error("Failed to decode notification", "error", err)
		return
	}
	logger.Warn("CHARGEBACK",
		"event_type", n.EventType,
		"provider_transaction_id", n.ProviderTransactionID,
		"reason", n.Reason,
		"amount_minor_units", n.AmountMinorUnits,
	)
}

func consume(ctx context.Context, client *kgo.Client, logger *slog.Logger) {
	for {
		fetches := client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			logger.Error("Fetch failed", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			handleRecord(record, logger)
		})
	}
}

func main() {
	// --- Configuration and Logging ---
	fallbackLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fallbackLogger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg.App.Env)
	logger.Info("The alerter-service is launched", "env", cfg.App.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Kafka.BootstrapServers != "" {
		client, err := kgo.NewClient(
			kgo.SeedBrokers(strings.Split(cfg.Kafka.BootstrapServers, ",")...),
			kgo.ConsumerGroup("donation-alerter"),
			kgo.ConsumeTopics(cfg.Kafka.Topic),
		)
		if err != nil {
			logger.Error("Failed to create Kafka consumer", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		go consume(ctx, client, logger)
		logger.Info("Consuming notifications", "topic", cfg.Kafka.Topic)
	} else {
		logger.Warn("kafka.bootstrap_servers is empty; only Alertmanager webhooks are served")
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/alert", func(w http.ResponseWriter, req *http.Request) {
		alertHandler(w, req, logger)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "OK"}); err != nil {
			logger.Error("Failed to write health response", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})

	port := os.Getenv("ALERTER_PORT")
	if port == "" {
		port = "8081"
	}
	srv := &http.Server{Addr: "0.0.0.0:" + port, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("Alerter service started on", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
}
