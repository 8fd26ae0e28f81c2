package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"donation-gateway/internal/config"
	"donation-gateway/internal/observability"
)

// errSkipped marks a check whose dependency is not configured.
var errSkipped = errors.New("not configured")

// Check describes one diagnostic check
type Check struct {
	Name     string
	Func     func(ctx context.Context) error
	Error    error
	Duration time.Duration
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	skipColor = color.New(color.FgYellow)
)

func main() {
	logger := observability.SetupLogger("development")
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	checks := []Check{
		{Name: "Donation Gateway", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, localAddr(cfg.Server.Port)+"/health", nil, logger)
		}},
		{Name: "Payment Provider (" + cfg.Provider.Kind + ")", Func: func(ctx context.Context) error {
			return checkProvider(ctx, cfg.Provider, logger)
		}},
		{Name: "PostgreSQL", Func: func(ctx context.Context) error {
			return checkPostgres(ctx, cfg.Postgres.DSN, logger)
		}},
		{Name: "Redis", Func: func(ctx context.Context) error {
			return checkRedis(ctx, cfg.Redis.Addr, logger)
		}},
		{Name: "Kafka Cluster", Func: func(ctx context.Context) error {
			return checkKafka(ctx, cfg.Kafka.BootstrapServers)
		}},
		{Name: "Alerter Service", Func: func(ctx context.Context) error {
			return checkHTTPHealth(ctx, "http://localhost:8081/health", nil, logger)
		}},
	}

	var wg sync.WaitGroup
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	fmt.Println("🩺 Running system diagnostics...")

	for i := range checks {
		wg.Add(1)
		go func(c *Check) {
			defer wg.Done()
			start := time.Now()
			c.Error = c.Func(ctx)
			c.Duration = time.Since(start)
		}(&checks[i])
	}

	wg.Wait()

	fmt.Println("\n--- Diagnostics report ---")
	hasErrors := false
	for _, c := range checks {
		took := c.Duration.Round(time.Millisecond)
		switch {
		case c.Error == nil:
			fmt.Printf("[%s] %-32s (%v)\n", okColor.Sprint("✅ OK"), c.Name, took)
		case errors.Is(c.Error, errSkipped):
			fmt.Printf("[%s] %-32s\n", skipColor.Sprint("⏭  SKIP"), c.Name)
		default:
			hasErrors = true
			fmt.Printf("[%s] %-32s (%v) - error: %v\n", failColor.Sprint("❌ FAILED"), c.Name, took, c.Error)
		}
	}

	if hasErrors {
		failColor.Println("\nDiagnostics found problems.")
		os.Exit(1)
	}
	okColor.Println("\nAll systems are healthy!")
}

// --- Functions for checks ---

func localAddr(port string) string {
	if strings.HasPrefix(port, ":") {
		return "localhost" + port
	}
	return port
}

func checkHTTPHealth(ctx context.Context, url string, header http.Header, logger *slog.Logger) error {
	if !strings.HasPrefix(url, "http") {
		url = "http://" + url
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return nil
}

// checkProvider lists one customer, which proves both reachability and a valid API key.
func checkProvider(ctx context.Context, p config.ProviderConfig, logger *slog.Logger) error {
	if p.Kind == "sandbox" || p.BaseURL == "" {
		return errSkipped
	}
	header := http.Header{}
	header.Set("access_token", p.APIKey)
	return checkHTTPHealth(ctx, strings.TrimRight(p.BaseURL, "/")+"/customers?limit=1", header, logger)
}

func checkPostgres(ctx context.Context, dsn string, logger *slog.Logger) error {
	if dsn == "" {
		return errSkipped
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(ctx); err != nil {
			logger.Error("failed to close Postgres connection", "error", err)
		}
	}()
	return conn.Ping(ctx)
}

func checkRedis(ctx context.Context, addr string, logger *slog.Logger) error {
	if addr == "" {
		return errSkipped
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("failed to close Redis client", "error", err)
		}
	}()
	return rdb.Ping(ctx).Err()
}

func checkKafka(ctx context.Context, brokers string) error {
	if brokers == "" {
		return errSkipped
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(brokers, ",")...),
		kgo.DialTimeout(5*time.Second),
	)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Ping(ctx)
}
