package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// DonationConfig stores the parameters of the intent builder.
type DonationConfig struct {
	MinAmount               int64  `yaml:"min_amount"`
	MaxAmount               int64  `yaml:"max_amount"`
	MinInstallmentAmount    int64  `yaml:"min_installment_amount"`
	MaxInstallments         int    `yaml:"max_installments"`
	DueDateOffsetDays       int    `yaml:"due_date_offset_days"`
	BoletoDueDateOffsetDays int    `yaml:"boleto_due_date_offset_days"`
	DescriptionPrefix       string `yaml:"description_prefix"`
	Platform                string `yaml:"platform"`
	Timezone                string `yaml:"timezone"`
}

// ProviderConfig selects and configures the payment provider variant.
type ProviderConfig struct {
	Kind           string `yaml:"kind"` // "asaas" or "sandbox"
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	WebhookToken   string `yaml:"webhook_token"`
}

// Timeout returns the per-call timeout for provider requests.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type Config struct {
	App struct {
		Env string `yaml:"env"`
	} `yaml:"app"`
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Donation DonationConfig `yaml:"donation"`
	Postgres struct {
		DSN           string `yaml:"dsn"`
		RunMigrations bool   `yaml:"run_migrations"`
	} `yaml:"postgres"`
	Redis struct {
		Addr            string `yaml:"addr"`
		DedupTTLSeconds int    `yaml:"dedup_ttl_seconds"`
	} `yaml:"redis"`
	Kafka struct {
		BootstrapServers string `yaml:"bootstrap_servers"`
		Topic            string `yaml:"topic"`
	} `yaml:"kafka"`
	Notifications struct {
		Sink string `yaml:"sink"` // "log" or "kafka"
	} `yaml:"notifications"`
	Jaeger struct {
		Port string `yaml:"port"`
	} `yaml:"jaeger"`
}

// Load reads the YAML file, substitutes ${ENV} references and applies defaults.
func Load(configPath string) (*Config, error) {
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(file)
}

// Parse is Load without the file system.
func Parse(raw []byte) (*Config, error) {
	config := &Config{}

	// Environment variables are substituted into the raw YAML first.
	expanded := os.ExpandEnv(string(raw))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "production"
	}
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"https://*", "http://*"}
	}
	c.Provider.Kind = strings.ToLower(strings.TrimSpace(c.Provider.Kind))
	if c.Provider.Kind == "" {
		c.Provider.Kind = "asaas"
	}
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = 30
	}
	d := &c.Donation
	if d.MinAmount <= 0 {
		d.MinAmount = 100
	}
	if d.MaxAmount <= 0 {
		d.MaxAmount = 100_000_000
	}
	if d.MinInstallmentAmount <= 0 {
		d.MinInstallmentAmount = 500
	}
	if d.MaxInstallments <= 0 || d.MaxInstallments > 12 {
		d.MaxInstallments = 12
	}
	if d.DueDateOffsetDays <= 0 {
		d.DueDateOffsetDays = 1
	}
	if d.BoletoDueDateOffsetDays <= 0 {
		d.BoletoDueDateOffsetDays = 3
	}
	if d.DescriptionPrefix == "" {
		d.DescriptionPrefix = "Doação"
	}
	if d.Platform == "" {
		d.Platform = "donation-gateway"
	}
	if d.Timezone == "" {
		d.Timezone = "America/Sao_Paulo"
	}
	if c.Redis.DedupTTLSeconds <= 0 {
		c.Redis.DedupTTLSeconds = 7 * 24 * 3600
	}
	c.Notifications.Sink = strings.ToLower(strings.TrimSpace(c.Notifications.Sink))
	if c.Notifications.Sink == "" {
		c.Notifications.Sink = "log"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "donations.notifications"
	}
}

// Validate rejects configurations the gateway cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Provider.Kind {
	case "asaas":
		if c.Provider.BaseURL == "" {
			errs = append(errs, errors.New("provider.base_url is required"))
		}
		if c.Provider.APIKey == "" {
			errs = append(errs, errors.New("provider.api_key is required"))
		}
	case "sandbox":
	default:
		errs = append(errs, fmt.Errorf("unknown provider.kind %q", c.Provider.Kind))
	}
	switch c.Notifications.Sink {
	case "log":
	case "kafka":
		if c.Kafka.BootstrapServers == "" {
			errs = append(errs, errors.New("kafka.bootstrap_servers is required for the kafka sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notifications.sink %q", c.Notifications.Sink))
	}
	if c.Donation.MaxAmount < c.Donation.MinAmount {
		errs = append(errs, errors.New("donation.max_amount must not be below donation.min_amount"))
	}
	if _, err := time.LoadLocation(c.Donation.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("donation.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the time zone used for due dates and card expiry checks.
func (d DonationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
