// Package config содержит логику чтения конфигурации бота.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	defaultRunAddress  = "0.0.0.0:10000"
	defaultProviderURL = "https://api.viotp.com"
)

// Config содержит параметры конфигурации бота.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	BotToken    string `env:"BOT_TOKEN"`
	APIToken    string `env:"API_TOKEN"`
	ProviderURL string `env:"PROVIDER_URL"`
	WebhookURL  string `env:"WEBHOOK_URL"`

	AdminID    int64  `env:"ADMIN_ID"`
	UsePolling bool   `env:"USE_POLLING"`
	UseProxy   bool   `env:"USE_PROXY"`
	ProxyURL   string `env:"PROXY_URL"`
	Country    string `env:"COUNTRY" envDefault:"vn"`

	PollInterval       time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	PollAttempts       int           `env:"POLL_ATTEMPTS" envDefault:"120"`
	NotifyOnExhaustion bool          `env:"NOTIFY_ON_EXHAUSTION"`
}

// Parse считывает конфигурацию из файла .env, переменных окружения и флагов командной строки.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envBotToken := cfg.BotToken
	envAPIToken := cfg.APIToken
	envProviderURL := cfg.ProviderURL
	envWebhookURL := cfg.WebhookURL

	flag.StringVar(&cfg.RunAddress, "a", "", "address and port for HTTP server")
	flag.StringVar(&cfg.BotToken, "t", "", "telegram bot token")
	flag.StringVar(&cfg.APIToken, "k", "", "OTP provider API token")
	flag.StringVar(&cfg.ProviderURL, "p", defaultProviderURL, "OTP provider base URL")
	flag.StringVar(&cfg.WebhookURL, "w", "", "public base URL for telegram webhook")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envBotToken != "" {
		cfg.BotToken = envBotToken
	}
	if envAPIToken != "" {
		cfg.APIToken = envAPIToken
	}
	if envProviderURL != "" {
		cfg.ProviderURL = envProviderURL
	}
	if envWebhookURL != "" {
		cfg.WebhookURL = envWebhookURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
		if port := os.Getenv("PORT"); port != "" {
			cfg.RunAddress = ":" + port
		}
	}
	if cfg.ProviderURL == "" {
		cfg.ProviderURL = defaultProviderURL
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}
	if c.PollAttempts <= 0 {
		errs = append(errs, fmt.Errorf("POLL_ATTEMPTS must be positive, got %d", c.PollAttempts))
	}
	if c.UseProxy && c.ProxyURL == "" {
		errs = append(errs, errors.New("PROXY_URL is required when USE_PROXY is set"))
	}
	if !c.UsePolling && c.WebhookURL == "" {
		errs = append(errs, errors.New("WEBHOOK_URL is required unless USE_POLLING is set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
