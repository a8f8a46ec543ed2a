package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	EventChannelBase string

	ScoringContentURL string
	ScoringVocalURL   string
	ScoringVisualURL  string
	ScoringAPIKey     string
	ScoringTimeout    time.Duration
	ScoringRetries    int
	BackoffBase       time.Duration
	BreakerThreshold  int64
	BreakerRecovery   time.Duration
	ScorerBudget      time.Duration

	WebhookSecret string

	WorkerCount int
	QueueSize   int

	AIProvider   string
	OpenAIAPIKey string
	OpenAIModel  string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INTERVEXA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Intervexa Interview API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel_base", "intervexa:events")
	v.SetDefault("scoring.timeout", "30s")
	v.SetDefault("scoring.retries", 3)
	v.SetDefault("scoring.backoff_base", "1s")
	v.SetDefault("scoring.breaker_threshold", 5)
	v.SetDefault("scoring.breaker_recovery", "60s")
	v.SetDefault("scoring.budget", "2m")
	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.queue_size", 64)
	v.SetDefault("ai.provider", "heuristic")
	v.SetDefault("openai.model", "gpt-4o-mini")

	scoringTimeout, err := time.ParseDuration(v.GetString("scoring.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid scoring timeout: %w", err)
	}

	backoffBase, err := time.ParseDuration(v.GetString("scoring.backoff_base"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid scoring backoff base: %w", err)
	}

	breakerRecovery, err := time.ParseDuration(v.GetString("scoring.breaker_recovery"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid breaker recovery timeout: %w", err)
	}

	scorerBudget, err := time.ParseDuration(v.GetString("scoring.budget"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid scorer budget: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		EventChannelBase:  v.GetString("events.channel_base"),
		ScoringContentURL: v.GetString("scoring.content_url"),
		ScoringVocalURL:   v.GetString("scoring.vocal_url"),
		ScoringVisualURL:  v.GetString("scoring.visual_url"),
		ScoringAPIKey:     v.GetString("scoring.api_key"),
		ScoringTimeout:    scoringTimeout,
		ScoringRetries:    v.GetInt("scoring.retries"),
		BackoffBase:       backoffBase,
		BreakerThreshold:  v.GetInt64("scoring.breaker_threshold"),
		BreakerRecovery:   breakerRecovery,
		ScorerBudget:      scorerBudget,
		WebhookSecret:     v.GetString("webhook.secret"),
		WorkerCount:       v.GetInt("workers.count"),
		QueueSize:         v.GetInt("workers.queue_size"),
		AIProvider:        strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		OpenAIModel:       v.GetString("openai.model"),
	}

	if cfg.ScoringRetries <= 0 {
		cfg.ScoringRetries = 3
	}

	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}

	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	return cfg, nil
}
