package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	BotAPIURL     string `env:"BOT_API_URL,required=true"`
	BotToken      string `env:"BOT_TOKEN,required=true"`
	WebhookSecret string `env:"WEBHOOK_SECRET,required=true"`

	InitialDelayHours   float64 `env:"INITIAL_DELAY_HOURS,default=3"`
	RepeatIntervalHours float64 `env:"REPEAT_INTERVAL_HOURS,default=3"`
	TTLHours            float64 `env:"TTL_HOURS,default=24"`

	Timezone   string `env:"TIMEZONE,default=UTC"`
	QuietStart string `env:"QUIET_START,default=22:00"`
	QuietEnd   string `env:"QUIET_END,default=09:00"`

	PollIntervalSeconds int `env:"POLL_INTERVAL_SECONDS,default=60"`
	SendRetryMax        int `env:"SEND_RETRY_MAX,default=3"`
	RateLimitPerSec     int `env:"RATE_LIMIT_PER_SEC,default=25"`

	TitleTruncateLen   int `env:"TITLE_TRUNCATE_LEN,default=50"`
	CommentTruncateLen int `env:"COMMENT_TRUNCATE_LEN,default=50"`

	ProcessedRetentionDays int `env:"PROCESSED_RETENTION_DAYS,default=7"`
	CleanupIntervalHours   int `env:"CLEANUP_INTERVAL_HOURS,default=24"`

	WorkItemURLTemplate string `env:"WORK_ITEM_URL_TEMPLATE"`
	WebhookSkipVerify   bool   `env:"WEBHOOK_SKIP_VERIFY,default=false"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects empty required values; required=true only catches
// variables that are unset entirely.
func (c *Config) validate() error {
	required := map[string]string{
		"DATABASE_DSN":   c.DatabaseDSN,
		"RABBITMQ_URL":   c.RabbitMQURL,
		"REDIS_URL":      c.RedisURL,
		"BOT_API_URL":    c.BotAPIURL,
		"BOT_TOKEN":      c.BotToken,
		"WEBHOOK_SECRET": c.WebhookSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("required environment variable %s is empty", name)
		}
	}
	return nil
}
