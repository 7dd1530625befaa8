package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"

	"github.com/ncalexan/autopush-rs/internal/routers/apns"
	"github.com/ncalexan/autopush-rs/internal/routers/fcm"
	"github.com/ncalexan/autopush-rs/internal/routers/webpush"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// Config is the single, authoritative runtime configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	EndpointURL            *url.URL
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string

	Redis   RedisConfig
	FCM     fcm.Settings
	APNS    apns.Settings
	WebPush webpush.Settings
}

// UpdateConfigWithEnvOverrides applies environment variables and final
// validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("ENDPOINT_URL"); val != "" {
		parsed, err := url.Parse(val)
		if err != nil {
			return nil, fmt.Errorf("ENDPOINT_URL is not a valid URL: %w", err)
		}
		logger.Debug("Overriding config value", "key", "ENDPOINT_URL", "source", "env")
		cfg.EndpointURL = parsed
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		cfg.TopicID = val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		cfg.SubscriptionID = val
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		cfg.SubscriptionDLQTopicID = val
	}

	// Redis overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}

	// FCM overrides. Credentials arrive as a JSON map so a whole
	// application set can be swapped without touching the yaml.
	if val := os.Getenv("FCM_MIN_TTL"); val != "" {
		ttl, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("FCM_MIN_TTL is not an integer: %w", err)
		}
		cfg.FCM.MinTTL = ttl
	}
	if val := os.Getenv("FCM_CREDENTIALS"); val != "" {
		var credentials map[string]fcm.Credential
		if err := json.Unmarshal([]byte(val), &credentials); err != nil {
			return nil, fmt.Errorf("FCM_CREDENTIALS is not a valid JSON map: %w", err)
		}
		logger.Debug("Overriding config value", "key", "FCM_CREDENTIALS", "source", "env")
		cfg.FCM.Credentials = credentials
	}

	// Final validation
	if cfg.EndpointURL == nil || !cfg.EndpointURL.IsAbs() {
		return nil, fmt.Errorf("endpoint_url must be an absolute URL")
	}
	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("listen_addr must be set")
	}

	return cfg, nil
}
