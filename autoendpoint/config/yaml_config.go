package config

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/ncalexan/autopush-rs/internal/routers/apns"
	"github.com/ncalexan/autopush-rs/internal/routers/fcm"
	"github.com/ncalexan/autopush-rs/internal/routers/webpush"
)

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string           `yaml:"project_id"`
	ListenAddr             string           `yaml:"listen_addr"`
	EndpointURL            string           `yaml:"endpoint_url"`
	TopicID                string           `yaml:"topic_id"`
	SubscriptionID         string           `yaml:"subscription_id"`
	SubscriptionDLQTopicID string           `yaml:"subscription_dlq_topic_id"`
	Redis                  YamlRedisConfig  `yaml:"redis"`
	FCM                    fcm.Settings     `yaml:"fcm"`
	APNS                   apns.Settings    `yaml:"apns"`
	WebPush                webpush.Settings `yaml:"webpush"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:              baseCfg.ProjectID,
		ListenAddr:             baseCfg.ListenAddr,
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		Redis: RedisConfig{
			Enabled:  baseCfg.Redis.Enabled,
			Addr:     baseCfg.Redis.Addr,
			Password: baseCfg.Redis.Password,
			DB:       baseCfg.Redis.DB,
		},
		FCM:     baseCfg.FCM,
		APNS:    baseCfg.APNS,
		WebPush: baseCfg.WebPush,
	}

	if baseCfg.EndpointURL != "" {
		parsed, err := url.Parse(baseCfg.EndpointURL)
		if err != nil {
			return nil, fmt.Errorf("endpoint_url is not a valid URL: %w", err)
		}
		cfg.EndpointURL = parsed
	}

	return cfg, nil
}
