package config_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncalexan/autopush-rs/autoendpoint/config"
)

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		endpoint, _ := url.Parse("https://updates.example.com")
		return &config.Config{
			ProjectID:      "base-project",
			ListenAddr:     ":8080",
			EndpointURL:    endpoint,
			TopicID:        "base-topic",
			SubscriptionID: "base-sub",
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PROJECT_ID", "env-project")
		t.Setenv("PORT", "9090")
		t.Setenv("ENDPOINT_URL", "https://env.example.com")
		t.Setenv("TOPIC_ID", "env-topic")
		t.Setenv("SUBSCRIPTION_ID", "env-sub")
		t.Setenv("SUBSCRIPTION_DLQ_TOPIC_ID", "env-dlq")
		t.Setenv("REDIS_ADDR", "redis:6379")
		t.Setenv("REDIS_PASSWORD", "hunter2")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("FCM_MIN_TTL", "120")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "env-project", finalCfg.ProjectID)
		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.Equal(t, "https://env.example.com", finalCfg.EndpointURL.String())
		assert.Equal(t, "env-topic", finalCfg.TopicID)
		assert.Equal(t, "env-sub", finalCfg.SubscriptionID)
		assert.Equal(t, "env-dlq", finalCfg.SubscriptionDLQTopicID)

		assert.True(t, finalCfg.Redis.Enabled, "setting REDIS_ADDR enables the cache")
		assert.Equal(t, "redis:6379", finalCfg.Redis.Addr)
		assert.Equal(t, "hunter2", finalCfg.Redis.Password)
		assert.Equal(t, 3, finalCfg.Redis.DB)

		assert.Equal(t, int64(120), finalCfg.FCM.MinTTL)
	})

	t.Run("Success - No overrides keeps base values", func(t *testing.T) {
		cfg := baseConfig()

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, "base-project", finalCfg.ProjectID)
		assert.Equal(t, ":8080", finalCfg.ListenAddr)
		assert.False(t, finalCfg.Redis.Enabled)
	})

	t.Run("Success - FCM credentials from JSON", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("FCM_CREDENTIALS", `{"app-1":{"project_id":"env-fcm-project","credential":"{\"type\":\"service_account\"}"}}`)

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		require.Contains(t, finalCfg.FCM.Credentials, "app-1")
		assert.Equal(t, "env-fcm-project", finalCfg.FCM.Credentials["app-1"].ProjectID)
	})

	t.Run("Failure - malformed FCM credentials", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("FCM_CREDENTIALS", "{not json")

		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
	})

	t.Run("Failure - malformed FCM min ttl", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("FCM_MIN_TTL", "soon")

		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
	})

	t.Run("Failure - relative endpoint url", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("ENDPOINT_URL", "/just/a/path")

		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "absolute")
	})

	t.Run("Failure - missing listen addr", func(t *testing.T) {
		cfg := baseConfig()
		cfg.ListenAddr = ""

		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "listen_addr")
	})
}
