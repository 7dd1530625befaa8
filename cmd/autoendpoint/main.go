package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"

	"github.com/ncalexan/autopush-rs/autoendpoint"
	"github.com/ncalexan/autopush-rs/autoendpoint/config"
	"github.com/ncalexan/autopush-rs/internal/metrics"
	"github.com/ncalexan/autopush-rs/internal/routers/apns"
	"github.com/ncalexan/autopush-rs/internal/routers/fcm"
	"github.com/ncalexan/autopush-rs/internal/routers/webpush"
	"github.com/ncalexan/autopush-rs/internal/storage/cache"
	fsStore "github.com/ncalexan/autopush-rs/internal/storage/firestore"
	"github.com/ncalexan/autopush-rs/pkg/apierror"
	"github.com/ncalexan/autopush-rs/pkg/router"
	"github.com/ncalexan/autopush-rs/pkg/store"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
		apierror.CaptureStacks = true
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "autoendpoint")
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config mapping failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Infrastructure Clients ---
	psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("PubSub client failed", "err", err)
		os.Exit(1)
	}
	defer psClient.Close()

	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("Firestore client failed", "err", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	// --- User Store (Decorated) ---
	var userStore store.UserStore = fsStore.NewUserStore(fsClient)
	logger.Info("UserStore initialized", "type", "firestore")

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		userStore = cache.NewCachedUserStore(userStore, redisClient, 24*time.Hour)
		logger.Info("UserStore upgraded", "type", "redis_cached_firestore")
	}

	// --- Metrics ---
	m, err := metrics.New(otel.GetMeterProvider().Meter("autoendpoint"))
	if err != nil {
		logger.Error("Failed to build metrics", "err", err)
		os.Exit(1)
	}

	// --- Routers ---
	// Client construction authenticates every configured credential up
	// front. Any failure is fatal: a partial pool would silently drop
	// applications.
	routerMap := make(map[string]router.Router)

	fcmClients, err := fcm.BuildClients(ctx, cfg.FCM)
	if err != nil {
		logger.Error("Failed to build FCM clients", "err", err)
		os.Exit(1)
	}
	fcmRouter := fcm.NewRouter(cfg.FCM, cfg.EndpointURL, fcmClients, m, userStore, logger)
	routerMap["fcm"] = fcmRouter
	logger.Info("FCM router initialized", "clients", len(fcmClients), "active", fcmRouter.Active())

	apnsClients, err := apns.BuildClients(cfg.APNS)
	if err != nil {
		logger.Error("Failed to build APNs clients", "err", err)
		os.Exit(1)
	}
	apnsRouter := apns.NewRouter(cfg.APNS, cfg.EndpointURL, apnsClients, m, userStore, logger)
	routerMap["apns"] = apnsRouter
	logger.Info("APNs router initialized", "clients", len(apnsClients), "active", apnsRouter.Active())

	webpushClients := webpush.BuildClients(cfg.WebPush)
	webpushRouter := webpush.NewRouter(cfg.WebPush, cfg.EndpointURL, webpushClients, m, userStore, logger)
	routerMap["webpush"] = webpushRouter
	logger.Info("Web Push router initialized", "clients", len(webpushClients), "active", webpushRouter.Active())

	// --- Consumer & Service ---
	if err := ensureSubscription(ctx, cfg, psClient, logger); err != nil {
		logger.Error("Failed to ensure subscription", "err", err)
		os.Exit(1)
	}
	consumer := psClient.Subscriber(cfg.SubscriptionID)

	service := autoendpoint.New(cfg, routerMap, userStore, consumer, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := service.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", "err", err)
		}
	}()

	logger.Info("Starting service...")
	if err := service.Start(ctx); err != nil {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}

// ensureSubscription creates the dispatch subscription if it does not
// already exist, with a dead-letter policy for poison messages.
func ensureSubscription(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) error {
	subName := pubsubName(cfg.ProjectID, "subscriptions", cfg.SubscriptionID)
	subConfig := &pubsubpb.Subscription{
		Name:               subName,
		Topic:              pubsubName(cfg.ProjectID, "topics", cfg.TopicID),
		AckDeadlineSeconds: 10,
		DeadLetterPolicy: &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     pubsubName(cfg.ProjectID, "topics", cfg.SubscriptionDLQTopicID),
			MaxDeliveryAttempts: 5,
		},
	}

	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	_, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig)
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	return err
}

func pubsubName(projectID, kind, id string) string {
	return fmt.Sprintf("projects/%s/%s/%s", projectID, kind, id)
}
