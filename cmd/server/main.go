package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	callbackapi "github.com/wikilink-dev/wikilinkd/api/echo"
	"github.com/wikilink-dev/wikilinkd/config"
	"github.com/wikilink-dev/wikilinkd/domain"
	"github.com/wikilink-dev/wikilinkd/internal/metrics"
	"github.com/wikilink-dev/wikilinkd/log"
	"github.com/wikilink-dev/wikilinkd/mongodb"
	"github.com/wikilink-dev/wikilinkd/notify"
	registryredis "github.com/wikilink-dev/wikilinkd/registry/redis"
	"github.com/wikilink-dev/wikilinkd/services"
	"github.com/wikilink-dev/wikilinkd/wiki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting wikilinkd callback server", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"mongo_db_name": cfg.MongoDBName,
		"redis_addr":    cfg.RedisAddr,
		"token_ttl_min": cfg.TokenTTLMin,
	})

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	mongoClient, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to connect to MongoDB", err, nil)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	store, err := mongodb.NewStore(ctx, db)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize link store", err, nil)
	}

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		appLogger.Fatal(ctx, "Failed to connect to Redis", err, nil)
	}
	linkRegistry := registryredis.NewRegistry(redisClient, cfg.RedisPrefix, cfg.TokenTTL(), cfg.TokenRetention())

	var notifier domain.AlertNotifier = notify.Nop{}
	if cfg.AlertWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(cfg.AlertWebhookURL)
	}

	provider := wiki.NewProvider(wiki.ProviderConfig{
		ConsentURL:  cfg.WikiConsentURL,
		ExchangeURL: cfg.WikiExchangeURL,
		UserAgent:   cfg.UserAgent,
	})

	linkService := services.NewLinkService(linkRegistry, store, provider, notifier, appLogger)
	api := callbackapi.NewCallbackAPI(linkService, appLogger)

	e := echo.New()
	e.HideBanner = true
	api.RegisterRoutes(e)

	go func() {
		if serveErr := e.Start(":" + cfg.HTTPPort); serveErr != nil && serveErr != http.ErrServerClosed {
			appLogger.Fatal(context.Background(), "Failed to start HTTP server", serveErr, nil)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info(ctx, "Shutting down callback server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}
}
