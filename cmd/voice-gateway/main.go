package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/birddigital/voice-session-gateway/pkg/config"
	"github.com/birddigital/voice-session-gateway/pkg/dialogue"
	"github.com/birddigital/voice-session-gateway/pkg/directory"
	"github.com/birddigital/voice-session-gateway/pkg/greeting"
	"github.com/birddigital/voice-session-gateway/pkg/metrics"
	"github.com/birddigital/voice-session-gateway/pkg/monitor"
	"github.com/birddigital/voice-session-gateway/pkg/server"
	"github.com/birddigital/voice-session-gateway/pkg/session"
	"github.com/birddigital/voice-session-gateway/pkg/telephony"
	"github.com/birddigital/voice-session-gateway/pkg/twiml"
)

const sweepInterval = time.Minute

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger
	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.EffectiveLogLevel()); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"port":            cfg.Port,
		"dialogue":        cfg.DialogueWebhookURL,
		"session_backend": cfg.SessionBackend,
		"locale":          cfg.GreetingLocale,
	}).Info("Starting voice session gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics()

	store, closeStore := newSessionStore(ctx, cfg, logger)
	defer closeStore()

	dir, closeDirectory := newDirectory(ctx, cfg, logger)
	defer closeDirectory()

	phrases, err := greeting.ForLocale(cfg.GreetingLocale)
	if err != nil {
		logger.WithError(err).Warn("Falling back to Spanish phrases")
	}
	location, err := cfg.Location()
	if err != nil {
		logger.WithError(err).WithField("timezone", cfg.Timezone).Warn("Unknown timezone, using local time")
		location = time.Local
	}
	composer := greeting.NewComposer(phrases.WithMarkers(cfg.GreetingMarkers...), cfg.AssistantBrand, location)

	hub := monitor.NewHub(logger, func(n int) { m.MonitorSubscribers.Set(float64(n)) })
	defer hub.Close()

	gateway := dialogue.NewClient(cfg.DialogueWebhookURL, cfg.DialogueTimeout())

	orchestrator := telephony.NewCallOrchestrator(store, dir, gateway, composer, hub, m, logger, telephony.Settings{
		Voice: twiml.Voice{
			Name:     cfg.Voice,
			Language: cfg.VoiceLanguage,
			Rate:     cfg.VoiceSpeed,
		},
		SpeechTimeout:       cfg.SpeechTimeout,
		WebhookBaseURL:      cfg.WebhookBaseURL,
		FallbackNumber:      cfg.FallbackPhoneNumber,
		NoInputAction:       cfg.NoInputAction,
		NoInputMaxReprompts: cfg.NoInputMaxReprompts,
		DirectoryTimeout:    cfg.DirectoryTimeout(),
		DialogueTimeout:     cfg.DialogueTimeout(),
	})

	srv := server.NewHTTPServer(cfg, server.Dependencies{
		Handlers:    telephony.NewCallHandlers(orchestrator, store, m, logger),
		Store:       store,
		Hub:         hub,
		Metrics:     m,
		DialogueURL: gateway.URL(),
		StartedAt:   time.Now(),
	}, logger)

	go func() {
		logger.WithField("addr", srv.Addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Error during server shutdown")
	}

	logger.Info("Voice session gateway shutdown complete")
}

func newSessionStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (session.Store, func()) {
	if cfg.SessionBackend == config.SessionBackendRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Invalid REDIS_URL")
		}
		rdb := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}

		logger.WithField("ttl", cfg.SessionTTL()).Info("Using Redis session store")
		return session.NewRedisStore(rdb, cfg.SessionTTL(), logger), func() { rdb.Close() }
	}

	store := session.NewMemoryStore()
	go session.RunSweeper(ctx, store, sweepInterval, cfg.SessionTTL(), logger)

	logger.WithField("max_age", cfg.SessionTTL()).Info("Using in-memory session store")
	return store, func() {}
}

func newDirectory(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (directory.Directory, func()) {
	if !cfg.DirectoryEnabled {
		logger.Info("Customer directory disabled, all callers are anonymous")
		return directory.Disabled{}, func() {}
	}

	client, err := directory.NewClient(ctx, directory.ConnectionConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
		MaxConns: 10,
	})
	if err != nil {
		logger.WithError(err).Warn("Customer directory unavailable, all callers are anonymous")
		return directory.Disabled{}, func() {}
	}

	// A failed ping is not fatal; lookups degrade to anonymous per call
	pingCtx, cancel := context.WithTimeout(ctx, cfg.DirectoryTimeout())
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		logger.WithError(err).Warn("Customer directory not reachable yet")
	}

	return client, client.Close
}
