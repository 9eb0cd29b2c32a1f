package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cypherlabdev/equine-oracle/internal/cache"
	"github.com/cypherlabdev/equine-oracle/internal/client"
	"github.com/cypherlabdev/equine-oracle/internal/config"
	httpHandler "github.com/cypherlabdev/equine-oracle/internal/handler/http"
	"github.com/cypherlabdev/equine-oracle/internal/messaging"
	"github.com/cypherlabdev/equine-oracle/internal/metrics"
	"github.com/cypherlabdev/equine-oracle/internal/service"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	// Load configuration
	configPath := os.Getenv(config.EnvPrefix + "_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	if _, err := os.Stat(configPath); err != nil {
		configPath = ""
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	logger.Info().Msg("starting equine-oracle")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy, err := cfg.Prediction.Policy()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid resolution policy")
	}

	// Create prediction client
	predictionClient := client.NewPredictionClient(cfg.Prediction.ToClientConfig(), logger)
	logger.Info().Str("endpoint", predictionClient.Endpoint()).Msg("prediction client initialized")

	// Create orchestrator
	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	orchestrator := service.NewOrchestrator(
		predictionClient,
		logger,
		service.WithPolicy(policy),
		service.WithMetrics(recorder),
	)
	logger.Info().Str("policy", string(policy)).Msg("orchestrator initialized")

	// Create Redis prediction history
	var history service.History
	var redisHistory *cache.RedisHistory
	if cfg.Redis.Enabled {
		redisHistory = cache.NewRedisHistory(cfg.Redis.ToHistoryConfig(), logger)
		defer redisHistory.Close()

		if err := connectRedis(ctx, redisHistory, logger); err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")

		orchestrator.AddSink(redisHistory)
		history = redisHistory
	}

	// Create Kafka consumer and outcome publisher
	if cfg.Kafka.Enabled {
		publisher := messaging.NewOutcomePublisher(cfg.Kafka.ToPublisherConfig(), logger)
		defer publisher.Close()
		orchestrator.AddSink(publisher)

		consumer := messaging.NewKafkaConsumer(cfg.Kafka.ToConsumerConfig(), orchestrator, logger)
		defer consumer.Close()

		// Start Kafka consumer in goroutine
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("Kafka consumer failed")
			}
		}()
	}

	// Initialize HTTP handler
	var limiter *rate.Limiter
	if cfg.Prediction.SubmitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Prediction.SubmitRate), max(cfg.Prediction.SubmitBurst, 1))
	}
	predictionHandler := httpHandler.NewPredictionHandler(orchestrator, history, limiter, logger)
	logger.Info().Msg("HTTP handler initialized")

	// Setup HTTP server routes
	mux := http.NewServeMux()

	// Health and monitoring endpoints
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		readyHandler(w, r, redisHistory)
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Register API routes
	predictionHandler.RegisterRoutes(mux)
	logger.Info().Msg("API routes registered")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server in goroutine
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("shutting down gracefully...")

	// Cancel context to stop consumer
	cancel()

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Let in-flight predictions reach the sinks before they are closed
	drained := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("abandoning in-flight predictions")
	}

	logger.Info().Msg("shutdown complete")
}

// connectRedis pings Redis with exponential backoff
func connectRedis(ctx context.Context, history *cache.RedisHistory, logger zerolog.Logger) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second

	return backoff.RetryNotify(
		func() error { return history.Ping(ctx) },
		backoff.WithContext(b, ctx),
		func(err error, next time.Duration) {
			logger.Warn().Err(err).Dur("retry_in", next).Msg("Redis not reachable yet")
		},
	)
}

// setupLogger configures the logger based on config
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set format
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return log.Logger.With().Str("service", "equine-oracle").Logger()
}

// healthHandler returns 200 if service is running
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyHandler returns 200 if service is ready to accept traffic.
// history is nil when Redis is disabled.
func readyHandler(w http.ResponseWriter, r *http.Request, history *cache.RedisHistory) {
	if history != nil {
		if err := history.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("Redis unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("READY"))
}
