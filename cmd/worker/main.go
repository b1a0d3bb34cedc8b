package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/chilisaus/storefront-api/internal/common"
	"github.com/chilisaus/storefront-api/internal/config"
	"github.com/chilisaus/storefront-api/internal/emails"
	"github.com/chilisaus/storefront-api/internal/obs"
)

// The worker drains the email task queue: order receipts to customers,
// packing slips and low-stock alerts to the seller.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("load config")
	}

	logger := obs.NewLogger(
		envOrDefault("OBS_LOG_FORMAT", "json"),
		envOrDefault("OBS_LOG_LEVEL", "info"),
	)
	logger = logger.With().Str("service", "storefront-worker").Logger()

	obs.MustRegisterDomainMetrics(envOrDefault("OBS_METRICS_NAMESPACE", "storefront"), nil)

	redisOpts, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	var sender common.EmailSender = common.NopEmailSender{}
	if cfg.EmailEnabled {
		sender = emails.Resend{
			APIKey:  cfg.ResendAPIKey,
			From:    cfg.EmailFrom,
			BaseURL: cfg.ResendBaseURL,
		}
	} else {
		logger.Warn().Msg("email delivery disabled, dropping rendered messages")
	}

	srv := asynq.NewServer(redisOpts, asynq.Config{
		Concurrency: envInt("WORKER_CONCURRENCY", 5),
		Logger:      asynqLogger{logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})

	mux := asynq.NewServeMux()
	handler := &emails.Handler{
		Sender:      sender,
		SellerEmail: cfg.SellerEmail,
		Logger:      logger,
	}
	handler.Register(mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutdown signal received")
		srv.Shutdown()
	}()

	logger.Info().Msg("worker started")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}

// asynqLogger adapts zerolog to the asynq logging contract.
type asynqLogger struct {
	logger zerolog.Logger
}

func (l asynqLogger) Debug(args ...interface{}) { l.logger.Debug().Msgf("%v", args) }
func (l asynqLogger) Info(args ...interface{})  { l.logger.Info().Msgf("%v", args) }
func (l asynqLogger) Warn(args ...interface{})  { l.logger.Warn().Msgf("%v", args) }
func (l asynqLogger) Error(args ...interface{}) { l.logger.Error().Msgf("%v", args) }
func (l asynqLogger) Fatal(args ...interface{}) { l.logger.Fatal().Msgf("%v", args) }

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}
