package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bikebill/authcore"
	"github.com/bikebill/authcore/fieldcrypt"
	"github.com/bikebill/authcore/internal/config"
	"github.com/bikebill/authcore/internal/credstore"
	"github.com/bikebill/authcore/internal/httpapi"
	"github.com/bikebill/authcore/internal/logging"
	"github.com/bikebill/authcore/metrics/export/prometheus"
)

const (
	recoverInterval = 15 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	var (
		configPath     = flag.String("config", "", "optional YAML config file")
		trustForwarded = flag.Bool("trust-forwarded", false, "take the client address from X-Forwarded-For")
	)
	flag.Parse()

	if err := run(*configPath, *trustForwarded); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, trustForwarded bool) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(settings.LogLevel, settings.LogFormat)
	slog.SetDefault(logger)

	if settings.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{settings.Redis.Addr},
		Password: settings.Redis.Password,
		DB:       settings.Redis.DB,
	})
	defer rdb.Close()

	db, err := credstore.OpenPostgres(settings.DatabaseDSN)
	if err != nil {
		return err
	}
	cipher, err := fieldcrypt.New(settings.Auth.Encryption.Key)
	if err != nil {
		return fmt.Errorf("encryption key: %w", err)
	}
	codec := authcore.NewRecordCodec(cipher, logger)
	store, err := credstore.New(db, codec)
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate credentials: %w", err)
	}

	auditSink := authcore.NewSlogSink(logger.With("component", "audit"))
	builder := authcore.New().
		WithConfig(settings.Auth).
		WithRedis(rdb).
		WithCredentialStore(store).
		WithRecordCodec(codec).
		WithLogger(logger).
		WithAuditSink(auditSink)

	if len(settings.Kafka.Brokers) > 0 {
		kafkaSink, err := authcore.NewKafkaSink(settings.Kafka.Brokers, settings.Kafka.AlertTopic)
		if err != nil {
			return fmt.Errorf("kafka alert sink: %w", err)
		}
		defer kafkaSink.Close()
		builder = builder.WithAlertSink(authcore.MultiSink(kafkaSink, auditSink))
		logger.Info("security alerts published to kafka",
			slog.Any("brokers", settings.Kafka.Brokers),
			slog.String("topic", settings.Kafka.AlertTopic),
		)
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	report := engine.SecurityReport()
	logger.Info("security posture", slog.Any("security", report))
	for _, w := range report.Warnings() {
		logger.Warn(w)
	}

	go recoverLimiter(ctx, engine, logger)

	server := &http.Server{
		Addr: settings.HTTPAddr,
		Handler: httpapi.NewRouter(engine, httpapi.Options{
			Logger:         logger,
			TrustForwarded: trustForwarded,
			Metrics:        prometheus.NewPrometheusExporter(engine).Handler(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", settings.HTTPAddr), slog.Bool("production", settings.Auth.ProductionMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// recoverLimiter probes Redis while the limiter runs on local buckets.
func recoverLimiter(ctx context.Context, engine *authcore.Engine, logger *slog.Logger) {
	ticker := time.NewTicker(recoverInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !engine.RateLimiterDegraded() {
				continue
			}
			if err := engine.RecoverRateLimiter(ctx); err != nil {
				logger.Debug("rate limiter still degraded", slog.Any("error", err))
			}
		}
	}
}
