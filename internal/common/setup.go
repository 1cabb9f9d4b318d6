package common

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"referral-earnings-go/internal/api"
	"referral-earnings-go/internal/config"
	"referral-earnings-go/internal/database"
	"referral-earnings-go/internal/formance"
	"referral-earnings-go/internal/models"
	"referral-earnings-go/internal/notify"
	"referral-earnings-go/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services bundles everything a command needs to process and report purchases.
type Services struct {
	Store     store.LedgerStore
	Ledger    *api.LedgerService
	Publisher *notify.Publisher
	Hub       *notify.Hub

	sinks []io.Closer
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeStore opens the ledger backend selected by LEDGER_BACKEND.
func InitializeStore(ctx context.Context, cfg *models.Config) (store.LedgerStore, error) {
	switch cfg.Backend {
	case config.BackendFormance:
		zap.L().Info("Using Formance ledger backend", zap.String("ledger", cfg.Formance.LedgerName))
		return formance.NewService(ctx, cfg.Formance)
	case config.BackendSQLite, "":
		zap.L().Info("Using SQLite ledger backend", zap.String("path", cfg.Database.Path))
		return database.NewService(ctx, cfg.Database)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

// InitializeServices opens the store, wires the notification sinks that are
// configured and starts the publisher. Close releases all of it.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	ledgerStore, err := InitializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	services := &Services{
		Store: ledgerStore,
		Hub:   notify.NewHub(64),
	}

	sinks := []notify.Sink{services.Hub}

	if cfg.Redis.URL != "" {
		redisSink, err := notify.NewRedisSink(ctx, cfg.Redis)
		if err != nil {
			zap.L().Warn("Redis sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, redisSink)
			services.sinks = append(services.sinks, redisSink)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := notify.NewKafkaSink(cfg.Kafka)
		if err != nil {
			zap.L().Warn("Kafka sink disabled", zap.Error(err))
		} else {
			sinks = append(sinks, kafkaSink)
			services.sinks = append(services.sinks, kafkaSink)
			zap.L().Info("Kafka sink enabled",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic))
		}
	}

	services.Publisher = notify.NewPublisher(cfg.Notifier, sinks...)
	// ctx is usually the signal context; the loop must outlive it so Close
	// can drain events committed during shutdown.
	services.Publisher.Start(context.WithoutCancel(ctx))
	services.Ledger = api.NewLedgerService(ledgerStore, services.Publisher, cfg.Engine)

	return services, nil
}

// Close stops the publisher, delivering every queued event, then closes the
// sinks and the store.
func (s *Services) Close() {
	if s.Publisher != nil {
		s.Publisher.Stop()
	}
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil {
			zap.L().Warn("Failed to close sink", zap.Error(err))
		}
	}
	if s.Store != nil {
		s.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
