package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SscSPs/general_ledger/internal/adapters/events"
	"github.com/SscSPs/general_ledger/internal/adapters/invoicesvc"
	portsrepo "github.com/SscSPs/general_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/general_ledger/internal/core/ports/services"
	"github.com/SscSPs/general_ledger/internal/core/services"
	"github.com/SscSPs/general_ledger/internal/handlers"
	"github.com/SscSPs/general_ledger/internal/middleware"
	"github.com/SscSPs/general_ledger/internal/platform/config"
	"github.com/SscSPs/general_ledger/internal/platform/credentials"
	"github.com/SscSPs/general_ledger/internal/repositories/database/pgsql"
	"github.com/SscSPs/general_ledger/internal/repositories/memory"
	"github.com/SscSPs/general_ledger/pkg/database"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Ledger backend stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Ledger backend stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repos, store, closeStore, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := publisher.Close(); cerr != nil {
			logger.Error("Error closing event publisher", slog.String("error", cerr.Error()))
		}
	}()

	caller := invoicesvc.NewClient(
		cfg.PayablesBaseURL,
		cfg.ReceivablesBaseURL,
		cfg.HTTPTimeout,
		credentials.NewTokenSource(ctx, cfg),
	)

	container := services.NewServiceContainer(cfg, repos, publisher, caller)

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	if err := r.SetTrustedProxies(nil); err != nil {
		return err
	}
	handlers.RegisterRoutes(r, container, store)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		container.Outbox.Run(middleware.OperationContext(gctx, logger, "outbox.dispatch"))
		return nil
	})
	g.Go(func() error {
		container.Compensation.Run(middleware.OperationContext(gctx, logger, "saga.recovery"))
		return nil
	})
	g.Go(func() error {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStorage selects the repository implementation. The returned Pinger is nil for the memory store.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (portsrepo.RepositoryProvider, handlers.Pinger, func(), error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		return memory.NewRepositoryProvider(memory.NewStore()), nil, func() {}, nil
	}

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		return portsrepo.RepositoryProvider{}, nil, nil, err
	}
	if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
		database.ClosePgxPool(dbPool)
		return portsrepo.RepositoryProvider{}, nil, nil, err
	}
	return pgsql.NewRepositoryProvider(dbPool), dbPool, func() { database.ClosePgxPool(dbPool) }, nil
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (portssvc.EventPublisher, error) {
	switch cfg.EventDriver {
	case config.EventDriverKafka:
		logger.Info("Publishing ledger events to Kafka", slog.Any("brokers", cfg.KafkaBrokers))
		return events.NewKafkaPublisher(cfg.KafkaBrokers), nil
	case config.EventDriverRabbitMQ:
		logger.Info("Publishing ledger events to RabbitMQ", slog.String("exchange", events.DefaultExchange))
		return events.NewRabbitMQPublisher(cfg.RabbitMQURL, events.DefaultExchange)
	default:
		return events.NewLogPublisher(logger), nil
	}
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
