package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/account-ledger/api"
	"github.com/josh-kwaku/account-ledger/internal/config"
	"github.com/josh-kwaku/account-ledger/internal/events"
	"github.com/josh-kwaku/account-ledger/internal/handler"
	"github.com/josh-kwaku/account-ledger/internal/logging"
	"github.com/josh-kwaku/account-ledger/internal/middleware"
	"github.com/josh-kwaku/account-ledger/internal/projection"
	"github.com/josh-kwaku/account-ledger/internal/repository"
	"github.com/josh-kwaku/account-ledger/internal/service"
	"github.com/josh-kwaku/account-ledger/internal/service/ledger"
)

const serviceName = "account-ledger"

func main() {
	if err := run(); err != nil {
		slog.Error("ledger service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetimeS) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second,
		PingAttempts:    30,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	applied, err := repository.RunMigrations(ctx, db, cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "versions", applied)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()

	store := repository.NewDB(db)
	accountRepo := repository.NewAccountRepository(db)
	entryRepo := repository.NewDebitEntryRepository(db)
	eventRepo := repository.NewAccountEventRepository(db)

	engine := ledger.NewEngine(store, accountRepo, entryRepo, eventRepo, cfg.LedgerOptions())

	dispatcher := service.NewOutboxDispatcher(
		store,
		eventRepo,
		events.NewPublisher(rdb, cfg.EventsStream),
		logger.With("component", "outbox"),
		service.OutboxConfig{
			Interval:    cfg.OutboxPollInterval(),
			BatchSize:   cfg.OutboxBatchSize,
			MaxAttempts: cfg.OutboxMaxAttempts,
		},
	)
	engine.SetNotifier(dispatcher)

	mux := http.NewServeMux()
	handler.NewHealthHandler(map[string]handler.Pinger{
		"database": store,
		"redis": handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}),
	}).Register(mux)
	handler.NewAccountHandler(engine).Register(mux)
	handler.RegisterDocs(mux, api.Spec)

	root := middleware.Chain(mux,
		middleware.Recovery,
		middleware.Tracing,
		middleware.Logging,
		middleware.Auth(cfg.JWTSecret),
		middleware.IdempotencyKey,
	)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(root, serviceName),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server started",
			"addr", addr,
			"debit_concurrency", cfg.DebitConcurrency,
			"closed_is_terminal", cfg.ClosedIsTerminal,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		dispatcher.Start(gctx)
		return nil
	})

	if cfg.ProjectionEnabled {
		projector := projection.NewProjector(projection.NewAccountViews(rdb, 0), logger.With("component", "projection"))
		consumer, err := os.Hostname()
		if err != nil || consumer == "" {
			consumer = serviceName
		}
		sub := events.NewSubscriber(rdb, events.SubscriberConfig{
			Stream:   cfg.EventsStream,
			Group:    "account-projection",
			Consumer: consumer,
			Handler:  projector.Handle,
		}, logger.With("component", "projection"))

		g.Go(func() error {
			return sub.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
