// Command analytics starts the standalone extraction analytics service.
//
// It consumes extraction events from Kafka, aggregates them in memory
// (extraction counts, latency percentiles, cache hit rate, frame mix, top
// texts) and exposes them at GET /api/v1/analytics. When PostgreSQL is
// enabled the aggregates are snapshotted periodically, restored on startup
// and listed at GET /api/v1/analytics/history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("analytics service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("analytics service stopped")
}

func run(cfg *config.Config) error {
	if !cfg.Kafka.Enabled {
		return errors.New("analytics requires kafka.enabled")
	}
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator(cfg.Analytics.TopN)
	checker := health.NewChecker()
	g, gctx := errgroup.WithContext(ctx)

	var history analytics.History
	if cfg.Postgres.Enabled {
		store, db, err := openStore(ctx, cfg)
		if err != nil {
			slog.Warn("postgres unavailable, snapshots disabled", "error", err)
		} else {
			defer db.Close()
			history = store
			if snap, err := store.LatestSnapshot(ctx); err != nil {
				slog.Warn("loading latest snapshot failed", "error", err)
			} else if snap != nil {
				aggregator.Restore(snap.Stats)
				slog.Info("aggregates restored", "snapshot_id", snap.ID, "captured_at", snap.CapturedAt)
			}
			if n, err := store.Prune(ctx, cfg.Analytics.Retention); err != nil {
				slog.Warn("pruning snapshots failed", "error", err)
			} else if n > 0 {
				slog.Info("old snapshots pruned", "count", n)
			}
			checker.Register("postgres", health.Ping(db.Ping, false))
			g.Go(func() error {
				return store.Run(gctx, aggregator, cfg.Analytics.SnapshotInterval)
			})
		}
	}

	// The aggregate is rebuilt from the retained log when no snapshot exists.
	var opts []kafka.ConsumerOption
	if history == nil {
		opts = append(opts, kafka.FromBeginning())
	}
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.ExtractionEvents, analytics.HandleEvent(aggregator), opts...)
	g.Go(func() error {
		return consumer.Start(gctx)
	})
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.ExtractionEvents)

	checker.Register("aggregator", health.Func(func() (bool, string) {
		stats := aggregator.Stats()
		cs := consumer.Stats()
		return true, fmt.Sprintf("%d extractions, kb version %d, %d events consumed, %d rejected",
			stats.TotalExtractions, stats.LastKBVersion, cs.Processed, cs.Failed)
	}, false))

	h := analytics.NewHandler(aggregator, history)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", h.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("analytics service listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config) (*analytics.Store, *postgres.Client, error) {
	client, err := resilience.RetryValue(ctx, "postgres-connect", resilience.RetryConfig{}, func(ctx context.Context) (*postgres.Client, error) {
		return postgres.New(ctx, cfg.Postgres)
	})
	if err != nil {
		return nil, nil, err
	}
	if _, err := client.Migrate(ctx, analytics.Schema); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("migrating analytics schema: %w", err)
	}
	return analytics.NewStore(client.DB), client, nil
}
