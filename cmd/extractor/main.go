// Command extractor serves relative-time and explicit-date extraction over
// HTTP.
//
// Redis result caching, Kafka analytics events and cross-replica knowledge
// base reloads are each enabled from the config file and degrade to local
// behaviour when the dependency is unavailable.
//
// Usage:
//
//	go run ./cmd/extractor [-config configs/development.yaml]
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

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/kb"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/service"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/service/cache"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/internal/service/handler"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Relative-Time-Engine/pkg/tracing"
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
		slog.Error("extractor failed", "error", err)
		os.Exit(1)
	}
	slog.Info("extractor stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting extractor", "port", cfg.Server.Port)
	k, err := kb.Load(cfg.KnowledgeBase)
	if err != nil {
		return fmt.Errorf("loading knowledge base: %w", err)
	}
	handle := kb.NewHandle(k)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	checker.Register("knowledge_base", health.Func(func() (bool, string) {
		cur := handle.Snapshot()
		if cur == nil || cur.Len() == 0 {
			return false, "no knowledge base loaded"
		}
		return true, fmt.Sprintf("version %d, %d phrases", handle.Version(), cur.Len())
	}, true))

	var resultCache *cache.ResultCache
	if cfg.Redis.Enabled {
		redisClient, err := resilience.RetryValue(ctx, "redis-connect", resilience.RetryConfig{}, func(ctx context.Context) (*pkgredis.Client, error) {
			return pkgredis.NewClient(ctx, cfg.Redis)
		})
		if err != nil {
			slog.Warn("redis unavailable, result caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			resultCache = cache.New(redisClient, cfg.Redis, m)
			checker.Register("redis", health.Ping(redisClient.Ping, false))
			slog.Info("result cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	var (
		tracker     service.Tracker
		collector   *analytics.Collector
		broadcaster *service.Broadcaster
	)
	origin := replicaID()
	if cfg.Kafka.Enabled {
		eventProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.ExtractionEvents,
			kafka.WithAsync(func(n int, err error) {
				if m == nil {
					return
				}
				status := "success"
				if err != nil {
					status = "error"
				}
				m.EventsPublishedTotal.WithLabelValues(status).Add(float64(n))
			}),
		)
		defer eventProducer.Close()
		collector = analytics.NewCollector(eventProducer, 10000, 100, time.Second)
		tracker = collector
		g.Go(func() error {
			collector.Run(gctx)
			return nil
		})

		reloadProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.KBReload)
		defer reloadProducer.Close()
		broadcaster = service.NewBroadcaster(reloadProducer, origin)
		slog.Info("kafka enabled",
			"events_topic", cfg.Kafka.Topics.ExtractionEvents,
			"reload_topic", cfg.Kafka.Topics.KBReload,
			"replica", origin,
		)
	}

	extractor := service.New(service.Config{
		Handle:        handle,
		Loader:        kb.ConfigLoader(cfg.KnowledgeBase),
		Cache:         resultCache,
		Tracker:       tracker,
		Metrics:       m,
		MaxInputBytes: cfg.Extract.MaxInputBytes,
		ReloadTimeout: cfg.KnowledgeBase.ReloadTimeout,
	})

	if cfg.Kafka.Enabled {
		reloadConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.KBReload,
			service.HandleReload(extractor, origin),
			kafka.WithGroup(cfg.Kafka.ConsumerGroup+"-"+origin),
		)
		g.Go(func() error {
			return reloadConsumer.Start(gctx)
		})
		checker.Register("reload_consumer", health.Func(func() (bool, string) {
			cs := reloadConsumer.Stats()
			return true, fmt.Sprintf("%d reload requests applied, %d failed", cs.Processed, cs.Failed)
		}, false))
	}

	if path := cfg.KnowledgeBase.SourcePath(); cfg.KnowledgeBase.Watch && path != "" {
		watcher, err := kb.NewWatcher(path, cfg.KnowledgeBase.WatchDebounce)
		if err != nil {
			slog.Warn("knowledge base file watch disabled", "path", path, "error", err)
		} else {
			g.Go(func() error {
				return watcher.Run(gctx, func(ctx context.Context) {
					info, err := extractor.Reload(ctx)
					if err != nil {
						slog.Error("reload after file change failed", "path", path, "error", err)
						return
					}
					slog.Info("knowledge base reloaded after file change", "path", path, "version", info.Version)
				})
			})
		}
	}

	tracer := tracing.NewTracer(cfg.Tracing.Enabled, cfg.Tracing.SampleRate)
	h := handler.New(extractor, tracer, broadcaster, cfg.Extract.MaxInputBytes)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		g.Go(func() error {
			limiter.Run(gctx, time.Minute)
			return nil
		})
		chain = middleware.RateLimit(limiter, m)(chain)
	}
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.CORS(middleware.DefaultCORSConfig(cfg.Server.AllowedOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g.Go(func() error {
		slog.Info("extractor listening", "addr", server.Addr)
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

func replicaID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "extractor"
	}
	return host + "-" + uuid.NewString()[:8]
}
