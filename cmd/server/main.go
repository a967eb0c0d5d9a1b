package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/snograph/snoquery/internal/analytics"
	"github.com/snograph/snoquery/internal/api"
	"github.com/snograph/snoquery/internal/service"
	"github.com/snograph/snoquery/internal/store"
	"github.com/snograph/snoquery/pkg/config"
	"github.com/snograph/snoquery/pkg/health"
	"github.com/snograph/snoquery/pkg/kafka"
	"github.com/snograph/snoquery/pkg/logger"
	"github.com/snograph/snoquery/pkg/metrics"
	"github.com/snograph/snoquery/pkg/middleware"
	"github.com/snograph/snoquery/pkg/postgres"
	pkgredis "github.com/snograph/snoquery/pkg/redis"
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
	slog.Info("starting query service", "port", cfg.Server.Port, "data_dir", cfg.Store.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snap, info, err := store.New(cfg.Store.DataDir).Open(ctx)
	if err != nil {
		slog.Error("failed to open release store", "error", err)
		os.Exit(1)
	}
	slog.Info("release loaded",
		"effective_time", info.EffectiveTime,
		"concepts", snap.ConceptCount(),
		"documents", snap.DocCount(),
	)

	m := metrics.New()

	var opts []service.Option
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, page caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			opts = append(opts, service.WithPageCache(redisClient))
			slog.Info("page cache enabled", "addr", cfg.Redis.Addr)
		}
	}

	svc := service.New(snap, info, cfg.Query, m, opts...)
	if redisClient != nil {
		if n, err := svc.FlushPageCache(ctx); err != nil {
			slog.Warn("page cache flush failed", "error", err)
		} else if n > 0 {
			slog.Info("stale result pages flushed", "keys", n)
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.EventsTopic)
		defer producer.Close()
		slog.Info("query event producer started", "topic", cfg.Kafka.EventsTopic)
	}

	var audit *analytics.AuditStore
	var pgClient *postgres.Client
	if cfg.Postgres.Enabled {
		pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, query auditing disabled", "error", err)
		} else {
			defer pgClient.Close()
			audit, err = analytics.NewAuditStore(ctx, pgClient)
			if err != nil {
				slog.Warn("audit schema setup failed, query auditing disabled", "error", err)
				audit = nil
			} else {
				slog.Info("query auditing enabled", "database", cfg.Postgres.Database)
			}
		}
	}

	var collector *analytics.Collector
	if producer != nil || audit != nil {
		collector = analytics.NewCollector(producer, audit, cfg.Analytics.BufferSize)
		defer collector.Close()
		slog.Info("analytics collector started", "buffer_size", cfg.Analytics.BufferSize)
	}

	checker := health.NewChecker()
	checker.Register("release_store", func(ctx context.Context) health.ComponentHealth {
		if snap.ConceptCount() > 0 {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d concepts loaded", snap.ConceptCount()),
			}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no concepts loaded"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	h := api.New(svc, collector)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			slog.Info("metrics server listening", "addr", addr)
			if err := http.ListenAndServe(addr, metrics.Handler()); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("query service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("query service stopped")
}
