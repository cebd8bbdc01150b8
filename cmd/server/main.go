package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/airwarehouse/internal/config"
	"github.com/JonMunkholm/airwarehouse/internal/core"
	"github.com/JonMunkholm/airwarehouse/internal/logging"
	"github.com/JonMunkholm/airwarehouse/internal/metrics"
	"github.com/JonMunkholm/airwarehouse/internal/queue/kafka"
	"github.com/JonMunkholm/airwarehouse/internal/store/postgres"
	"github.com/JonMunkholm/airwarehouse/internal/store/sqlite"
	"github.com/JonMunkholm/airwarehouse/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"store", cfg.Store.Driver,
		"kafka_enabled", cfg.Kafka.Enabled,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// destination is the wired store: where clean rows go, where quarantine goes
// and what /health pings.
type destination struct {
	inserter   core.Inserter
	quarantine core.QuarantineWriter
	pinger     web.Pinger
	close      func()
}

func openDestination(ctx context.Context, cfg *config.Config) (*destination, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("connected to sqlite", "path", st.Path())
		return &destination{
			inserter:   st,
			quarantine: st,
			pinger:     st,
			close:      func() { _ = st.Close() },
		}, nil

	default:
		pool, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		st := postgres.New(pool)
		if cfg.Store.AutoMigrate {
			if err := st.EnsureSchema(ctx); err != nil {
				pool.Close()
				return nil, err
			}
		}
		if u, err := url.Parse(cfg.Database.URL); err == nil {
			slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
		} else {
			slog.Info("connected to database")
		}
		return &destination{
			inserter:   st,
			quarantine: st,
			pinger:     pool,
			close:      pool.Close,
		}, nil
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()

	dest, err := openDestination(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer dest.close()

	sinkOpts := []core.SinkOption{core.WithRecorder(m)}
	if path := cfg.Store.FallbackQuarantinePath; path != "" {
		fb, err := sqlite.Open(ctx, path)
		if err != nil {
			return fmt.Errorf("open quarantine fallback: %w", err)
		}
		defer fb.Close()
		sinkOpts = append(sinkOpts, core.WithFallback(fb))
		slog.Info("quarantine fallback enabled", "path", fb.Path())
	}
	sink := core.NewQuarantineSink(dest.quarantine, sinkOpts...)

	seq := core.NewSequences(cfg.Normalizer.PassengerSeqStart, cfg.Normalizer.TransactionSeqStart)
	cleaner := core.NewCleaner(core.NewKeyNormalizer(seq), m)

	deps := core.ServiceDeps{
		Cleaner:  cleaner,
		Store:    dest.inserter,
		Sink:     sink,
		Limiter:  core.NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		Recorder: m,
		Timeout:  cfg.Upload.Timeout,
	}

	var loop *core.StreamLoop
	if cfg.Kafka.Enabled {
		kcfg := kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			GroupID:  cfg.Kafka.GroupID,
			ClientID: cfg.Kafka.ClientID,
		}
		if cfg.Kafka.CreateTopics {
			if err := kafka.EnsureTopics(ctx, kcfg, cfg.Kafka.Partitions, cfg.Kafka.RawTopic, cfg.Kafka.CleanTopic); err != nil {
				return fmt.Errorf("ensure kafka topics: %w", err)
			}
		}
		producer, err := kafka.NewProducer(kcfg)
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()
		consumer, err := kafka.NewConsumer(kcfg, cfg.Kafka.RawTopic)
		if err != nil {
			return fmt.Errorf("kafka consumer: %w", err)
		}
		defer consumer.Close()

		deps.Publisher = producer
		deps.RawTopic = cfg.Kafka.RawTopic
		loop = core.NewStreamLoop(consumer, producer, cleaner, sink, m, core.StreamConfig{
			CleanTopic:  cfg.Kafka.CleanTopic,
			PollTimeout: cfg.Kafka.PollTimeout,
		})
	}

	service, err := core.NewService(deps)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	server := web.NewServer(service, cfg, web.WithStorePinger(dest.pinger), web.WithMetrics(m))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(cfg.Server.Addr()); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if loop != nil {
		g.Go(func() error { return loop.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
