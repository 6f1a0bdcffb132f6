// TaskFlow billing service: plan catalog, subscription lifecycle and the
// payment processor integration behind one HTTP surface.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/taskflowhq/taskflow/modules/billing"
	"github.com/taskflowhq/taskflow/pkg/analytics"
	"github.com/taskflowhq/taskflow/pkg/config"
	"github.com/taskflowhq/taskflow/pkg/httpserver"
	"github.com/taskflowhq/taskflow/pkg/logger"
	"github.com/taskflowhq/taskflow/pkg/pg"
	"github.com/taskflowhq/taskflow/pkg/redis"
	"github.com/taskflowhq/taskflow/pkg/subscription"
)

type appConfig struct {
	Environment string `env:"APP_ENV" envDefault:"production"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`

	// StorageDriver selects the subscription store: postgres, redis or memory.
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	// PlansFile optionally overrides the built-in plan catalog.
	PlansFile string `env:"PLANS_FILE"`
	// PaddleEnabled gates the processor integration; without it checkout and
	// webhooks answer with a provider error.
	PaddleEnabled bool `env:"PADDLE_ENABLED" envDefault:"false"`

	HTTP  httpserver.Config
	Kafka analytics.KafkaConfig
}

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	logOpts := []logger.Option{logger.WithAttr(slog.String("service", "taskflow"))}
	if cfg.Environment == "development" {
		logOpts = append(logOpts, logger.WithDevelopment("taskflow"))
	} else if cfg.LogFormat == "text" {
		logOpts = append(logOpts, logger.WithFormat(logger.FormatText))
	}
	log := logger.New(logOpts...)
	logger.SetAsDefault(log)

	catalog, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	store, probes, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	tracker, trackerClose, err := openTracker(cfg, log)
	if err != nil {
		return err
	}
	defer trackerClose()

	opts := []subscription.ServiceOption{
		subscription.WithTracker(tracker),
		subscription.WithLogger(log),
	}
	if cfg.PaddleEnabled {
		var paddleCfg subscription.PaddleConfig
		if err := config.Load(&paddleCfg); err != nil {
			return err
		}
		provider, err := subscription.NewPaddleProvider(paddleCfg)
		if err != nil {
			return err
		}
		opts = append(opts, subscription.WithProvider(provider))
	}
	svc := subscription.NewService(store, catalog, opts...)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.HealthCheckHandler(ctx, log))
	r.Get("/readyz", httpserver.HealthCheckHandler(ctx, log, probes...))
	r.Mount("/billing", billing.Router(svc, log))

	srv := httpserver.NewFromConfig(cfg.HTTP,
		httpserver.WithLogger(log),
		httpserver.WithStartHook(func(l *slog.Logger) {
			l.Info("http server listening", slog.String("addr", cfg.HTTP.Addr))
		}),
		httpserver.WithStopHook(func(l *slog.Logger) {
			l.Info("http server stopped")
		}),
	)
	return srv.Run(ctx, r)
}

func loadCatalog(ctx context.Context, cfg appConfig) (*subscription.Catalog, error) {
	src := subscription.NewDefaultSource()
	if cfg.PlansFile != "" {
		src = subscription.NewYAMLFileSource(cfg.PlansFile)
	}
	return subscription.NewCatalog(ctx, src)
}

// openStore builds the subscription store for the configured driver, plus
// readiness probes and a cleanup function for the underlying connections.
func openStore(ctx context.Context, cfg appConfig, log *slog.Logger) (subscription.Store, []func(context.Context) error, func(), error) {
	switch cfg.StorageDriver {
	case "postgres":
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, nil, nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if _, err := pool.Exec(ctx, subscription.PGSchema); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("apply subscriptions schema: %w", err)
		}
		return subscription.NewPGStore(pool), []func(context.Context) error{pg.Healthcheck(pool)}, pool.Close, nil

	case "redis":
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return nil, nil, nil, err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return nil, nil, nil, err
		}
		return subscription.NewRedisStore(client), []func(context.Context) error{redis.Healthcheck(client)}, func() { _ = client.Close() }, nil

	case "memory":
		log.Warn("using the in-memory subscription store; data is lost on restart")
		return subscription.NewMemoryStore(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// openTracker wires the analytics sink: Kafka when brokers are configured,
// structured logs otherwise.
func openTracker(cfg appConfig, log *slog.Logger) (analytics.Tracker, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return analytics.NewSlogTracker(log), func() {}, nil
	}

	kafka, err := analytics.NewKafkaTracker(cfg.Kafka, log)
	if err != nil {
		return nil, nil, err
	}
	return kafka, func() {
		if err := kafka.Close(context.Background()); err != nil {
			log.Error("analytics tracker close failed", slog.String("error", err.Error()))
		}
	}, nil
}
