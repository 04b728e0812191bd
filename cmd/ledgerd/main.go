package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"

	"github.com/absmach/fedledger/checkpoints"
	"github.com/absmach/fedledger/checkpoints/api"
	"github.com/absmach/fedledger/checkpoints/middleware"
	"github.com/absmach/fedledger/pkg/storage"
	"github.com/absmach/magistrala/pkg/jaeger"
	"github.com/absmach/magistrala/pkg/prometheus"
	"github.com/absmach/magistrala/pkg/server"
	httpserver "github.com/absmach/magistrala/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	svcName        = "ledgerd"
	defHTTPPort    = "9020"
	envPrefixHTTP  = "LEDGER_HTTP_"
	envPrefixRules = "LEDGER_"
	pathEnv        = ".env"
)

type envConfig struct {
	LogLevel   string  `env:"LEDGER_LOG_LEVEL"   envDefault:"info"`
	InstanceID string  `env:"LEDGER_INSTANCE_ID"`
	OTELURL    url.URL `env:"LEDGER_OTEL_URL"`
	TraceRatio float64 `env:"LEDGER_TRACE_RATIO" envDefault:"0"`
	Storage    storage.Config
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	if cfg.OTELURL != (url.URL{}) {
		tp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
	}

	rules := checkpoints.Config{}
	if err := env.ParseWithOptions(&rules, env.Options{Prefix: envPrefixRules}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s validation configuration : %s", svcName, err.Error()))

		return
	}

	repo, err := storage.NewRepository(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))

		return
	}
	if repo.Closer != nil {
		defer repo.Closer.Close()
	}
	logger.Info("checkpoint storage ready", slog.String("type", cfg.Storage.Type))

	svc := checkpoints.NewService(repo.Checkpoints, rules, logger)
	svc = middleware.Logging(logger, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}
