package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/absmach/fedledger"
	"github.com/absmach/fedledger/checkpoints"
	"github.com/absmach/fedledger/client"
	"github.com/absmach/fedledger/coordinator"
	"github.com/absmach/fedledger/coordinator/api"
	"github.com/absmach/fedledger/coordinator/middleware"
	"github.com/absmach/fedledger/pkg/contentstore"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/ledger/gateway"
	"github.com/absmach/fedledger/pkg/mqtt"
	"github.com/absmach/fedledger/pkg/registry"
	"github.com/absmach/fedledger/pkg/storage"
	"github.com/absmach/magistrala/pkg/jaeger"
	"github.com/absmach/magistrala/pkg/prometheus"
	"github.com/absmach/magistrala/pkg/server"
	httpserver "github.com/absmach/magistrala/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName         = "coordinator"
	defHTTPPort     = "7070"
	envPrefixHTTP   = "COORDINATOR_HTTP_"
	envPrefixRun    = "COORDINATOR_"
	envPrefixStore  = "COORDINATOR_STORE_"
	envPrefixLedger = "COORDINATOR_LEDGER_"
	pathEnv         = ".env"
	workModeSim     = "sim"
	workModeProd    = "prod"
	simClientPrefix = "sim-client-"
	simSampleStep   = 10
	livenessPeriod  = 5 * time.Second
)

// simTensorSizes is the tensor layout of the simulated model.
var simTensorSizes = []int{8, 2}

type envConfig struct {
	LogLevel       string        `env:"COORDINATOR_LOG_LEVEL"       envDefault:"info"`
	InstanceID     string        `env:"COORDINATOR_INSTANCE_ID"`
	WorkMode       string        `env:"FL_WORK_MODE"                envDefault:"sim"`
	ConfigPath     string        `env:"COORDINATOR_CONFIG_PATH"     envDefault:"config.toml"`
	MQTTAddress    string        `env:"COORDINATOR_MQTT_ADDRESS"    envDefault:"tcp://localhost:1883"`
	MQTTQoS        uint8         `env:"COORDINATOR_MQTT_QOS"        envDefault:"2"`
	MQTTTimeout    time.Duration `env:"COORDINATOR_MQTT_TIMEOUT"    envDefault:"30s"`
	ClientID       string        `env:"COORDINATOR_CLIENT_ID"`
	ClientKey      string        `env:"COORDINATOR_CLIENT_KEY"`
	ChannelID      string        `env:"COORDINATOR_CHANNEL_ID"`
	ClientTTL      time.Duration `env:"COORDINATOR_CLIENT_TTL"      envDefault:"30s"`
	SimClients     int           `env:"COORDINATOR_SIM_CLIENTS"     envDefault:"3"`
	ExternalLedger bool          `env:"COORDINATOR_EXTERNAL_LEDGER" envDefault:"false"`
	ExitOnDone     bool          `env:"COORDINATOR_EXIT_ON_DONE"    envDefault:"true"`
	OTELURL        url.URL       `env:"COORDINATOR_OTEL_URL"`
	TraceRatio     float64       `env:"COORDINATOR_TRACE_RATIO"     envDefault:"0"`
	Strategy       strategyConfig
}

type strategyConfig struct {
	FractionFit         float64 `env:"FL_FRACTION_FIT"          envDefault:"1"`
	FractionEvaluate    float64 `env:"FL_FRACTION_EVALUATE"     envDefault:"1"`
	MinFitClients       int     `env:"FL_MIN_FIT_CLIENTS"       envDefault:"2"`
	MinEvaluateClients  int     `env:"FL_MIN_EVALUATE_CLIENTS"  envDefault:"2"`
	MinAvailableClients int     `env:"FL_MIN_AVAILABLE_CLIENTS" envDefault:"2"`
	LocalEpochs         int     `env:"FL_LOCAL_EPOCHS"          envDefault:"1"`
	WasmAggregator      string  `env:"FL_WASM_AGGREGATOR"`
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

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(context.Background()); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	runCfg := coordinator.Config{}
	if err := env.ParseWithOptions(&runCfg, env.Options{Prefix: envPrefixRun}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s run configuration : %s", svcName, err.Error()))

		return
	}

	strategy, err := newStrategy(cfg.Strategy)
	if err != nil {
		logger.Error("failed to initialize aggregation strategy", slog.String("error", err.Error()))

		return
	}

	storeCfg := contentstore.Config{}
	if err := env.ParseWithOptions(&storeCfg, env.Options{Prefix: envPrefixStore}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s content store configuration : %s", svcName, err.Error()))

		return
	}
	store, closeStore, err := contentstore.New(ctx, storeCfg)
	if err != nil {
		logger.Error("failed to initialize content store", slog.String("error", err.Error()))

		return
	}
	defer closeStore()

	l, err := newLedger(cfg, runCfg, logger)
	if err != nil {
		logger.Error("failed to initialize ledger", slog.String("error", err.Error()))

		return
	}

	reg := registry.New()
	switch cfg.WorkMode {
	case workModeSim:
		registerSimClients(reg, cfg.SimClients, logger)
	case workModeProd:
		if err := loadCredentials(&cfg, logger); err != nil {
			logger.Error("failed to load credentials", slog.String("error", err.Error()))

			return
		}
		pubsub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName+"-"+cfg.InstanceID, cfg.ClientID, cfg.ClientKey, "", cfg.MQTTTimeout, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Error("failed to disconnect mqtt pubsub", slog.Any("error", err))
			}
		}()

		transport := coordinator.NewTransport(pubsub, cfg.ChannelID, reg, logger)
		if err := transport.Subscribe(ctx); err != nil {
			logger.Error("failed to subscribe to client topics", slog.String("error", err.Error()))

			return
		}
		go transport.MonitorLiveness(ctx, livenessPeriod, cfg.ClientTTL)
	default:
		logger.Error(fmt.Sprintf("unsupported work mode %q", cfg.WorkMode))

		return
	}

	svc := coordinator.NewService(runCfg, reg, strategy, l, store, logger)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
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

	g.Go(func() error {
		snap, err := svc.Run(ctx, runCfg.NumRounds, runCfg.RoundTimeout)
		if err != nil {
			logger.Error("federated run aborted", slog.Any("error", err))
		} else {
			fmt.Fprint(os.Stdout, snap.String())
		}
		if cfg.ExitOnDone {
			cancel()
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

func newStrategy(cfg strategyConfig) (fl.Strategy, error) {
	fedCfg := fl.FedAvgConfig{
		FractionFit:         cfg.FractionFit,
		FractionEvaluate:    cfg.FractionEvaluate,
		MinFitClients:       cfg.MinFitClients,
		MinEvaluateClients:  cfg.MinEvaluateClients,
		MinAvailableClients: cfg.MinAvailableClients,
		OnFitConfig: func(round, session int) fl.Config {
			return fl.Config{
				fl.ConfigRound:           round,
				fl.ConfigSession:         session,
				client.ConfigLocalEpochs: cfg.LocalEpochs,
			}
		},
	}
	if cfg.WasmAggregator != "" {
		return fl.NewWasmStrategy(cfg.WasmAggregator, fedCfg)
	}

	return fl.NewFedAvg(fedCfg), nil
}

// newLedger connects to a ledger gateway, or serves the ledger in process
// from memory when none is configured.
func newLedger(cfg envConfig, runCfg coordinator.Config, logger *slog.Logger) (ledger.Ledger, error) {
	if cfg.WorkMode == workModeProd || cfg.ExternalLedger {
		gwCfg := gateway.Config{}
		if err := env.ParseWithOptions(&gwCfg, env.Options{Prefix: envPrefixLedger}); err != nil {
			return nil, err
		}
		logger.Info("using ledger gateway", slog.String("url", gwCfg.URL))

		return gateway.New(gwCfg), nil
	}

	svc := checkpoints.NewService(storage.NewMemoryRepository(), checkpoints.Config{Threshold: 5}, logger)
	logger.Info("using in-process ledger", slog.String("owner", runCfg.Owner))

	return checkpoints.NewLocalLedger(svc, ledger.ContractGlobal), nil
}

func registerSimClients(reg *registry.Registry, n int, logger *slog.Logger) {
	for i := range n {
		id := fmt.Sprintf("%s%d", simClientPrefix, i)
		tr := client.NewTrainer(uint64(i+1), (i+1)*simSampleStep, simTensorSizes...)
		reg.Register(id, map[string]string{
			registry.PropertyClientID: id,
			client.PropertyPeerName:   tr.Name(),
		}, tr)
		logger.Info("simulated client joined", slog.String("client_id", id), slog.String("peer_name", tr.Name()))
	}
}

// loadCredentials fills missing MQTT credentials from the TOML config file.
func loadCredentials(cfg *envConfig, logger *slog.Logger) error {
	if cfg.ClientID != "" && cfg.ClientKey != "" && cfg.ChannelID != "" {
		return nil
	}

	fileCfg, err := fedledger.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}
	logger.Info("loaded credentials from config file", slog.String("path", cfg.ConfigPath))

	if cfg.ClientID == "" {
		cfg.ClientID = fileCfg.Coordinator.ClientID
	}
	if cfg.ClientKey == "" {
		cfg.ClientKey = fileCfg.Coordinator.ClientKey
	}
	if cfg.ChannelID == "" {
		cfg.ChannelID = fileCfg.Coordinator.ChannelID
	}

	return nil
}
