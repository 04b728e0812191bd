package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/absmach/fedledger"
	"github.com/absmach/fedledger/client"
	"github.com/absmach/fedledger/pkg/contentstore"
	"github.com/absmach/fedledger/pkg/fl"
	"github.com/absmach/fedledger/pkg/ledger"
	"github.com/absmach/fedledger/pkg/ledger/gateway"
	"github.com/absmach/fedledger/pkg/mqtt"
	"github.com/absmach/magistrala/pkg/server"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

const (
	svcName         = "client"
	envPrefixClient = "CLIENT_"
	envPrefixStore  = "CLIENT_STORE_"
	envPrefixLedger = "CLIENT_LEDGER_"
	pathEnv         = ".env"
)

type envConfig struct {
	LogLevel    string        `env:"CLIENT_LOG_LEVEL"    envDefault:"info"`
	ConfigPath  string        `env:"CLIENT_CONFIG_PATH"  envDefault:"config.toml"`
	MQTTAddress string        `env:"CLIENT_MQTT_ADDRESS" envDefault:"tcp://localhost:1883"`
	MQTTQoS     uint8         `env:"CLIENT_MQTT_QOS"     envDefault:"2"`
	MQTTTimeout time.Duration `env:"CLIENT_MQTT_TIMEOUT" envDefault:"30s"`
	ClientKey   string        `env:"CLIENT_KEY"`
	Seed        uint64        `env:"CLIENT_SEED"         envDefault:"1"`
	Samples     int           `env:"CLIENT_SAMPLES"      envDefault:"100"`
	TensorSizes []int         `env:"CLIENT_TENSOR_SIZES" envDefault:"8,2" envSeparator:","`
	Checkpoints bool          `env:"CLIENT_LOCAL_CHECKPOINTS" envDefault:"false"`
	Owner       string        `env:"CLIENT_LEDGER_OWNER"`
	Algorithm   string        `env:"CLIENT_ALGORITHM"    envDefault:"fedavg"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
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

	agentCfg := client.Config{}
	if err := env.ParseWithOptions(&agentCfg, env.Options{Prefix: envPrefixClient}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s agent configuration : %s", svcName, err.Error()))

		return
	}
	if err := loadCredentials(&cfg, &agentCfg, logger); err != nil {
		logger.Error("failed to load credentials", slog.String("error", err.Error()))

		return
	}

	willTopic := fmt.Sprintf(fl.OfflineTopicTemplate, agentCfg.ChannelID)
	pubsub, err := mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, agentCfg.ID, agentCfg.ID, cfg.ClientKey, willTopic, cfg.MQTTTimeout, logger)
	if err != nil {
		logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

		return
	}
	defer func() {
		if err := pubsub.Disconnect(context.Background()); err != nil {
			logger.Error("failed to disconnect mqtt pubsub", slog.Any("error", err))
		}
	}()

	trainer := client.NewTrainer(cfg.Seed, cfg.Samples, cfg.TensorSizes...)
	agent := client.NewAgent(agentCfg, pubsub, trainer, map[string]string{
		client.PropertyPeerName: trainer.Name(),
	}, logger)

	if cfg.Checkpoints {
		lc, closeStore, err := newLocalCheckpoints(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to set up local checkpoints", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := closeStore(); err != nil {
				logger.Error("failed to close content store", slog.Any("error", err))
			}
		}()
		agent.WithLocalCheckpoints(lc)
	}

	g.Go(func() error {
		return agent.Run(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s exited with error: %s", svcName, err))
	}
}

// newLocalCheckpoints connects the content store and the ledger gateway that
// record this client's updates on the local learning contract.
func newLocalCheckpoints(ctx context.Context, cfg envConfig, logger *slog.Logger) (client.LocalCheckpoints, func() error, error) {
	storeCfg := contentstore.Config{}
	if err := env.ParseWithOptions(&storeCfg, env.Options{Prefix: envPrefixStore}); err != nil {
		return client.LocalCheckpoints{}, nil, err
	}
	store, closeStore, err := contentstore.New(ctx, storeCfg)
	if err != nil {
		return client.LocalCheckpoints{}, nil, err
	}

	gwCfg := gateway.Config{}
	if err := env.ParseWithOptions(&gwCfg, env.Options{Prefix: envPrefixLedger}); err != nil {
		_ = closeStore()

		return client.LocalCheckpoints{}, nil, err
	}
	gwCfg.ContractName = ledger.ContractLocal
	logger.Info("recording local checkpoints",
		slog.String("store", storeCfg.Type),
		slog.String("ledger_url", gwCfg.URL),
	)

	return client.LocalCheckpoints{
		Store:     store,
		Ledger:    gateway.New(gwCfg),
		Owner:     cfg.Owner,
		Algorithm: cfg.Algorithm,
	}, closeStore, nil
}

// loadCredentials fills missing MQTT credentials from the TOML config file.
func loadCredentials(cfg *envConfig, agentCfg *client.Config, logger *slog.Logger) error {
	if agentCfg.ID != "" && cfg.ClientKey != "" && agentCfg.ChannelID != "" {
		return nil
	}

	fileCfg, err := fedledger.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return err
	}
	logger.Info("loaded credentials from config file", slog.String("path", cfg.ConfigPath))

	if agentCfg.ID == "" {
		agentCfg.ID = fileCfg.Client.ClientID
	}
	if cfg.ClientKey == "" {
		cfg.ClientKey = fileCfg.Client.ClientKey
	}
	if agentCfg.ChannelID == "" {
		agentCfg.ChannelID = fileCfg.Client.ChannelID
	}

	return nil
}
