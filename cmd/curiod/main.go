package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/joonhyuk-dev/curio/params"
	"github.com/joonhyuk-dev/curio/pkg/api"
	"github.com/joonhyuk-dev/curio/pkg/asset"
	xcrypto "github.com/joonhyuk-dev/curio/pkg/crypto"
	"github.com/joonhyuk-dev/curio/pkg/market"
	"github.com/joonhyuk-dev/curio/pkg/storage"
	"github.com/joonhyuk-dev/curio/pkg/util"
)

// Demo collection deployed on the in-process devnet registry.
var devnetCollection = common.HexToAddress("0x00000000000000000000000000000000000c0110")

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/curiod.log"
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	// ---- Persistence ----
	store, err := storage.NewStore(cfg.Node.DBPath)
	if err != nil {
		sugar.Fatalw("storage_init_failed", "path", cfg.Node.DBPath, "err", err)
	}
	defer store.Close()

	snap, err := store.Load()
	if err != nil {
		sugar.Fatalw("storage_load_failed", "err", err)
	}
	sugar.Infow("state_loaded",
		"orders", len(snap.Orders),
		"nonces", len(snap.Nonces),
		"paused", snap.Paused,
	)

	// ---- Asset registry ----
	var registry asset.Registry
	if cfg.Node.EthRPC != "" {
		client, err := ethclient.Dial(cfg.Node.EthRPC)
		if err != nil {
			sugar.Fatalw("eth_dial_failed", "rpc", cfg.Node.EthRPC, "err", err)
		}
		key, err := ethcrypto.HexToECDSA(os.Getenv("OPERATOR_PRIVATE_KEY"))
		if err != nil {
			sugar.Fatalw("operator_key_invalid", "err", err)
		}
		registry, err = asset.NewEthRegistry(client, key, cfg.Domain.ChainID)
		if err != nil {
			sugar.Fatalw("registry_init_failed", "err", err)
		}
		sugar.Infow("registry_ready", "mode", "ethereum", "rpc", cfg.Node.EthRPC)
	} else {
		mem := asset.NewMemoryRegistry()
		mem.Deploy(devnetCollection)
		registry = mem
		sugar.Infow("registry_ready", "mode", "devnet", "collection", devnetCollection.Hex())
	}

	// ---- Engine ----
	domain := xcrypto.Domain{
		Name:    cfg.Domain.Name,
		Version: cfg.Domain.Version,
		ChainID: cfg.Domain.ChainID,
	}
	hub := api.NewHub()
	engine := market.NewEngine(cfg.Market, domain, registry, logger,
		market.WithPersister(store),
		market.WithSink(hub),
	)
	engine.LoadSnapshot(snap)

	// ---- API ----
	server := api.NewServer(engine, hub, logger)
	go func() {
		if err := server.Start(cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()
	sugar.Infow("engine_ready",
		"api", cfg.Node.APIAddr,
		"fee_bps", cfg.Market.FeeBps,
		"min_price", cfg.Market.MinOrderPrice.String(),
		"whitelist", cfg.Market.WhitelistEnabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	sugar.Infow("shutting_down")
}
