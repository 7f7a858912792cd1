package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"checksvault/config"
	"checksvault/core/events"
	"checksvault/core/state"
	"checksvault/core/types"
	"checksvault/native/registry"
	"checksvault/native/vault"
	"checksvault/observability/logging"
	telemetry "checksvault/observability/otel"
	"checksvault/rpc"
	"checksvault/storage"
)

const envVar = "CHECKSVAULT_ENV"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv(envVar))
	logger := logging.Setup("checksd", env, logging.WithFile(cfg.LogFile))

	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: "checksd",
			Environment: env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			logger.Error("failed to init telemetry", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			_ = shutdownTelemetry(context.Background())
		}()
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	store := storage.NewManager(db)
	st := state.NewManager(store)

	if err := seedCollection(st.Registry(), cfg, logger); err != nil {
		logger.Error("failed to seed collection", slog.Any("error", err))
		os.Exit(1)
	}

	custodyAddr := custodyAddress(cfg.NetworkName)
	engine := vault.NewEngine(st, custodyAddr)
	engine.SetEmitter(logEmitter{logger: logger})

	logger.Info("vault ready",
		slog.String("network", cfg.NetworkName),
		slog.String("custody", fmt.Sprintf("%#x", custodyAddr)),
		slog.String("maxSupply", engine.MaxSupplyAmount().String()))

	server := rpc.NewServer(engine, st, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Database {
	case config.DatabaseMemory:
		return storage.NewMemDB(), nil
	case config.DatabaseLevelDB:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	default:
		return nil, fmt.Errorf("unsupported database backend %q", cfg.Database)
	}
}

// seedCollection mints the configured dev-net items, skipping identifiers
// that already exist so restarts stay idempotent.
func seedCollection(reg *registry.Registry, cfg *config.Config, logger *slog.Logger) error {
	minted := 0
	for _, item := range cfg.Collection.Items {
		owner, err := item.OwnerAddress()
		if err != nil {
			return err
		}
		if err := reg.Mint(owner, item.ID, item.Rank); err != nil {
			if errors.Is(err, registry.ErrItemExists) {
				continue
			}
			return err
		}
		minted++
	}
	if minted > 0 {
		logger.Info("seeded collection", slog.Int("minted", minted))
	}
	return nil
}

// custodyAddress derives a stable, network-scoped address the vault parks
// deposited items under. No key exists for it; items only leave through
// redemption.
func custodyAddress(network string) [20]byte {
	digest := ethcrypto.Keccak256([]byte("checksvault/custodian/" + network))
	var addr [20]byte
	copy(addr[:], digest[12:])
	return addr
}

type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(event events.Event) {
	attrs := []any{slog.String("type", event.EventType())}
	if carrier, ok := event.(interface{ Event() *types.Event }); ok {
		if generic := carrier.Event(); generic != nil {
			for key, value := range generic.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.logger.Info("vault event", attrs...)
}
