package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Database backends supported by the daemon.
const (
	DatabaseMemory  = "memory"
	DatabaseLevelDB = "leveldb"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	Database    string `toml:"Database"`
	LogFile     string `toml:"LogFile"`

	Collection Collection `toml:"collection"`
	Telemetry  Telemetry  `toml:"telemetry"`
}

// Telemetry configures the optional OTLP exporters. Disabled by default; the
// endpoint falls back to the collector's standard local port when left empty.
type Telemetry struct {
	Enabled  bool   `toml:"Enabled"`
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
}

// Collection seeds the item registry on first start of a development
// network. Production deployments leave it empty and mint through the
// registry surface instead.
type Collection struct {
	Items []SeedItem `toml:"items"`
}

// SeedItem describes one item to mint at startup if it does not exist yet.
type SeedItem struct {
	ID    uint64 `toml:"ID"`
	Rank  uint8  `toml:"Rank"`
	Owner string `toml:"Owner"`
}

// OwnerAddress decodes the 0x-prefixed hex owner into an address.
func (s SeedItem) OwnerAddress() ([20]byte, error) {
	return ParseAddress(s.Owner)
}

// ParseAddress decodes a 0x-prefixed, 40-digit hex address.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: invalid address %q: %w", raw, err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("config: invalid address %q: want %d bytes, got %d", raw, len(addr), len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8721"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./checksvault-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "checksvault-local"
	}
	if strings.TrimSpace(cfg.Database) == "" {
		cfg.Database = DatabaseLevelDB
	}
}

func validate(cfg *Config) error {
	switch cfg.Database {
	case DatabaseMemory, DatabaseLevelDB:
	default:
		return fmt.Errorf("config: unsupported database backend %q", cfg.Database)
	}
	for _, item := range cfg.Collection.Items {
		if _, err := item.OwnerAddress(); err != nil {
			return err
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
