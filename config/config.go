package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"ledgerprograms/crypto"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`

	// FeeCollector receives signature fees. When empty the address of the
	// key in FeeCollectorKeystorePath is used.
	FeeCollector             string `toml:"FeeCollector"`
	FeeCollectorKeystorePath string `toml:"FeeCollectorKeystorePath"`
	LamportsPerSignature     uint64 `toml:"LamportsPerSignature"`

	// SlotMillis is the interval at which the node advances the clock and
	// commits state.
	SlotMillis             uint64 `toml:"SlotMillis"`
	DiceRefundTimeoutSlots uint64 `toml:"DiceRefundTimeoutSlots"`

	RPC       RPC       `toml:"rpc"`
	Indexer   Indexer   `toml:"indexer"`
	Telemetry Telemetry `toml:"telemetry"`
	Logging   Logging   `toml:"logging"`
	Global    Global    `toml:"global"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s: unknown key %q", path, undecoded[0].String())
	}

	applyDefaults(cfg)
	if strings.TrimSpace(cfg.FeeCollector) == "" {
		if err := ensureKeystore(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// FeeCollectorAddress resolves the configured fee collector. A keystore is
// only opened when no explicit address is set; its passphrase is the empty
// string unless passphrase returns otherwise.
func (c *Config) FeeCollectorAddress(passphrase func() (string, error)) (crypto.Address, error) {
	if addr := strings.TrimSpace(c.FeeCollector); addr != "" {
		return crypto.DecodeAddress(addr)
	}
	pass := ""
	if passphrase != nil {
		p, err := passphrase()
		if err != nil {
			return crypto.Address{}, err
		}
		pass = p
	}
	key, err := crypto.LoadFromKeystore(c.FeeCollectorKeystorePath, pass)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("fee collector keystore: %w", err)
	}
	return key.Address(), nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./ledger-data"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if cfg.LamportsPerSignature == 0 {
		cfg.LamportsPerSignature = 5000
	}
	if cfg.SlotMillis == 0 {
		cfg.SlotMillis = 400
	}
	if cfg.DiceRefundTimeoutSlots == 0 {
		cfg.DiceRefundTimeoutSlots = 1000
	}
	if cfg.RPC.MaxBodyBytes == 0 {
		cfg.RPC.MaxBodyBytes = 1 << 20
	}
	if cfg.RPC.ReadHeaderTimeout == 0 {
		cfg.RPC.ReadHeaderTimeout = 5
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.FeeCollectorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.FeeCollectorKeystorePath != keystorePath {
		cfg.FeeCollectorKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress: ":8080",
		DataDir:    "./ledger-data",
		RPC: RPC{
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
		},
	}
	cfg.FeeCollectorKeystorePath = keystorePath
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "fee-collector.keystore")
}
