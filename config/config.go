package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"notehouse/crypto"
)

// Config carries the deployment parameters of the auction house daemon.
type Config struct {
	DataDir          string `toml:"DataDir"`
	MetricsAddress   string `toml:"MetricsAddress"`
	SettlementAsset  string `toml:"SettlementAsset"`
	CustodyAddress   string `toml:"CustodyAddress"`
	CollectorAddress string `toml:"CollectorAddress"`
	FeeBps           uint64 `toml:"FeeBps"`
	FeeEnabled       bool   `toml:"FeeEnabled"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engines cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SettlementAsset) == "" {
		return fmt.Errorf("config: SettlementAsset must not be empty")
	}
	if c.FeeBps > 10_000 {
		return fmt.Errorf("config: FeeBps out of range: %d", c.FeeBps)
	}
	if _, err := c.Custody(); err != nil {
		return err
	}
	if _, err := c.Collector(); err != nil {
		return err
	}
	return nil
}

// Custody decodes the configured custody address.
func (c *Config) Custody() ([20]byte, error) {
	return decodeAddress("CustodyAddress", c.CustodyAddress)
}

// Collector decodes the configured note registry collector address.
func (c *Config) Collector() ([20]byte, error) {
	return decodeAddress("CollectorAddress", c.CollectorAddress)
}

func decodeAddress(field, value string) ([20]byte, error) {
	var out [20]byte
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return out, fmt.Errorf("config: %s: %w", field, err)
	}
	copy(out[:], addr.Bytes())
	return out, nil
}

func createDefault(path string) (*Config, error) {
	custody, err := freshAddress()
	if err != nil {
		return nil, err
	}
	collector, err := freshAddress()
	if err != nil {
		return nil, err
	}
	cfg := &Config{
		DataDir:          "./notehouse-data",
		MetricsAddress:   ":9464",
		SettlementAsset:  "NUSD",
		CustodyAddress:   custody,
		CollectorAddress: collector,
		FeeBps:           30,
		FeeEnabled:       true,
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil && filepath.Dir(path) != "." {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func freshAddress() (string, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return "", err
	}
	return key.PubKey().Address().String(), nil
}
