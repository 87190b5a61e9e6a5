// Package config holds the typed configuration of the veildraw tooling.
// Settings load once from a YAML file into a struct; there is no string-keyed
// lookup at runtime.
package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/veildraw/veildraw/pkg/serialization/abi"
)

type Config struct {
	// Node is the chain node the state client reads from.
	Node NodeConfig `yaml:"node"`
	// Contract is the hex-encoded 21-byte address of the lottery contract.
	Contract string `yaml:"contract"`
	// DataDir is where state snapshots are cached; empty disables caching.
	DataDir string `yaml:"data_dir"`
	Log     LogConfig `yaml:"log"`
}

type NodeConfig struct {
	URL   string `yaml:"url"`
	Shard string `yaml:"shard"`
}

type LogConfig struct {
	// Level is a zerolog level name; defaults to info.
	Level string `yaml:"level"`
	// Format is "json" or "console".
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		Node: NodeConfig{URL: "http://localhost:8300"},
		Log:  LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads a YAML config file on top of the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Node.URL == "" {
		return fmt.Errorf("node.url must be set")
	}
	if c.Contract != "" {
		if _, err := c.ContractAddress(); err != nil {
			return err
		}
	}
	return nil
}

// ContractAddress decodes the configured contract address.
func (c Config) ContractAddress() (abi.Address, error) {
	var addr abi.Address
	raw, err := hex.DecodeString(c.Contract)
	if err != nil {
		return addr, fmt.Errorf("contract address %q is not hex: %w", c.Contract, err)
	}
	if len(raw) != abi.AddressLength {
		return addr, fmt.Errorf("contract address is %d bytes, want %d", len(raw), abi.AddressLength)
	}
	copy(addr[:], raw)
	return addr, nil
}
