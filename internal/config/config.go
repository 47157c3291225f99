// Package config loads the server configuration from a TOML file, falling
// back to built-in defaults when no file is given.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"hati/internal/ledger"
)

type Account struct {
	Name  string `toml:"name"`
	Base  string `toml:"base"`
	Quote string `toml:"quote"`
}

type Config struct {
	Address string `toml:"address"`
	Port    int    `toml:"port"`
	Workers uint   `toml:"workers"`

	BaseAsset  string `toml:"base_asset"`
	QuoteAsset string `toml:"quote_asset"`

	Accounts []Account `toml:"accounts"`
}

// Default returns the built-in configuration: two seeded accounts trading
// ETH against USD.
func Default() Config {
	return Config{
		Address:    "0.0.0.0",
		Port:       9001,
		Workers:    10,
		BaseAsset:  "ETH",
		QuoteAsset: "USD",
		Accounts: []Account{
			{Name: "alice", Base: "10", Quote: "50000"},
			{Name: "bob", Base: "10", Quote: "50000"},
		},
	}
}

// Load reads the TOML file at path. An empty path yields Default; a
// missing or malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("config file %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Seeds converts the configured accounts into ledger seed balances.
func (c Config) Seeds() ([]ledger.Seed, error) {
	seeds := make([]ledger.Seed, 0, len(c.Accounts))
	for _, acct := range c.Accounts {
		base, err := decimal.NewFromString(acct.Base)
		if err != nil {
			return nil, fmt.Errorf("account %q base balance: %w", acct.Name, err)
		}
		quote, err := decimal.NewFromString(acct.Quote)
		if err != nil {
			return nil, fmt.Errorf("account %q quote balance: %w", acct.Name, err)
		}
		seeds = append(seeds, ledger.Seed{Account: acct.Name, Base: base, Quote: quote})
	}
	return seeds, nil
}
