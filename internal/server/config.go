package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/viettienlv97/game-server/internal/registry"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "HOLDEM"

// Config represents the complete server configuration
type Config struct {
	Server  ServerSettings   `hcl:"server,block"`
	Storage *StorageSettings `hcl:"storage,block"`
	Auth    *AuthSettings    `hcl:"auth,block"`
	Tables  []TableConfig    `hcl:"table,block"`
}

// ServerSettings contains server-level configuration
type ServerSettings struct {
	Address         string  `hcl:"address,optional"`
	Port            int     `hcl:"port,optional"`
	LogLevel        string  `hcl:"log_level,optional"`
	Rake            float64 `hcl:"rake,optional"`
	Seed            int64   `hcl:"seed,optional"`
	SweepInterval   string  `hcl:"sweep_interval,optional"`
	PruneAfter      string  `hcl:"prune_after,optional"`
	PruneSchedule   string  `hcl:"prune_schedule,optional"`
	StatsSchedule   string  `hcl:"stats_schedule,optional"`
	DealSchedule    string  `hcl:"deal_schedule,optional"`
	StartingBalance int64   `hcl:"starting_balance,optional"`
}

// StorageSettings selects the wallet and game store backends
type StorageSettings struct {
	Wallet    string `hcl:"wallet,optional"`
	WalletDSN string `hcl:"wallet_dsn,optional"`
	Store     string `hcl:"store,optional"`
	StoreDSN  string `hcl:"store_dsn,optional"`
}

// AuthSettings selects how connection tokens are verified. The signing
// secret is only read from the environment.
type AuthSettings struct {
	Mode     string `hcl:"mode,optional"`
	Issuer   string `hcl:"issuer,optional"`
	Audience string `hcl:"audience,optional"`
	URL      string `hcl:"url,optional"`

	Secret      string
	AdminSecret string
}

// TableConfig is a table created at boot when no persisted table has its name
type TableConfig struct {
	Name       string `hcl:"name,label"`
	MaxPlayers int    `hcl:"max_players,optional"`
	SmallBlind int64  `hcl:"small_blind"`
	BigBlind   int64  `hcl:"big_blind"`
	BuyInMin   int64  `hcl:"buy_in_min,optional"`
	BuyInMax   int64  `hcl:"buy_in_max,optional"`
}

// Env holds the overrides read from HOLDEM_* variables
type Env struct {
	Address         string  `envconfig:"ADDRESS"`
	Port            int     `envconfig:"PORT"`
	LogLevel        string  `envconfig:"LOG_LEVEL"`
	Rake            float64 `envconfig:"RAKE"`
	StartingBalance int64   `envconfig:"STARTING_BALANCE"`
	Wallet          string  `envconfig:"WALLET"`
	WalletDSN       string  `envconfig:"WALLET_DSN"`
	Store           string  `envconfig:"STORE"`
	StoreDSN        string  `envconfig:"STORE_DSN"`
	AuthMode        string  `envconfig:"AUTH_MODE"`
	AuthURL         string  `envconfig:"AUTH_URL"`
	JWTSecret       string  `envconfig:"JWT_SECRET"`
	AdminSecret     string  `envconfig:"ADMIN_SECRET"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Tables = []TableConfig{
		{Name: "main", MaxPlayers: registry.DefaultMaxPlayers, SmallBlind: 5, BigBlind: 10, BuyInMin: 100, BuyInMax: 1000},
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.SweepInterval == "" {
		c.Server.SweepInterval = "30s"
	}
	if c.Server.PruneAfter == "" {
		c.Server.PruneAfter = "24h"
	}
	if c.Server.PruneSchedule == "" {
		c.Server.PruneSchedule = "@hourly"
	}
	if c.Server.StatsSchedule == "" {
		c.Server.StatsSchedule = "@every 5m"
	}
	if c.Server.DealSchedule == "" {
		c.Server.DealSchedule = "@every 10s"
	}
	if c.Storage == nil {
		c.Storage = &StorageSettings{}
	}
	if c.Storage.Wallet == "" {
		c.Storage.Wallet = "memory"
	}
	if c.Storage.Store == "" {
		c.Storage.Store = "memory"
	}
	if c.Auth == nil {
		c.Auth = &AuthSettings{}
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = "dev"
	}

	for i := range c.Tables {
		t := &c.Tables[i]
		if t.MaxPlayers == 0 {
			t.MaxPlayers = registry.DefaultMaxPlayers
		}
		if t.BuyInMin == 0 {
			t.BuyInMin = t.BigBlind * 20
		}
		if t.BuyInMax == 0 {
			t.BuyInMax = t.BigBlind * 100
		}
	}
}

// LoadConfig loads server configuration from an HCL file. A missing file
// yields the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	config.applyDefaults()
	return &config, nil
}

// LoadDotEnv loads variables from a .env file if present. Variables already
// set in the environment win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

// ApplyEnv overlays HOLDEM_* variables on top of the file configuration.
func (c *Config) ApplyEnv() error {
	var env Env
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	setString(&c.Server.Address, env.Address)
	setString(&c.Server.LogLevel, env.LogLevel)
	setString(&c.Storage.Wallet, env.Wallet)
	setString(&c.Storage.WalletDSN, env.WalletDSN)
	setString(&c.Storage.Store, env.Store)
	setString(&c.Storage.StoreDSN, env.StoreDSN)
	setString(&c.Auth.Mode, env.AuthMode)
	setString(&c.Auth.URL, env.AuthURL)
	setString(&c.Auth.Secret, env.JWTSecret)
	setString(&c.Auth.AdminSecret, env.AdminSecret)
	if env.Port != 0 {
		c.Server.Port = env.Port
	}
	if env.Rake != 0 {
		c.Server.Rake = env.Rake
	}
	if env.StartingBalance != 0 {
		c.Server.StartingBalance = env.StartingBalance
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.Rake < 0 || c.Server.Rake >= 1 {
		return fmt.Errorf("rake must be in [0, 1): %v", c.Server.Rake)
	}
	if c.Server.StartingBalance < 0 {
		return fmt.Errorf("starting balance must not be negative")
	}
	for _, d := range []struct{ name, value string }{
		{"sweep_interval", c.Server.SweepInterval},
		{"prune_after", c.Server.PruneAfter},
	} {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if v <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}

	switch c.Storage.Wallet {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.WalletDSN == "" {
			return fmt.Errorf("wallet %s requires wallet_dsn", c.Storage.Wallet)
		}
	default:
		return fmt.Errorf("unknown wallet backend %q", c.Storage.Wallet)
	}
	switch c.Storage.Store {
	case "memory":
	case "postgres":
		if c.Storage.StoreDSN == "" {
			return fmt.Errorf("store postgres requires store_dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Storage.Store)
	}
	switch c.Auth.Mode {
	case "dev":
	case "jwt":
		if c.Auth.Secret == "" {
			return fmt.Errorf("auth mode jwt requires %s_JWT_SECRET", EnvPrefix)
		}
	case "http":
		if c.Auth.URL == "" {
			return fmt.Errorf("auth mode http requires url")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	for _, table := range c.Tables {
		spec := table.Spec()
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("table %s: %w", table.Name, err)
		}
	}
	return nil
}

// SweepEvery is the parsed liveness sweep interval.
func (c *Config) SweepEvery() time.Duration {
	d, _ := time.ParseDuration(c.Server.SweepInterval)
	return d
}

// PruneAge is the parsed age after which completed games are pruned.
func (c *Config) PruneAge() time.Duration {
	d, _ := time.ParseDuration(c.Server.PruneAfter)
	return d
}

// ListenAddress returns the full server address
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Spec converts a configured table to a registry table spec.
func (t TableConfig) Spec() registry.TableSpec {
	return registry.TableSpec{
		Name:       t.Name,
		SmallBlind: t.SmallBlind,
		BigBlind:   t.BigBlind,
		MinBuyin:   t.BuyInMin,
		MaxBuyin:   t.BuyInMax,
		MaxPlayers: t.MaxPlayers,
	}
}
