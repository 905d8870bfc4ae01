package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/viettienlv97/game-server/internal/auth"
	"github.com/viettienlv97/game-server/internal/jobs"
	"github.com/viettienlv97/game-server/internal/registry"
	"github.com/viettienlv97/game-server/internal/server"
	"github.com/viettienlv97/game-server/internal/store"
	"github.com/viettienlv97/game-server/internal/wallet"
)

// systemOwner creates the tables declared in the configuration.
const systemOwner = "system"

// ServeCmd runs the websocket server and the maintenance jobs.
type ServeCmd struct {
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	LogLevel string `short:"l" name:"log-level" help:"Log level (overrides config)"`
	Seed     *int64 `help:"Deterministic shuffle seed (optional)"`
}

func loadConfig(cli *CLI) (*server.Config, error) {
	if err := server.LoadDotEnv(cli.EnvFile); err != nil {
		return nil, fmt.Errorf("load %s: %w", cli.EnvFile, err)
	}
	cfg, err := server.LoadConfig(cli.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Seed != nil {
		cfg.Server.Seed = *c.Seed
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Server.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wal, closeWallet, err := wallet.Open(ctx, wallet.Config{
		Driver:          cfg.Storage.Wallet,
		DSN:             cfg.Storage.WalletDSN,
		StartingBalance: cfg.Server.StartingBalance,
	})
	if err != nil {
		return fmt.Errorf("open wallet: %w", err)
	}
	defer closeWallet()

	st, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := registry.New(registry.Config{Rake: cfg.Server.Rake, Seed: cfg.Server.Seed}, wal, st, quartz.NewReal(), logger)
	if _, err := reg.Restore(ctx); err != nil {
		return err
	}
	if err := seedTables(ctx, reg, cfg.Tables, logger); err != nil {
		return err
	}

	validator, err := newValidator(cfg.Auth)
	if err != nil {
		return err
	}

	srv := server.New(reg, validator, logger, server.WithSweepInterval(cfg.SweepEvery()))

	scheduler, err := jobs.NewScheduler(reg, jobs.Config{
		PruneSchedule: cfg.Server.PruneSchedule,
		PruneAfter:    cfg.PruneAge(),
		StatsSchedule: cfg.Server.StatsSchedule,
		DealSchedule:  cfg.Server.DealSchedule,
		OnDeal:        srv.Publish,
	}, logger)
	if err != nil {
		return err
	}

	logger.Info("Starting Holdem Server",
		"addr", cfg.ListenAddress(),
		"wallet", cfg.Storage.Wallet,
		"store", cfg.Storage.Store,
		"auth", cfg.Auth.Mode,
		"tables", len(reg.ListTables("")))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx, cfg.ListenAddress()) })
	g.Go(func() error { return scheduler.Run(gctx) })
	err = g.Wait()
	logger.Info("Server stopped")
	return err
}

func openStore(cfg *server.Config, logger *log.Logger) (store.Store, func() error, error) {
	switch cfg.Storage.Store {
	case "postgres":
		s, err := store.OpenGorm(cfg.Storage.StoreDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return store.NewMemory(), func() error { return nil }, nil
	}
}

func newValidator(cfg *server.AuthSettings) (auth.Validator, error) {
	switch cfg.Mode {
	case "jwt":
		return auth.NewJWTValidator(cfg.Secret, jwtOptions(cfg)...)
	case "http":
		return auth.NewHTTPValidator(cfg.URL, cfg.AdminSecret), nil
	default:
		return auth.NewDevValidator(), nil
	}
}

func jwtOptions(cfg *server.AuthSettings) []auth.JWTOption {
	var opts []auth.JWTOption
	if cfg.Issuer != "" {
		opts = append(opts, auth.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, auth.WithAudience(cfg.Audience))
	}
	return opts
}

// seedTables creates configured tables that no restored table carries the
// name of.
func seedTables(ctx context.Context, reg *registry.Registry, tables []server.TableConfig, logger *log.Logger) error {
	existing := make(map[string]bool)
	for _, t := range reg.ListTables("") {
		existing[t.Name] = true
	}
	for _, tc := range tables {
		if existing[tc.Name] {
			continue
		}
		t, err := reg.CreateTable(ctx, tc.Spec(), systemOwner)
		if err != nil {
			return fmt.Errorf("create table %s: %w", tc.Name, err)
		}
		logger.Info("Created table",
			"id", t.ID,
			"name", t.Name,
			"stakes", fmt.Sprintf("%d/%d", t.SmallBlind, t.BigBlind),
			"maxPlayers", t.MaxPlayers)
	}
	return nil
}
