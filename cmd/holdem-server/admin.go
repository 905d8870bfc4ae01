package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/viettienlv97/game-server/internal/auth"
	"github.com/viettienlv97/game-server/internal/store"
)

// MigrateCmd applies the postgres schema of the game store.
type MigrateCmd struct {
	DSN   string `help:"Postgres URL (defaults to the configured store_dsn)"`
	Steps int    `help:"Versions to move; negative migrates down, zero migrates all the way up"`
}

func (c *MigrateCmd) Run(cli *CLI) error {
	dsn := c.DSN
	if dsn == "" {
		cfg, err := loadConfig(cli)
		if err != nil {
			return err
		}
		dsn = cfg.Storage.StoreDSN
	}
	if dsn == "" {
		return errors.New("no database url: pass --dsn or set store_dsn")
	}
	version, err := store.Migrate(dsn, c.Steps)
	if err != nil {
		return err
	}
	fmt.Printf("schema at version %d\n", version)
	return nil
}

// TokenCmd prints a signed token for a user.
type TokenCmd struct {
	User string        `arg:"" help:"User id to sign the token for"`
	Role string        `default:"user" enum:"user,admin" help:"Role claim"`
	TTL  time.Duration `default:"24h" help:"Token lifetime"`
}

func (c *TokenCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	signer, err := auth.NewJWTValidator(cfg.Auth.Secret, jwtOptions(cfg.Auth)...)
	if err != nil {
		return fmt.Errorf("set HOLDEM_JWT_SECRET: %w", err)
	}
	token, err := signer.Sign(auth.Identity{UserID: c.User, Role: c.Role}, c.TTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
