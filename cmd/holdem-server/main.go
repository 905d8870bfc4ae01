package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Config  string           `short:"c" default:"holdem-server.hcl" type:"path" help:"Path to HCL configuration file"`
	EnvFile string           `name:"env-file" default:".env" type:"path" help:"Dotenv file loaded before HOLDEM_* overrides"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the table server"`
	Migrate MigrateCmd `cmd:"" help:"Apply store schema migrations"`
	Token   TokenCmd   `cmd:"" help:"Sign a player token for jwt auth mode"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("holdem-server"),
		kong.Description("Multiplayer Texas hold'em table server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}

func newLogger(level string) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		logger.Warn("Unknown log level, using info", "level", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
