package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"

	"spendbot/internal/backend"
	"spendbot/internal/cli"
	"spendbot/internal/config"
)

var app struct {
	Commands
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).Validate)

	ctx := context.Background()
	source := cli.OpenLedger(ctx, logger, cfg)
	defer source.Close()

	env := &Env{
		Ctx:      ctx,
		Ledger:   source.Ledger,
		Location: cfg.Location(),
		Currency: cfg.CurrencyLabel,
		Out:      os.Stdout,
		Open: func(ctx context.Context, target backend.Config) (*backend.BackendResult, error) {
			return backend.NewFactory(logger).CreateBackend(ctx, target)
		},
		Target: func() (backend.Config, error) {
			return backend.FromAppConfig(cfg)
		},
	}

	kctx := kong.Parse(&app,
		kong.Name("spendctl"),
		kong.Description("Operator tool for the spendbot expense ledger."),
		kong.UsageOnError(),
		kong.Bind(env),
	)
	kctx.FatalIfErrorf(kctx.Run())
}
