package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kirillkom/kg-ingest/internal/adapters/cli"
	"github.com/kirillkom/kg-ingest/internal/bootstrap"
	"github.com/kirillkom/kg-ingest/internal/config"
	"github.com/kirillkom/kg-ingest/internal/observability/logging"
)

const serviceName = "ingestctl"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(open)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func open(ctx context.Context) (cli.Services, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return cli.Services{}, nil, err
	}
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		return cli.Services{}, nil, err
	}
	return cli.Services{Files: app.Files, Feeds: app.Feeds, Jobs: app.Jobs}, app.Close, nil
}
