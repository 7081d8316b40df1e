package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/kg-ingest/internal/adapters/mcp"
	"github.com/kirillkom/kg-ingest/internal/bootstrap"
	"github.com/kirillkom/kg-ingest/internal/config"
	"github.com/kirillkom/kg-ingest/internal/observability/logging"
)

const serviceName = "mcp"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	// stdout carries the JSON-RPC stream.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	if err := run(cfg); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	app, err := bootstrap.New(context.Background(), cfg, serviceName)
	if err != nil {
		return err
	}
	defer app.Close()

	s := server.NewMCPServer(
		"kg-ingest",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	mcpadapter.NewTools(app.Files, app.Feeds, app.Jobs).Register(s)

	slog.Info("mcp_server_ready")
	return server.ServeStdio(s)
}
