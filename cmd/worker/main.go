package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/kg-ingest/internal/bootstrap"
	"github.com/kirillkom/kg-ingest/internal/config"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/events/nats"
	"github.com/kirillkom/kg-ingest/internal/observability/logging"
)

const (
	serviceName = "worker"
	feedTimeout = 10 * time.Minute
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_invalid", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("worker_failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		return err
	}
	defer app.Close()

	subscriber, err := nats.NewFeedSubscriber(cfg.NATSURL, cfg.NATSFeedSubject, cfg.NATSFeedQueue, nats.Options{})
	if err != nil {
		return err
	}
	defer subscriber.Close()

	return subscriber.Run(ctx, func(handlerCtx context.Context, url string) error {
		feedCtx, cancel := context.WithTimeout(handlerCtx, feedTimeout)
		defer cancel()

		report, err := app.Feeds.ProcessFeed(feedCtx, url)
		if err != nil {
			return err
		}
		slog.Info("worker_feed_ingested",
			"job_id", report.JobID,
			"url", url,
			"items", report.ItemsCount,
			"cid", report.CID,
		)
		return nil
	})
}
