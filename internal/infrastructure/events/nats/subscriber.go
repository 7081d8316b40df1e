package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// FeedHandler ingests one requested feed URL.
type FeedHandler func(ctx context.Context, url string) error

// FeedSubscriber consumes feed ingestion requests from a queue group so that
// each request is handled by exactly one worker.
type FeedSubscriber struct {
	conn    *nats.Conn
	subject string
	queue   string
}

func NewFeedSubscriber(url, subject, queue string, options Options) (*FeedSubscriber, error) {
	conn, err := connect(url, options)
	if err != nil {
		return nil, err
	}
	return &FeedSubscriber{conn: conn, subject: subject, queue: queue}, nil
}

// Run blocks until ctx is done, then drains the subscription.
func (s *FeedSubscriber) Run(ctx context.Context, handler FeedHandler) error {
	sub, err := s.conn.QueueSubscribe(s.subject, s.queue, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		handleFeedRequest(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := s.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	slog.Info("nats_feed_subscribed", "subject", s.subject, "queue", s.queue)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := s.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (s *FeedSubscriber) Close() {
	if s.conn != nil {
		s.conn.Close()
	}
}

func handleFeedRequest(ctx context.Context, data []byte, handler FeedHandler) {
	url, err := parseFeedRequest(data)
	if err != nil {
		slog.Warn("nats_feed_request_invalid", "error", err)
		return
	}

	handlerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := handler(handlerCtx, url); err != nil {
		slog.Error("nats_feed_request_failed", "url", url, "error", err)
	}
}

// parseFeedRequest accepts either {"url": "..."} or a bare URL.
func parseFeedRequest(data []byte) (string, error) {
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return "", errors.New("empty feed request")
	}
	if !strings.HasPrefix(raw, "{") {
		return raw, nil
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return "", fmt.Errorf("decode feed request: %w", err)
	}
	if strings.TrimSpace(req.URL) == "" {
		return "", errors.New("feed request has no url")
	}
	return strings.TrimSpace(req.URL), nil
}
