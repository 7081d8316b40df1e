// Package rss fetches RSS/Atom feeds and normalizes item bodies to markdown.
package rss

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/mmcdole/gofeed"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/httperr"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
)

const defaultMaxFeedBytes = 10 << 20

type Fetcher struct {
	httpClient *http.Client
	executor   *resilience.Executor
	maxBytes   int64
	userAgent  string
}

func NewFetcher(timeout time.Duration, maxBytes int64, executor *resilience.Executor) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxFeedBytes
	}
	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		maxBytes:   maxBytes,
		userAgent:  "kg-ingest/1.0",
	}
}

// ValidateURL accepts absolute http(s) URLs only.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate feed url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate feed url", fmt.Errorf("unsupported url %q", raw))
	}
	return nil
}

func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*domain.Feed, error) {
	if err := ValidateURL(feedURL); err != nil {
		return nil, err
	}
	feedURL = strings.TrimSpace(feedURL)

	body, err := resilience.Call(ctx, f.executor, resilience.OperationRSSFetch, func(callCtx context.Context) ([]byte, error) {
		return f.download(callCtx, feedURL)
	}, httperr.Classify)
	if err != nil {
		if domain.IsKind(err, domain.ErrUpstreamFetch) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrUpstreamFetch, "fetch feed", err)
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstreamFetch, "parse feed", err)
	}
	return convertFeed(feedURL, parsed), nil
}

func (f *Fetcher) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, httperr.FromResponse("rss", "fetch", resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, domain.WrapError(domain.ErrUpstreamFetch, "fetch feed", fmt.Errorf("feed exceeds %d bytes", f.maxBytes))
	}
	return body, nil
}

func convertFeed(feedURL string, parsed *gofeed.Feed) *domain.Feed {
	out := &domain.Feed{
		URL:   feedURL,
		Title: strings.TrimSpace(parsed.Title),
		Items: make([]domain.FeedItem, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		out.Items = append(out.Items, domain.FeedItem{
			Title:     strings.TrimSpace(item.Title),
			Link:      strings.TrimSpace(item.Link),
			Published: published,
			Body:      itemBody(item),
		})
	}
	return out
}

// itemBody prefers full content over the summary. Markup that fails to
// convert is kept as-is rather than dropping the item.
func itemBody(item *gofeed.Item) string {
	raw := item.Content
	if strings.TrimSpace(raw) == "" {
		raw = item.Description
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.Contains(raw, "<") {
		return raw
	}
	md, err := htmltomarkdown.ConvertString(raw)
	if err != nil {
		slog.Warn("feed_item_markdown_failed", "link", item.Link, "error", err)
		return raw
	}
	return strings.TrimSpace(md)
}
