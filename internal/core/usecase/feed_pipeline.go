package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
)

type FeedPipeline struct {
	deps    PipelineDeps
	fetcher ports.FeedFetcher
}

func NewFeedPipeline(deps PipelineDeps, fetcher ports.FeedFetcher) *FeedPipeline {
	return &FeedPipeline{deps: deps, fetcher: fetcher}
}

// ProcessFeed extracts one graph from all items of a feed so relationships
// spanning items are visible to the model.
func (p *FeedPipeline) ProcessFeed(ctx context.Context, feedURL string) (*domain.FeedJobReport, error) {
	feedURL = strings.TrimSpace(feedURL)
	if err := validateFeedURL(feedURL); err != nil {
		return &domain.FeedJobReport{Success: false, Steps: []domain.ProcessingStep{}, Error: err.Error()}, err
	}

	tracker := p.deps.tracker(domain.JobKindRSS, feedURL)
	run := &feedRun{pipeline: p, tracker: tracker, report: &domain.FeedJobReport{JobID: tracker.jobID()}, source: feedURL}

	tracker.begin(ctx, domain.StepFetchRSS)
	feed, err := p.fetcher.Fetch(ctx, feedURL)
	if err == nil && len(feed.Items) == 0 {
		err = domain.WrapError(domain.ErrUpstreamFetch, "fetch feed", errors.New("feed has no items"))
	}
	if err != nil {
		return run.fail(ctx, err, nil)
	}
	run.report.ItemsCount = len(feed.Items)
	tracker.complete(ctx, fmt.Sprintf("Fetched %d items", len(feed.Items)), map[string]any{
		"itemsCount": len(feed.Items),
		"title":      feed.Title,
	})

	content := BuildFeedDocument(feed)
	doc := domain.NewRawDocument([]byte(content), feedFilename(feedURL))

	tracker.begin(ctx, domain.StepUpload)
	title := feed.Title
	if title == "" {
		title = feedURL
	}
	result, err := p.deps.Uploader.Upload(ctx, doc, domain.UploadMetadata{
		Title:       title,
		Description: fmt.Sprintf("RSS batch of %d items from %s", len(feed.Items), feedURL),
		Type:        "rss",
	})
	if err != nil {
		return run.fail(ctx, err, nil)
	}
	run.report.CID = result.Receipt.PieceCID
	tracker.complete(ctx, fmt.Sprintf("Stored as %s", run.report.CID), uploadData(result))

	tracker.begin(ctx, domain.StepExtractKG)
	ex, err := p.deps.extract(ctx, content)
	if err != nil {
		return run.fail(ctx, err, map[string]any{"attempts": ex.attempts})
	}
	run.report.EntitiesCount = len(ex.graph.Entities)
	run.report.RelationshipsCount = len(ex.graph.Relationships)
	tracker.complete(ctx,
		fmt.Sprintf("Extracted %d entities and %d relationships", run.report.EntitiesCount, run.report.RelationshipsCount),
		map[string]any{
			"entitiesCount":      run.report.EntitiesCount,
			"relationshipsCount": run.report.RelationshipsCount,
			"attempts":           ex.attempts,
		})

	tracker.begin(ctx, domain.StepStoreGraph)
	queries := p.deps.Generator.Generate(ex.graph.Entities, ex.graph.Relationships, run.report.CID)
	write, err := p.deps.execute(ctx, domain.JobKindRSS, queries)
	data := write.stepData()
	data["queriesCount"] = len(queries)
	if err != nil {
		return run.fail(ctx, err, data)
	}
	tracker.complete(ctx, fmt.Sprintf("Executed %d queries", len(write.results)), data)

	return run.succeed(ctx)
}

// BuildFeedDocument concatenates feed items, each behind a delimiter block
// carrying its title, link and date.
func BuildFeedDocument(feed *domain.Feed) string {
	var b strings.Builder
	title := feed.Title
	if title == "" {
		title = feed.URL
	}
	fmt.Fprintf(&b, "# %s\n\nSource: %s\n", title, feed.URL)
	for i, item := range feed.Items {
		date := "unknown"
		if item.Published != nil {
			date = item.Published.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "\n---\n## Item %d: %s\nLink: %s\nDate: %s\n\n%s\n", i+1, item.Title, item.Link, date, strings.TrimSpace(item.Body))
	}
	return b.String()
}

func validateFeedURL(raw string) error {
	if raw == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate feed url", errors.New("url is required"))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "validate feed url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.WrapError(domain.ErrInvalidInput, "validate feed url", fmt.Errorf("url must be absolute http(s), got %q", raw))
	}
	return nil
}

func feedFilename(feedURL string) string {
	host := "feed"
	if u, err := url.Parse(feedURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return "rss-" + host + ".md"
}

type feedRun struct {
	pipeline *FeedPipeline
	tracker  *stepTracker
	report   *domain.FeedJobReport
	source   string
}

func (r *feedRun) fail(ctx context.Context, err error, data any) (*domain.FeedJobReport, error) {
	r.tracker.fail(ctx, err, data)
	r.report.Steps = r.tracker.finish(ctx, false, err, r.summary())
	r.report.Success = false
	r.report.Error = err.Error()
	r.pipeline.deps.publish(ctx, r.event(false, err))
	return r.report, err
}

func (r *feedRun) succeed(ctx context.Context) (*domain.FeedJobReport, error) {
	r.tracker.begin(ctx, domain.StepComplete)
	r.tracker.complete(ctx, "Processing complete", nil)
	r.report.Success = true
	r.report.Steps = r.tracker.finish(ctx, true, nil, r.summary())
	r.pipeline.deps.publish(ctx, r.event(true, nil))
	return r.report, nil
}

func (r *feedRun) summary() map[string]any {
	return map[string]any{
		"itemsCount":         r.report.ItemsCount,
		"cid":                r.report.CID,
		"entitiesCount":      r.report.EntitiesCount,
		"relationshipsCount": r.report.RelationshipsCount,
	}
}

func (r *feedRun) event(success bool, err error) domain.JobEvent {
	return domain.JobEvent{
		JobID:              r.tracker.jobID(),
		Kind:               domain.JobKindRSS,
		Source:             r.source,
		Success:            success,
		CID:                r.report.CID,
		EntitiesCount:      r.report.EntitiesCount,
		RelationshipsCount: r.report.RelationshipsCount,
		Error:              errorText(err),
		FinishedAt:         r.pipeline.deps.clock(),
	}
}
