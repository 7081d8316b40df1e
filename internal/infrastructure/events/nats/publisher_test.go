package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
)

type fakePublisher struct {
	errs     []error
	subjects []string
	payloads [][]byte
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	return nil
}

func TestPublishJobFinishedEncodesEvent(t *testing.T) {
	fake := &fakePublisher{}
	p := &Publisher{pub: fake, subject: "kg.jobs.finished"}

	event := domain.JobEvent{JobID: "job-1", Kind: domain.JobKindRSS, Success: true, CID: "bafk", EntitiesCount: 3}
	if err := p.PublishJobFinished(context.Background(), event); err != nil {
		t.Fatalf("PublishJobFinished() error = %v", err)
	}
	if len(fake.subjects) != 1 || fake.subjects[0] != "kg.jobs.finished" {
		t.Fatalf("unexpected subjects %v", fake.subjects)
	}
	var got domain.JobEvent
	if err := json.Unmarshal(fake.payloads[0], &got); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if got.JobID != "job-1" || got.EntitiesCount != 3 || !got.Success {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestPublishRetriesDisconnect(t *testing.T) {
	fake := &fakePublisher{errs: []error{nats.ErrConnectionReconnecting}}
	p := &Publisher{
		pub:     fake,
		subject: "s",
		executor: resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts:    2,
			RetryInitialBackoff: time.Millisecond,
			RetryMaxBackoff:     time.Millisecond,
		}),
	}
	if err := p.PublishJobFinished(context.Background(), domain.JobEvent{JobID: "j"}); err != nil {
		t.Fatalf("PublishJobFinished() error = %v", err)
	}
	if len(fake.payloads) != 2 {
		t.Fatalf("expected a retry, got %d publishes", len(fake.payloads))
	}
}

func TestPublishWrapsTemporaryFailure(t *testing.T) {
	fake := &fakePublisher{errs: []error{nats.ErrConnectionClosed}}
	p := &Publisher{pub: fake, subject: "s"}

	err := p.PublishJobFinished(context.Background(), domain.JobEvent{JobID: "j"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}

	permanent := errors.New("bad subject")
	fake.errs = []error{permanent}
	if err := p.PublishJobFinished(context.Background(), domain.JobEvent{JobID: "j"}); domain.IsKind(err, domain.ErrTemporary) || !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}
