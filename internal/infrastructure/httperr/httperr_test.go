package httperr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

func TestClassifyStatusCodes(t *testing.T) {
	if !Classify(&StatusError{StatusCode: http.StatusServiceUnavailable}).Retryable {
		t.Fatalf("503 should be retryable")
	}
	class := Classify(&StatusError{StatusCode: http.StatusBadRequest})
	if class.Retryable || class.RecordFailure {
		t.Fatalf("400 should be permanent and not recorded: %+v", class)
	}
	if Classify(context.Canceled).Retryable {
		t.Fatalf("cancellation must not be retried")
	}
}

func TestFromResponseKeepsBody(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Status:     "502 Bad Gateway",
		Body:       io.NopCloser(strings.NewReader("  upstream down ")),
	}
	err := FromResponse("piecestore", "upload", resp)
	if !strings.Contains(err.Error(), "upstream down") || !strings.HasPrefix(err.Error(), "piecestore upload status") {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}

func TestWrapTypesFailures(t *testing.T) {
	err := Wrap(domain.ErrExtraction, "op", &StatusError{StatusCode: http.StatusTooManyRequests, Status: "429"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}

	cases := []struct {
		name string
		err  error
	}{
		{"bad request", &StatusError{StatusCode: http.StatusBadRequest, Status: "400"}},
		{"unauthorized", &StatusError{StatusCode: http.StatusUnauthorized, Status: "401"}},
		{"model not found", &StatusError{StatusCode: http.StatusNotFound, Status: "404"}},
		{"untyped", errors.New("decode response: unexpected EOF")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Wrap(domain.ErrExtraction, "op", tc.err)
			if !domain.IsKind(got, domain.ErrExtraction) || domain.IsKind(got, domain.ErrTemporary) {
				t.Fatalf("expected permanent extraction kind, got %v", got)
			}
			if !errors.Is(got, tc.err) {
				t.Fatalf("cause lost: %v", got)
			}
		})
	}
}

func TestWrapPassesThroughTypedAndCancelled(t *testing.T) {
	typed := domain.WrapError(domain.ErrExtractionSchema, "op", errors.New("empty"))
	if got := Wrap(domain.ErrExtraction, "op", typed); got != typed {
		t.Fatalf("typed errors must pass through, got %v", got)
	}
	if got := Wrap(domain.ErrStorage, "op", context.Canceled); got != context.Canceled {
		t.Fatalf("cancellation must pass through, got %v", got)
	}
	if Wrap(domain.ErrStorage, "op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}
