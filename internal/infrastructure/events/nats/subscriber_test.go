package nats

import (
	"context"
	"errors"
	"testing"
)

func TestParseFeedRequest(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "https://example.com/feed.xml", want: "https://example.com/feed.xml"},
		{in: "  https://example.com/feed.xml\n", want: "https://example.com/feed.xml"},
		{in: `{"url":" https://example.com/rss "}`, want: "https://example.com/rss"},
		{in: "", wantErr: true},
		{in: `{"url":""}`, wantErr: true},
		{in: `{"url":`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseFeedRequest([]byte(tc.in))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseFeedRequest(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseFeedRequest(%q) error = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseFeedRequest(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHandleFeedRequestSkipsInvalidPayload(t *testing.T) {
	calls := 0
	handleFeedRequest(context.Background(), []byte("   "), func(context.Context, string) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Fatalf("handler must not run for an empty request")
	}
}

func TestHandleFeedRequestSwallowsHandlerError(t *testing.T) {
	var got string
	handleFeedRequest(context.Background(), []byte(`{"url":"https://example.com/rss"}`), func(_ context.Context, url string) error {
		got = url
		return errors.New("fetch failed")
	})
	if got != "https://example.com/rss" {
		t.Fatalf("unexpected url %q", got)
	}
}
