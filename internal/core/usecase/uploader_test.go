package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/chunking"
)

func TestUploadSmallDocumentIsOnePut(t *testing.T) {
	store := &storeFake{}
	uploader := NewContentUploader(store, chunking.NewSplitter(1024))

	doc := domain.NewRawDocument([]byte(strings.Repeat("a", 1024)), "a.md")
	result, err := uploader.Upload(context.Background(), doc, domain.UploadMetadata{Title: "a.md", Type: "markdown"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if result.Chunked || len(store.calls) != 1 || len(result.Receipts) != 1 {
		t.Fatalf("threshold-sized document must not be chunked: %+v", result)
	}
	if _, ok := store.calls[0].meta["chunk_index"]; ok {
		t.Fatalf("unexpected chunk metadata on single object")
	}
}

func TestUploadChunksInOrderWithMetadata(t *testing.T) {
	store := &storeFake{}
	uploader := NewContentUploader(store, chunking.NewSplitter(10))

	content := []byte("0123456789abcdefghijXYZ")
	doc := domain.NewRawDocument(content, "long.txt")
	result, err := uploader.Upload(context.Background(), doc, domain.UploadMetadata{Title: "long.txt"})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !result.Chunked || len(result.Receipts) != 3 || result.Receipt != result.Receipts[0] {
		t.Fatalf("unexpected result %+v", result)
	}

	var joined []byte
	for i, call := range store.calls {
		joined = append(joined, call.data...)
		meta := call.meta
		if meta["chunk_index"] != string(rune('0'+i)) || meta["total_chunks"] != "3" {
			t.Fatalf("chunk %d metadata %+v", i, meta)
		}
		if meta["original_filename"] != "long.txt" || meta["original_hash"] != doc.ContentHash || meta["chunk_hash"] == "" {
			t.Fatalf("chunk %d metadata %+v", i, meta)
		}
	}
	if !bytes.Equal(joined, content) {
		t.Fatalf("uploaded chunks do not reproduce the document")
	}
}

func TestUploadAbortsOnChunkFailure(t *testing.T) {
	store := &storeFake{failAt: 1, err: errors.New("gateway unavailable")}
	uploader := NewContentUploader(store, chunking.NewSplitter(4))

	_, err := uploader.Upload(context.Background(), domain.NewRawDocument([]byte("aaaabbbbcccc"), "x.txt"), domain.UploadMetadata{})
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 stored") {
		t.Fatalf("error should report stored chunk count: %v", err)
	}
	if len(store.calls) != 2 {
		t.Fatalf("remaining chunks must not be attempted, got %d puts", len(store.calls))
	}
}
