package domain

import "testing"

func TestUploadMetadataFlattenStringifiesChunkFields(t *testing.T) {
	meta := UploadMetadata{Title: "notes.md", Type: "text/markdown"}.WithChunk(Chunk{
		Index:        2,
		TotalChunks:  5,
		Hash:         "abc",
		DocumentHash: "def",
		Filename:     "notes.md",
	})

	flat := meta.Flatten()
	want := map[string]string{
		"title":             "notes.md",
		"type":              "text/markdown",
		"chunk_index":       "2",
		"total_chunks":      "5",
		"original_filename": "notes.md",
		"chunk_hash":        "abc",
		"original_hash":     "def",
	}
	if len(flat) != len(want) {
		t.Fatalf("expected %d keys, got %d: %+v", len(want), len(flat), flat)
	}
	for k, v := range want {
		if flat[k] != v {
			t.Fatalf("key %s: expected %q, got %q", k, v, flat[k])
		}
	}
}

func TestUploadMetadataFlattenOmitsChunkFieldsForWholeDocument(t *testing.T) {
	flat := UploadMetadata{Title: "a.txt", Description: "d"}.Flatten()
	if _, ok := flat["chunk_index"]; ok {
		t.Fatalf("unexpected chunk_index for single object: %+v", flat)
	}
	if flat["description"] != "d" {
		t.Fatalf("expected description, got %+v", flat)
	}
}

func TestEncryptionTypeFallsBackToUnknown(t *testing.T) {
	p := EncryptedPayload{EncryptionMetadata: map[string]any{"type": "lit"}}
	if p.EncryptionType() != "lit" {
		t.Fatalf("expected lit, got %s", p.EncryptionType())
	}
	if (EncryptedPayload{}).EncryptionType() != "unknown" {
		t.Fatalf("expected unknown fallback")
	}
}
