package chunking

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

func TestNeedsChunkingBoundary(t *testing.T) {
	s := NewSplitter(1024)
	if s.NeedsChunking(1024) {
		t.Fatalf("expected threshold size to fit in one object")
	}
	if !s.NeedsChunking(1025) {
		t.Fatalf("expected threshold+1 to require chunking")
	}
}

func TestNewSplitterDefaultsInvalidMaximum(t *testing.T) {
	if s := NewSplitter(0); s.MaxPieceBytes != DefaultMaxPieceBytes {
		t.Fatalf("expected default max piece bytes, got %d", s.MaxPieceBytes)
	}
}

func TestSplitFileRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, size := range []int{1, 15, 16, 17, 64, 1000} {
		data := make([]byte, size)
		rng.Read(data)

		set, err := NewSplitter(16).SplitFile(data, "doc.md")
		if err != nil {
			t.Fatalf("SplitFile(size=%d) error = %v", size, err)
		}

		var joined []byte
		var sum int
		for i, chunk := range set.Chunks {
			if chunk.Index != i {
				t.Fatalf("chunk %d has index %d", i, chunk.Index)
			}
			if chunk.TotalChunks != len(set.Chunks) {
				t.Fatalf("chunk %d total=%d, expected %d", i, chunk.TotalChunks, len(set.Chunks))
			}
			if chunk.DocumentHash != set.Metadata.DocumentHash {
				t.Fatalf("chunk %d carries wrong document hash", i)
			}
			sum += len(chunk.Data)
			joined = append(joined, chunk.Data...)
		}
		if sum != size {
			t.Fatalf("chunk lengths sum to %d, expected %d", sum, size)
		}
		if !bytes.Equal(joined, data) {
			t.Fatalf("concatenation does not reproduce input of size %d", size)
		}

		reassembled, err := Reassemble(set.Chunks)
		if err != nil {
			t.Fatalf("Reassemble() error = %v", err)
		}
		if !bytes.Equal(reassembled, data) {
			t.Fatalf("reassembled content differs for size %d", size)
		}
	}
}

func TestSplitFileHashesDependOnContentOnly(t *testing.T) {
	data := bytes.Repeat([]byte("abcd"), 10)
	first, err := NewSplitter(8).SplitFile(data, "a.txt")
	if err != nil {
		t.Fatalf("SplitFile() error = %v", err)
	}
	second, err := NewSplitter(8).SplitFile(data, "b.txt")
	if err != nil {
		t.Fatalf("SplitFile() error = %v", err)
	}
	for i := range first.Chunks {
		if first.Chunks[i].Hash != second.Chunks[i].Hash {
			t.Fatalf("chunk %d hash differs between runs", i)
		}
	}
	// Every chunk here has identical bytes, so identical hashes.
	if first.Chunks[0].Hash != first.Chunks[1].Hash {
		t.Fatalf("identical chunk content must hash identically")
	}
}

func TestSplitFileValidatesInput(t *testing.T) {
	s := NewSplitter(8)
	if _, err := s.SplitFile(nil, "a.txt"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty buffer, got %v", err)
	}
	if _, err := s.SplitFile([]byte("x"), " "); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing filename, got %v", err)
	}
}

func TestReassembleDetectsTampering(t *testing.T) {
	set, err := NewSplitter(4).SplitFile([]byte("hello world"), "a.txt")
	if err != nil {
		t.Fatalf("SplitFile() error = %v", err)
	}
	set.Chunks[1].Data = []byte("XXXX")
	if _, err := Reassemble(set.Chunks); err == nil {
		t.Fatalf("expected hash mismatch error")
	}
}

func TestReassembleAcceptsShuffledChunks(t *testing.T) {
	set, err := NewSplitter(3).SplitFile([]byte("abcdefghij"), "a.txt")
	if err != nil {
		t.Fatalf("SplitFile() error = %v", err)
	}
	chunks := set.Chunks
	chunks[0], chunks[len(chunks)-1] = chunks[len(chunks)-1], chunks[0]
	out, err := Reassemble(chunks)
	if err != nil {
		t.Fatalf("Reassemble() error = %v", err)
	}
	if string(out) != "abcdefghij" {
		t.Fatalf("unexpected reassembly %q", out)
	}
}
