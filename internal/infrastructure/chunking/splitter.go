package chunking

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

// DefaultMaxPieceBytes is used when the configured maximum is not positive.
const DefaultMaxPieceBytes = 1 << 20

type Splitter struct {
	MaxPieceBytes int64
}

func NewSplitter(maxPieceBytes int64) *Splitter {
	if maxPieceBytes <= 0 {
		maxPieceBytes = DefaultMaxPieceBytes
	}
	return &Splitter{MaxPieceBytes: maxPieceBytes}
}

// NeedsChunking is true only when size exceeds the storage object limit.
func (s *Splitter) NeedsChunking(size int64) bool {
	return size > s.MaxPieceBytes
}

func (s *Splitter) SplitFile(data []byte, filename string) (*domain.ChunkSet, error) {
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "split file", errors.New("empty buffer"))
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "split file", errors.New("filename is required"))
	}

	size := int64(len(data))
	total := int((size + s.MaxPieceBytes - 1) / s.MaxPieceBytes)
	docHash := ContentHash(data)

	chunks := make([]domain.Chunk, 0, total)
	for i := 0; i < total; i++ {
		start := int64(i) * s.MaxPieceBytes
		end := start + s.MaxPieceBytes
		if end > size {
			end = size
		}
		piece := data[start:end]
		chunks = append(chunks, domain.Chunk{
			Index:        i,
			TotalChunks:  total,
			Data:         piece,
			Hash:         ContentHash(piece),
			DocumentHash: docHash,
			Filename:     filename,
		})
	}

	return &domain.ChunkSet{
		Chunks: chunks,
		Metadata: domain.ChunkMetadata{
			Filename:     filename,
			DocumentHash: docHash,
			TotalChunks:  total,
			Size:         size,
		},
	}, nil
}

// Reassemble concatenates chunks in index order and verifies every hash.
func Reassemble(chunks []domain.Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reassemble", errors.New("no chunks"))
	}

	ordered := make([]domain.Chunk, len(chunks))
	total := chunks[0].TotalChunks
	if total != len(chunks) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reassemble", fmt.Errorf("expected %d chunks, got %d", total, len(chunks)))
	}
	seen := make([]bool, total)
	for _, chunk := range chunks {
		if chunk.Index < 0 || chunk.Index >= total || seen[chunk.Index] {
			return nil, domain.WrapError(domain.ErrInvalidInput, "reassemble", fmt.Errorf("bad or repeated chunk index %d", chunk.Index))
		}
		if ContentHash(chunk.Data) != chunk.Hash {
			return nil, domain.WrapError(domain.ErrInvalidInput, "reassemble", fmt.Errorf("chunk %d hash mismatch", chunk.Index))
		}
		seen[chunk.Index] = true
		ordered[chunk.Index] = chunk
	}

	var buf bytes.Buffer
	for _, chunk := range ordered {
		buf.Write(chunk.Data)
	}
	out := buf.Bytes()
	if ContentHash(out) != ordered[0].DocumentHash {
		return nil, domain.WrapError(domain.ErrInvalidInput, "reassemble", errors.New("document hash mismatch"))
	}
	return out, nil
}

// ContentHash is the hex SHA-256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
