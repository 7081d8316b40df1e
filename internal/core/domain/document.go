package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// RawDocument is the immutable input of one ingestion job.
type RawDocument struct {
	Content     []byte `json:"-"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash,omitempty"`
}

// Chunk is one byte range of a RawDocument. Concatenating all chunks of a
// document in index order reproduces the document exactly.
type Chunk struct {
	Index        int    `json:"index"`
	TotalChunks  int    `json:"total_chunks"`
	Data         []byte `json:"-"`
	Hash         string `json:"hash"`
	DocumentHash string `json:"document_hash"`
	Filename     string `json:"filename"`
}

type ChunkMetadata struct {
	Filename     string `json:"filename"`
	DocumentHash string `json:"document_hash"`
	TotalChunks  int    `json:"total_chunks"`
	Size         int64  `json:"size"`
}

type ChunkSet struct {
	Chunks   []Chunk       `json:"chunks"`
	Metadata ChunkMetadata `json:"metadata"`
}

// StorageReceipt is what the storage network returns for one stored object.
type StorageReceipt struct {
	PieceCID string `json:"pieceCid"`
	Size     int64  `json:"size"`
}

// UploadResult carries the document-level receipt (the first chunk's, by
// convention) and the receipts of every stored chunk in index order.
type UploadResult struct {
	Receipt  StorageReceipt   `json:"receipt"`
	Receipts []StorageReceipt `json:"receipts"`
	Chunked  bool             `json:"chunked"`
}

type ChunkInfo struct {
	Index            int
	Total            int
	OriginalFilename string
	ChunkHash        string
	OriginalHash     string
}

// UploadMetadata is attached to every stored object so it can be inspected
// without the pipeline's own records.
type UploadMetadata struct {
	Title       string
	Description string
	Type        string
	Chunk       *ChunkInfo
}

// Flatten renders the metadata into the string-typed map the storage
// network transports.
func (m UploadMetadata) Flatten() map[string]string {
	out := make(map[string]string, 8)
	if m.Title != "" {
		out["title"] = m.Title
	}
	if m.Description != "" {
		out["description"] = m.Description
	}
	if m.Type != "" {
		out["type"] = m.Type
	}
	if m.Chunk != nil {
		out["chunk_index"] = strconv.Itoa(m.Chunk.Index)
		out["total_chunks"] = strconv.Itoa(m.Chunk.Total)
		out["original_filename"] = m.Chunk.OriginalFilename
		out["chunk_hash"] = m.Chunk.ChunkHash
		out["original_hash"] = m.Chunk.OriginalHash
	}
	return out
}

// WithChunk returns a copy of m describing one chunk of a larger document.
func (m UploadMetadata) WithChunk(chunk Chunk) UploadMetadata {
	out := m
	out.Chunk = &ChunkInfo{
		Index:            chunk.Index,
		Total:            chunk.TotalChunks,
		OriginalFilename: chunk.Filename,
		ChunkHash:        chunk.Hash,
		OriginalHash:     chunk.DocumentHash,
	}
	return out
}

// NewRawDocument wraps content with its size and hex SHA-256.
func NewRawDocument(content []byte, filename string) RawDocument {
	sum := sha256.Sum256(content)
	return RawDocument{
		Content:     content,
		Filename:    filename,
		Size:        int64(len(content)),
		ContentHash: hex.EncodeToString(sum[:]),
	}
}
