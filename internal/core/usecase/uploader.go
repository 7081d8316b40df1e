package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/core/ports"
)

// ContentUploader stores a document on the content-addressed network,
// splitting it into chunks when it exceeds the object size limit.
type ContentUploader struct {
	store   ports.ContentStore
	chunker ports.Chunker
}

func NewContentUploader(store ports.ContentStore, chunker ports.Chunker) *ContentUploader {
	return &ContentUploader{store: store, chunker: chunker}
}

// Upload stores chunks one at a time in index order. The first failure stops
// the remaining uploads; chunks already stored stay on the network.
func (u *ContentUploader) Upload(ctx context.Context, doc domain.RawDocument, meta domain.UploadMetadata) (*domain.UploadResult, error) {
	if !u.chunker.NeedsChunking(doc.Size) {
		receipt, err := u.store.Put(ctx, doc.Content, meta.Flatten())
		if err != nil {
			return nil, storageError("upload document", err)
		}
		return &domain.UploadResult{
			Receipt:  receipt,
			Receipts: []domain.StorageReceipt{receipt},
		}, nil
	}

	set, err := u.chunker.SplitFile(doc.Content, doc.Filename)
	if err != nil {
		return nil, err
	}

	receipts := make([]domain.StorageReceipt, 0, len(set.Chunks))
	for _, chunk := range set.Chunks {
		if err := ctx.Err(); err != nil {
			return nil, storageError("upload chunks",
				fmt.Errorf("stopped before chunk %d/%d with %d stored: %w", chunk.Index+1, chunk.TotalChunks, len(receipts), err))
		}
		receipt, err := u.store.Put(ctx, chunk.Data, meta.WithChunk(chunk).Flatten())
		if err != nil {
			return nil, storageError("upload chunks",
				fmt.Errorf("chunk %d/%d failed with %d stored: %w", chunk.Index+1, chunk.TotalChunks, len(receipts), err))
		}
		slog.Debug("chunk_uploaded",
			"filename", doc.Filename,
			"chunk_index", chunk.Index,
			"total_chunks", chunk.TotalChunks,
			"piece_cid", receipt.PieceCID,
		)
		receipts = append(receipts, receipt)
	}

	return &domain.UploadResult{
		Receipt:  receipts[0],
		Receipts: receipts,
		Chunked:  true,
	}, nil
}

func storageError(op string, err error) error {
	if domain.IsKind(err, domain.ErrStorage) || domain.IsKind(err, domain.ErrInvalidInput) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return domain.WrapError(domain.ErrStorage, op, err)
}
