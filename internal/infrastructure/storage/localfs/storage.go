// Package localfs is a content-addressed store on the local filesystem,
// used for development in place of the piece-storage gateway.
package localfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
)

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// ComputeCID returns the CIDv1 (raw codec, sha2-256) of data.
func ComputeCID(data []byte) (cid.Cid, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, fmt.Errorf("hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

// Put writes data under its CID. Storing identical bytes again keeps the
// existing blob and refreshes only the metadata sidecar.
func (s *Storage) Put(ctx context.Context, data []byte, metadata map[string]string) (domain.StorageReceipt, error) {
	if err := ctx.Err(); err != nil {
		return domain.StorageReceipt{}, err
	}
	if len(data) == 0 {
		return domain.StorageReceipt{}, domain.WrapError(domain.ErrInvalidInput, "localfs put", errors.New("empty content"))
	}

	c, err := ComputeCID(data)
	if err != nil {
		return domain.StorageReceipt{}, domain.WrapError(domain.ErrStorage, "localfs put", err)
	}
	key := c.String()
	path := filepath.Join(s.basePath, key)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeAtomic(path, data); err != nil {
			return domain.StorageReceipt{}, domain.WrapError(domain.ErrStorage, "localfs put", err)
		}
	} else if err != nil {
		return domain.StorageReceipt{}, domain.WrapError(domain.ErrStorage, "localfs put", fmt.Errorf("stat blob: %w", err))
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return domain.StorageReceipt{}, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeAtomic(path+".meta.json", meta); err != nil {
		return domain.StorageReceipt{}, domain.WrapError(domain.ErrStorage, "localfs put", err)
	}

	return domain.StorageReceipt{PieceCID: key, Size: int64(len(data))}, nil
}

// Get reads the blob stored under pieceCID.
func (s *Storage) Get(_ context.Context, pieceCID string) ([]byte, error) {
	c, err := cid.Decode(pieceCID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "localfs get", err)
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, c.String()))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "localfs get", err)
	}
	return data, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}
