// Package piecestore uploads content to a signed piece-storage gateway and
// returns the piece CID it assigns.
package piecestore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/kirillkom/kg-ingest/internal/core/domain"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/httperr"
	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
)

const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderDataset   = "X-Dataset-Id"
)

type Config struct {
	Endpoint   string
	SigningKey string
	DatasetID  string
	Timeout    time.Duration
}

type Client struct {
	endpoint   string
	signingKey []byte
	datasetID  string
	httpClient *http.Client
	executor   *resilience.Executor
	now        func() time.Time
}

func New(cfg Config, executor *resilience.Executor) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "piecestore config", errors.New("endpoint is required"))
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "piecestore config", fmt.Errorf("endpoint: %w", err))
	}
	if strings.TrimSpace(cfg.SigningKey) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "piecestore config", errors.New("signing key is required"))
	}
	if strings.TrimSpace(cfg.DatasetID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "piecestore config", errors.New("dataset id is required"))
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		signingKey: []byte(cfg.SigningKey),
		datasetID:  cfg.DatasetID,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
		now:        time.Now,
	}, nil
}

type uploadResponse struct {
	PieceCID string `json:"pieceCid"`
	Size     int64  `json:"size"`
}

// Put uploads data with its flattened metadata. The body is rebuilt on every
// attempt so retries resend the full payload.
func (c *Client) Put(ctx context.Context, data []byte, metadata map[string]string) (domain.StorageReceipt, error) {
	if len(data) == 0 {
		return domain.StorageReceipt{}, domain.WrapError(domain.ErrInvalidInput, "piecestore put", errors.New("empty content"))
	}
	body, contentType, err := encodeMultipart(data, metadata)
	if err != nil {
		return domain.StorageReceipt{}, err
	}

	resp, err := resilience.Call(ctx, c.executor, resilience.OperationPieceStorePut, func(callCtx context.Context) (uploadResponse, error) {
		return c.upload(callCtx, body, contentType)
	}, httperr.Classify)
	if err != nil {
		return domain.StorageReceipt{}, httperr.Wrap(domain.ErrStorage, "piecestore upload", err)
	}

	parsed, err := cid.Decode(resp.PieceCID)
	if err != nil {
		return domain.StorageReceipt{}, domain.WrapError(domain.ErrStorage, "piecestore upload", fmt.Errorf("invalid piece cid %q: %w", resp.PieceCID, err))
	}
	size := resp.Size
	if size <= 0 {
		size = int64(len(data))
	}
	return domain.StorageReceipt{PieceCID: parsed.String(), Size: size}, nil
}

func (c *Client) upload(ctx context.Context, body []byte, contentType string) (uploadResponse, error) {
	path := "/v1/datasets/" + url.PathEscape(c.datasetID) + "/pieces"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return uploadResponse{}, fmt.Errorf("create upload request: %w", err)
	}
	ts := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(HeaderTimestamp, ts)
	req.Header.Set(HeaderDataset, c.datasetID)
	req.Header.Set(HeaderSignature, Sign(c.signingKey, ts, http.MethodPost, path, body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return uploadResponse{}, fmt.Errorf("piecestore upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return uploadResponse{}, httperr.FromResponse("piecestore", "upload", resp)
	}
	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return uploadResponse{}, fmt.Errorf("decode upload response: %w", err)
	}
	return out, nil
}

// Sign returns hex(HMAC-SHA256(key, timestamp \n method \n path \n hex(sha256(body)))).
func Sign(key []byte, timestamp, method, path string, body []byte) string {
	sum := sha256.Sum256(body)
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(timestamp + "\n" + method + "\n" + path + "\n" + hex.EncodeToString(sum[:])))
	return hex.EncodeToString(mac.Sum(nil))
}

func encodeMultipart(data []byte, metadata map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := w.WriteField("metadata", string(meta)); err != nil {
		return nil, "", fmt.Errorf("write metadata part: %w", err)
	}

	name := metadata["original_filename"]
	if name == "" {
		name = metadata["title"]
	}
	if name == "" {
		name = "content"
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
