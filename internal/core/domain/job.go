package domain

import "time"

type StepName string

const (
	StepEncrypt        StepName = "encrypt"
	StepUpload         StepName = "upload"
	StepParse          StepName = "parse"
	StepGenerateQuery  StepName = "generate_queries"
	StepExecuteQueries StepName = "execute_queries"
	StepComplete       StepName = "complete"

	StepFetchRSS   StepName = "fetch_rss"
	StepExtractKG  StepName = "extract_kg"
	StepStoreGraph StepName = "store_graph"
)

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
	// StepSkipped marks a stage that ran but deliberately did no work, e.g.
	// extraction of encrypted content. It is never used for absent steps.
	StepSkipped StepStatus = "skipped"
)

type ProcessingStep struct {
	Step    StepName   `json:"step"`
	Status  StepStatus `json:"status"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
}

type JobKind string

const (
	JobKindFile JobKind = "file"
	JobKindRSS  JobKind = "rss"
)

// IngestionJob is the durable record of one pipeline run.
type IngestionJob struct {
	ID        string           `json:"id"`
	Kind      JobKind          `json:"kind"`
	Source    string           `json:"source"`
	Steps     []ProcessingStep `json:"steps"`
	Success   bool             `json:"success"`
	Finished  bool             `json:"finished"`
	Error     string           `json:"error,omitempty"`
	Summary   any              `json:"summary,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// EncryptedPayload is a document encrypted by the caller before upload.
type EncryptedPayload struct {
	FileName           string         `json:"fileName"`
	FileSize           int64          `json:"fileSize"`
	EncryptionMetadata map[string]any `json:"encryptionMetadata"`
	EncryptedContent   string         `json:"encryptedContent"`
}

// EncryptionType reads the scheme name out of the caller-supplied metadata.
func (p EncryptedPayload) EncryptionType() string {
	for _, key := range []string{"encryptionType", "type", "scheme"} {
		if v, ok := p.EncryptionMetadata[key].(string); ok && v != "" {
			return v
		}
	}
	return "unknown"
}

// FileUpload is the input of a file job: either plain content or a
// pre-encrypted payload.
type FileUpload struct {
	Document  RawDocument
	Encrypted *EncryptedPayload
}

type FileJobSummary struct {
	FileName           string `json:"fileName"`
	FileSize           int64  `json:"fileSize"`
	CID                string `json:"cid"`
	EntitiesCount      int    `json:"entitiesCount"`
	RelationshipsCount int    `json:"relationshipsCount"`
	QueriesExecuted    int    `json:"queriesExecuted"`
	IsEncrypted        bool   `json:"isEncrypted,omitempty"`
	EncryptionType     string `json:"encryptionType,omitempty"`
}

type FileJobReport struct {
	JobID   string           `json:"jobId,omitempty"`
	Success bool             `json:"success"`
	Steps   []ProcessingStep `json:"steps"`
	Summary *FileJobSummary  `json:"summary,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type FeedJobReport struct {
	JobID              string           `json:"jobId,omitempty"`
	Success            bool             `json:"success"`
	ItemsCount         int              `json:"itemsCount"`
	CID                string           `json:"cid"`
	EntitiesCount      int              `json:"entitiesCount"`
	RelationshipsCount int              `json:"relationshipsCount"`
	Steps              []ProcessingStep `json:"steps"`
	Error              string           `json:"error,omitempty"`
}

// FeedItem is one entry of a fetched RSS/Atom feed.
type FeedItem struct {
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Published *time.Time `json:"published,omitempty"`
	Body      string     `json:"body"`
}

type Feed struct {
	URL   string     `json:"url"`
	Title string     `json:"title"`
	Items []FeedItem `json:"items"`
}

// JobEvent is published once a job reaches a terminal state.
type JobEvent struct {
	JobID              string    `json:"jobId"`
	Kind               JobKind   `json:"kind"`
	Source             string    `json:"source"`
	Success            bool      `json:"success"`
	CID                string    `json:"cid,omitempty"`
	EntitiesCount      int       `json:"entitiesCount"`
	RelationshipsCount int       `json:"relationshipsCount"`
	Error              string    `json:"error,omitempty"`
	FinishedAt         time.Time `json:"finishedAt"`
}
