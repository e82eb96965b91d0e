package store

import (
	"encoding/json"
	"time"
)

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

// Document lifecycle statuses. A document moves uploaded -> processing ->
// indexed|chunked -> completed; failed is reachable from any non-terminal state.
const (
	DocStatusUploaded   = "uploaded"
	DocStatusProcessing = "processing"
	DocStatusIndexed    = "indexed"
	DocStatusChunked    = "chunked"
	DocStatusCompleted  = "completed"
	DocStatusFailed     = "failed"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Document struct {
	ID             string          `json:"id"` // UUID minted at ingestion
	UserID         int64           `json:"user_id"`
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	Status         string          `json:"status"`
	RawText        *string         `json:"-"` // Nullable until local extraction runs
	StructuredJSON json.RawMessage `json:"structured,omitempty"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	ExternalJobID  *string         `json:"-"`
	IsActive       bool            `json:"is_active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ProcessingJob tracks one processing attempt for a document. Jobs transition
// monotonically and are never resurrected once terminal; a retry is a new job.
type ProcessingJob struct {
	ID         string    `json:"id"` // UUID
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	Progress   int       `json:"progress"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentPatch is a partial update; nil fields are left untouched.
type DocumentPatch struct {
	Status         *string
	RawText        *string
	StructuredJSON json.RawMessage
	ErrorMessage   *string
	ExternalJobID  *string
	IsActive       *bool
}
