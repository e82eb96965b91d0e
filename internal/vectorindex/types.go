package vectorindex

import "errors"

// ErrUpsertFailed signals that an upsert batch kept failing past the retry
// ceiling. Callers must treat indexing as not completed.
var ErrUpsertFailed = errors.New("vector index upsert failed")

// ChunkRecord is one chunk plus its vector at write time.
type ChunkRecord struct {
	DocumentID string
	ChunkIndex int
	Content    string
	Title      string
	Category   string
	Vector     []float32
}

// Candidate is a transient similarity-search result.
type Candidate struct {
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	SourceID   string  `json:"source_id"`
	ChunkIndex int     `json:"chunk_index"`
}

// Filter scopes a query. UserID is always required; Category and DocumentID
// optionally narrow the search.
type Filter struct {
	UserID     string
	Category   string
	DocumentID string
}
