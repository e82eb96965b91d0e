// Package vectorindex is a minimal REST gateway to Qdrant. It assumes cosine
// distance, batches writes with bounded retry, and applies the minimum
// similarity cut on reads so callers see a consistent contract.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultBatchSize   = 64
	defaultMaxAttempts = 4
	defaultTimeout     = 15 * time.Second
	initialBackoff     = 250 * time.Millisecond
)

type Config struct {
	URL           string
	APIKey        string
	Collection    string
	Dimension     int
	BatchSize     int
	MaxAttempts   int
	MinSimilarity float32
	Timeout       time.Duration
}

type Gateway struct {
	cfg    Config
	client *http.Client
	log    *logrus.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(time.Duration)
}

func NewGateway(cfg Config, log *logrus.Logger) *Gateway {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = logrus.New()
	}
	return &Gateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
		sleep:  time.Sleep,
	}
}

// EnsureCollection creates the collection if missing. The dimension is a
// global constant of the index; every writer and reader must agree on it.
func (g *Gateway) EnsureCollection(ctx context.Context) error {
	if g.cfg.Dimension <= 0 {
		return errors.New("invalid embedding dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     g.cfg.Dimension,
			"distance": "Cosine",
		},
	}
	return g.putJSON(ctx, fmt.Sprintf("%s/collections/%s", g.cfg.URL, g.cfg.Collection), body)
}

// Health probes the Qdrant endpoint.
func (g *Gateway) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL+"/collections", nil)
	if err != nil {
		return err
	}
	g.setHeaders(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant health check failed: %s", resp.Status)
	}
	return nil
}

// Upsert writes chunk vectors under the owner's namespace in bounded batches.
// Each batch is retried with doubling backoff up to the attempt ceiling; if a
// batch still fails, the whole upsert fails loudly so the caller knows
// indexing did not complete.
func (g *Gateway) Upsert(ctx context.Context, ownerKey string, records []ChunkRecord) error {
	for start := 0; start < len(records); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(records) {
			end = len(records)
		}
		if err := g.upsertBatch(ctx, ownerKey, records[start:end]); err != nil {
			return fmt.Errorf("%w: batch starting at %d: %v", ErrUpsertFailed, start, err)
		}
	}
	return nil
}

func (g *Gateway) upsertBatch(ctx context.Context, ownerKey string, batch []ChunkRecord) error {
	points := make([]map[string]any, len(batch))
	for i, rec := range batch {
		points[i] = map[string]any{
			"id":     pointID(rec.DocumentID, rec.ChunkIndex),
			"vector": rec.Vector,
			"payload": map[string]any{
				"user_id":     ownerKey,
				"document_id": rec.DocumentID,
				"chunk_index": rec.ChunkIndex,
				"content":     rec.Content,
				"title":       rec.Title,
				"category":    rec.Category,
			},
		}
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", g.cfg.URL, g.cfg.Collection)

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		lastErr = g.putJSON(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		g.log.WithError(lastErr).WithFields(logrus.Fields{
			"attempt": attempt,
			"points":  len(points),
		}).Warn("Qdrant upsert batch failed")
		if attempt < g.cfg.MaxAttempts {
			g.sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// Query runs a similarity search scoped to the filter's owner. Results come
// back sorted by similarity descending; candidates below the configured
// minimum similarity are cut here, not by the caller.
func (g *Gateway) Query(ctx context.Context, vector []float32, filter Filter, topK int) ([]Candidate, error) {
	if filter.UserID == "" {
		return nil, errors.New("query filter requires an owner key")
	}
	if topK <= 0 {
		topK = 5
	}

	must := []map[string]any{
		{"key": "user_id", "match": map[string]any{"value": filter.UserID}},
	}
	if filter.Category != "" {
		must = append(must, map[string]any{"key": "category", "match": map[string]any{"value": filter.Category}})
	}
	if filter.DocumentID != "" {
		must = append(must, map[string]any{"key": "document_id", "match": map[string]any{"value": filter.DocumentID}})
	}

	reqBody := map[string]any{
		"vector":          vector,
		"limit":           topK,
		"with_payload":    true,
		"score_threshold": g.cfg.MinSimilarity,
		"filter":          map[string]any{"must": must},
	}

	var resp struct {
		Result []struct {
			Score   float32        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", g.cfg.URL, g.cfg.Collection)
	if err := g.postJSON(ctx, url, reqBody, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	candidates := make([]Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Score < g.cfg.MinSimilarity {
			continue
		}
		c := Candidate{Similarity: r.Score}
		if v, ok := r.Payload["content"].(string); ok {
			c.Content = v
		}
		if v, ok := r.Payload["title"].(string); ok {
			c.Title = v
		}
		if v, ok := r.Payload["category"].(string); ok {
			c.Category = v
		}
		if v, ok := r.Payload["document_id"].(string); ok {
			c.SourceID = v
		}
		if v, ok := r.Payload["chunk_index"].(float64); ok {
			c.ChunkIndex = int(v)
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	return candidates, nil
}

// DeleteDocument removes every point belonging to one document.
func (g *Gateway) DeleteDocument(ctx context.Context, ownerKey, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "user_id", "match": map[string]any{"value": ownerKey}},
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", g.cfg.URL, g.cfg.Collection)
	return g.postJSON(ctx, url, body, nil)
}

// pointID derives a stable UUID from the document id and chunk index, so
// re-indexing a document overwrites its previous points.
func pointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%d", documentID, chunkIndex))).String()
}

func (g *Gateway) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("api-key", g.cfg.APIKey)
	}
}

func (g *Gateway) putJSON(ctx context.Context, url string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	g.setHeaders(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (g *Gateway) postJSON(ctx context.Context, url string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	g.setHeaders(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
