// Package rag implements the retrieval pipeline: multi-query retrieval with
// deduplication, model-based re-ranking, context assembly, and quality-gated
// answer generation.
package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/vectorindex"
)

// ErrEmptyQuery is returned for blank questions before any network call.
var ErrEmptyQuery = errors.New("query cannot be empty")

// Embedder turns a query into a vector. *embedding.Gateway satisfies this.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index answers similarity queries. *vectorindex.Gateway satisfies this.
type Index interface {
	Query(ctx context.Context, vector []float32, filter vectorindex.Filter, topK int) ([]vectorindex.Candidate, error)
}

// Options configures one retrieval.
type Options struct {
	TopK   int
	Filter vectorindex.Filter
}

type Retriever struct {
	embedder Embedder
	index    Index
	log      *logrus.Logger
}

func NewRetriever(embedder Embedder, index Index, log *logrus.Logger) *Retriever {
	if log == nil {
		log = logrus.New()
	}
	return &Retriever{embedder: embedder, index: index, log: log}
}

// Retrieve issues one sub-query per entry in queries and merges the results,
// deduplicating by exact content. The first occurrence of a chunk wins and
// keeps its similarity score. A result with zero candidates is an explicit,
// reportable condition, not an error: callers must never substitute fabricated
// content for it.
func (r *Retriever) Retrieve(ctx context.Context, queries []string, opts Options) ([]vectorindex.Candidate, error) {
	live := queries[:0:0]
	for _, q := range queries {
		if q != "" {
			live = append(live, q)
		}
	}
	if len(live) == 0 {
		return nil, ErrEmptyQuery
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}

	seen := make(map[string]struct{})
	var merged []vectorindex.Candidate
	var failures int
	var lastErr error

	for _, query := range live {
		vector, err := r.embedder.Embed(ctx, query)
		if err != nil {
			failures++
			lastErr = err
			r.log.WithError(err).Warn("Sub-query embedding failed, skipping")
			continue
		}

		candidates, err := r.index.Query(ctx, vector, opts.Filter, opts.TopK)
		if err != nil {
			failures++
			lastErr = err
			r.log.WithError(err).Warn("Sub-query search failed, skipping")
			continue
		}

		for _, c := range candidates {
			if _, dup := seen[c.Content]; dup {
				continue
			}
			seen[c.Content] = struct{}{}
			merged = append(merged, c)
		}
	}

	if failures == len(live) && lastErr != nil {
		return nil, fmt.Errorf("all %d sub-queries failed: %w", failures, lastErr)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Similarity > merged[j].Similarity
	})

	if len(merged) == 0 {
		r.log.WithField("queries", len(live)).Info("Retrieval returned no candidates")
	}
	return merged, nil
}
