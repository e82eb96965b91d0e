// Package embedding wraps a remote embedding capability with input hygiene
// and order-preserving batch calls.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/llm"
)

// DefaultMaxInputChars bounds what is sent to the provider per call.
const DefaultMaxInputChars = 8000

type Gateway struct {
	provider      llm.EmbeddingProvider
	maxInputChars int
	log           *logrus.Logger
}

func NewGateway(provider llm.EmbeddingProvider, maxInputChars int, log *logrus.Logger) *Gateway {
	if maxInputChars <= 0 {
		maxInputChars = DefaultMaxInputChars
	}
	if log == nil {
		log = logrus.New()
	}
	return &Gateway{provider: provider, maxInputChars: maxInputChars, log: log}
}

// Embed normalizes whitespace, truncates over-long input, and forwards to the
// provider. Provider errors are wrapped, not retried: the write path consumes
// embeddings synchronously and must see the failure.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	prepared := g.prepare(text)
	if prepared == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}

	vector, err := g.provider.Embed(ctx, prepared)
	if err != nil {
		return nil, fmt.Errorf("embedding provider failed: %w", err)
	}
	return vector, nil
}

// EmbedBatch embeds texts one by one, preserving order 1:1 with the input.
// The first failure aborts the batch.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := g.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding batch item %d: %w", i, err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (g *Gateway) prepare(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if len(normalized) > g.maxInputChars {
		g.log.WithFields(logrus.Fields{
			"length": len(normalized),
			"limit":  g.maxInputChars,
		}).Debug("Truncating embedding input")
		normalized = truncate(normalized, g.maxInputChars)
	}
	return normalized
}

// truncate cuts s to at most max bytes, backing up so a multi-byte rune is
// never split. The provider rejects invalid UTF-8.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
