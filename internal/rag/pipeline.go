package rag

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/vectorindex"
)

const (
	defaultRetrieveTopK = 12
	defaultKeepAfterRR  = 6
)

// Pipeline wires retrieval, re-ranking and quality-gated generation into one
// question-answering flow.
type Pipeline struct {
	retriever *Retriever
	reranker  *Reranker
	generator *Generator
	log       *logrus.Logger

	TopK             int
	Keep             int
	MaxContextLength int
}

func NewPipeline(retriever *Retriever, reranker *Reranker, generator *Generator, maxContextLength int, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.New()
	}
	return &Pipeline{
		retriever:        retriever,
		reranker:         reranker,
		generator:        generator,
		log:              log,
		TopK:             defaultRetrieveTopK,
		Keep:             defaultKeepAfterRR,
		MaxContextLength: maxContextLength,
	}
}

// Ask answers a question grounded in the caller's corpus.
func (p *Pipeline) Ask(ctx context.Context, question string, filter vectorindex.Filter) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuery
	}

	candidates, err := p.retriever.Retrieve(ctx, []string{question}, Options{TopK: p.TopK, Filter: filter})
	if err != nil {
		return "", err
	}

	if p.reranker != nil && len(candidates) > 1 {
		candidates = p.reranker.Rerank(ctx, question, candidates, p.Keep)
	}

	return p.generator.Answer(ctx, question, candidates, AnswerOptions{
		MaxContextLength: p.MaxContextLength,
	})
}
