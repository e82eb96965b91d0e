package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estudai.com/study-platform/internal/llm"
	"estudai.com/study-platform/internal/vectorindex"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

type fakeIndex struct {
	// results are served per call, in order; the last entry repeats.
	results [][]vectorindex.Candidate
	// err fails every call unless errCalls picks specific ones (1-based).
	err      error
	errCalls map[int]bool
	calls    int
	filters  []vectorindex.Filter
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, filter vectorindex.Filter, _ int) ([]vectorindex.Candidate, error) {
	f.calls++
	f.filters = append(f.filters, filter)
	if f.err != nil && (len(f.errCalls) == 0 || f.errCalls[f.calls]) {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx], nil
}

// scriptedModel returns canned replies in order; the last reply repeats.
type scriptedModel struct {
	replies  []string
	err      error
	calls    int
	prompts  []string
	profiles []llm.ModelProfile
}

func (m *scriptedModel) Complete(_ context.Context, prompt string, profile llm.ModelProfile) (string, error) {
	m.prompts = append(m.prompts, prompt)
	m.profiles = append(m.profiles, profile)
	if m.err != nil {
		return "", m.err
	}
	idx := m.calls
	m.calls++
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	if idx < 0 {
		return "", nil
	}
	return m.replies[idx], nil
}

func cand(content string, sim float32) vectorindex.Candidate {
	return vectorindex.Candidate{Content: content, Similarity: sim, SourceID: "doc-1"}
}

func TestRetriever_EmptyQuery(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeIndex{}, nil)
	_, err := r.Retrieve(context.Background(), []string{""}, Options{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestRetriever_DedupKeepsFirstSeenScore(t *testing.T) {
	index := &fakeIndex{results: [][]vectorindex.Candidate{
		{cand("trecho compartilhado", 0.9), cand("só na primeira", 0.8)},
		{cand("trecho compartilhado", 0.4), cand("só na segunda", 0.7)},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, nil)

	got, err := r.Retrieve(context.Background(), []string{"consulta um", "consulta dois"}, Options{TopK: 5})
	require.NoError(t, err)
	require.Len(t, got, 3)

	for _, c := range got {
		if c.Content == "trecho compartilhado" {
			assert.Equal(t, float32(0.9), c.Similarity, "first occurrence wins")
		}
	}
}

func TestRetriever_SortedDescendingAfterMerge(t *testing.T) {
	index := &fakeIndex{results: [][]vectorindex.Candidate{
		{cand("baixo", 0.5)},
		{cand("alto", 0.95)},
	}}
	r := NewRetriever(&fakeEmbedder{}, index, nil)

	got, err := r.Retrieve(context.Background(), []string{"a", "b"}, Options{TopK: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alto", got[0].Content)
}

func TestRetriever_ExplicitEmptyResult(t *testing.T) {
	r := NewRetriever(&fakeEmbedder{}, &fakeIndex{}, nil)
	got, err := r.Retrieve(context.Background(), []string{"sem resultados"}, Options{TopK: 5})
	require.NoError(t, err, "no context is a reportable condition, not an error")
	assert.Empty(t, got)
}

func TestRetriever_AllSubQueriesFailing(t *testing.T) {
	index := &fakeIndex{err: errors.New("index down")}
	r := NewRetriever(&fakeEmbedder{}, index, nil)
	_, err := r.Retrieve(context.Background(), []string{"a", "b"}, Options{TopK: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index down")
}

func TestRetriever_PartialSubQueryFailureTolerated(t *testing.T) {
	index := &fakeIndex{
		results:  [][]vectorindex.Candidate{{cand("resultado", 0.8)}},
		err:      errors.New("index down"),
		errCalls: map[int]bool{1: true}, // first sub-query fails, second succeeds
	}
	r := NewRetriever(&fakeEmbedder{}, index, nil)

	got, err := r.Retrieve(context.Background(), []string{"consulta falha", "consulta boa"}, Options{TopK: 5})
	require.NoError(t, err, "a single failing sub-query must not fail the request")
	assert.Equal(t, 2, index.calls)
	require.Len(t, got, 1)
	assert.Equal(t, "resultado", got[0].Content)
}
