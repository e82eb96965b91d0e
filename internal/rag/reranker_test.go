package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estudai.com/study-platform/internal/llm"
	"estudai.com/study-platform/internal/vectorindex"
)

func testProfile() llm.ModelProfile {
	return llm.NewRouter().ProfileFor(llm.TaskRerank)
}

func rerankInput() []vectorindex.Candidate {
	return []vectorindex.Candidate{
		cand("primeiro", 0.9),
		cand("segundo", 0.8),
		cand("terceiro", 0.7),
		cand("quarto", 0.6),
	}
}

func TestRerank_ReordersByModelIndices(t *testing.T) {
	model := &scriptedModel{replies: []string{"2, 0, 3, 1"}}
	rr := NewReranker(model, testProfile(), nil)

	got := rr.Rerank(context.Background(), "pergunta", rerankInput(), 4)
	require.Len(t, got, 4)
	assert.Equal(t, "terceiro", got[0].Content)
	assert.Equal(t, "primeiro", got[1].Content)
	assert.Equal(t, "quarto", got[2].Content)
	assert.Equal(t, "segundo", got[3].Content)
}

func TestRerank_SkipsOutOfRangeAndDuplicates(t *testing.T) {
	model := &scriptedModel{replies: []string{"A ordem é: 9, 1, 1, 0"}}
	rr := NewReranker(model, testProfile(), nil)

	got := rr.Rerank(context.Background(), "pergunta", rerankInput(), 3)
	require.Len(t, got, 3)
	assert.Equal(t, "segundo", got[0].Content)
	assert.Equal(t, "primeiro", got[1].Content)
	// Padded deterministically with remaining original order.
	assert.Equal(t, "terceiro", got[2].Content)
}

func TestRerank_NoIntegersFallsBackToOriginalOrder(t *testing.T) {
	model := &scriptedModel{replies: []string{"não sei dizer"}}
	rr := NewReranker(model, testProfile(), nil)

	got := rr.Rerank(context.Background(), "pergunta", rerankInput(), 2)
	require.Len(t, got, 2)
	assert.Equal(t, "primeiro", got[0].Content)
	assert.Equal(t, "segundo", got[1].Content)
}

func TestRerank_ModelErrorNeverFailsRequest(t *testing.T) {
	model := &scriptedModel{err: errors.New("provider down")}
	rr := NewReranker(model, testProfile(), nil)

	got := rr.Rerank(context.Background(), "pergunta", rerankInput(), 3)
	require.Len(t, got, 3)
	assert.Equal(t, "primeiro", got[0].Content)
}

func TestRerank_PreviewTruncationNeverSplitsRune(t *testing.T) {
	model := &scriptedModel{replies: []string{"0, 1"}}
	rr := NewReranker(model, testProfile(), nil)

	// Both contents exceed the preview budget and are all two-byte runes, so a
	// byte-offset cut would land mid-rune.
	input := []vectorindex.Candidate{
		cand(strings.Repeat("ç", 400), 0.9),
		cand(strings.Repeat("ã", 400), 0.8),
	}
	got := rr.Rerank(context.Background(), "pergunta", input, 2)
	require.Len(t, got, 2)
	require.Len(t, model.prompts, 1)
	assert.True(t, utf8.ValidString(model.prompts[0]))
}

func TestRerank_SingleCandidateSkipsModel(t *testing.T) {
	model := &scriptedModel{replies: []string{"0"}}
	rr := NewReranker(model, testProfile(), nil)

	got := rr.Rerank(context.Background(), "pergunta", []vectorindex.Candidate{cand("único", 0.9)}, 5)
	require.Len(t, got, 1)
	assert.Zero(t, model.calls)
}
