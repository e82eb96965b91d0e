package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	inputs []string
	err    error
}

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.inputs = append(f.inputs, text)
	return []float32{float32(len(text)), 0.5}, nil
}

func TestGateway_Embed_NormalizesWhitespace(t *testing.T) {
	provider := &fakeProvider{}
	g := NewGateway(provider, 100, nil)

	_, err := g.Embed(context.Background(), "  direito \n\n constitucional\t básico  ")
	require.NoError(t, err)
	require.Len(t, provider.inputs, 1)
	assert.Equal(t, "direito constitucional básico", provider.inputs[0])
}

func TestGateway_Embed_TruncatesNeverFails(t *testing.T) {
	provider := &fakeProvider{}
	g := NewGateway(provider, 50, nil)

	_, err := g.Embed(context.Background(), strings.Repeat("x", 500))
	require.NoError(t, err)
	assert.Len(t, provider.inputs[0], 50)
}

func TestGateway_Embed_TruncationNeverSplitsRune(t *testing.T) {
	provider := &fakeProvider{}
	g := NewGateway(provider, 50, nil)

	// The limit lands in the middle of the two-byte "ç".
	_, err := g.Embed(context.Background(), strings.Repeat("a", 49)+"ção")
	require.NoError(t, err)
	require.Len(t, provider.inputs, 1)
	assert.True(t, utf8.ValidString(provider.inputs[0]))
	assert.LessOrEqual(t, len(provider.inputs[0]), 50)
	assert.Equal(t, strings.Repeat("a", 49), provider.inputs[0])
}

func TestGateway_Embed_EmptyInput(t *testing.T) {
	g := NewGateway(&fakeProvider{}, 100, nil)
	_, err := g.Embed(context.Background(), "   ")
	assert.Error(t, err)
}

func TestGateway_Embed_WrapsProviderError(t *testing.T) {
	g := NewGateway(&fakeProvider{err: errors.New("quota exceeded")}, 100, nil)
	_, err := g.Embed(context.Background(), "texto")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGateway_EmbedBatch_OrderPreserving(t *testing.T) {
	provider := &fakeProvider{}
	g := NewGateway(provider, 100, nil)

	texts := []string{"um", "dois palavras", "três palavras aqui"}
	vectors, err := g.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
		assert.Equal(t, text, provider.inputs[i])
	}
}
