package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_Empty(t *testing.T) {
	assert.Empty(t, Split("", 1000))
	assert.Empty(t, Split("  \n\n  \n\n", 1000))
}

func TestSplit_SingleParagraph(t *testing.T) {
	chunks := Split("Uma frase curta sobre direito administrativo.", 1000)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Uma frase curta sobre direito administrativo.", chunks[0].Content)
}

func TestSplit_SizeBound(t *testing.T) {
	var paras []string
	for i := 0; i < 20; i++ {
		paras = append(paras, strings.Repeat("palavra ", 20)+"fim.")
	}
	text := strings.Join(paras, "\n\n")

	chunks := Split(text, 500)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 500, "chunk %d exceeds bound", c.Index)
		assert.NotEmpty(t, c.Content)
	}
}

func TestSplit_OrderAndIndexes(t *testing.T) {
	text := "Primeiro bloco.\n\nSegundo bloco.\n\nTerceiro bloco."
	chunks := Split(text, 20)
	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
	assert.Equal(t, "Primeiro bloco.", chunks[0].Content)
	assert.Equal(t, "Terceiro bloco.", chunks[2].Content)
}

func TestSplit_RoundTrip(t *testing.T) {
	text := "O edital prevê duas fases. A primeira fase é objetiva.\n\nA segunda fase é discursiva. Haverá prova de títulos."
	chunks := Split(text, 60)
	require.NotEmpty(t, chunks)

	var joined []string
	for _, c := range chunks {
		joined = append(joined, c.Content)
	}
	got := strings.Join(joined, " ")
	// Round-trip modulo whitespace normalization: same words, same order.
	normalize := func(s string) []string { return strings.Fields(s) }
	assert.Equal(t, normalize(text), normalize(got))
}

func TestSplit_OversizedSentence(t *testing.T) {
	long := strings.Repeat("a", 300) + "."
	text := "Curta.\n\n" + long + "\n\nOutra curta."

	chunks := Split(text, 100)
	require.NotEmpty(t, chunks)

	found := false
	for _, c := range chunks {
		if strings.Contains(c.Content, strings.Repeat("a", 300)) {
			found = true
			// An atomic oversized sentence is emitted whole, not truncated.
			assert.Equal(t, long, c.Content)
		}
	}
	assert.True(t, found, "oversized sentence must survive intact")
}

func TestSplit_LargeParagraphSentenceFallback(t *testing.T) {
	var sentences []string
	for i := 0; i < 30; i++ {
		sentences = append(sentences, "Esta frase ocupa espaço suficiente no parágrafo gigante.")
	}
	text := strings.Join(sentences, " ")

	chunks := Split(text, 200)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 200)
		// Sentence boundaries only: chunks end at terminal punctuation.
		assert.True(t, strings.HasSuffix(c.Content, "."), "chunk %q must end on a sentence boundary", c.Content)
	}
}

func TestSplit_TwoParagraphScenario(t *testing.T) {
	p1 := strings.Repeat("marinheiro valente ", 47) // ~893 chars
	p1 = strings.TrimSpace(p1) + "."
	p2 := strings.Repeat("navegador costeiro ", 47)
	p2 = strings.TrimSpace(p2) + "."
	text := p1 + "\n\n" + p2
	require.Greater(t, len(text), 1700)

	chunks := Split(text, 1000)
	require.Len(t, chunks, 2)
	// Chunk 0 ends exactly at the paragraph boundary, never mid-word.
	assert.Equal(t, p1, chunks[0].Content)
	assert.Equal(t, p2, chunks[1].Content)
}
