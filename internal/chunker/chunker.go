// Package chunker splits normalized document text into bounded, ordered chunks
// suitable for embedding and retrieval.
package chunker

import (
	"regexp"
	"strings"
)

// DefaultMaxChunkSize is the default chunk bound in characters.
const DefaultMaxChunkSize = 1000

// Chunk is a contiguous span of the source text. Concatenating chunks in Index
// order (re-inserting the separators used to split) reproduces the input,
// modulo whitespace normalization.
type Chunk struct {
	Content string `json:"content"`
	Index   int    `json:"chunk_index"`
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// Split breaks text on blank-line paragraph boundaries, falling back to
// sentence boundaries for paragraphs larger than maxChunkSize, and packs the
// resulting units greedily into chunks of at most maxChunkSize characters.
// A single sentence longer than maxChunkSize is emitted as its own oversized
// chunk; content is never truncated or dropped.
func Split(text string, maxChunkSize int) []Chunk {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	var units []unit
	for _, para := range strings.Split(normalized, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= maxChunkSize {
			units = append(units, unit{text: para, sep: "\n\n"})
			continue
		}
		for i, sentence := range splitSentences(para) {
			sep := " "
			if i == 0 {
				sep = "\n\n"
			}
			units = append(units, unit{text: sentence, sep: sep})
		}
	}

	var chunks []Chunk
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{Content: buf.String(), Index: len(chunks)})
		buf.Reset()
	}

	for _, u := range units {
		if buf.Len() > 0 && buf.Len()+len(u.sep)+len(u.text) > maxChunkSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString(u.sep)
		}
		buf.WriteString(u.text)
	}
	flush()

	return chunks
}

type unit struct {
	text string
	sep  string
}

// splitSentences returns the trimmed sentences of a paragraph, keeping any
// trailing run without terminal punctuation as a final sentence so no content
// is lost.
func splitSentences(para string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceRe.FindAllStringIndex(para, -1) {
		s := strings.TrimSpace(para[loc[0]:loc[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = loc[1]
	}
	if tail := strings.TrimSpace(para[last:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}
