package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"estudai.com/study-platform/internal/vectorindex"
)

const contextSeparator = "\n\n"

// AssembleContext greedily fills a context block from the highest-ranked
// candidates, stopping before the character budget would be exceeded. If even
// the first candidate does not fit, it is truncated rather than dropped so the
// prompt always carries some grounding.
func AssembleContext(candidates []vectorindex.Candidate, maxChars int) string {
	if maxChars <= 0 || len(candidates) == 0 {
		return ""
	}

	var b strings.Builder
	for _, c := range candidates {
		block := formatBlock(c)
		needed := len(block)
		if b.Len() > 0 {
			needed += len(contextSeparator)
		}
		if b.Len()+needed > maxChars {
			if b.Len() == 0 {
				b.WriteString(truncateChars(block, maxChars))
			}
			break
		}
		if b.Len() > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(block)
	}
	return b.String()
}

func formatBlock(c vectorindex.Candidate) string {
	if c.Title == "" {
		return c.Content
	}
	return fmt.Sprintf("[%s] %s", c.Title, c.Content)
}

// truncateChars cuts s to at most max bytes, backing up so a multi-byte rune
// is never split. Prompts must stay valid UTF-8 for the provider.
func truncateChars(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
