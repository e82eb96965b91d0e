package rag

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/llm"
	"estudai.com/study-platform/internal/vectorindex"
)

const defaultPreviewChars = 300

var intRe = regexp.MustCompile(`\d+`)

// Reranker reorders retrieved candidates using a generative model's relevance
// judgment. It is an optional stage and never fails the overall request: any
// model or parsing trouble falls back to the original similarity order.
type Reranker struct {
	model        llm.GenerativeModel
	profile      llm.ModelProfile
	previewChars int
	log          *logrus.Logger
}

func NewReranker(model llm.GenerativeModel, profile llm.ModelProfile, log *logrus.Logger) *Reranker {
	if log == nil {
		log = logrus.New()
	}
	return &Reranker{model: model, profile: profile, previewChars: defaultPreviewChars, log: log}
}

// Rerank asks the model to order candidate indices by relevance to the query
// and returns the top keep candidates in that order. Indices the model skips
// are padded back in original order, so the result always has
// min(keep, len(candidates)) entries.
func (rr *Reranker) Rerank(ctx context.Context, query string, candidates []vectorindex.Candidate, keep int) []vectorindex.Candidate {
	if keep <= 0 || keep > len(candidates) {
		keep = len(candidates)
	}
	if len(candidates) <= 1 {
		return candidates[:keep]
	}

	reply, err := rr.model.Complete(ctx, rr.buildPrompt(query, candidates), rr.profile)
	if err != nil {
		rr.log.WithError(err).Warn("Rerank call failed, keeping similarity order")
		return candidates[:keep]
	}

	order := parseIndexList(reply, len(candidates))
	if len(order) == 0 {
		rr.log.Debug("Rerank reply had no parseable indices, keeping similarity order")
		return candidates[:keep]
	}

	// Pad deterministically with the remaining original-order candidates.
	used := make(map[int]struct{}, len(order))
	for _, idx := range order {
		used[idx] = struct{}{}
	}
	for idx := range candidates {
		if len(order) >= keep {
			break
		}
		if _, ok := used[idx]; !ok {
			order = append(order, idx)
			used[idx] = struct{}{}
		}
	}

	result := make([]vectorindex.Candidate, 0, keep)
	for _, idx := range order[:keep] {
		result = append(result, candidates[idx])
	}
	return result
}

func (rr *Reranker) buildPrompt(query string, candidates []vectorindex.Candidate) string {
	var b strings.Builder
	b.WriteString("Você é um avaliador de relevância. Dada a pergunta e os trechos numerados abaixo, ")
	b.WriteString("responda apenas com os índices dos trechos em ordem decrescente de relevância, separados por vírgula.\n\n")
	b.WriteString("Pergunta: ")
	b.WriteString(query)
	b.WriteString("\n\nTrechos:\n")
	for i, c := range candidates {
		preview := c.Content
		if len(preview) > rr.previewChars {
			preview = truncateChars(preview, rr.previewChars) + "..."
		}
		fmt.Fprintf(&b, "[%d] %s\n", i, preview)
	}
	return b.String()
}

// parseIndexList extracts all integers from the reply in order, skipping
// out-of-range and repeated values.
func parseIndexList(reply string, limit int) []int {
	var order []int
	used := make(map[int]struct{})
	for _, match := range intRe.FindAllString(reply, -1) {
		idx, err := strconv.Atoi(match)
		if err != nil || idx < 0 || idx >= limit {
			continue
		}
		if _, dup := used[idx]; dup {
			continue
		}
		used[idx] = struct{}{}
		order = append(order, idx)
	}
	return order
}
