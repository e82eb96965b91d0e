package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"estudai.com/study-platform/internal/llm"
	"estudai.com/study-platform/internal/vectorindex"
)

const (
	// NoContextAnswer is returned when retrieval found nothing relevant.
	// "No context" is a distinct condition from a system failure and must
	// never be papered over with a hallucinated answer.
	NoContextAnswer = "Não encontrei informações relevantes nos seus materiais para responder a essa pergunta."

	// EmptyModelAnswer short-circuits the quality gate when the model
	// returns empty text.
	EmptyModelAnswer = "Desculpe, não consegui gerar uma resposta no momento. Por favor, tente novamente."

	DefaultMaxAttempts = 3
	defaultContextLen  = 12000
	minContextBudget   = 500
)

// AnswerOptions tunes one answer generation.
type AnswerOptions struct {
	MaxAttempts      int
	MaxContextLength int
	// Supplementary carries extra non-corpus context. It is trimmed from the
	// prompt before the retrieved context is, and both before the question.
	Supplementary string
}

type reviewVerdict struct {
	Complete   bool     `json:"complete"`
	Coherent   bool     `json:"coherent"`
	Didactic   bool     `json:"didactic"`
	Structured bool     `json:"structured"`
	Deep       bool     `json:"deep"`
	Issues     []string `json:"issues"`
}

func (v reviewVerdict) pass() bool {
	return v.Complete && v.Coherent && v.Didactic && v.Structured && v.Deep
}

// Generator drafts an answer from ranked candidates, self-grades it against a
// five-dimension rubric and retries with tightened parameters while attempts
// remain. It always terminates with a non-empty answer string.
type Generator struct {
	model  llm.GenerativeModel
	router *llm.Router
	log    *logrus.Logger
}

func NewGenerator(model llm.GenerativeModel, router *llm.Router, log *logrus.Logger) *Generator {
	if router == nil {
		router = llm.NewRouter()
	}
	if log == nil {
		log = logrus.New()
	}
	return &Generator{model: model, router: router, log: log}
}

func (g *Generator) Answer(ctx context.Context, question string, candidates []vectorindex.Candidate, opts AnswerOptions) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuery
	}
	if len(candidates) == 0 {
		return NoContextAnswer, nil
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.MaxContextLength <= 0 {
		opts.MaxContextLength = defaultContextLen
	}

	var lastAnswer string
	var issues []string

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		profile := g.draftProfile(attempt)
		prompt, profile := g.fitPrompt(question, candidates, opts, issues, profile)

		reply, err := g.model.Complete(ctx, prompt, profile)
		if err != nil {
			if lastAnswer != "" {
				g.log.WithError(err).Warn("Draft call failed, returning previous candidate answer")
				return lastAnswer, nil
			}
			return "", fmt.Errorf("answer generation failed: %w", err)
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			return EmptyModelAnswer, nil
		}
		lastAnswer = reply

		verdict, parsed := g.review(ctx, question, reply)
		if !parsed {
			// Fail-open: an unparseable review never blocks the user.
			return reply, nil
		}
		if verdict.pass() {
			return reply, nil
		}

		issues = verdict.Issues
		g.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"issues":  len(issues),
		}).Info("Answer failed review, retrying with tightened parameters")
	}

	// Exhausted: return the last candidate rather than blocking the user.
	return lastAnswer, nil
}

// draftProfile escalates quality over attempts: lower temperature, larger
// token budget. This is a deliberate quality-vs-cost trade, not a blind retry.
func (g *Generator) draftProfile(attempt int) llm.ModelProfile {
	profile := g.router.ProfileFor(llm.TaskAnswer)
	p := profile.Params
	p.Temperature -= 0.25 * float32(attempt-1)
	if p.Temperature < 0.1 {
		p.Temperature = 0.1
	}
	p.MaxTokens *= int32(attempt)
	if p.MaxTokens > 8192 {
		p.MaxTokens = 8192
	}
	profile.Params = p
	return profile
}

// fitPrompt enforces the per-model prompt budget. Over-budget prompts lose
// retrieved context first (lowest-ranked candidates drop off as the context
// budget halves), then the supplementary section; the user's question is
// never cut. If trimming is not enough, the prompt moves to the more
// token-generous model instead of failing.
func (g *Generator) fitPrompt(question string, candidates []vectorindex.Candidate, opts AnswerOptions, issues []string, profile llm.ModelProfile) (string, llm.ModelProfile) {
	contextBudget := opts.MaxContextLength
	supplementary := opts.Supplementary

	build := func() string {
		return buildAnswerPrompt(question, AssembleContext(candidates, contextBudget), supplementary, issues)
	}

	prompt := build()
	for len(prompt) > profile.MaxPromptChars && contextBudget > minContextBudget {
		contextBudget /= 2
		prompt = build()
	}
	if len(prompt) > profile.MaxPromptChars && supplementary != "" {
		supplementary = ""
		prompt = build()
	}
	if len(prompt) > profile.MaxPromptChars {
		generous := g.router.ProfileFor(llm.TaskGenerous)
		g.log.WithFields(logrus.Fields{
			"prompt_chars": len(prompt),
			"from":         profile.Model,
			"to":           generous.Model,
		}).Info("Prompt over budget after truncation, switching model")
		profile = generous
		for len(prompt) > profile.MaxPromptChars && contextBudget > minContextBudget {
			contextBudget /= 2
			prompt = build()
		}
	}
	return prompt, profile
}

func buildAnswerPrompt(question, contextText, supplementary string, issues []string) string {
	var b strings.Builder
	b.WriteString("Você é um assistente de estudos. Responda à pergunta do aluno usando apenas o contexto fornecido dos materiais dele. ")
	b.WriteString("Se o contexto não contiver a resposta, diga claramente que não encontrou a informação. Não invente conteúdo.\n\n")

	if contextText != "" {
		b.WriteString("--- CONTEXTO DOS MATERIAIS ---\n")
		b.WriteString(contextText)
		b.WriteString("\n--- FIM DO CONTEXTO ---\n\n")
	}
	if supplementary != "" {
		b.WriteString("--- CONTEXTO COMPLEMENTAR ---\n")
		b.WriteString(supplementary)
		b.WriteString("\n--- FIM DO COMPLEMENTAR ---\n\n")
	}
	if len(issues) > 0 {
		b.WriteString("A revisão anterior apontou os seguintes problemas; corrija todos na nova resposta:\n")
		for _, issue := range issues {
			b.WriteString("- ")
			b.WriteString(issue)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Pergunta: ")
	b.WriteString(question)
	return b.String()
}

// review asks the model to self-grade the candidate answer. The second return
// reports whether a verdict could be parsed; parse failures are treated as an
// automatic pass by the caller.
func (g *Generator) review(ctx context.Context, question, answer string) (reviewVerdict, bool) {
	prompt := fmt.Sprintf(`Avalie a resposta abaixo para a pergunta do aluno. Responda somente com JSON no formato:
{"complete": bool, "coherent": bool, "didactic": bool, "structured": bool, "deep": bool, "issues": ["problema 1", "problema 2"]}

complete: a resposta cobre todos os pontos da pergunta.
coherent: a resposta é logicamente consistente.
didactic: a explicação é clara para um estudante.
structured: a resposta é bem formatada e organizada.
deep: a resposta tem profundidade suficiente.

Pergunta: %s

Resposta: %s`, question, answer)

	reply, err := g.model.Complete(ctx, prompt, g.router.ProfileFor(llm.TaskReview))
	if err != nil {
		g.log.WithError(err).Warn("Review call failed, passing answer through")
		return reviewVerdict{}, false
	}

	span, ok := jsonObjectSpan(reply)
	if !ok {
		return reviewVerdict{}, false
	}
	var verdict reviewVerdict
	if err := json.Unmarshal([]byte(span), &verdict); err != nil {
		g.log.WithError(err).Debug("Review verdict unparseable, passing answer through")
		return reviewVerdict{}, false
	}
	return verdict, true
}

// jsonObjectSpan returns the largest {...} span in s.
func jsonObjectSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
