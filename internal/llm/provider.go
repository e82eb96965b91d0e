// Package llm defines the provider capabilities the pipeline consumes.
// Concrete providers (Gemini today) are injected behind these interfaces so the
// pipeline is testable with fakes and the provider choice is configuration,
// not a compile-time import swap.
package llm

import "context"

// EmbeddingProvider turns text into a fixed-dimension dense vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GenerativeModel produces text from a prompt under the given profile.
type GenerativeModel interface {
	Complete(ctx context.Context, prompt string, profile ModelProfile) (string, error)
}

// GenerationParams are the sampling knobs passed to the provider.
type GenerationParams struct {
	Temperature float32
	MaxTokens   int32
	TopP        float32
}

// ModelProfile names a model plus the params a task should use with it.
type ModelProfile struct {
	Provider string
	Model    string
	Params   GenerationParams

	// MaxPromptChars is the prompt budget for this model, in characters.
	// The answer generator estimates tokens from character length against it.
	MaxPromptChars int
}

// Task selects which profile the router hands out.
type Task int

const (
	TaskAnswer Task = iota
	TaskReview
	TaskExtraction
	TaskRerank
	// TaskGenerous is the large-window escalation target used when a prompt
	// cannot be truncated under the default model's budget.
	TaskGenerous
)

const (
	defaultChatModel     = "gemini-1.5-flash-latest"
	generousChatModel    = "gemini-1.5-pro-latest"
	defaultEmbedderModel = "text-embedding-004"
)

// Router maps tasks to model profiles.
type Router struct {
	profiles map[Task]ModelProfile
}

func NewRouter() *Router {
	return &Router{
		profiles: map[Task]ModelProfile{
			TaskAnswer: {
				Provider:       "gemini",
				Model:          defaultChatModel,
				Params:         GenerationParams{Temperature: 0.7, MaxTokens: 2048, TopP: 0.95},
				MaxPromptChars: 28000,
			},
			TaskReview: {
				Provider:       "gemini",
				Model:          defaultChatModel,
				Params:         GenerationParams{Temperature: 0.1, MaxTokens: 512, TopP: 0.9},
				MaxPromptChars: 28000,
			},
			TaskExtraction: {
				Provider:       "gemini",
				Model:          defaultChatModel,
				Params:         GenerationParams{Temperature: 0.1, MaxTokens: 4096, TopP: 0.9},
				MaxPromptChars: 28000,
			},
			TaskRerank: {
				Provider:       "gemini",
				Model:          defaultChatModel,
				Params:         GenerationParams{Temperature: 0, MaxTokens: 256, TopP: 0.9},
				MaxPromptChars: 28000,
			},
			TaskGenerous: {
				Provider:       "gemini",
				Model:          generousChatModel,
				Params:         GenerationParams{Temperature: 0.5, MaxTokens: 8192, TopP: 0.95},
				MaxPromptChars: 120000,
			},
		},
	}
}

func (r *Router) ProfileFor(task Task) ModelProfile {
	if p, ok := r.profiles[task]; ok {
		return p
	}
	return r.profiles[TaskAnswer]
}
