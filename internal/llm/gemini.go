package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GeminiClient implements EmbeddingProvider and GenerativeModel on top of the
// Google GenAI SDK.
type GeminiClient struct {
	client *genai.Client
	log    *logrus.Logger
}

func NewGeminiClient(ctx context.Context, apiKey string, log *logrus.Logger) (*GeminiClient, error) {
	if log == nil {
		log = logrus.New()
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiClient{client: client, log: log}, nil
}

func (c *GeminiClient) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			c.log.WithError(err).Warn("Error closing GenAI client")
		}
	}
}

func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	em := c.client.EmbeddingModel(defaultEmbedderModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}

func (c *GeminiClient) Complete(ctx context.Context, prompt string, profile ModelProfile) (string, error) {
	model := c.client.GenerativeModel(profile.Model)

	temp := profile.Params.Temperature
	maxTokens := profile.Params.MaxTokens
	topP := profile.Params.TopP
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
		TopP:            &topP,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		c.log.Warn("Gemini response was empty or had no valid candidates/parts")
		return "", nil
	}

	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out.WriteString(string(txt))
		} else {
			c.log.Warnf("Gemini response part was not text: %T", part)
		}
	}
	return out.String(), nil
}
