// Package llm talks to an OpenAI-compatible API for embeddings and
// learner-facing definitions.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/kobeya/studypartner/internal/domain"
)

// ErrEmptyResponse is returned when the provider answers without content.
var ErrEmptyResponse = errors.New("empty response from provider")

// Config holds provider settings.
type Config struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbeddingModel    string
	RequestsPerSecond float64
	Burst             int
}

// Client wraps the OpenAI client with a shared rate limit.
type Client struct {
	client         *openai.Client
	limiter        *rate.Limiter
	chatModel      string
	embeddingModel string
}

// New returns a Client. A zero RequestsPerSecond disables rate limiting.
func New(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		client:         openai.NewClientWithConfig(clientConfig),
		limiter:        rate.NewLimiter(limit, burst),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
	}
}

// EmbeddingModel returns the model used by Embed.
func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}

// Embed returns the embedding of text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyResponse
	}
	return resp.Data[0].Embedding, nil
}

const definitionPrompt = `You write vocabulary notes for Japanese students preparing for the EIKEN exam.
Give a one-sentence English definition of the word using vocabulary at or below the word's CEFR level,
then a short Japanese gloss on a new line starting with "日本語:". Do not add examples or commentary.`

// Define asks the chat model for a learner-level definition of w.
func (c *Client) Define(ctx context.Context, w domain.VocabularyWord) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	user := fmt.Sprintf("Word: %s\nCEFR level: %s", w.Word, w.CEFR)
	if w.PartOfSpeech != "" {
		user += "\nPart of speech: " + w.PartOfSpeech
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: definitionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("create chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
