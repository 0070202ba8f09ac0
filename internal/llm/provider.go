package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/config"
)

// Request carries one completion call. Built per attempt series,
// never shared across questions.
type Request struct {
	SystemPrompt string
	UserMessage  string
	Temperature  float64
	MaxTokens    int
}

// Provider is one completion backend. Adding a provider means adding
// a variant, not branching logic.
type Provider interface {
	// Name identifies the provider in logs only; caller-facing
	// messages come from the catalogue in errors.go.
	Name() string

	// Complete performs a single completion attempt. Retry and
	// error normalization live in the orchestrator.
	Complete(ctx context.Context, req Request) (string, error)
}

// GroqProvider talks to the groq openai-compatible endpoint.
type GroqProvider struct {
	llm *openai.LLM
}

func NewGroqProvider(cfg *config.Config) (*GroqProvider, error) {
	client, err := openai.New(
		openai.WithBaseURL(cfg.GroqBaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.GroqAPIKey, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return &GroqProvider{llm: client}, nil
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) Complete(ctx context.Context, req Request) (string, error) {
	return generateContent(ctx, p.llm, req)
}

// OllamaProvider talks to a local ollama server.
type OllamaProvider struct {
	llm *ollama.LLM
}

func NewOllamaProvider(cfg *config.Config) (*OllamaProvider, error) {
	client, err := ollama.New(
		ollama.WithServerURL(cfg.OllamaBaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return &OllamaProvider{llm: client}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (string, error) {
	return generateContent(ctx, p.llm, req)
}

func generateContent(ctx context.Context, model llms.Model, req Request) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, req.UserMessage),
	}
	resp, err := model.GenerateContent(ctx, messages,
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(req.MaxTokens),
	)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Content, nil
}
