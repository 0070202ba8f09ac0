package embedding

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docqa/internal/config"
	"docqa/internal/models"
)

// NewOllamaEmbedder builds an embedder against a local ollama server.
func NewOllamaEmbedder(llmCfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().
		Str("base_url", llmCfg.BaseURL).
		Str("embedding_model", llmCfg.Model).
		Msg("initializing ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(llmCfg.BaseURL),
		ollama.WithModel(llmCfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// NewOpenAIEmbedder builds an embedder against any openai-compatible
// endpoint.
func NewOpenAIEmbedder(llmCfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := openai.New(
		openai.WithBaseURL(llmCfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(llmCfg.Key, "Bearer ")),
		openai.WithModel(llmCfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// Embedder is the collaborator contract retrieval and ingestion
// depend on. embeddings.EmbedderImpl satisfies it.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedFragments embeds fragment texts, preserving order.
func EmbedFragments(ctx context.Context, embedder Embedder, fragments []models.Fragment) ([][]float32, error) {
	if len(fragments) == 0 {
		log.Info().Msg("no fragments to embed")
		return nil, nil
	}
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}
	return embedder.EmbedDocuments(ctx, texts)
}
