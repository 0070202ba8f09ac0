// Package rag wires the pipeline: intent classification, retrieval,
// and generation for questions; loading, chunking, embedding and
// upserting for ingestion. All dependencies are injected — there is
// no package-level state.
package rag

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/generator"
	"docqa/internal/helper"
	"docqa/internal/intent"
	"docqa/internal/loader"
	"docqa/internal/models"
	"docqa/internal/retriever"
	"docqa/internal/store"
)

// embedBatchSize bounds peak memory while embedding large ingestion
// jobs.
const embedBatchSize = 500

// Pipeline is the caller-facing contract consumed by the
// presentation layer.
type Pipeline struct {
	cfg       *config.Config
	store     store.VectorStore
	embedder  embedding.Embedder
	chunker   *chunker.Chunker
	retriever *retriever.Retriever
	generator *generator.Generator

	// Embedding followed by an upsert is not atomic; a single
	// coarse lock keeps partial writes invisible to queries.
	ingestMu sync.Mutex
}

func New(cfg *config.Config, st store.VectorStore, emb embedding.Embedder, svc generator.CompletionService) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     st,
		embedder:  emb,
		chunker:   chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap),
		retriever: retriever.New(st, emb, cfg.Retrieval),
		generator: generator.New(svc, cfg.Generation.RefusalResponse),
	}
}

// Answer answers one question from the indexed corpus. An explicit
// intent, when valid, bypasses classification; anything else falls
// back to classification silently.
func (p *Pipeline) Answer(ctx context.Context, question, explicitIntent string) models.Answer {
	reqLog := log.With().Str("request_id", helper.RequestID()).Logger()

	queryIntent, ok := intent.Parse(explicitIntent)
	if !ok {
		queryIntent = intent.Detect(question)
	}
	strategy := intent.StrategyFor(queryIntent)

	reqLog.Info().
		Str("intent", string(queryIntent)).
		Int("top_k", strategy.TopK).
		Msg("answering question")

	chunks := p.retriever.Retrieve(ctx, question, strategy)
	answer := p.generator.Generate(ctx, question, chunks, queryIntent, strategy)

	reqLog.Info().
		Int("chunks", len(chunks)).
		Int("sources", len(answer.Sources)).
		Msg("question answered")
	return answer
}

// IndexPaths validates, loads, chunks, embeds and indexes documents
// end to end. Every entry point goes through this one pipeline.
func (p *Pipeline) IndexPaths(ctx context.Context, paths []string, clearFirst bool) (models.IndexingResult, error) {
	p.ingestMu.Lock()
	defer p.ingestMu.Unlock()

	initial, err := p.store.Count(ctx)
	if err != nil {
		return models.IndexingResult{}, err
	}

	result := models.IndexingResult{IndexCleared: clearFirst}
	if clearFirst {
		if err := p.store.DeleteAll(ctx); err != nil {
			return result, err
		}
		result.ChunksRemoved = initial
	}

	docs, loadErrs := loader.LoadInputs(paths)
	result.FilesSkipped = len(loadErrs)
	for _, e := range loadErrs {
		log.Error().Err(e).Msg("skipping input")
	}

	if len(docs) == 0 {
		result.FinalIndexSize, err = p.store.Count(ctx)
		log.Info().
			Int("skipped", result.FilesSkipped).
			Bool("cleared", result.IndexCleared).
			Msg("no documents indexed")
		return result, err
	}

	fragments := p.chunker.Chunk(docs)
	if err := p.upsertFragments(ctx, fragments); err != nil {
		return result, err
	}

	result.DocumentsIndexed = len(docs)
	result.ChunksIndexed = len(fragments)
	result.FinalIndexSize, err = p.store.Count(ctx)

	log.Info().
		Int("documents", result.DocumentsIndexed).
		Int("chunks", result.ChunksIndexed).
		Int("skipped", result.FilesSkipped).
		Int("index_size", result.FinalIndexSize).
		Msg("indexing complete")
	return result, err
}

func (p *Pipeline) upsertFragments(ctx context.Context, fragments []models.Fragment) error {
	for start := 0; start < len(fragments); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(fragments) {
			end = len(fragments)
		}
		batch := fragments[start:end]

		embeddings, err := embedding.EmbedFragments(ctx, p.embedder, batch)
		if err != nil {
			return err
		}
		if err := p.store.Upsert(ctx, batch, embeddings); err != nil {
			return err
		}
	}
	return nil
}

// ClearIndex removes every indexed fragment, returning how many
// were removed.
func (p *Pipeline) ClearIndex(ctx context.Context) (int, error) {
	p.ingestMu.Lock()
	defer p.ingestMu.Unlock()

	existing, err := p.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := p.store.DeleteAll(ctx); err != nil {
		return 0, err
	}
	log.Info().Int("removed", existing).Msg("index cleared")
	return existing, nil
}
