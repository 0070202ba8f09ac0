package rag

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/generator"
	"docqa/internal/models"
	"docqa/internal/store"
)

// memStore is a minimal in-memory VectorStore doing brute-force L2
// search, enough to drive the pipeline end to end.
type memStore struct {
	fragments  []models.Fragment
	embeddings [][]float32
}

func (s *memStore) Upsert(_ context.Context, fragments []models.Fragment, embeddings [][]float32) error {
	s.fragments = append(s.fragments, fragments...)
	s.embeddings = append(s.embeddings, embeddings...)
	return nil
}

func (s *memStore) Query(_ context.Context, embedding []float32, k int) ([]store.QueryResult, error) {
	results := make([]store.QueryResult, len(s.fragments))
	for i, f := range s.fragments {
		var sum float64
		for d := range embedding {
			diff := float64(embedding[d] - s.embeddings[i][d])
			sum += diff * diff
		}
		results[i] = store.QueryResult{
			ID:       f.Metadata.ChunkID,
			Distance: math.Sqrt(sum),
			Text:     f.Text,
			Metadata: f.Metadata,
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *memStore) DeleteAll(context.Context) error {
	s.fragments = nil
	s.embeddings = nil
	return nil
}

func (s *memStore) Count(context.Context) (int, error) { return len(s.fragments), nil }

// constEmbedder maps every text to the same unit vector, so anything
// indexed is an exact match for any query.
type constEmbedder struct{}

func (constEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (constEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeCompletion struct {
	answer string
	calls  int
}

func (f *fakeCompletion) Generate(context.Context, string, string) (string, error) {
	f.calls++
	return f.answer, nil
}

func newTestPipeline(svc generator.CompletionService) (*Pipeline, *memStore) {
	st := &memStore{}
	return New(config.Default(), st, constEmbedder{}, svc), st
}

func TestAnswer_EmptyIndexFactualRefuses(t *testing.T) {
	svc := &fakeCompletion{answer: "never used"}
	p, _ := newTestPipeline(svc)

	got := p.Answer(context.Background(), "Who wrote it?", "")

	assert.Equal(t, config.DefaultRefusalResponse, got.Answer)
	assert.Equal(t, models.IntentFactual, got.Intent)
	assert.Zero(t, svc.calls)
}

func TestAnswer_InvalidExplicitIntentFallsBackToDetection(t *testing.T) {
	svc := &fakeCompletion{answer: "never used"}
	p, _ := newTestPipeline(svc)

	got := p.Answer(context.Background(), "summarize the documents", "philosophical")

	assert.Equal(t, models.IntentSummary, got.Intent)
	assert.Equal(t, generator.NoDocumentsMessage, got.Answer)
}

func TestAnswer_ExplicitIntentOverridesDetection(t *testing.T) {
	svc := &fakeCompletion{answer: "never used"}
	p, _ := newTestPipeline(svc)

	// The question reads as a summary, the caller pins factual.
	got := p.Answer(context.Background(), "summarize the documents", "factual")

	assert.Equal(t, models.IntentFactual, got.Intent)
	assert.Equal(t, config.DefaultRefusalResponse, got.Answer)
}

func TestIndexPathsAndAnswer_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.txt")
	require.NoError(t, os.WriteFile(path, []byte("The treaty was signed in 1648.\n"), 0o644))

	svc := &fakeCompletion{answer: "It was signed in 1648."}
	p, _ := newTestPipeline(svc)

	result, err := p.IndexPaths(context.Background(), []string{path}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DocumentsIndexed)
	assert.Equal(t, 1, result.ChunksIndexed)
	assert.Equal(t, 1, result.FinalIndexSize)
	assert.Zero(t, result.FilesSkipped)
	assert.False(t, result.IndexCleared)

	got := p.Answer(context.Background(), "When was the treaty signed?", "")

	assert.Equal(t, "It was signed in 1648.", got.Answer)
	assert.Equal(t, 1, svc.calls)
	require.Len(t, got.Sources, 1)
	assert.Equal(t, "facts.txt (lines 1-1)", got.Sources[0])
}

func TestIndexPaths_ClearFirstReportsRemoved(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.txt")
	require.NoError(t, os.WriteFile(path, []byte("first batch\n"), 0o644))

	p, _ := newTestPipeline(&fakeCompletion{})

	_, err := p.IndexPaths(context.Background(), []string{path}, false)
	require.NoError(t, err)

	result, err := p.IndexPaths(context.Background(), []string{path}, true)
	require.NoError(t, err)
	assert.True(t, result.IndexCleared)
	assert.Equal(t, 1, result.ChunksRemoved)
	assert.Equal(t, 1, result.FinalIndexSize)
}

func TestIndexPaths_SkipsUnsupportedInputs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))

	p, _ := newTestPipeline(&fakeCompletion{})

	result, err := p.IndexPaths(context.Background(), []string{path}, false)

	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesSkipped)
	assert.Zero(t, result.DocumentsIndexed)
	assert.Zero(t, result.FinalIndexSize)
}

func TestClearIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facts.txt")
	require.NoError(t, os.WriteFile(path, []byte("some content\n"), 0o644))

	p, st := newTestPipeline(&fakeCompletion{})

	_, err := p.IndexPaths(context.Background(), []string{path}, false)
	require.NoError(t, err)

	removed, err := p.ClearIndex(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}
