package retriever

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
	"docqa/internal/intent"
	"docqa/internal/models"
	"docqa/internal/store"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

type fakeStore struct {
	results []store.QueryResult
	err     error
}

func (f *fakeStore) Upsert(context.Context, []models.Fragment, [][]float32) error { return nil }
func (f *fakeStore) DeleteAll(context.Context) error                              { return nil }
func (f *fakeStore) Count(context.Context) (int, error)                           { return len(f.results), nil }
func (f *fakeStore) Query(context.Context, []float32, int) ([]store.QueryResult, error) {
	return f.results, f.err
}

// distanceFor inverts score = 1 - d^2/2.
func distanceFor(score float64) float64 {
	return math.Sqrt(2 - 2*score)
}

func resultWithScore(filename string, score float64) store.QueryResult {
	return store.QueryResult{
		Distance: distanceFor(score),
		Text:     filename + " content",
		Metadata: models.Metadata{Filename: filename},
	}
}

func defaultCfg() config.RetrievalConfig {
	return config.RetrievalConfig{CandidateK: 20, MinScoreThreshold: 0.40, DropOffThreshold: 0.10}
}

func TestRetrieve_EmptyQueryShortCircuits(t *testing.T) {
	emb := &fakeEmbedder{}
	r := New(&fakeStore{}, emb, defaultCfg())

	got := r.Retrieve(context.Background(), "   ", intent.StrategyFor(models.IntentFactual))

	assert.Empty(t, got)
	assert.Zero(t, emb.calls, "embedding must not run for empty queries")
}

func TestRetrieve_DistanceToSimilarity(t *testing.T) {
	st := &fakeStore{results: []store.QueryResult{resultWithScore("a.txt", 0.8)}}
	r := New(st, &fakeEmbedder{}, defaultCfg())

	got := r.Retrieve(context.Background(), "q", intent.StrategyFor(models.IntentFactual))

	require.Len(t, got, 1)
	assert.InDelta(t, 0.8, got[0].Score, 1e-9)
}

func TestRetrieve_DropOffCutoff(t *testing.T) {
	st := &fakeStore{results: []store.QueryResult{
		resultWithScore("a.txt", 0.91),
		resultWithScore("b.txt", 0.85),
		resultWithScore("c.txt", 0.70),
		resultWithScore("d.txt", 0.65),
	}}
	r := New(st, &fakeEmbedder{}, defaultCfg())

	got := r.Retrieve(context.Background(), "q", intent.StrategyFor(models.IntentFactual))

	// 0.85 -> 0.70 drops by 0.15, past the 0.10 threshold.
	require.Len(t, got, 2)
	assert.InDelta(t, 0.91, got[0].Score, 1e-9)
	assert.InDelta(t, 0.85, got[1].Score, 1e-9)
}

func TestRetrieve_DropOffAlwaysKeepsTopCandidate(t *testing.T) {
	st := &fakeStore{results: []store.QueryResult{
		resultWithScore("a.txt", 0.95),
		resultWithScore("b.txt", 0.60),
	}}
	r := New(st, &fakeEmbedder{}, defaultCfg())

	got := r.Retrieve(context.Background(), "q", intent.StrategyFor(models.IntentFactual))

	require.Len(t, got, 1)
	assert.Equal(t, "a.txt", got[0].Metadata.Filename)
}

func TestRetrieve_ThresholdFiltersAll(t *testing.T) {
	st := &fakeStore{results: []store.QueryResult{
		resultWithScore("a.txt", 0.30),
		resultWithScore("b.txt", 0.20),
	}}
	r := New(st, &fakeEmbedder{}, defaultCfg())

	got := r.Retrieve(context.Background(), "q", intent.StrategyFor(models.IntentFactual))

	assert.Empty(t, got)
}

func TestRetrieve_NoThresholdForSummary(t *testing.T) {
	st := &fakeStore{results: []store.QueryResult{
		resultWithScore("a.txt", 0.30),
		resultWithScore("b.txt", 0.20),
	}}
	r := New(st, &fakeEmbedder{}, defaultCfg())

	got := r.Retrieve(context.Background(), "q", intent.StrategyFor(models.IntentSummary))

	assert.Len(t, got, 2)
}

func TestRetrieve_DiverseRoundRobin(t *testing.T) {
	st := &fakeStore{results: []store.QueryResult{
		resultWithScore("a.txt", 0.95),
		resultWithScore("b.txt", 0.90),
		resultWithScore("c.txt", 0.85),
		resultWithScore("a.txt", 0.80),
		resultWithScore("c.txt", 0.75),
		resultWithScore("a.txt", 0.70),
	}}
	r := New(st, &fakeEmbedder{}, defaultCfg())

	strategy := models.RetrievalStrategy{TopK: 4, DiverseSampling: true}
	got := r.Retrieve(context.Background(), "q", strategy)

	require.Len(t, got, 4)
	files := []string{
		got[0].Metadata.Filename,
		got[1].Metadata.Filename,
		got[2].Metadata.Filename,
		got[3].Metadata.Filename,
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt", "a.txt"}, files)
}

func TestRetrieve_DiverseExhaustsGroups(t *testing.T) {
	st := &fakeStore{results: []store.QueryResult{
		resultWithScore("a.txt", 0.9),
		resultWithScore("b.txt", 0.8),
	}}
	r := New(st, &fakeEmbedder{}, defaultCfg())

	strategy := models.RetrievalStrategy{TopK: 10, DiverseSampling: true}
	got := r.Retrieve(context.Background(), "q", strategy)

	assert.Len(t, got, 2)
}

func TestRetrieve_IndexErrorYieldsEmpty(t *testing.T) {
	st := &fakeStore{err: errors.New("index unreachable")}
	r := New(st, &fakeEmbedder{}, defaultCfg())

	got := r.Retrieve(context.Background(), "q", intent.StrategyFor(models.IntentFactual))

	assert.Empty(t, got)
}

func TestRetrieve_EmbeddingErrorYieldsEmpty(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("embedding model down")}
	r := New(&fakeStore{}, emb, defaultCfg())

	got := r.Retrieve(context.Background(), "q", intent.StrategyFor(models.IntentFactual))

	assert.Empty(t, got)
}

func TestRetrieve_EmptyIndexYieldsEmpty(t *testing.T) {
	r := New(&fakeStore{}, &fakeEmbedder{}, defaultCfg())

	got := r.Retrieve(context.Background(), "q", intent.StrategyFor(models.IntentFactual))

	assert.Empty(t, got)
}
