package store

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docqa/internal/models"
)

const compress = false

// ChromemStore is the embedded vector index backend, persisted on
// local disk.
type ChromemStore struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
}

// NewChromemStore opens (or creates) the collection at dbPath.
func NewChromemStore(dbPath, collectionName string, inMemory bool) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("%w: open database: %v", ErrIndexUnavailable, err)
		}
	}

	c, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create/get collection: %v", ErrIndexUnavailable, err)
	}

	return &ChromemStore{
		db:             db,
		collection:     c,
		collectionName: collectionName,
	}, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, fragments []models.Fragment, embeddings [][]float32) error {
	if len(fragments) != len(embeddings) {
		return fmt.Errorf("got %d fragments but %d embeddings", len(fragments), len(embeddings))
	}

	docs := make([]chromem.Document, 0, len(fragments))
	for i, f := range fragments {
		if f.Metadata.ChunkID == "" {
			log.Warn().Msg("skipping fragment without chunk id")
			continue
		}
		docs = append(docs, chromem.Document{
			ID:        f.Metadata.ChunkID,
			Content:   f.Text,
			Metadata:  metadataToMap(f.Metadata),
			Embedding: embeddings[i],
		})
	}
	if len(docs) == 0 {
		return nil
	}

	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int) ([]QueryResult, error) {
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	out := make([]QueryResult, 0, len(results))
	for _, r := range results {
		// chromem reports cosine similarity; the store contract is
		// L2 distance between unit vectors, so map s -> sqrt(2-2s).
		sim := float64(r.Similarity)
		dist := math.Sqrt(math.Max(0, 2-2*sim))
		out = append(out, QueryResult{
			ID:       r.ID,
			Distance: dist,
			Text:     r.Content,
			Metadata: metadataFromMap(r.Metadata),
		})
	}
	return out, nil
}

func (s *ChromemStore) DeleteAll(_ context.Context) error {
	if err := s.db.DeleteCollection(s.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	c, err := s.db.GetOrCreateCollection(s.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to recreate collection: %w", err)
	}
	s.collection = c
	return nil
}

func (s *ChromemStore) Count(_ context.Context) (int, error) {
	return s.collection.Count(), nil
}
