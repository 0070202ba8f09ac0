// Package store provides the vector index behind retrieval. Both
// backends honour one contract: Query returns nearest neighbors with
// L2 distances between unit-normalized embeddings, and Upsert never
// writes nil-valued metadata (absent numeric locators become -1,
// absent text fields become "").
package store

import (
	"context"
	"errors"
	"strconv"

	"docqa/internal/models"
)

// ErrIndexUnavailable marks a vector index that cannot be opened or
// initialized. Callers surface it without backend detail.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// QueryResult is one nearest neighbor with its L2 distance.
type QueryResult struct {
	ID       string
	Distance float64
	Text     string
	Metadata models.Metadata
}

// VectorStore is the persistence contract for fragments.
type VectorStore interface {
	// Upsert writes fragments with their embeddings. Fragment i
	// pairs with embeddings[i].
	Upsert(ctx context.Context, fragments []models.Fragment, embeddings [][]float32) error

	// Query returns up to k nearest neighbors for the embedding,
	// closest first.
	Query(ctx context.Context, embedding []float32, k int) ([]QueryResult, error)

	// DeleteAll removes every fragment from the index.
	DeleteAll(ctx context.Context) error

	// Count reports the number of indexed fragments.
	Count(ctx context.Context) (int, error)
}

// metadataToMap flattens metadata for backends that store string
// key-value pairs. Locator fields use the -1 sentinel already, so
// every value is representable.
func metadataToMap(m models.Metadata) map[string]string {
	return map[string]string{
		"doc_id":     m.DocID,
		"filename":   m.Filename,
		"file_type":  m.FileType,
		"page":       strconv.Itoa(m.Page),
		"line_start": strconv.Itoa(m.LineStart),
		"line_end":   strconv.Itoa(m.LineEnd),
		"chunk_id":   m.ChunkID,
	}
}

func metadataFromMap(m map[string]string) models.Metadata {
	return models.Metadata{
		DocID:     m["doc_id"],
		Filename:  m["filename"],
		FileType:  m["file_type"],
		Page:      atoiOr(m["page"], models.NoLocator),
		LineStart: atoiOr(m["line_start"], models.NoLocator),
		LineEnd:   atoiOr(m["line_end"], models.NoLocator),
		ChunkID:   m["chunk_id"],
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
