package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docqa/internal/models"
)

// chunkRow is the pgvector-backed fragment record.
type chunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ChunkID   string    `bun:"chunk_id,pk"`
	Content   string    `bun:"content,notnull"`
	Embedding []float32 `bun:"embedding,notnull,type:vector(768)"`
	DocID     string    `bun:"doc_id,notnull"`
	Filename  string    `bun:"filename,notnull"`
	FileType  string    `bun:"file_type,notnull"`
	Page      int       `bun:"page,notnull"`
	LineStart int       `bun:"line_start,notnull"`
	LineEnd   int       `bun:"line_end,notnull"`

	Distance float64 `bun:"distance,scanonly"`
}

// PGStore is the server-grade vector index backend on postgres with
// the pgvector extension.
type PGStore struct {
	db *bun.DB
}

// NewPGStore connects to postgres and ensures the chunks table exists.
func NewPGStore(ctx context.Context, dsn, password string, debug bool) (*PGStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithPassword(password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if _, err := db.NewCreateTable().Model((*chunkRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: create chunks table: %v", ErrIndexUnavailable, err)
	}
	return &PGStore{db: db}, nil
}

func (s *PGStore) Upsert(ctx context.Context, fragments []models.Fragment, embeddings [][]float32) error {
	if len(fragments) != len(embeddings) {
		return fmt.Errorf("got %d fragments but %d embeddings", len(fragments), len(embeddings))
	}
	if len(fragments) == 0 {
		return nil
	}

	rows := make([]chunkRow, 0, len(fragments))
	for i, f := range fragments {
		if f.Metadata.ChunkID == "" {
			continue
		}
		rows = append(rows, chunkRow{
			ChunkID:   f.Metadata.ChunkID,
			Content:   f.Text,
			Embedding: embeddings[i],
			DocID:     f.Metadata.DocID,
			Filename:  f.Metadata.Filename,
			FileType:  f.Metadata.FileType,
			Page:      f.Metadata.Page,
			LineStart: f.Metadata.LineStart,
			LineEnd:   f.Metadata.LineEnd,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (chunk_id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	return err
}

func (s *PGStore) Query(ctx context.Context, embedding []float32, k int) ([]QueryResult, error) {
	var rows []chunkRow
	// pgvector's <-> operator is L2 distance, which is exactly the
	// store contract.
	err := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("c.*").
		ColumnExpr("c.embedding <-> ? AS distance", embedding).
		OrderExpr("c.embedding <-> ?", embedding).
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]QueryResult, len(rows))
	for i, r := range rows {
		out[i] = QueryResult{
			ID:       r.ChunkID,
			Distance: r.Distance,
			Text:     r.Content,
			Metadata: models.Metadata{
				DocID:     r.DocID,
				Filename:  r.Filename,
				FileType:  r.FileType,
				Page:      r.Page,
				LineStart: r.LineStart,
				LineEnd:   r.LineEnd,
				ChunkID:   r.ChunkID,
			},
		}
	}
	return out, nil
}

func (s *PGStore) DeleteAll(ctx context.Context) error {
	_, err := s.db.NewTruncateTable().Model((*chunkRow)(nil)).Exec(ctx)
	return err
}

func (s *PGStore) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*chunkRow)(nil)).Count(ctx)
}

// Close releases the underlying connection pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}
