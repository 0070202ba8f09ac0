package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docqa/internal/models"
)

func TestMetadataMapRoundTrip(t *testing.T) {
	in := models.Metadata{
		DocID:     "d1",
		Filename:  "report.pdf",
		FileType:  "pdf",
		Page:      3,
		LineStart: models.NoLocator,
		LineEnd:   models.NoLocator,
		ChunkID:   "c1",
	}

	assert.Equal(t, in, metadataFromMap(metadataToMap(in)))
}

func TestMetadataFromMap_MissingKeysFallBackToSentinels(t *testing.T) {
	got := metadataFromMap(map[string]string{"filename": "notes.txt"})

	assert.Equal(t, "notes.txt", got.Filename)
	assert.Equal(t, models.NoLocator, got.Page)
	assert.Equal(t, models.NoLocator, got.LineStart)
	assert.Equal(t, models.NoLocator, got.LineEnd)
	assert.Empty(t, got.DocID)
}

func TestMetadataFromMap_GarbageNumbersFallBack(t *testing.T) {
	got := metadataFromMap(map[string]string{"page": "three"})

	assert.Equal(t, models.NoLocator, got.Page)
}
