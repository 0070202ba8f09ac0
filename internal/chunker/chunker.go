package chunker

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"docqa/internal/models"
)

// Separator preference, most structural first. When none occurs in
// the text the splitter degrades to single characters, which keeps
// the residual strictly shrinking and guarantees termination.
var separators = []string{"\n\n", "\n", " "}

const idPrefixLen = 20

// Chunker splits documents into bounded, overlapping fragments.
// Stateless per call; safe for concurrent use.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

func New(size, overlap int) *Chunker {
	if size <= 0 {
		size = 2000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 10
	}
	return &Chunker{chunkSize: size, chunkOverlap: overlap}
}

// Chunk turns extracted documents into fragments with stable ids.
// Whitespace-only pieces are dropped; metadata is propagated from
// the source document.
func (c *Chunker) Chunk(docs []models.Document) []models.Fragment {
	if len(docs) == 0 {
		log.Warn().Msg("no documents provided for chunking")
		return nil
	}

	log.Info().
		Int("documents", len(docs)).
		Int("size", c.chunkSize).
		Int("overlap", c.chunkOverlap).
		Msg("chunking documents")

	var fragments []models.Fragment
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		for i, text := range c.SplitText(doc.Text) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			meta := doc.Metadata
			meta.ChunkID = chunkID(meta.DocID, i, text)
			fragments = append(fragments, models.Fragment{
				Text:     text,
				Metadata: meta,
			})
		}
	}

	log.Info().Int("chunks", len(fragments)).Msg("generated chunks")
	return fragments
}

// SplitText splits text on the first applicable separator, packing
// splits into chunks of at most chunkSize and seeding each new chunk
// with a suffix of the previous one no longer than chunkOverlap.
func (c *Chunker) SplitText(text string) []string {
	if len(text) <= c.chunkSize {
		return []string{text}
	}

	separator := ""
	for _, sep := range separators {
		if strings.Contains(text, sep) {
			separator = sep
			break
		}
	}

	var splits []string
	if separator != "" {
		splits = strings.Split(text, separator)
	} else {
		splits = strings.Split(text, "") // character fallback
	}
	sepLen := len(separator)

	var chunks []string
	var current []string
	currentLen := 0

	for _, split := range splits {
		if currentLen+len(split)+sepLen > c.chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, separator))

			// Carry forward a tail of the flushed buffer for
			// cross-chunk context continuity.
			var overlap []string
			overlapLen := 0
			for i := len(current) - 1; i >= 0; i-- {
				if overlapLen+len(current[i])+sepLen > c.chunkOverlap {
					break
				}
				overlap = append([]string{current[i]}, overlap...)
				overlapLen += len(current[i]) + sepLen
			}
			current = overlap
			currentLen = overlapLen
		}
		current = append(current, split)
		currentLen += len(split) + sepLen
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, separator))
	}
	return chunks
}

// chunkID is deterministic for identical (docID, ordinal, prefix):
// re-ingesting unchanged input never changes ids.
func chunkID(docID string, ordinal int, text string) string {
	prefix := []rune(text)
	if len(prefix) > idPrefixLen {
		prefix = prefix[:idPrefixLen]
	}
	sum := md5.Sum([]byte(fmt.Sprintf("%s_%d_%s", docID, ordinal, string(prefix))))
	return hex.EncodeToString(sum[:])
}
