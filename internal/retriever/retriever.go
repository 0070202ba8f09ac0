// Package retriever selects the fragments a question is answered
// from. Embedding or index failures here deliberately collapse into
// an empty candidate list: downstream generation treats "index
// unusable" and "no relevant content" identically, which keeps the
// refusal path uniform. The error-level log line is the only place
// the two cases differ.
package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/models"
	"docqa/internal/store"
)

// Retriever scores index candidates against a query and applies the
// strategy's selection policy.
type Retriever struct {
	store      store.VectorStore
	embedder   embedding.Embedder
	candidateK int
	minScore   float64 // global floor under strategy thresholds
	dropOff    float64
}

func New(s store.VectorStore, e embedding.Embedder, cfg config.RetrievalConfig) *Retriever {
	if cfg.CandidateK <= 0 {
		cfg.CandidateK = 20
	}
	if cfg.DropOffThreshold <= 0 {
		cfg.DropOffThreshold = 0.10
	}
	return &Retriever{
		store:      s,
		embedder:   e,
		candidateK: cfg.CandidateK,
		minScore:   cfg.MinScoreThreshold,
		dropOff:    cfg.DropOffThreshold,
	}
}

// Retrieve returns ranked candidates for the query. The result may
// be empty; it is never an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, strategy models.RetrievalStrategy) []models.Candidate {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("query embedding failed")
		return nil
	}

	results, err := r.store.Query(ctx, queryEmbedding, r.candidateK)
	if err != nil {
		log.Error().Err(err).Msg("vector index query failed")
		return nil
	}
	if len(results) == 0 {
		log.Info().Msg("no documents found in index")
		return nil
	}

	// L2 distance between unit vectors maps to cosine similarity
	// via score = 1 - d^2/2.
	candidates := make([]models.Candidate, len(results))
	for i, res := range results {
		candidates[i] = models.Candidate{
			Text:     res.Text,
			Metadata: res.Metadata,
			Score:    1 - res.Distance*res.Distance/2,
		}
	}

	if strategy.FilterByScore {
		threshold := strategy.MinSimilarity
		if threshold < r.minScore {
			threshold = r.minScore
		}
		filtered := candidates[:0]
		for _, c := range candidates {
			if c.Score >= threshold {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) == 0 {
			log.Info().
				Float64("threshold", threshold).
				Float64("top_score", candidates[0].Score).
				Msg("no chunks above threshold")
			return nil
		}
		candidates = filtered
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	var selected []models.Candidate
	if strategy.DiverseSampling {
		selected = diverseSample(candidates, strategy.TopK)
	} else {
		selected = r.dropOffCutoff(candidates, strategy.TopK)
	}

	log.Info().
		Str("query", query).
		Int("candidates", len(results)).
		Int("selected", len(selected)).
		Msg("retrieval complete")
	return selected
}

// dropOffCutoff keeps the top candidate and walks down the ranking,
// stopping at the first score gap larger than the drop-off
// threshold or once topK candidates are collected.
func (r *Retriever) dropOffCutoff(candidates []models.Candidate, topK int) []models.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	selected := []models.Candidate{candidates[0]}

	for i := 1; i < len(candidates); i++ {
		if topK > 0 && len(selected) >= topK {
			break
		}
		drop := candidates[i-1].Score - candidates[i].Score
		if drop > r.dropOff {
			log.Info().
				Float64("drop", drop).
				Int("rank", i).
				Msg("score drop-off detected, cutting context")
			break
		}
		selected = append(selected, candidates[i])
	}
	return selected
}

// diverseSample groups candidates by source filename and takes one
// per group in rotation until topK are collected or every group is
// exhausted. Guarantees multi-document representation for summaries
// at the cost of strict score order.
func diverseSample(candidates []models.Candidate, topK int) []models.Candidate {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	var order []string
	groups := make(map[string][]models.Candidate)
	for _, c := range candidates {
		key := c.Metadata.Filename
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	var selected []models.Candidate
	for len(selected) < topK {
		took := false
		for _, key := range order {
			if len(groups[key]) == 0 {
				continue
			}
			selected = append(selected, groups[key][0])
			groups[key] = groups[key][1:]
			took = true
			if len(selected) == topK {
				break
			}
		}
		if !took {
			break
		}
	}
	return selected
}
