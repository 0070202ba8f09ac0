package intent

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"docqa/internal/models"
)

// Pattern groups ordered by specificity: description patterns
// ("what is this document about") must win over the broader summary
// patterns ("overview of ..."), and anything unmatched is factual.
var patternGroups = []struct {
	intent   models.QueryIntent
	patterns []*regexp.Regexp
}{
	{models.IntentDescription, []*regexp.Regexp{
		regexp.MustCompile(`\bwhat\s+(?:is|are)\s+(?:this|these|the)\s+(?:document|file|paper|article|text)s?\s+about\b`),
		regexp.MustCompile(`\b(?:describe|explain)\s+(?:this|these|the)\s+(?:document|file|paper)s?\b`),
		regexp.MustCompile(`\bwhat\s+(?:does|do)\s+(?:this|these|the)\s+(?:document|file|paper)s?\s+(?:cover|discuss|contain)\b`),
		regexp.MustCompile(`\b(?:overview|outline)\s+of\s+(?:this|these|the)\s+(?:document|file)s?\b`),
		regexp.MustCompile(`\btell\s+me\s+about\s+(?:this|these|the)\s+(?:document|file)s?\b`),
	}},
	{models.IntentSummary, []*regexp.Regexp{
		regexp.MustCompile(`\b(?:summarize|summary)\b`),
		regexp.MustCompile(`\bgive\s+(?:me\s+)?an?\s+(?:brief\s+)?(?:summary|overview)\b`),
		regexp.MustCompile(`\bwhat\s+(?:are|is)\s+the\s+(?:main|key)\s+(?:points|ideas|concepts|topics)\b`),
		regexp.MustCompile(`\b(?:overview|outline)\s+of\b`),
		regexp.MustCompile(`\blist\s+(?:all|the)\s+(?:topics|sections|chapters|key\s+points)\b`),
		regexp.MustCompile(`\bhigh-?level\s+(?:summary|overview)\b`),
		regexp.MustCompile(`\bin\s+brief\b`),
	}},
}

// Detect classifies a question. Total: every input maps to exactly
// one intent, defaulting to factual.
func Detect(question string) models.QueryIntent {
	q := strings.ToLower(strings.TrimSpace(question))

	for _, group := range patternGroups {
		for _, p := range group.patterns {
			if p.MatchString(q) {
				log.Info().Str("intent", string(group.intent)).Msg("intent detected")
				return group.intent
			}
		}
	}

	log.Info().Str("intent", string(models.IntentFactual)).Msg("intent detected (default)")
	return models.IntentFactual
}

// Parse validates a caller-supplied intent. Anything unrecognized
// reports ok=false so the caller falls back to classification; an
// invalid explicit intent is never an error.
func Parse(s string) (models.QueryIntent, bool) {
	switch models.QueryIntent(strings.ToLower(strings.TrimSpace(s))) {
	case models.IntentFactual:
		return models.IntentFactual, true
	case models.IntentSummary:
		return models.IntentSummary, true
	case models.IntentDescription:
		return models.IntentDescription, true
	}
	return "", false
}

// StrategyFor maps an intent to its fixed retrieval strategy. The
// classifier never overrides this table.
func StrategyFor(i models.QueryIntent) models.RetrievalStrategy {
	switch i {
	case models.IntentSummary:
		return models.RetrievalStrategy{
			TopK:            10,
			DiverseSampling: true,
		}
	case models.IntentDescription:
		return models.RetrievalStrategy{
			TopK:            8,
			DiverseSampling: true,
		}
	default: // factual
		return models.RetrievalStrategy{
			TopK:          5,
			MinSimilarity: 0.5,
			FilterByScore: true,
			StrictRefusal: true,
		}
	}
}
