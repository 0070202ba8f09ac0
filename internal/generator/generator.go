package generator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"docqa/internal/llm"
	"docqa/internal/models"
)

// CompletionService is the orchestrator capability generation needs.
type CompletionService interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// NoDocumentsMessage is returned for summary/description questions
// against an empty index, bypassing the LLM call.
const NoDocumentsMessage = "No documents have been indexed yet. Please upload or index documents first."

// refusalMarker loosely matches the canonical refusal semantics in
// model output. Matching text is substituted with the exact
// configured refusal so the output stays byte-identical under minor
// phrasing drift.
const refusalMarker = "not found in indexed documents"

// Generator composes grounded answers from retrieved candidates.
type Generator struct {
	llm     CompletionService
	refusal string
}

func New(svc CompletionService, refusal string) *Generator {
	return &Generator{llm: svc, refusal: refusal}
}

// Generate builds the prompt from candidates and strategy, calls the
// completion service and applies the refusal contract. Failures
// surface as prose messages with empty sources, never as errors.
func (g *Generator) Generate(
	ctx context.Context,
	query string,
	chunks []models.Candidate,
	queryIntent models.QueryIntent,
	strategy models.RetrievalStrategy,
) models.Answer {
	if queryIntent == "" {
		queryIntent = models.IntentFactual
	}

	// Pre-generation short-circuits: the LLM is never invoked
	// without evidence.
	if len(chunks) == 0 {
		if strategy.StrictRefusal {
			log.Info().Msg("refusal triggered: no chunks provided")
			return models.Answer{Answer: g.refusal, Sources: []string{}, Intent: queryIntent}
		}
		return models.Answer{Answer: NoDocumentsMessage, Sources: []string{}, Intent: queryIntent}
	}

	userMessage := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", buildContext(chunks), query)
	sources := collectSources(chunks)

	answer, err := g.llm.Generate(ctx, g.systemPrompt(queryIntent), userMessage)
	if err != nil {
		log.Error().Err(err).Msg("generation failed")
		switch {
		case errors.Is(err, llm.ErrProviderTimeout):
			return models.Answer{Answer: "Error: " + llm.MsgProviderTimeout, Sources: []string{}, Intent: queryIntent}
		default:
			return models.Answer{Answer: "Error: " + llm.MsgProviderUnavailable, Sources: []string{}, Intent: queryIntent}
		}
	}

	// Refusal normalization, factual intent only: the configured
	// refusal string is load-bearing for exact-match consumers.
	if queryIntent == models.IntentFactual &&
		strings.Contains(strings.ToLower(answer), refusalMarker) {
		answer = g.refusal
		sources = []string{}
	}

	return models.Answer{Answer: answer, Sources: sources, Intent: queryIntent}
}

func buildContext(chunks []models.Candidate) string {
	var b strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "--- CHUNK %d ---\n%s\n\n", i+1, strings.TrimSpace(chunk.Text))
	}
	return b.String()
}

// collectSources renders unique "filename (locator)" references,
// lexicographically sorted.
func collectSources(chunks []models.Candidate) []string {
	unique := make(map[string]struct{})
	for _, chunk := range chunks {
		meta := chunk.Metadata
		var loc string
		switch {
		case meta.Page != models.NoLocator && meta.Page != 0:
			loc = fmt.Sprintf("page %d", meta.Page)
		case meta.LineStart != models.NoLocator && meta.LineStart != 0:
			loc = fmt.Sprintf("lines %d-%d", meta.LineStart, meta.LineEnd)
		default:
			loc = "unknown location"
		}
		filename := meta.Filename
		if filename == "" {
			filename = "unknown"
		}
		unique[fmt.Sprintf("%s (%s)", filename, loc)] = struct{}{}
	}

	sources := make([]string, 0, len(unique))
	for s := range unique {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

func (g *Generator) systemPrompt(queryIntent models.QueryIntent) string {
	switch queryIntent {
	case models.IntentSummary:
		return "You are a document summarization assistant.\n" +
			"1. Summarize the key points from the provided Context.\n" +
			"2. Focus on main ideas, themes, and important details.\n" +
			"3. Structure your summary clearly with bullet points or paragraphs.\n" +
			"4. Use ONLY information from the Context provided.\n" +
			"5. Be comprehensive but concise."
	case models.IntentDescription:
		return "You are a document analysis assistant.\n" +
			"1. Describe what the document(s) are about based on the Context.\n" +
			"2. Identify the main topics, purpose, and scope.\n" +
			"3. Mention the type of content (technical, educational, etc.).\n" +
			"4. Use ONLY information from the Context provided.\n" +
			"5. Be clear and informative."
	default:
		return "You are a precise document assistant.\n" +
			"1. Answer the user query STRICTLY using the provided Context.\n" +
			"2. Do NOT use outside knowledge. Do NOT guess.\n" +
			fmt.Sprintf("3. If the answer is not contained in the Context, output EXACTLY: '%s'\n", g.refusal) +
			"4. Be concise and direct."
	}
}
