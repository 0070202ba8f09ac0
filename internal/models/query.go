package models

// QueryIntent classifies what kind of answer a question expects.
type QueryIntent string

const (
	IntentFactual     QueryIntent = "factual"
	IntentSummary     QueryIntent = "summary"
	IntentDescription QueryIntent = "description"
)

// RetrievalStrategy parameterizes retrieval and generation for one
// intent. Derived from the intent table, never mutated afterwards.
type RetrievalStrategy struct {
	TopK            int
	MinSimilarity   float64
	FilterByScore   bool
	DiverseSampling bool
	StrictRefusal   bool
}

// Answer is the caller-facing result of one question.
// Sources are deduplicated "filename (locator)" strings in
// lexicographic order, empty for refusals and failures.
type Answer struct {
	Answer  string
	Sources []string
	Intent  QueryIntent
}

// IndexingResult is the stable contract for indexing outcomes,
// shared by every entry point.
type IndexingResult struct {
	DocumentsIndexed int
	ChunksIndexed    int
	FilesSkipped     int
	IndexCleared     bool
	ChunksRemoved    int
	FinalIndexSize   int
}
