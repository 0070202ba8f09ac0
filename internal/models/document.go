package models

// NoLocator marks metadata fields that do not apply to a document,
// e.g. page numbers for plain text files. Vector store backends
// reject nil values, so absent locators are stored as -1.
const NoLocator = -1

// Metadata travels with a document segment from extraction through
// chunking into the vector store.
type Metadata struct {
	DocID     string
	Filename  string
	FileType  string
	Page      int
	LineStart int
	LineEnd   int
	ChunkID   string
}

// Document is one extracted segment of a source file, before chunking.
// PDF pages and 50-line text windows each become one Document.
type Document struct {
	Text     string
	Metadata Metadata
}

// Fragment is the unit of indexing and retrieval: a bounded slice of
// a document with overlap, carrying a stable chunk id.
type Fragment struct {
	Text     string
	Metadata Metadata
}

// Candidate is a fragment scored against one query. Request-scoped,
// never persisted.
type Candidate struct {
	Text     string
	Metadata Metadata
	Score    float64
}
