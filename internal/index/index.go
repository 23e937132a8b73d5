// Package index abstracts the vector index used for semantic search.
// Embedding and nearest-neighbor search are external concerns; callers only
// see text in and ranked text out.
package index

import "context"

// Collection names used by the service. Chunks hold document text, while
// corrections hold admin-authored question patterns.
const (
	CollectionChunks      = "chunks"
	CollectionCorrections = "corrections"
)

// Entry is a piece of text to embed and store. IDs are UUID strings so both
// backends can use them as native point ids.
type Entry struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Result is one nearest-neighbor hit. Similarity is cosine similarity in
// [0, 1]; converting it to a user-facing relevance percentage is the
// retrieval engine's job.
type Result struct {
	ID         string
	Text       string
	Metadata   map[string]string
	Similarity float64
}

// Adapter is the narrow contract the rest of the service depends on.
type Adapter interface {
	Upsert(ctx context.Context, collection string, entries []Entry) error
	Search(ctx context.Context, collection, query string, topK int, where map[string]string) ([]Result, error)
	Delete(ctx context.Context, collection string, where map[string]string) error
	Ping(ctx context.Context) error
}
