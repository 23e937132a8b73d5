package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemIndex is the default embedded vector index. Vectors persist on local
// disk and embeddings are produced through the Ollama embeddings API.
type ChromemIndex struct {
	db          *chromem.DB
	embedding   chromem.EmbeddingFunc
	logger      *zap.Logger
	mu          sync.Mutex
	collections map[string]*chromem.Collection
}

func NewChromemIndex(path, embeddingModel, ollamaBaseURL string, logger *zap.Logger) (*ChromemIndex, error) {
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem db: %w", err)
	}

	return &ChromemIndex{
		db:          db,
		embedding:   chromem.NewEmbeddingFuncOllama(embeddingModel, ollamaBaseURL+"/api"),
		logger:      logger,
		collections: make(map[string]*chromem.Collection),
	}, nil
}

func (c *ChromemIndex) collection(name string) (*chromem.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	col, err := c.db.GetOrCreateCollection(name, nil, c.embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	c.collections[name] = col
	return col, nil
}

func (c *ChromemIndex) Upsert(ctx context.Context, collection string, entries []Entry) error {
	col, err := c.collection(collection)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		err := col.AddDocument(ctx, chromem.Document{
			ID:       entry.ID,
			Content:  entry.Text,
			Metadata: entry.Metadata,
		})
		if err != nil {
			return fmt.Errorf("failed to add document %s: %w", entry.ID, err)
		}
	}

	c.logger.Debug("Vectors upserted",
		zap.String("collection", collection),
		zap.Int("count", len(entries)),
	)
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, collection, query string, topK int, where map[string]string) ([]Result, error) {
	col, err := c.collection(collection)
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults greater than the collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	hits, err := col.Query(ctx, query, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		results = append(results, Result{
			ID:         hit.ID,
			Text:       hit.Content,
			Metadata:   hit.Metadata,
			Similarity: float64(hit.Similarity),
		})
	}
	return results, nil
}

func (c *ChromemIndex) Delete(ctx context.Context, collection string, where map[string]string) error {
	col, err := c.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, where, nil); err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}
	return nil
}

func (c *ChromemIndex) Ping(ctx context.Context) error {
	// The store is embedded; opening the chunks collection proves liveness.
	_, err := c.collection(CollectionChunks)
	return err
}
