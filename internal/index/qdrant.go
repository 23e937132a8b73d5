package index

import (
	"context"
	"fmt"

	qdrantclient "github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// QdrantIndex talks to a standalone qdrant server over gRPC. It is the
// production alternative to the embedded chromem store.
type QdrantIndex struct {
	conn        *grpc.ClientConn
	collections qdrantclient.CollectionsClient
	points      qdrantclient.PointsClient
	embedder    Embedder
	dimension   int
	logger      *zap.Logger
}

func NewQdrantIndex(ctx context.Context, host string, port, dimension int, embedder Embedder, logger *zap.Logger) (*QdrantIndex, error) {
	conn, err := grpc.Dial(
		fmt.Sprintf("%s:%d", host, port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	q := &QdrantIndex{
		conn:        conn,
		collections: qdrantclient.NewCollectionsClient(conn),
		points:      qdrantclient.NewPointsClient(conn),
		embedder:    embedder,
		dimension:   dimension,
		logger:      logger,
	}

	for _, name := range []string{CollectionChunks, CollectionCorrections} {
		if err := q.ensureCollection(ctx, name); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return q, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context, name string) error {
	existing, err := q.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range existing.GetCollections() {
		if col.GetName() == name {
			return nil
		}
	}

	_, err = q.collections.Create(ctx, &qdrantclient.CreateCollection{
		CollectionName: name,
		VectorsConfig: &qdrantclient.VectorsConfig{
			Config: &qdrantclient.VectorsConfig_Params{
				Params: &qdrantclient.VectorParams{
					Size:     uint64(q.dimension),
					Distance: qdrantclient.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	q.logger.Info("Qdrant collection created", zap.String("collection", name))
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, collection string, entries []Entry) error {
	points := make([]*qdrantclient.PointStruct, 0, len(entries))
	for _, entry := range entries {
		vector, err := q.embedder.Embed(ctx, entry.Text)
		if err != nil {
			return fmt.Errorf("failed to embed entry %s: %w", entry.ID, err)
		}

		payload := map[string]*qdrantclient.Value{
			"text": {Kind: &qdrantclient.Value_StringValue{StringValue: entry.Text}},
		}
		for k, v := range entry.Metadata {
			payload[k] = &qdrantclient.Value{Kind: &qdrantclient.Value_StringValue{StringValue: v}}
		}

		points = append(points, &qdrantclient.PointStruct{
			Id: &qdrantclient.PointId{
				PointIdOptions: &qdrantclient.PointId_Uuid{Uuid: entry.ID},
			},
			Vectors: &qdrantclient.Vectors{
				VectorsOptions: &qdrantclient.Vectors_Vector{
					Vector: &qdrantclient.Vector{Data: vector},
				},
			},
			Payload: payload,
		})
	}

	_, err := q.points.Upsert(ctx, &qdrantclient.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	q.logger.Debug("Vectors upserted",
		zap.String("collection", collection),
		zap.Int("count", len(points)),
	)
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, collection, query string, topK int, where map[string]string) ([]Result, error) {
	vector, err := q.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	req := &qdrantclient.SearchPoints{
		CollectionName: collection,
		Vector:         vector,
		Limit:          uint64(topK),
		WithPayload: &qdrantclient.WithPayloadSelector{
			SelectorOptions: &qdrantclient.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if filter := buildFilter(where); filter != nil {
		req.Filter = filter
	}

	resp, err := q.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	results := make([]Result, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		payload := point.GetPayload()
		metadata := make(map[string]string, len(payload))
		text := ""
		for k, v := range payload {
			if k == "text" {
				text = v.GetStringValue()
				continue
			}
			metadata[k] = v.GetStringValue()
		}
		results = append(results, Result{
			ID:         point.GetId().GetUuid(),
			Text:       text,
			Metadata:   metadata,
			Similarity: float64(point.GetScore()),
		})
	}
	return results, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, collection string, where map[string]string) error {
	filter := buildFilter(where)
	if filter == nil {
		return fmt.Errorf("refusing to delete without a filter")
	}

	_, err := q.points.Delete(ctx, &qdrantclient.DeletePoints{
		CollectionName: collection,
		Points: &qdrantclient.PointsSelector{
			PointsSelectorOneOf: &qdrantclient.PointsSelector_Filter{Filter: filter},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

func (q *QdrantIndex) Ping(ctx context.Context) error {
	_, err := q.collections.List(ctx, &qdrantclient.ListCollectionsRequest{})
	return err
}

func (q *QdrantIndex) Close() error {
	return q.conn.Close()
}

func buildFilter(where map[string]string) *qdrantclient.Filter {
	if len(where) == 0 {
		return nil
	}
	conditions := make([]*qdrantclient.Condition, 0, len(where))
	for k, v := range where {
		conditions = append(conditions, &qdrantclient.Condition{
			ConditionOneOf: &qdrantclient.Condition_Field{
				Field: &qdrantclient.FieldCondition{
					Key: k,
					Match: &qdrantclient.Match{
						MatchValue: &qdrantclient.Match_Keyword{Keyword: v},
					},
				},
			},
		})
	}
	return &qdrantclient.Filter{Must: conditions}
}
