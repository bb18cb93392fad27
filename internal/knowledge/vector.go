package knowledge

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"estimator/internal/gateway/provider"
	"estimator/internal/gateway/qdrant"
	"estimator/internal/logger"
)

// vectorStore is the slice of the qdrant client the index needs.
type vectorStore interface {
	EnsureCollection(ctx context.Context, name string, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []qdrant.Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]qdrant.ScoredPoint, error)
}

// VectorIndex stores document chunks in Qdrant and retrieves them by
// embedding similarity.
type VectorIndex struct {
	store      vectorStore
	embedder   provider.Embedder
	collection string
}

// NewVectorIndex wires the index against a collection.
func NewVectorIndex(store vectorStore, embedder provider.Embedder, collection string) *VectorIndex {
	return &VectorIndex{store: store, embedder: embedder, collection: collection}
}

// Index chunks the documents, embeds them in batches and upserts the points.
// Point IDs derive from the chunk text so re-indexing the same corpus
// overwrites rather than duplicates.
func (ix *VectorIndex) Index(ctx context.Context, docs []Document) error {
	chunks := chunkDocuments(docs)
	if len(chunks) == 0 {
		return nil
	}
	if err := ix.store.EnsureCollection(ctx, ix.collection, qdrant.VectorSize); err != nil {
		return err
	}

	const batchSize = 32
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		texts := make([]string, len(batch))
		for i, ch := range batch {
			texts[i] = ch.text
		}
		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch failed: %w", err)
		}
		points := make([]qdrant.Point, len(batch))
		for i, ch := range batch {
			points[i] = qdrant.Point{
				ID:     pointID(ch.text),
				Vector: vectors[i],
				Payload: map[string]any{
					"text":   ch.text,
					"source": ch.source,
				},
			}
		}
		if err := ix.store.Upsert(ctx, ix.collection, points); err != nil {
			return fmt.Errorf("upserting batch failed: %w", err)
		}
	}
	logger.Infof("Vector index holds %d chunks in collection %s", len(chunks), ix.collection)
	return nil
}

// Search embeds the query and returns payload texts of the nearest chunks.
func (ix *VectorIndex) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vector for query")
	}
	hits, err := ix.store.Search(ctx, ix.collection, vectors[0], limit)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		text, _ := hit.Payload["text"].(string)
		if text == "" {
			continue
		}
		source, _ := hit.Payload["source"].(string)
		out = append(out, Result{Text: text, Source: source, Score: hit.Score})
	}
	return out, nil
}

// pointID folds the md5 of the chunk text into a uint64 Qdrant point id.
func pointID(text string) uint64 {
	sum := md5.Sum([]byte(text))
	return binary.BigEndian.Uint64(sum[:8])
}
