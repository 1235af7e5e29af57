package weaviate

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"paperchat/internal/vector"
)

// upsertBatchSize matches the provider's batch write limit.
const upsertBatchSize = 100

// Record is the persisted retrieval unit: one chunk, its vector, and the
// original text kept as retrievable payload.
type Record struct {
	ID         string
	DocID      string
	PageStart  int
	PageEnd    int
	ChunkIndex int
	Text       string
	Vector     []float32
	Score      float32 // cosine similarity, populated on query
}

type Store struct {
	client   *weaviate.Client
	minScore float32
}

func NewStore(client *weaviate.Client, minScore float32) *Store {
	return &Store{client: client, minScore: minScore}
}

// objectID derives a stable Weaviate UUID from the chunk id, so re-upserting
// the same chunk overwrites instead of duplicating.
func objectID(chunkID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte("paperchat/chunk/"+chunkID)).String())
}

// Upsert writes records in provider-sized batches. Idempotent by chunk id.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	for start := 0; start < len(records); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(records) {
			end = len(records)
		}

		objects := make([]*models.Object, 0, end-start)
		for _, r := range records[start:end] {
			objects = append(objects, &models.Object{
				Class: vector.ClassName,
				ID:    objectID(r.ID),
				Properties: map[string]interface{}{
					"docId":      r.DocID,
					"pageStart":  r.PageStart,
					"pageEnd":    r.PageEnd,
					"chunkIndex": r.ChunkIndex,
					"text":       r.Text,
				},
				Vector: r.Vector,
			})
		}

		resp, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return fmt.Errorf("vector upsert failed: %w", err)
		}
		for _, obj := range resp {
			if obj.Result != nil && obj.Result.Errors != nil && len(obj.Result.Errors.Error) > 0 {
				return fmt.Errorf("vector upsert rejected: %s", obj.Result.Errors.Error[0].Message)
			}
		}
	}
	return nil
}

// QueryTopK returns up to k records for docID ranked by cosine similarity.
// The docId filter precedes ranking, so another document's vectors can never
// leak into the result; matches below the similarity floor are dropped.
func (s *Store) QueryTopK(ctx context.Context, docID string, queryVector []float32, k int) ([]Record, error) {
	nearVector := s.client.GraphQL().NearVectorArgBuilder().WithVector(queryVector)

	where := filters.Where().
		WithPath([]string{"docId"}).
		WithOperator(filters.Equal).
		WithValueString(docID)

	fields := []graphql.Field{
		{Name: "docId"},
		{Name: "pageStart"},
		{Name: "pageEnd"},
		{Name: "chunkIndex"},
		{Name: "text"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "distance"}}},
	}

	res, err := s.client.GraphQL().Get().
		WithClassName(vector.ClassName).
		WithNearVector(nearVector).
		WithWhere(where).
		WithLimit(k).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("vector query rejected: %v", res.Errors[0].Message)
	}

	var records []Record
	data, ok := res.Data["Get"].(map[string]interface{})
	if !ok {
		return records, nil
	}
	rows, ok := data[vector.ClassName].([]interface{})
	if !ok {
		return records, nil
	}

	for _, row := range rows {
		props, ok := row.(map[string]interface{})
		if !ok {
			continue
		}

		rec := Record{}
		if v, ok := props["docId"].(string); ok {
			rec.DocID = v
		}
		if v, ok := props["pageStart"].(float64); ok {
			rec.PageStart = int(v)
		}
		if v, ok := props["pageEnd"].(float64); ok {
			rec.PageEnd = int(v)
		}
		if v, ok := props["chunkIndex"].(float64); ok {
			rec.ChunkIndex = int(v)
		}
		if v, ok := props["text"].(string); ok {
			rec.Text = v
		}
		if additional, ok := props["_additional"].(map[string]interface{}); ok {
			if id, ok := additional["id"].(string); ok {
				rec.ID = id
			}
			if dist, ok := additional["distance"].(float64); ok {
				// Weaviate reports cosine distance; similarity = 1 - distance.
				rec.Score = 1 - float32(dist)
			}
		}

		if rec.Score < s.minScore {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// DeleteByDoc removes every record for the document. The provider supports a
// filtered batch delete directly, but one call removes at most its per-call
// object limit, so the delete repeats until the filter matches nothing.
func (s *Store) DeleteByDoc(ctx context.Context, docID string) error {
	where := filters.Where().
		WithPath([]string{"docId"}).
		WithOperator(filters.Equal).
		WithValueString(docID)

	for {
		resp, err := s.client.Batch().ObjectsBatchDeleter().
			WithClassName(vector.ClassName).
			WithOutput("minimal").
			WithWhere(where).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("vector delete failed: %w", err)
		}
		if resp == nil || resp.Results == nil || resp.Results.Matches == 0 {
			return nil
		}
		// Fewer matches than the per-call limit means this pass covered
		// the remainder.
		if resp.Results.Matches < resp.Results.Limit {
			return nil
		}
		if resp.Results.Successful == 0 {
			return fmt.Errorf("vector delete stalled: %d objects matched, none deleted", resp.Results.Matches)
		}
	}
}

// Ready reports whether the vector index answers its readiness probe.
func (s *Store) Ready(ctx context.Context) bool {
	ok, err := s.client.Misc().ReadyChecker().Do(ctx)
	return err == nil && ok
}

// EnsureSchema creates the chunk class when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return vector.EnsureSchema(ctx, vector.NewWeaviateClientAdapter(s.client))
}
