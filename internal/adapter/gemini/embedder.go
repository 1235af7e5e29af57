package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"paperchat/internal/retry"
)

var embedRetry = retry.Options{
	MaxAttempts:  3,
	InitialDelay: 1 * time.Second,
	MaxDelay:     10 * time.Second,
	Multiplier:   2,
}

// embedBatchSize matches the provider's per-call request limit; larger
// batches are rejected outright.
const embedBatchSize = 100

type Embedder struct {
	client *genai.Client
	model  string
}

func NewEmbedder(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Embedder, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: model}, nil
}

// EmbedBatch embeds texts in provider-sized sub-batches and returns vectors
// in input order. Transient provider failures retry the failing sub-batch;
// each sub-batch is resubmitted whole, never partially.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	slog.DebugContext(ctx, "embedding batch", "model", e.model, "count", len(texts))

	em := e.client.EmbeddingModel(e.model)
	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch = batch.AddContent(genai.Text(t))
		}

		res, err := retry.Do(ctx, func(ctx context.Context) (*genai.BatchEmbedContentsResponse, error) {
			return em.BatchEmbedContents(ctx, batch)
		}, embedRetry)
		if err != nil {
			slog.ErrorContext(ctx, "embedding batch failed", "error", err)
			return nil, err
		}

		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding count mismatch: sent %d, got %d", end-start, len(res.Embeddings))
		}
		for i, emb := range res.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("embedding %d missing from response", start+i)
			}
			vectors = append(vectors, emb.Values)
		}
	}
	return vectors, nil
}

// Embed embeds a single text, typically a user question.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
