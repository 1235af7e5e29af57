package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	weaviate "paperchat/internal/adapter/weaviate"
	"paperchat/internal/middleware"
	"paperchat/internal/text"
)

// runTimeout bounds one full ingestion run end to end.
const runTimeout = 15 * time.Minute

type StatusStore interface {
	SetProcessing(ctx context.Context, docID string, processedPages int, totalPages *int) error
	SetReady(ctx context.Context, docID string, pages int) error
	SetError(ctx context.Context, docID string, message string) error
}

type BlobStore interface {
	Open(docID string) (io.ReadCloser, error)
	Path(docID string) string
}

// PageParser turns a stored PDF into per-page text.
type PageParser interface {
	ParseDocument(ctx context.Context, docID string) ([]text.Page, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, records []weaviate.Record) error
}

// Orchestrator drives parse → chunk → embed → upsert for one document,
// recording progress in the status store. A document is never marked ready
// with a partial index: any failure flips it to error and the run halts.
type Orchestrator struct {
	parser       PageParser
	status       StatusStore
	embedder     Embedder
	vectors      VectorStore
	targetChars  int
	overlapChars int
}

func NewOrchestrator(parser PageParser, status StatusStore, embedder Embedder, vectors VectorStore, targetChars, overlapChars int) *Orchestrator {
	return &Orchestrator{
		parser:       parser,
		status:       status,
		embedder:     embedder,
		vectors:      vectors,
		targetChars:  targetChars,
		overlapChars: overlapChars,
	}
}

// Start launches ingestion on a detached goroutine. The upload request does
// not wait for it; status polling is the only way callers observe progress.
// The caller's context is used only to carry the correlation id across the
// detach; cancellation of the request does not cancel ingestion. Panics
// inside the run are converted to a persisted error status.
func (o *Orchestrator) Start(callerCtx context.Context, docID string) {
	correlationID := middleware.GetCorrelationID(callerCtx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if correlationID != "" {
			ctx = middleware.WithCorrelationID(ctx, correlationID)
		}

		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "ingestion panicked", "doc_id", docID, "panic", r)
				if err := o.status.SetError(ctx, docID, fmt.Sprintf("ingestion panicked: %v", r)); err != nil {
					slog.ErrorContext(ctx, "failed to persist panic status", "doc_id", docID, "error", err)
				}
			}
		}()

		if err := o.Run(ctx, docID); err != nil {
			slog.ErrorContext(ctx, "ingestion failed", "doc_id", docID, "error", err)
		}
	}()
}

// Run executes one ingestion pass. Every failure is persisted as an error
// status before returning; the returned error exists for logging only.
func (o *Orchestrator) Run(ctx context.Context, docID string) error {
	slog.InfoContext(ctx, "ingestion started", "doc_id", docID)

	pages, err := o.parser.ParseDocument(ctx, docID)
	if err != nil {
		return o.fail(ctx, docID, fmt.Errorf("parse: %w", err))
	}

	total := len(pages)
	if err := o.status.SetProcessing(ctx, docID, 0, &total); err != nil {
		return o.fail(ctx, docID, fmt.Errorf("record page count: %w", err))
	}

	chunks := text.ChunkPages(docID, pages, o.targetChars, o.overlapChars)
	if len(chunks) == 0 {
		return o.fail(ctx, docID, fmt.Errorf("document produced no indexable text"))
	}
	slog.InfoContext(ctx, "document chunked", "doc_id", docID, "pages", total, "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return o.fail(ctx, docID, fmt.Errorf("embed: %w", err))
	}
	if len(vectors) != len(chunks) {
		return o.fail(ctx, docID, fmt.Errorf("embed returned %d vectors for %d chunks", len(vectors), len(chunks)))
	}

	records := make([]weaviate.Record, len(chunks))
	for i, c := range chunks {
		records[i] = weaviate.Record{
			ID:         c.ID,
			DocID:      c.DocID,
			PageStart:  c.PageStart,
			PageEnd:    c.PageEnd,
			ChunkIndex: c.Index,
			Text:       c.Text,
			Vector:     vectors[i],
		}
	}
	if err := o.vectors.Upsert(ctx, records); err != nil {
		return o.fail(ctx, docID, fmt.Errorf("index: %w", err))
	}

	if err := o.status.SetReady(ctx, docID, total); err != nil {
		return o.fail(ctx, docID, fmt.Errorf("mark ready: %w", err))
	}

	slog.InfoContext(ctx, "ingestion complete", "doc_id", docID, "pages", total, "chunks", len(chunks))
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, docID string, cause error) error {
	if err := o.status.SetError(ctx, docID, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to persist error status", "doc_id", docID, "error", err)
	}
	return cause
}
