package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paperchat/internal/apperr"
)

const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// Document is the persisted lifecycle record for one uploaded PDF. A document
// is immutable after creation except for status and progress fields.
type Document struct {
	DocID          string    `json:"docId"`
	OriginalName   string    `json:"fileName"`
	FileSize       int64     `json:"fileSize"`
	BlobPath       string    `json:"-"`
	Status         string    `json:"status"`
	Error          *string   `json:"error,omitempty"`
	ProcessedPages int       `json:"-"`
	TotalPages     *int      `json:"-"`
	UploadedAt     time.Time `json:"uploadedAt"`
	UpdatedAt      time.Time `json:"-"`
}

// Progress is the page-counter pair reported by status and list endpoints.
// TotalPages stays null until the parse step has counted the document.
type Progress struct {
	ProcessedPages int  `json:"processedPages"`
	TotalPages     *int `json:"totalPages"`
}

type Repo interface {
	Create(ctx context.Context, doc *Document) error
	Get(ctx context.Context, docID string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, docID string) error
	SetProcessing(ctx context.Context, docID string, processedPages int, totalPages *int) error
	SetReady(ctx context.Context, docID string, pages int) error
	SetError(ctx context.Context, docID string, message string) error
}

type BlobStore interface {
	Save(docID string, r io.Reader) (string, int64, error)
	Delete(docID string) error
	URL(docID string) string
}

type VectorStore interface {
	DeleteByDoc(ctx context.Context, docID string) error
}

// Ingestor starts detached ingestion for a stored document. The context is
// used for correlation only; ingestion outlives the request.
type Ingestor interface {
	Start(ctx context.Context, docID string)
}

type Service struct {
	repo    Repo
	blobs   BlobStore
	vectors VectorStore
	ingest  Ingestor
}

func NewService(repo Repo, blobs BlobStore, vectors VectorStore, ingest Ingestor) *Service {
	return &Service{repo: repo, blobs: blobs, vectors: vectors, ingest: ingest}
}

// Upload stores the PDF, creates the processing record, and kicks off
// ingestion without waiting for it.
func (s *Service) Upload(ctx context.Context, originalName string, file io.Reader) (*Document, error) {
	docID := uuid.New().String()

	blobPath, size, err := s.blobs.Save(docID, file)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	doc := &Document{
		DocID:        docID,
		OriginalName: originalName,
		FileSize:     size,
		BlobPath:     blobPath,
		Status:       StatusProcessing,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if removeErr := s.blobs.Delete(docID); removeErr != nil {
			slog.WarnContext(ctx, "failed to clean up blob after create failure", "doc_id", docID, "error", removeErr)
		}
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	s.ingest.Start(ctx, docID)
	return doc, nil
}

func (s *Service) Get(ctx context.Context, docID string) (*Document, error) {
	doc, err := s.repo.Get(ctx, docID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "document not found")
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context) ([]Document, error) {
	return s.repo.List(ctx)
}

// FileURL resolves the public route for a stored document's PDF.
func (s *Service) FileURL(ctx context.Context, docID string) (string, error) {
	if _, err := s.Get(ctx, docID); err != nil {
		return "", err
	}
	return s.blobs.URL(docID), nil
}

// Delete removes the blob, the vector records, and the relational row. All
// three deletions are attempted; any failure propagates after the rest ran.
func (s *Service) Delete(ctx context.Context, docID string) error {
	if _, err := s.Get(ctx, docID); err != nil {
		return err
	}

	var errs []error
	if err := s.blobs.Delete(docID); err != nil {
		errs = append(errs, fmt.Errorf("blob delete: %w", err))
	}
	if err := s.vectors.DeleteByDoc(ctx, docID); err != nil {
		errs = append(errs, fmt.Errorf("vector delete: %w", err))
	}
	if err := s.repo.Delete(ctx, docID); err != nil {
		errs = append(errs, fmt.Errorf("record delete: %w", err))
	}
	return errors.Join(errs...)
}
