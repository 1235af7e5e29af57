package document

import (
	"context"
	"database/sql"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Create(ctx context.Context, doc *Document) error {
	query := `INSERT INTO pdf_documents (doc_id, original_name, file_size, blob_path, status, processed_pages)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING uploaded_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		doc.DocID, doc.OriginalName, doc.FileSize, doc.BlobPath, doc.Status,
	).Scan(&doc.UploadedAt, &doc.UpdatedAt)
}

func (r *PostgresRepo) Get(ctx context.Context, docID string) (*Document, error) {
	doc := &Document{}
	query := `SELECT doc_id, original_name, file_size, blob_path, status, error, processed_pages, total_pages, uploaded_at, updated_at
		FROM pdf_documents WHERE doc_id = $1`
	err := r.db.QueryRowContext(ctx, query, docID).Scan(
		&doc.DocID, &doc.OriginalName, &doc.FileSize, &doc.BlobPath, &doc.Status,
		&doc.Error, &doc.ProcessedPages, &doc.TotalPages, &doc.UploadedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Document, error) {
	query := `SELECT doc_id, original_name, file_size, blob_path, status, error, processed_pages, total_pages, uploaded_at, updated_at
		FROM pdf_documents ORDER BY uploaded_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(
			&doc.DocID, &doc.OriginalName, &doc.FileSize, &doc.BlobPath, &doc.Status,
			&doc.Error, &doc.ProcessedPages, &doc.TotalPages, &doc.UploadedAt, &doc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, docID string) error {
	query := `DELETE FROM pdf_documents WHERE doc_id = $1`
	_, err := r.db.ExecContext(ctx, query, docID)
	return err
}

func (r *PostgresRepo) SetProcessing(ctx context.Context, docID string, processedPages int, totalPages *int) error {
	query := `UPDATE pdf_documents SET status = 'processing', processed_pages = $1, total_pages = $2, updated_at = NOW()
		WHERE doc_id = $3`
	_, err := r.db.ExecContext(ctx, query, processedPages, totalPages, docID)
	return err
}

// SetReady marks ingestion complete. The status guard keeps terminal states
// terminal: only a processing document can become ready.
func (r *PostgresRepo) SetReady(ctx context.Context, docID string, pages int) error {
	query := `UPDATE pdf_documents SET status = 'ready', processed_pages = $1, total_pages = $1, error = NULL, updated_at = NOW()
		WHERE doc_id = $2 AND status = 'processing'`
	_, err := r.db.ExecContext(ctx, query, pages, docID)
	return err
}

func (r *PostgresRepo) SetError(ctx context.Context, docID string, message string) error {
	query := `UPDATE pdf_documents SET status = 'error', error = $1, updated_at = NOW()
		WHERE doc_id = $2 AND status = 'processing'`
	_, err := r.db.ExecContext(ctx, query, message, docID)
	return err
}
