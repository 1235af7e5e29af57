package ingest

import (
	"context"
	"fmt"
	"io"

	"paperchat/internal/adapter/llamaparse"
	"paperchat/internal/adapter/localpdf"
	"paperchat/internal/text"
)

// APIParser reads the stored PDF and sends it to the external parse service.
type APIParser struct {
	client *llamaparse.Client
	blobs  BlobStore
}

func NewAPIParser(client *llamaparse.Client, blobs BlobStore) *APIParser {
	return &APIParser{client: client, blobs: blobs}
}

func (p *APIParser) ParseDocument(ctx context.Context, docID string) ([]text.Page, error) {
	rc, err := p.blobs.Open(docID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	pdf, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return p.client.Parse(ctx, docID+".pdf", pdf)
}

// LocalParser extracts text directly from the stored file. Used when no
// parse API key is configured.
type LocalParser struct {
	parser *localpdf.Parser
	blobs  BlobStore
}

func NewLocalParser(parser *localpdf.Parser, blobs BlobStore) *LocalParser {
	return &LocalParser{parser: parser, blobs: blobs}
}

func (p *LocalParser) ParseDocument(ctx context.Context, docID string) ([]text.Page, error) {
	return p.parser.Parse(p.blobs.Path(docID))
}
