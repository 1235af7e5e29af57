package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store keeps uploaded PDFs on local disk, one file per document id.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(docID string) string {
	// docID is a server-generated UUID; Base strips any path tricks anyway.
	return filepath.Join(s.dir, filepath.Base(docID)+".pdf")
}

// Save streams the upload to disk and returns the stored path.
func (s *Store) Save(docID string, r io.Reader) (string, int64, error) {
	path := s.path(docID)
	dst, err := os.Create(path) // #nosec G304 -- path built from server-generated UUID
	if err != nil {
		return "", 0, fmt.Errorf("failed to create blob file: %w", err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, r)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write blob file: %w", err)
	}
	return path, size, nil
}

// Open returns a reader over the stored PDF. The caller closes it.
func (s *Store) Open(docID string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(docID)) // #nosec G304 -- path built from server-generated UUID
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Path returns the on-disk location for a stored document.
func (s *Store) Path(docID string) string {
	return s.path(docID)
}

func (s *Store) Delete(docID string) error {
	if err := os.Remove(s.path(docID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// URL returns the public route serving the stored file.
func (s *Store) URL(docID string) string {
	return "/files/" + docID + ".pdf"
}

// Ready probes the directory with a write-and-remove round trip.
func (s *Store) Ready() bool {
	probe := filepath.Join(s.dir, ".probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false
	}
	return os.Remove(probe) == nil
}
