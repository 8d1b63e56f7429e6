package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileDocumentStore reads vendor documents from a local directory.
type FileDocumentStore struct {
	Dir string
}

func NewFileDocumentStore(dir string) *FileDocumentStore {
	return &FileDocumentStore{Dir: dir}
}

func (s *FileDocumentStore) Load(ctx context.Context, filename string) ([]byte, error) {
	if !filepath.IsLocal(filename) {
		return nil, fmt.Errorf("document %q escapes the documents directory", filename)
	}
	return os.ReadFile(filepath.Join(s.Dir, filename))
}

// FileReportStore writes each report to <dir>/<run id>.json.
type FileReportStore struct {
	Dir string
}

func NewFileReportStore(dir string) *FileReportStore {
	return &FileReportStore{Dir: dir}
}

func (s *FileReportStore) Save(ctx context.Context, runID string, data []byte) error {
	if !filepath.IsLocal(runID) {
		return fmt.Errorf("invalid run id %q", runID)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}
	return os.WriteFile(filepath.Join(s.Dir, runID+".json"), data, 0o644)
}
