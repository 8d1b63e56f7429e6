// Package storage loads vendor documents and archives final reports, on local disk or S3.
package storage

import (
	"context"
	"errors"
	"io/fs"
	"sync"
)

// TestDocumentStore is a simple in-memory implementation for testing
type TestDocumentStore struct {
	files map[string][]byte
}

func NewTestDocumentStore(files map[string][]byte) *TestDocumentStore {
	return &TestDocumentStore{files: files}
}

func (t *TestDocumentStore) Load(_ context.Context, filename string) ([]byte, error) {
	data, ok := t.files[filename]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: filename, Err: fs.ErrNotExist}
	}
	return data, nil
}

// TestReportStore keeps saved reports in memory.
type TestReportStore struct {
	mu      sync.Mutex
	reports map[string][]byte
	err     error
}

func NewTestReportStore() *TestReportStore {
	return &TestReportStore{reports: map[string][]byte{}}
}

func NewTestReportStoreWithError() *TestReportStore {
	return &TestReportStore{reports: map[string][]byte{}, err: errors.New("archive unavailable")}
}

func (t *TestReportStore) Save(_ context.Context, runID string, data []byte) error {
	if t.err != nil {
		return t.err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reports[runID] = data
	return nil
}

func (t *TestReportStore) Get(runID string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, ok := t.reports[runID]
	return data, ok
}
