// Package memory stores icons in-memory for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/belingud/mao-nav/internal/favicon"
)

// BlobStore stores icons in-memory and returns pseudo URIs.
type BlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data: make(map[string][]byte),
	}
}

// ObjectExists reports whether path has been stored.
func (s *BlobStore) ObjectExists(_ context.Context, path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[path]
	return ok, nil
}

// PutObject persists the content and returns a URI.
func (s *BlobStore) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	byteData, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("failed to read data from reader: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = byteData
	return uri(path), nil
}

// ListObjects returns the stored icons sorted by name.
func (s *BlobStore) ListObjects(_ context.Context) ([]favicon.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects := make([]favicon.ObjectInfo, 0, len(s.data))
	for path, b := range s.data {
		objects = append(objects, favicon.ObjectInfo{Name: path, Size: int64(len(b)), URI: uri(path)})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Location implements favicon.Sink.
func (s *BlobStore) Location() string {
	return "memory://"
}

// Get returns a copy of the stored bytes.
func (s *BlobStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

func uri(path string) string {
	return fmt.Sprintf("memory://%s", path)
}
