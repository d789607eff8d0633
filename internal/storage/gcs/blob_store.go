// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/belingud/mao-nav/internal/favicon"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// Prefix is prepended to every object name, e.g. "sitelogo/".
	Prefix string
}

// BlobStore writes icons to a configured GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: normalizePrefix(cfg.Prefix),
	}, nil
}

// ObjectExists reports whether the object is already in the bucket.
func (s *BlobStore) ObjectExists(ctx context.Context, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, fmt.Errorf("path is required")
	}
	_, err := s.client.Bucket(s.bucket).Object(s.objectName(path)).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("object attrs: %w", err)
	}
	return true, nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
// GCS only makes an object visible once the writer closes cleanly.
func (s *BlobStore) PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	name := s.objectName(path)
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return s.uri(name), nil
}

// ListObjects returns the icons under the prefix, with the prefix stripped
// from their names.
func (s *BlobStore) ListObjects(ctx context.Context) ([]favicon.ObjectInfo, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})
	var objects []favicon.ObjectInfo
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		objects = append(objects, favicon.ObjectInfo{
			Name: strings.TrimPrefix(attrs.Name, s.prefix),
			Size: attrs.Size,
			URI:  s.uri(attrs.Name),
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Location returns the gs:// URI of the prefix.
func (s *BlobStore) Location() string {
	return s.uri(s.prefix)
}

func (s *BlobStore) objectName(path string) string {
	return s.prefix + strings.TrimPrefix(path, "/")
}

func (s *BlobStore) uri(name string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, name)
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
