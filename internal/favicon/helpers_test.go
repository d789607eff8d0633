package favicon

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	ico "github.com/sergeymakinen/go-ico"
	"github.com/stretchr/testify/require"
)

// httpFetcher is a plain net/http Fetcher used to drive httptest servers.
type httpFetcher struct {
	client *http.Client
	mu     sync.Mutex
	urls   []string
}

func newHTTPFetcher() *httpFetcher {
	return &httpFetcher{client: &http.Client{Timeout: 5 * time.Second}}
}

func (f *httpFetcher) Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error) {
	f.mu.Lock()
	f.urls = append(f.urls, request.URL)
	f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, request.URL, nil)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	for k, vs := range request.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResponse{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return FetchResponse{
		URL:        request.URL,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Body:       body,
		Duration:   time.Since(start),
	}, nil
}

func (f *httpFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// memSink is an in-memory Sink.
type memSink struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putErr   error
	existErr error
}

func newMemSink() *memSink {
	return &memSink{objects: map[string][]byte{}}
}

func (s *memSink) ObjectExists(_ context.Context, path string) (bool, error) {
	if s.existErr != nil {
		return false, s.existErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok, nil
}

func (s *memSink) PutObject(_ context.Context, path, _ string, data io.Reader) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = b
	return "mem://" + path, nil
}

func (s *memSink) ListObjects(_ context.Context) ([]ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ObjectInfo, 0, len(s.objects))
	for name, b := range s.objects {
		out = append(out, ObjectInfo{Name: name, Size: int64(len(b)), URI: "mem://" + name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memSink) Location() string { return "mem://" }

func (s *memSink) get(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[path]
	return b, ok
}

// noiseImage fills an image with seeded random pixels so encoders cannot
// compress it below the minimum icon size.
func noiseImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(int64(w*1000 + h)))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, noiseImage(w, h)))
	return buf.Bytes()
}

func icoBytes(t *testing.T, size int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, ico.Encode(&buf, noiseImage(size, size)))
	return buf.Bytes()
}

func serveBytes(w http.ResponseWriter, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
