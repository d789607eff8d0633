// Package local_test tests the local filesystem blob store.
package local_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belingud/mao-nav/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDirectory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "public", "sitelogo")
		store, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.Equal(t, dir, store.Location())
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())

		// A second store on the same directory must not fail.
		_, err = local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})

	t.Run("BaseDirNotWritable", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		tempDir := t.TempDir()
		// #nosec G302 -- directory permissions adjusted intentionally for test coverage.
		require.NoError(t, os.Chmod(tempDir, 0o500))
		t.Cleanup(func() {
			// #nosec G302 -- reverting permissions to allow cleanup in the test environment.
			_ = os.Chmod(tempDir, 0o700)
		})

		_, err := local.New(local.Config{BaseDir: tempDir})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir, Extension: ".ico"})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("ValidPut", func(t *testing.T) {
		data := []byte("icon payload")
		uri, err := store.PutObject(ctx, "example.com.ico", "image/x-icon", bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, "file://"+filepath.Join(tempDir, "example.com.ico"), uri)

		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(tempDir, "example.com.ico"))
		require.NoError(t, err)
		assert.Equal(t, data, readData)

		exists, err := store.ObjectExists(ctx, "example.com.ico")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Overwrite", func(t *testing.T) {
		_, err := store.PutObject(ctx, "over.ico", "image/x-icon", bytes.NewReader([]byte("one")))
		require.NoError(t, err)
		_, err = store.PutObject(ctx, "over.ico", "image/x-icon", bytes.NewReader([]byte("two")))
		require.NoError(t, err)
		// #nosec G304 -- test reads from the controlled temp directory.
		readData, err := os.ReadFile(filepath.Join(tempDir, "over.ico"))
		require.NoError(t, err)
		assert.Equal(t, "two", string(readData))
	})

	t.Run("EmptyPath", func(t *testing.T) {
		_, err := store.PutObject(ctx, "", "image/x-icon", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
	})

	t.Run("Traversal", func(t *testing.T) {
		_, err := store.PutObject(ctx, "../escape.ico", "image/x-icon", bytes.NewReader([]byte("data")))
		assert.Error(t, err)
		_, err = store.ObjectExists(ctx, "../escape.ico")
		assert.Error(t, err)
	})

	t.Run("FailedReaderLeavesNothingBehind", func(t *testing.T) {
		_, err := store.PutObject(ctx, "broken.ico", "image/x-icon", failingReader{})
		require.Error(t, err)
		exists, err := store.ObjectExists(ctx, "broken.ico")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestListObjects(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir, Extension: ".ico"})
	require.NoError(t, err)
	ctx := context.Background()

	for name, body := range map[string]string{"b.com.ico": "bb", "a.com.ico": "a", "notes.txt": "skip"} {
		_, err := store.PutObject(ctx, name, "", bytes.NewReader([]byte(body)))
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".hidden.ico"), []byte("h"), 0o600))

	objects, err := store.ListObjects(ctx)
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a.com.ico", objects[0].Name)
	assert.Equal(t, int64(1), objects[0].Size)
	assert.Equal(t, "b.com.ico", objects[1].Name)
	assert.Equal(t, int64(2), objects[1].Size)
}

func TestObjectExistsMissing(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	exists, err := store.ObjectExists(context.Background(), "missing.ico")
	require.NoError(t, err)
	assert.False(t, exists)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestRelativeBaseDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	store, err := local.New(local.Config{BaseDir: ".", Extension: ".ico"})
	require.NoError(t, err)
	ctx := context.Background()

	exists, err := store.ObjectExists(ctx, "example.com.ico")
	require.NoError(t, err)
	assert.False(t, exists)

	uri, err := store.PutObject(ctx, "example.com.ico", "image/x-icon", bytes.NewReader([]byte("icon")))
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.Join(dir, "example.com.ico"), uri)
	assert.Equal(t, dir, store.Location())

	exists, err = store.ObjectExists(ctx, "example.com.ico")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = store.PutObject(ctx, "../escape.ico", "image/x-icon", bytes.NewReader([]byte("icon")))
	assert.Error(t, err)
}
