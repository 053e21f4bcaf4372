package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tickercal/internal/common"
)

func newTestFileStore(t *testing.T, versions int) *FileStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "server_tickers.json")
	fs, err := NewFileStore(common.NewSilentLogger(), &common.FileConfig{Path: path, Versions: versions})
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return fs
}

func TestFileStore_CreatesParentDirectory(t *testing.T) {
	fs := newTestFileStore(t, 0)

	info, err := os.Stat(filepath.Dir(fs.Path()))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFileStore_EmptyPathRejected(t *testing.T) {
	_, err := NewFileStore(common.NewSilentLogger(), &common.FileConfig{})
	assert.Error(t, err)
}

func TestFileStore_ReadMissingIsAbsent(t *testing.T) {
	fs := newTestFileStore(t, 0)

	data, ok, err := fs.ReadAll(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
}

func TestFileStore_WriteThenRead(t *testing.T) {
	fs := newTestFileStore(t, 0)
	ctx := context.Background()

	require.NoError(t, fs.WriteAll(ctx, []byte(`{"1": ["ABC"]}`)))

	data, ok, err := fs.ReadAll(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"1": ["ABC"]}`, string(data))
}

func TestFileStore_NoTempFilesLeftBehind(t *testing.T) {
	fs := newTestFileStore(t, 0)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, fs.WriteAll(ctx, []byte(fmt.Sprintf(`{"n": ["T%d"]}`, i))))
	}

	entries, err := os.ReadDir(filepath.Dir(fs.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestFileStore_VersionRotation(t *testing.T) {
	fs := newTestFileStore(t, 2)
	ctx := context.Background()

	for _, doc := range []string{"one", "two", "three", "four"} {
		require.NoError(t, fs.WriteAll(ctx, []byte(doc)))
	}

	read := func(p string) string {
		b, err := os.ReadFile(p)
		require.NoError(t, err)
		return string(b)
	}

	assert.Equal(t, "four", read(fs.Path()))
	assert.Equal(t, "three", read(fs.Path()+".v1"))
	assert.Equal(t, "two", read(fs.Path()+".v2"))
	_, err := os.Stat(fs.Path() + ".v3")
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_WriteFailsWhenDirectoryGone(t *testing.T) {
	fs := newTestFileStore(t, 0)
	require.NoError(t, os.RemoveAll(filepath.Dir(fs.Path())))

	err := fs.WriteAll(context.Background(), []byte("{}"))
	assert.Error(t, err)
}

// Readers racing a writer must only ever see complete documents.
func TestFileStore_ConcurrentReadersSeeWholeDocuments(t *testing.T) {
	fs := newTestFileStore(t, 0)
	ctx := context.Background()

	docs := []string{
		`{"1": ["` + strings.Repeat("A", 4096) + `"]}`,
		`{"1": ["` + strings.Repeat("B", 8192) + `"]}`,
	}
	require.NoError(t, fs.WriteAll(ctx, []byte(docs[0])))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = fs.WriteAll(ctx, []byte(docs[i%2]))
		}
	}()

	for i := 0; i < 200; i++ {
		data, ok, err := fs.ReadAll(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		got := string(data)
		assert.True(t, got == docs[0] || got == docs[1], "partial document observed (%d bytes)", len(got))
	}
	wg.Wait()
}

func TestNewRegistryStore_UnknownBackend(t *testing.T) {
	_, err := NewRegistryStore(common.NewSilentLogger(), &common.StorageConfig{Backend: "gcs"})
	assert.Error(t, err)
}

func TestNewRegistryStore_DefaultsToFile(t *testing.T) {
	cfg := &common.StorageConfig{File: common.FileConfig{Path: filepath.Join(t.TempDir(), "r.json")}}
	store, err := NewRegistryStore(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	_, ok := store.(*FileStore)
	assert.True(t, ok)
}
