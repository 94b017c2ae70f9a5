package fs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatfs/flatfs/internal/config"
	"github.com/flatfs/flatfs/internal/store/mem"
	"github.com/flatfs/flatfs/pkg/errors"
)

// capturingStore records the block files handed to StoreFiles before
// delegating to the in-memory store.
type capturingStore struct {
	*mem.Store
	blocks   [][]byte
	appendTo bool
	calls    int
}

func (c *capturingStore) StoreFiles(ctx context.Context, key string, localFiles []string, appendTo bool) error {
	c.calls++
	c.appendTo = appendTo
	c.blocks = nil
	for _, localFile := range localFiles {
		data, err := os.ReadFile(localFile)
		if err != nil {
			return err
		}
		c.blocks = append(c.blocks, data)
	}
	return c.Store.StoreFiles(ctx, key, localFiles, appendTo)
}

func newCapturingFS(t *testing.T, blockSize int64) (*FileSystem, *capturingStore) {
	t.Helper()

	cs := &capturingStore{Store: mem.New()}
	cfg := config.NewDefault()
	cfg.Buffer.BlockSize = blockSize
	cfg.Buffer.TempDir = t.TempDir()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f, err := New(cs, cfg, logger, nil)
	require.NoError(t, err)
	return f, cs
}

func TestWriterSplitsAtBlockBoundaries(t *testing.T) {
	f, cs := newCapturingFS(t, 2)
	ctx := context.Background()

	w, err := f.Create(ctx, "/hello.txt", true)
	require.NoError(t, err)
	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, w.Close())

	require.Len(t, cs.blocks, 3)
	assert.Equal(t, "he", string(cs.blocks[0]))
	assert.Equal(t, "ll", string(cs.blocks[1]))
	assert.Equal(t, "o", string(cs.blocks[2]))
	assert.False(t, cs.appendTo)

	assert.Equal(t, "hello", readFile(t, f, "/hello.txt"))
}

func TestWriterSplitsAcrossWrites(t *testing.T) {
	f, cs := newCapturingFS(t, 2)
	ctx := context.Background()

	w, err := f.Create(ctx, "/x", true)
	require.NoError(t, err)
	for _, chunk := range []string{"hel", "lo"} {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	require.Len(t, cs.blocks, 3)
	assert.Equal(t, "he", string(cs.blocks[0]))
	assert.Equal(t, "ll", string(cs.blocks[1]))
	assert.Equal(t, "o", string(cs.blocks[2]))
}

func TestWriterEmptyFile(t *testing.T) {
	f, cs := newCapturingFS(t, 4)
	ctx := context.Background()

	w, err := f.Create(ctx, "/empty", true)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 1, cs.calls)
	status, err := f.GetFileStatus(ctx, "/empty")
	require.NoError(t, err)
	assert.Equal(t, int64(0), status.Size)
}

func TestWriterAfterClose(t *testing.T) {
	f, _ := newCapturingFS(t, 4)

	w, err := f.Create(context.Background(), "/f", true)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.True(t, errors.IsKind(err, errors.KindStreamClosed))
}

func TestWriterCloseIdempotent(t *testing.T) {
	f, cs := newCapturingFS(t, 4)

	w, err := f.Create(context.Background(), "/f", true)
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.Equal(t, 1, cs.calls)
}

func TestWriterAppendFlag(t *testing.T) {
	f, cs := newCapturingFS(t, 4)
	ctx := context.Background()

	writeFile(t, f, "/log", "abc")

	w, err := f.Append(ctx, "/log")
	require.NoError(t, err)
	_, err = w.Write([]byte("def"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.True(t, cs.appendTo)
	assert.Equal(t, "abcdef", readFile(t, f, "/log"))
}

// failingStore rejects every upload so cleanup-after-failure paths can be
// exercised.
type failingStore struct {
	*mem.Store
}

func (f *failingStore) StoreFiles(ctx context.Context, key string, localFiles []string, appendTo bool) error {
	return errors.New(errors.KindStorageFailure, "upload rejected").WithKey(key)
}

func TestWriterUploadFailurePropagatesAfterCleanup(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefault()
	cfg.Buffer.BlockSize = 2
	cfg.Buffer.TempDir = dir

	f, err := New(&failingStore{Store: mem.New()}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)

	w, err := f.Create(context.Background(), "/doomed", true)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)

	err = w.Close()
	assert.True(t, errors.IsKind(err, errors.KindStorageFailure))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "block files must be removed even when the upload fails")
}

func TestWriterCleanupFailureDoesNotMaskUploadError(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewDefault()
	cfg.Buffer.BlockSize = 2
	cfg.Buffer.TempDir = dir

	f, err := New(&failingStore{Store: mem.New()}, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)

	w, err := f.Create(context.Background(), "/doomed", true)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)

	// A sealed block file goes missing before close, so its removal fails.
	require.NotEmpty(t, w.blocks)
	require.NoError(t, os.Remove(w.blocks[0]))

	err = w.Close()
	assert.True(t, errors.IsKind(err, errors.KindStorageFailure),
		"the upload failure must be returned, not the cleanup failure")
}

func TestWriterCleansBlockFiles(t *testing.T) {
	dir := t.TempDir()
	cs := &capturingStore{Store: mem.New()}
	cfg := config.NewDefault()
	cfg.Buffer.BlockSize = 2
	cfg.Buffer.TempDir = dir

	f, err := New(cs, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)

	w, err := f.Create(context.Background(), "/f", true)
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanupOrphanBlocks(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "flatfs-block-123")
	require.NoError(t, os.WriteFile(orphan, []byte("stale"), 0o600))
	unrelated := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o600))

	require.NoError(t, CleanupOrphanBlocks(dir, slog.New(slog.NewTextHandler(io.Discard, nil))))

	_, err := os.Stat(orphan)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(unrelated)
	assert.NoError(t, err)
}
