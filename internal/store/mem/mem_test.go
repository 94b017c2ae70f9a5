package mem

import (
	"context"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flatfs/flatfs/pkg/errors"
)

func TestRetrieveMetadata(t *testing.T) {
	s := New()
	ctx := context.Background()

	meta, err := s.RetrieveMetadata(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, meta)

	s.Put("data/file", []byte("hello"))
	meta, err = s.RetrieveMetadata(ctx, "data/file")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, int64(5), meta.Size)
}

func TestRetrieveRange(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put("k", []byte("0123456789"))

	body, err := s.Retrieve(ctx, "k", 2, 3)
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "234", string(data))

	body, err = s.Retrieve(ctx, "k", 7, 0)
	require.NoError(t, err)
	data, err = io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "789", string(data))

	_, err = s.Retrieve(ctx, "missing", 0, 0)
	assert.True(t, errors.IsNotFound(err))
}

func TestListDelimiterFolding(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Put("dir/", nil)
	s.Put("dir/a.txt", []byte("a"))
	s.Put("dir/sub/deep.txt", []byte("d"))
	s.Put("dir/sub/deeper/x.txt", []byte("x"))
	s.Put("other/file", []byte("o"))

	listing, err := s.List(ctx, "dir", 0, "", false)
	require.NoError(t, err)

	var keys []string
	for _, f := range listing.Files {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"dir/", "dir/a.txt"}, keys)
	assert.Equal(t, []string{"dir/sub/"}, listing.CommonPrefixes)
	assert.Empty(t, listing.PriorLastKey)
}

func TestListRecursive(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.Put("dir/a", []byte("a"))
	s.Put("dir/sub/b", []byte("b"))
	s.Put("dirx/c", []byte("c"))

	listing, err := s.List(ctx, "dir", 0, "", true)
	require.NoError(t, err)
	require.Len(t, listing.Files, 2)
	assert.Equal(t, "dir/a", listing.Files[0].Key)
	assert.Equal(t, "dir/sub/b", listing.Files[1].Key)
}

func TestListPagination(t *testing.T) {
	s := New()
	ctx := context.Background()

	want := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("data/%02d", i)
		s.Put(key, []byte("x"))
		want = append(want, key)
	}

	// Every key appears exactly once across pages, and the cursor is
	// empty exactly on the final page.
	var got []string
	priorLastKey := ""
	pages := 0
	for {
		listing, err := s.List(ctx, "data", 3, priorLastKey, true)
		require.NoError(t, err)
		pages++
		for _, f := range listing.Files {
			got = append(got, f.Key)
		}
		if listing.PriorLastKey == "" {
			break
		}
		priorLastKey = listing.PriorLastKey
	}

	assert.Equal(t, want, got)
	assert.Equal(t, 4, pages)
}

func TestListExactPageBoundary(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put("a", []byte("1"))
	s.Put("b", []byte("2"))

	listing, err := s.List(ctx, "", 2, "", true)
	require.NoError(t, err)
	assert.Len(t, listing.Files, 2)
	assert.Empty(t, listing.PriorLastKey, "cursor must be empty when no keys remain")
}

func TestCopyAndDelete(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put("src", []byte("payload"))

	require.NoError(t, s.Copy(ctx, "src", "dst"))
	assert.Equal(t, []byte("payload"), s.Get("dst"))

	assert.True(t, errors.IsNotFound(s.Copy(ctx, "missing", "dst")))

	require.NoError(t, s.Delete(ctx, "src"))
	assert.True(t, errors.IsNotFound(s.Delete(ctx, "src")))
}

func TestStoreFilesAppend(t *testing.T) {
	s := New()
	ctx := context.Background()

	dir := t.TempDir()
	one := writeTemp(t, dir, "one")
	two := writeTemp(t, dir, "two")

	require.NoError(t, s.StoreFiles(ctx, "k", []string{one, two}, false))
	assert.Equal(t, []byte("onetwo"), s.Get("k"))

	three := writeTemp(t, dir, "three")
	require.NoError(t, s.StoreFiles(ctx, "k", []string{three}, true))
	assert.Equal(t, []byte("onetwothree"), s.Get("k"))
}

func writeTemp(t *testing.T, dir, content string) string {
	t.Helper()
	f, err := os.CreateTemp(dir, "block-*")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestPurge(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.Put("a/1", []byte("x"))
	s.Put("a/2", []byte("y"))
	s.Put("b/1", []byte("z"))

	require.NoError(t, s.Purge(ctx, "a/"))
	assert.Equal(t, []string{"b/1"}, s.Keys())
}
