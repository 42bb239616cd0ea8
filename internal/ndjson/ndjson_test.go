package ndjson

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	N    int    `json:"n"`
	Kind string `json:"kind"`
}

func TestWriterAndPaging(t *testing.T) {
	path := RecordsPath(t.TempDir())

	w, err := NewWriter(path)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		kind := "attempt"
		if i%2 == 0 {
			kind = "result"
		}
		require.NoError(t, w.Write(row{N: i, Kind: kind}))
	}
	require.NoError(t, w.Close())

	page, err := ReadFromOffset[row](path, 0, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 1, page.Items[0].N)
	assert.Equal(t, 2, page.Items[1].N)

	page, err = ReadFromOffset[row](path, page.NextCursor, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, 3, page.Items[0].N)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), page.NextCursor)
}

func TestReadFromOffsetFiltered(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.ndjson")
	w, err := NewWriter(path)
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		kind := "attempt"
		if i%2 == 0 {
			kind = "result"
		}
		require.NoError(t, w.Write(row{N: i, Kind: kind}))
	}
	require.NoError(t, w.Close())

	page, err := ReadFromOffsetFiltered[row](path, 0, 10, func(r row) bool { return r.Kind == "result" })
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Items[0].N)
	assert.Equal(t, 4, page.Items[1].N)
}

func TestReadFromOffset_MidLineCursorSkipsPartialRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\n{\"n\":2}\n"), 0o644))

	page, err := ReadFromOffset[row](path, 3, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Items[0].N)
}

func TestReadFromOffset_IgnoresUnterminatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.ndjson")
	require.NoError(t, os.WriteFile(path, []byte("{\"n\":1}\n{\"n\":"), 0o644))

	page, err := ReadFromOffset[row](path, 0, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(8), page.NextCursor)
}

func TestReadFromOffset_MissingFile(t *testing.T) {
	page, err := ReadFromOffset[row](filepath.Join(t.TempDir(), "nope.ndjson"), 42, 10)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(42), page.NextCursor)
}

func TestWriter_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.ndjson")
	w, err := NewWriter(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			assert.NoError(t, w.Write(row{N: n}))
		}(i)
	}
	wg.Wait()
	require.NoError(t, w.Close())

	page, err := ReadFromOffset[row](path, 0, 100)
	require.NoError(t, err)
	assert.Len(t, page.Items, 50)
}

func TestWriter_ClosedWriteFails(t *testing.T) {
	w, err := NewWriter(filepath.Join(t.TempDir(), "x.ndjson"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Write(row{N: 1}), os.ErrClosed)
	assert.NoError(t, w.Close())
}
