package artifact

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	info, err := Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", info.Hash)
}

func TestHashIfExists_Missing(t *testing.T) {
	hash, err := HashIfExists(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestRequireNonEmpty(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.csv")
	full := filepath.Join(dir, "full.csv")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	require.NoError(t, os.WriteFile(full, []byte("x"), 0644))

	tests := []struct {
		name      string
		path      string
		wantEmpty bool
	}{
		{"missing", filepath.Join(dir, "missing.csv"), true},
		{"zero bytes", empty, true},
		{"has content", full, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireNonEmpty(tt.path)
			var emptyErr *EmptyFileError
			assert.Equal(t, tt.wantEmpty, errors.As(err, &emptyErr))
			assert.Equal(t, !tt.wantEmpty, NonEmpty(tt.path))
			if tt.wantEmpty {
				assert.Contains(t, err.Error(), tt.path)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	err := WriteFile(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "[]\n")
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	failing := WriteFile(path, func(w io.Writer) error { return errors.New("boom") })
	require.Error(t, failing)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data), "failed write must not clobber the file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	l, err := NewLayout(dir)
	require.NoError(t, err)

	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(dir, "amateur-callsigns.csv"), l.RawCSV())
	assert.Equal(t, filepath.Join(dir, "metadata.json"), l.ProcessingMeta())
	assert.Len(t, l.Artifacts(), 4)

	for got, name := range map[string]string{
		l.SortedCSV():    "amateur-callsigns-sorted.csv",
		l.JSON():         "amateur-callsigns.json",
		l.SortedJSON():   "amateur-callsigns-sorted.json",
		l.DownloadMeta(): "download-metadata.json",
		l.PageHTML():     "ofcom-page.html",
	} {
		assert.Equal(t, filepath.Join(dir, name), got)
	}
}
