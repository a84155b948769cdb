package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	store := NewLocalFileStore("/data")
	id := uuid.MustParse("6f1c1f3e-3a52-4f0e-9d7b-2a4f7c0e9b11")

	assert.Equal(t, "/data/inputs/6f1c1f3e-3a52-4f0e-9d7b-2a4f7c0e9b11-dsm.tif", store.Path(id, "dsm.tif"))
	assert.Equal(t, "/data/inputs/6f1c1f3e-3a52-4f0e-9d7b-2a4f7c0e9b11-evil.csv", store.Path(id, "../../evil.csv"))
}

func TestEnsureDirIsIdempotent(t *testing.T) {
	base := t.TempDir()
	store := NewLocalFileStore(base)

	require.NoError(t, store.EnsureDir())
	require.NoError(t, store.EnsureDir())

	info, err := os.Stat(filepath.Join(base, "inputs"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteOpenRemove(t *testing.T) {
	store := NewLocalFileStore(t.TempDir())
	id := uuid.New()

	n, err := store.Write(id, "sites.csv", strings.NewReader("lat,lon\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	f, size, err := store.Open(id, "sites.csv")
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)
	assert.Equal(t, "lat,lon\n", string(data))

	require.NoError(t, store.Remove(id, "sites.csv"))
	require.NoError(t, store.Remove(id, "sites.csv"), "removing twice is not an error")

	_, _, err = store.Open(id, "sites.csv")
	assert.True(t, os.IsNotExist(err))
}

type failingReader struct {
	data []byte
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, errors.New("connection reset")
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestWriteFailureKeepsPreviousBytes(t *testing.T) {
	store := NewLocalFileStore(t.TempDir())
	id := uuid.New()

	_, err := store.Write(id, "area.kml", strings.NewReader("<kml>complete-original</kml>"))
	require.NoError(t, err)

	_, err = store.Write(id, "area.kml", &failingReader{data: []byte("<km")})
	require.Error(t, err)

	data, err := os.ReadFile(store.Path(id, "area.kml"))
	require.NoError(t, err)
	assert.Equal(t, "<kml>complete-original</kml>", string(data))

	entries, err := os.ReadDir(filepath.Join(store.BaseDir(), "inputs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary file is left behind")
}
