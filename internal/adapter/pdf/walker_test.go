package pdf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfrag/internal/domain"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestWalkerFindsPDFsRecursively(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.pdf"))
	touch(t, filepath.Join(dir, "sub", "b.pdf"))
	touch(t, filepath.Join(dir, "sub", "deep", "c.PDF"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, ".hidden", "d.pdf"))

	files, err := NewWalker().Find(dir)
	require.NoError(t, err)

	require.Len(t, files, 3)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), files[0])
	assert.Equal(t, filepath.Join(dir, "sub", "b.pdf"), files[1])
	assert.Equal(t, filepath.Join(dir, "sub", "deep", "c.PDF"), files[2])
}

func TestWalkerMissingDirIsLoadError(t *testing.T) {
	_, err := NewWalker().Find(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLoad))
}

func TestWalkerFileRootIsLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.pdf")
	touch(t, path)

	_, err := NewWalker().Find(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLoad))
}

func TestWalkerEmptyDirReturnsNoFiles(t *testing.T) {
	files, err := NewWalker().Find(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}
