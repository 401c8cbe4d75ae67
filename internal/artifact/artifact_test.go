package artifact_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbench/toolbench/internal/artifact"
)

func TestHashIsStableForIdenticalBytes(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(a, []byte("same bytes"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("same bytes"), 0644))

	store := artifact.NewStore()
	digestA, sizeA, err := store.Hash(a)
	require.NoError(t, err)
	digestB, sizeB, err := store.Hash(b)
	require.NoError(t, err)

	assert.Equal(t, digestA, digestB)
	assert.Equal(t, sizeA, sizeB)
	assert.Len(t, digestA, 64)
}

func TestHashDetectsChangedContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0644))

	store := artifact.NewStore()
	first, _, err := store.Hash(path)
	require.NoError(t, err)

	// mtime resolution can be coarse; force a visible difference
	require.NoError(t, os.WriteFile(path, []byte("second version"), 0644))
	require.NoError(t, os.Chtimes(path, time.Now(), time.Now().Add(time.Second)))

	second, size, err := store.Hash(path)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, int64(len("second version")), size)
}

func TestHashMissingFile(t *testing.T) {
	store := artifact.NewStore()
	_, _, err := store.Hash(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
