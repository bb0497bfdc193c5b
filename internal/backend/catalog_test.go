package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogFromIDs(t *testing.T) {
	models := Catalog([]string{"alpha", "beta"}, "")
	require.Len(t, models, 2)
	assert.Equal(t, "alpha", models[0].ID)
	assert.Equal(t, "model", models[0].Object)
	assert.Equal(t, "local", models[0].OwnedBy)
	assert.NotZero(t, models[0].Created)
}

func TestScanModelsFindsGGUF(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.gguf"), []byte{0}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BIG.GGUF"), []byte{0}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte{0}, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755))

	models, err := ScanModels(dir)
	require.NoError(t, err)
	require.Len(t, models, 2)
	ids := []string{models[0].ID, models[1].ID}
	assert.Contains(t, ids, "tiny.gguf")
	assert.Contains(t, ids, "BIG.GGUF")
}

func TestScanModelsMissingDir(t *testing.T) {
	_, err := ScanModels(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
