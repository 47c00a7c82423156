package repositories

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uplregistry/internal/domain/upl/entities"
)

func newTestUpl(t *testing.T, id entities.UplId) *entities.Upl {
	t.Helper()
	u, err := entities.NewUpl(entities.NewUplSpec{
		UplID:  id,
		Sku:    7,
		Piece:  1,
		SkuVat: entities.VatAAM,
	}, time.Now())
	require.NoError(t, err)
	return u
}

func TestUplFileStore_InsertLoadAllRemove(t *testing.T) {
	store, err := NewUplFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	id := entities.NewUplId(1)
	u := newTestUpl(t, id)
	require.NoError(t, store.Insert(u))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	require.Contains(t, loaded, id)
	assert.Equal(t, uint32(7), loaded[id].Kind.Sku)

	require.NoError(t, store.Remove(id))
	loaded, err = store.LoadAll()
	require.NoError(t, err)
	assert.NotContains(t, loaded, id)
}

func TestUplFileStore_Remove_AbsentIdIsNotAnError(t *testing.T) {
	store, err := NewUplFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, store.Remove(entities.NewUplId(999)))
}

func TestUplFileStore_Save_OverwritesExistingDocument(t *testing.T) {
	store, err := NewUplFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	id := entities.NewUplId(1)
	u := newTestUpl(t, id)
	require.NoError(t, store.Insert(u))

	u.ProductUnit = "kg"
	require.NoError(t, store.Save(u))

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, "kg", loaded[id].ProductUnit)
}

func TestUplFileStore_WriteAtomic_LeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	store, err := NewUplFileStore(dir, zerolog.Nop())
	require.NoError(t, err)

	id := entities.NewUplId(1)
	require.NoError(t, store.Insert(newTestUpl(t, id)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, filepath.Ext(e.Name()) == ".tmp", "no .tmp file should survive a successful write")
	}
}

func TestUplFileStore_LoadAll_IgnoresNonJsonEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a upl"), 0o640))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o750))

	store, err := NewUplFileStore(dir, zerolog.Nop())
	require.NoError(t, err)

	loaded, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestUplFileStore_PathFor_RejectsEscapingId(t *testing.T) {
	store, err := NewUplFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	u := newTestUpl(t, entities.NewUplId(1))
	u.ID = entities.UplId("../escape")
	err = store.Insert(u)
	assert.Error(t, err)
}
