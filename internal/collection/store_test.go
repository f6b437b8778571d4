package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, store Store) {
	t.Helper()

	_, err := store.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)

	coll := New()
	coll.Title = "Stored Book"
	coll.Items = []Item{&Article{Title: "Main Page", Revision: "1", Latest: "1"}}
	require.NoError(t, store.Set("s1", coll))

	got, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "Stored Book", got.Title)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Main Page", got.Items[0].ItemTitle())

	require.NoError(t, store.Clear("s1"))
	_, err = store.Get("s1")
	require.ErrorIs(t, err, ErrNotFound)

	// Clearing a missing session is not an error.
	require.NoError(t, store.Clear("s1"))
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestDiskStore(t *testing.T) {
	testStore(t, NewDiskStore(t.TempDir()))
}

func TestDiskStoreSanitizesSessionIDs(t *testing.T) {
	store := NewDiskStore(t.TempDir())
	coll := New()
	coll.Title = "Tricky"
	require.NoError(t, store.Set("../../etc/passwd", coll))

	got, err := store.Get("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "Tricky", got.Title)
}
