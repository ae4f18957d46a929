package hashstore_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/crawlkit/internal/hashstore"
)

func newStore(t *testing.T) *hashstore.Store {
	t.Helper()
	store, err := hashstore.NewStore(filepath.Join(t.TempDir(), "hashes.db"))
	require.Nil(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRecordFirstSeenSemantics(t *testing.T) {
	store := newStore(t)
	digest := hashstore.Hash([]byte("page body"))

	hex, isNew, err := store.Record(digest, "http://site/a", "", "run-1")
	require.Nil(t, err)
	assert.Equal(t, digest, hex)
	assert.True(t, isNew)

	// Second writer loses; the row keeps the first URL.
	_, isNew, err = store.Record(digest, "http://site/b", "", "run-2")
	require.Nil(t, err)
	assert.False(t, isNew)

	rec, found, err := store.Lookup(digest)
	require.Nil(t, err)
	require.True(t, found)
	assert.Equal(t, "http://site/a", rec.FirstSeenURL)
	assert.Equal(t, "run-1", rec.RunID)
}

func TestRecordSurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "hashes.db")
	digest := hashstore.Hash([]byte("cross-run body"))

	store, err := hashstore.NewStore(dbPath)
	require.Nil(t, err)
	_, isNew, err := store.Record(digest, "http://site/a", "", "run-1")
	require.Nil(t, err)
	require.True(t, isNew)
	require.NoError(t, store.Close())

	// A second run sharing the store sees the digest as old.
	reopened, err := hashstore.NewStore(dbPath)
	require.Nil(t, err)
	defer reopened.Close()
	_, isNew, err = reopened.Record(digest, "http://site/b", "", "run-2")
	require.Nil(t, err)
	assert.False(t, isNew)
}

func TestIsDuplicate(t *testing.T) {
	store := newStore(t)
	digest := hashstore.Hash([]byte("body"))

	dup, err := store.IsDuplicate(digest)
	require.Nil(t, err)
	assert.False(t, dup)

	_, _, err = store.Record(digest, "http://site/a", "", "")
	require.Nil(t, err)

	dup, err = store.IsDuplicate(digest)
	require.Nil(t, err)
	assert.True(t, dup)
}

func TestLookupBlobPath(t *testing.T) {
	store := newStore(t)
	digest := hashstore.Hash([]byte("body"))

	_, _, err := store.Record(digest, "http://site/a", "/blobs/ab/cd.bin", "")
	require.Nil(t, err)

	path, found, err := store.LookupBlobPath(digest)
	require.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, "/blobs/ab/cd.bin", path)

	// A digest recorded without a blob has no path.
	other := hashstore.Hash([]byte("other"))
	_, _, err = store.Record(other, "http://site/b", "", "")
	require.Nil(t, err)
	_, found, err = store.LookupBlobPath(other)
	require.Nil(t, err)
	assert.False(t, found)
}

func TestConcurrentRecordExactlyOneWinner(t *testing.T) {
	store := newStore(t)
	digest := hashstore.Hash([]byte("contended body"))

	const writers = 16
	newCount := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, isNew, err := store.Record(digest, fmt.Sprintf("http://site/%d", i), "", "")
			require.Nil(t, err)
			if isNew {
				mu.Lock()
				newCount++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, newCount, "isNew must be true exactly once per digest")
}
