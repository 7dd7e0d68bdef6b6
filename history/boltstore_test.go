package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func tempBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "boosts", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltStorePutAndGet(t *testing.T) {
	store := tempBoltStore(t)
	rec := &Record{
		ChildTxID:   "child",
		ParentTxIDs: []string{"parent"},
		Kind:        ChildPaysForParent,
		Fee:         500,
		CreatedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(rec))

	got, err := store.Get("child")
	require.NoError(t, err)
	assert.Equal(t, rec.ParentTxIDs, got.ParentTxIDs)
	assert.Equal(t, ChildPaysForParent, got.Kind)
	assert.Equal(t, uint64(500), got.Fee)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	_, err = store.Get("missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestBoltStoreDuplicate(t *testing.T) {
	store := tempBoltStore(t)
	rec := &Record{ChildTxID: "child", ParentTxIDs: []string{"parent"}, Kind: ReplaceByFee}
	require.NoError(t, store.Put(rec))
	assert.ErrorIs(t, store.Put(rec), ErrDuplicateRecord)
	assert.ErrorIs(t, store.Put(nil), ErrNilParam)
}

func TestBoltStoreListOrderAndReset(t *testing.T) {
	store := tempBoltStore(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(&Record{ChildTxID: "z", ParentTxIDs: []string{"y"}, Kind: ReplaceByFee, CreatedAt: base}))
	require.NoError(t, store.Put(&Record{ChildTxID: "a", ParentTxIDs: []string{"z"}, Kind: ReplaceByFee, CreatedAt: base.Add(time.Hour)}))

	recs, err := store.List()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "z", recs[0].ChildTxID)
	assert.Equal(t, "a", recs[1].ChildTxID)

	require.NoError(t, store.Reset())
	recs, err = store.List()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestBoltStoreResetWithoutBucket(t *testing.T) {
	store := tempBoltStore(t)
	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket(bucketBoosts)
	}))

	require.NoError(t, store.Reset())
	require.NoError(t, store.Put(&Record{ChildTxID: "child", ParentTxIDs: []string{"parent"}, Kind: ReplaceByFee}))
	recs, err := store.List()
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boosts.db")
	store, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(&Record{ChildTxID: "b", ParentTxIDs: []string{"a"}, Kind: ChildPaysForParent, Fee: 42}))
	require.NoError(t, store.Close())

	store, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	tr, err := NewTracker(store, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, tr.AncestorsOf("b"))
}
