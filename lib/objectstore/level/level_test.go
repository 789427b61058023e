package level

import (
	"testing"

	"github.com/ValentinKolb/wKV/lib/objectstore"
	ostesting "github.com/ValentinKolb/wKV/lib/objectstore/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	ostesting.RunObjectStoreTests(t, "LevelStore(file)", NewOpener(DefaultOptions(t.TempDir())))

	opts := DefaultOptions("")
	opts.InMemory = true
	ostesting.RunObjectStoreTests(t, "LevelStore(memory)", NewOpener(opts))
}

func TestInMemoryOpenersAreIndependent(t *testing.T) {
	opts := &Options{InMemory: true}

	store, err := NewOpener(opts)("alice")
	require.NoError(t, err)
	tx, err := store.Transaction("fedimint", objectstore.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, tx.Put("2f", "01"))
	require.NoError(t, tx.Commit())
	require.NoError(t, store.Close())

	other, err := NewOpener(opts)("alice")
	require.NoError(t, err)
	defer other.Close()

	tx, err = other.Transaction("fedimint", objectstore.ReadOnly)
	require.NoError(t, err)
	defer tx.Abort()
	_, found, err := tx.Get("2f")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSliceNamespace(t *testing.T) {
	tx := &levelTx{ns: []byte("fedimint\x00")}

	s := tx.slice(objectstore.Bound("10", "11", false, true))
	assert.Equal(t, []byte("fedimint\x0010"), s.Start)
	assert.Equal(t, []byte("fedimint\x0011"), s.Limit)

	s = tx.slice(objectstore.Bound("10", "11", true, false))
	assert.Equal(t, []byte("fedimint\x0010\x00"), s.Start)
	assert.Equal(t, []byte("fedimint\x0011\x00"), s.Limit)

	// without upper bound the scan ends at the end of the namespace
	s = tx.slice(objectstore.LowerBound("ff", false))
	assert.Equal(t, []byte("fedimint\x01"), s.Limit)
}

func TestLevelOptions(t *testing.T) {
	o := (&Options{CacheMiB: 1}).levelOptions()
	assert.Equal(t, minCache/2*1024*1024, o.BlockCacheCapacity)
	assert.NotNil(t, o.Filter)
}
