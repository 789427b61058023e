package memsnap

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ValentinKolb/wKV/lib/blob"
	"github.com/ValentinKolb/wKV/lib/blob/fs"
	"github.com/ValentinKolb/wKV/lib/blob/memory"
	"github.com/ValentinKolb/wKV/lib/db"
	dbtesting "github.com/ValentinKolb/wKV/lib/db/testing"
	"github.com/google/btree"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	blobs := memory.NewStorage()
	dbtesting.RunTransactionTests(t, "MemSnap(memory)", func(name string) (db.Database, error) {
		return Open(name, blobs, nil)
	})

	fsBlobs, err := fs.NewStorage(afero.NewMemMapFs(), "/wallets")
	require.NoError(t, err)
	dbtesting.RunTransactionTests(t, "MemSnap(fs)", func(name string) (db.Database, error) {
		return Open(name, fsBlobs, &Options{Namespace: "wkv/"})
	})
}

func Benchmark(b *testing.B) {
	blobs := memory.NewStorage()
	dbtesting.RunTransactionBenchmarks(b, "MemSnap", func(name string) (db.Database, error) {
		return Open(name, blobs, nil)
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// failingStorage wraps a storage and fails every Set while fail is true
type failingStorage struct {
	blob.Storage
	fail bool
}

var errDiskFull = errors.New("disk full")

func (f *failingStorage) Set(name string, data []byte) error {
	if f.fail {
		return errDiskFull
	}
	return f.Storage.Set(name, data)
}

func mustBegin(t *testing.T, database db.Database) db.Transaction {
	tx, err := database.BeginTransaction()
	require.NoError(t, err)
	return tx
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestSnapshotRoundTrip(t *testing.T) {
	tree := btree.NewG[db.Entry](btreeDegree, lessEntry)
	inserted := []db.Entry{
		{Key: []byte{}, Value: []byte{0x00}},
		{Key: []byte{0x2f}, Value: []byte{}},
		{Key: []byte{0x00, 0x00}, Value: []byte{0x00, 0xFF, 0x00}},
		{Key: []byte{0xFF, 0xFF}, Value: bytes.Repeat([]byte{0xAB}, 1000)},
	}
	for _, e := range inserted {
		tree.ReplaceOrInsert(e)
	}

	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, tree))
	assert.Equal(t, []byte(magicNum), buf.Bytes()[:len(magicNum)])

	entries, err := readSnapshot(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, entries, len(inserted))

	// ascending key order
	assert.Equal(t, []byte{}, entries[0].Key)
	assert.Equal(t, []byte{0x00, 0x00}, entries[1].Key)
	assert.Equal(t, []byte{0x2f}, entries[2].Key)
	assert.Equal(t, []byte{0xFF, 0xFF}, entries[3].Key)

	assert.Equal(t, []byte{0x00, 0xFF, 0x00}, entries[1].Value)
	assert.NotNil(t, entries[2].Value)
	assert.Empty(t, entries[2].Value)
}

func TestSnapshotEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, btree.NewG[db.Entry](btreeDegree, lessEntry)))
	assert.Equal(t, len(magicNum)+1+8, buf.Len())

	entries, err := readSnapshot(buf.Bytes())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSnapshotCorrupt(t *testing.T) {
	tree := btree.NewG[db.Entry](btreeDegree, lessEntry)
	tree.ReplaceOrInsert(db.Entry{Key: []byte{0x2f}, Value: []byte{0x01}})
	var buf bytes.Buffer
	require.NoError(t, writeSnapshot(&buf, tree))
	valid := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"wrong magic", append([]byte("MAPLEDB\x00"), valid[len(magicNum):]...)},
		{"wrong version", append(append([]byte(magicNum), 0x09), valid[len(magicNum)+1:]...)},
		{"truncated header", valid[:len(magicNum)+3]},
		{"truncated entry", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x00)},
		{"huge count", append(append([]byte(magicNum), snapVersion), 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)},
		{"huge key length", append(append(append([]byte(magicNum), snapVersion), 1, 0, 0, 0, 0, 0, 0, 0), 0xFF, 0xFF, 0xFF, 0x7F, 0, 0, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readSnapshot(tt.data)
			assert.Error(t, err)
		})
	}
}

func TestOpenCorruptBlob(t *testing.T) {
	blobs := memory.NewStorage()
	require.NoError(t, blobs.Set("alice", []byte("not a snapshot")))

	_, err := Open("alice", blobs, nil)
	require.Error(t, err)

	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.RetCCorruptData, dbErr.Code)
	assert.Equal(t, "open", dbErr.Op)
}

func TestOpenWithoutCommitWritesNothing(t *testing.T) {
	blobs := memory.NewStorage()

	database, err := Open("alice", blobs, nil)
	require.NoError(t, err)

	tx := mustBegin(t, database)
	_, err = tx.Insert([]byte{0x2f}, []byte{0x01})
	require.NoError(t, err)
	tx.Close()
	require.NoError(t, database.Close())

	keys, err := blobs.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCloseRevertsInMemory(t *testing.T) {
	database, err := Open("alice", memory.NewStorage(), nil)
	require.NoError(t, err)
	defer database.Close()

	tx := mustBegin(t, database)
	_, err = tx.Insert([]byte{0x01}, []byte("a"))
	require.NoError(t, err)
	_, err = tx.Insert([]byte{0x02}, []byte("b"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	// a sequence of mutations on the same keys
	tx = mustBegin(t, database)
	_, err = tx.Insert([]byte{0x01}, []byte("a2"))
	require.NoError(t, err)
	_, err = tx.Insert([]byte{0x01}, []byte("a3"))
	require.NoError(t, err)
	_, err = tx.Remove([]byte{0x02})
	require.NoError(t, err)
	_, err = tx.Insert([]byte{0x02}, []byte("b2"))
	require.NoError(t, err)
	_, err = tx.Insert([]byte{0x03}, []byte("c"))
	require.NoError(t, err)
	require.NoError(t, tx.RemoveByPrefix([]byte{0x03}))
	_, err = tx.Insert([]byte{0x04}, []byte("d"))
	require.NoError(t, err)
	tx.Close()

	tx = mustBegin(t, database)
	defer tx.Close()

	seq, err := tx.FindByPrefix(nil)
	require.NoError(t, err)
	entries := db.Collect(seq)
	require.Len(t, entries, 2)
	assert.Equal(t, db.Entry{Key: []byte{0x01}, Value: []byte("a")}, entries[0])
	assert.Equal(t, db.Entry{Key: []byte{0x02}, Value: []byte("b")}, entries[1])
}

func TestFailedCommitRestoresMemory(t *testing.T) {
	blobs := &failingStorage{Storage: memory.NewStorage()}

	database, err := Open("alice", blobs, nil)
	require.NoError(t, err)
	defer database.Close()

	tx := mustBegin(t, database)
	_, err = tx.Insert([]byte{0x2f}, []byte{0x01})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	blobs.fail = true
	tx = mustBegin(t, database)
	_, err = tx.Insert([]byte{0x2f}, []byte{0x02})
	require.NoError(t, err)
	_, err = tx.Insert([]byte{0x30}, []byte{0x03})
	require.NoError(t, err)

	err = tx.Commit()
	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)

	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.RetCInternalError, dbErr.Code)
	assert.Equal(t, "commit", dbErr.Op)

	// the handle is consumed
	assert.Panics(t, func() { _ = tx.Commit() })
	tx.Close()

	blobs.fail = false
	tx = mustBegin(t, database)
	defer tx.Close()

	value, err := tx.Get([]byte{0x2f})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, value)

	value, err = tx.Get([]byte{0x30})
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestListDatabases(t *testing.T) {
	blobs := memory.NewStorage()
	opts := &Options{Namespace: "wkv/"}

	// foreign blobs are not databases
	require.NoError(t, blobs.Set("settings", []byte{0x01}))
	require.NoError(t, blobs.Set("wkv/", []byte{0x01}))

	for _, name := range []string{"charlie", "alice", "bob"} {
		database, err := Open(name, blobs, opts)
		require.NoError(t, err)

		tx := mustBegin(t, database)
		if name != "bob" {
			_, err = tx.Insert([]byte{0x2f}, []byte{0x01})
			require.NoError(t, err)
			require.NoError(t, tx.Commit())
		} else {
			tx.Close() // never committed
		}
		require.NoError(t, database.Close())
	}

	names, err := NewDirectory(blobs, opts).ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "charlie"}, names)

	// committing an empty database still lists it
	database, err := Open("dave", blobs, opts)
	require.NoError(t, err)
	require.NoError(t, mustBegin(t, database).Commit())

	names, err = ListDatabases(blobs, "wkv/")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "charlie", "dave"}, names)

	// the empty namespace lists every blob
	names, err = ListDatabases(blobs, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"settings", "wkv/", "wkv/alice", "wkv/charlie", "wkv/dave"}, names)
}

func TestClosedDatabase(t *testing.T) {
	database, err := Open("alice", memory.NewStorage(), nil)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	_, err = database.BeginTransaction()
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.RetCInvalidOperation, dbErr.Code)
}

func TestInfo(t *testing.T) {
	database, err := Open("alice", memory.NewStorage(), &Options{Namespace: "wkv/"})
	require.NoError(t, err)
	defer database.Close()

	info := database.GetInfo()
	assert.Equal(t, db.ImplMemSnap, info.DbType)
	assert.Equal(t, "wkv/alice", info.Metadata.(map[string]interface{})["blob"])
	assert.True(t, database.SupportsFeature(db.FeatureListDatabases|db.FeatureDurableAbort))
	assert.False(t, database.SupportsFeature(db.FeatureSavepoint))
	assert.Contains(t, info.SupportedFeatures, db.FeatureDescendingScan)
	assert.NotContains(t, info.SupportedFeatures, db.FeatureSavepoint)
}
