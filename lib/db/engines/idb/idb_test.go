package idb

import (
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/ValentinKolb/wKV/lib/db"
	dbtesting "github.com/ValentinKolb/wKV/lib/db/testing"
	"github.com/ValentinKolb/wKV/lib/objectstore"
	"github.com/ValentinKolb/wKV/lib/objectstore/bolt"
	"github.com/ValentinKolb/wKV/lib/objectstore/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test(t *testing.T) {
	boltOpts := bolt.DefaultOptions(t.TempDir())
	boltOpts.NoSync = true
	boltOpener := bolt.NewOpener(boltOpts)
	dbtesting.RunTransactionTests(t, "IDB(bolt)", func(name string) (db.Database, error) {
		return Open(name, boltOpener, nil)
	})

	levelOpener := level.NewOpener(level.DefaultOptions(t.TempDir()))
	dbtesting.RunTransactionTests(t, "IDB(leveldb)", func(name string) (db.Database, error) {
		return Open(name, levelOpener, nil)
	})
}

func Benchmark(b *testing.B) {
	opts := bolt.DefaultOptions(b.TempDir())
	opts.NoSync = true
	opener := bolt.NewOpener(opts)
	dbtesting.RunTransactionBenchmarks(b, "IDB(bolt)", func(name string) (db.Database, error) {
		return Open(name, opener, nil)
	})
}

// --------------------------------------------------------------------------
// Fake object store
// --------------------------------------------------------------------------

// fakeStore is a single store object store with injectable failures
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]string
	commitErr error
	abortErr  error
	aborts    int
	lastStore string
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]string)}
}

func (s *fakeStore) opener() objectstore.Opener {
	return func(string) (objectstore.ObjectStore, error) { return s, nil }
}

func (s *fakeStore) Transaction(storeName string, _ objectstore.Mode) (objectstore.Tx, error) {
	s.mu.Lock()
	s.lastStore = storeName
	s.mu.Unlock()
	return &fakeTx{store: s, writes: make(map[string]*string)}, nil
}

func (s *fakeStore) Close() error { return nil }

type fakeTx struct {
	store  *fakeStore
	writes map[string]*string // nil entry = delete
}

func (t *fakeTx) view() map[string]string {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	view := make(map[string]string, len(t.store.records))
	for k, v := range t.store.records {
		view[k] = v
	}
	for k, v := range t.writes {
		if v == nil {
			delete(view, k)
		} else {
			view[k] = *v
		}
	}
	return view
}

func (t *fakeTx) Put(key, value string) error {
	t.writes[key] = &value
	return nil
}

func (t *fakeTx) Get(key string) (string, bool, error) {
	v, ok := t.view()[key]
	return v, ok, nil
}

func (t *fakeTx) Delete(key string) error {
	t.writes[key] = nil
	return nil
}

func (t *fakeTx) GetAll(r objectstore.KeyRange, dir objectstore.Direction) ([]objectstore.KV, error) {
	var records []objectstore.KV
	for k, v := range t.view() {
		if r.Contains(k) {
			records = append(records, objectstore.KV{Key: k, Value: v})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if dir == objectstore.Prev {
			return records[i].Key > records[j].Key
		}
		return records[i].Key < records[j].Key
	})
	return records, nil
}

func (t *fakeTx) Commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	for k, v := range t.writes {
		if v == nil {
			delete(t.store.records, k)
		} else {
			t.store.records[k] = *v
		}
	}
	return nil
}

func (t *fakeTx) Abort() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.aborts++
	return t.store.abortErr
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestSuiteOnFakeStore(t *testing.T) {
	stores := make(map[string]*fakeStore)
	dbtesting.RunTransactionTests(t, "IDB(fake)", func(name string) (db.Database, error) {
		if _, ok := stores[name]; !ok {
			stores[name] = newFakeStore()
		}
		return Open(name, stores[name].opener(), nil)
	})
}

func TestRecordsAreLowercaseHex(t *testing.T) {
	store := newFakeStore()
	database, err := Open("alice", store.opener(), nil)
	require.NoError(t, err)
	defer database.Close()

	tx, err := database.BeginTransaction()
	require.NoError(t, err)
	_, err = tx.Insert([]byte{0x2f, 0xAB}, []byte{0x00, 0xFF})
	require.NoError(t, err)
	_, err = tx.Insert([]byte{0x01}, []byte{})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, map[string]string{"2fab": "00ff", "01": ""}, store.records)
	assert.Equal(t, DefaultStoreName, store.lastStore)
}

func TestStoreName(t *testing.T) {
	store := newFakeStore()
	database, err := Open("alice", store.opener(), &Options{StoreName: "wallet"})
	require.NoError(t, err)
	defer database.Close()

	tx, err := database.BeginTransaction()
	require.NoError(t, err)
	tx.Close()

	assert.Equal(t, "wallet", store.lastStore)
	assert.Equal(t, "wallet", database.GetInfo().Metadata.(map[string]interface{})["store"])
}

func TestExistingHexRecordsAreReadable(t *testing.T) {
	store := newFakeStore()
	store.records["2f"] = "01"
	store.records["2f00"] = "deadbeef"
	store.records["30"] = "02"

	database, err := Open("alice", store.opener(), nil)
	require.NoError(t, err)
	defer database.Close()

	tx, err := database.BeginTransaction()
	require.NoError(t, err)
	defer tx.Close()

	seq, err := tx.FindByPrefix([]byte{0x2f})
	require.NoError(t, err)
	entries := db.Collect(seq)
	require.Len(t, entries, 2)
	assert.Equal(t, []byte{0x2f, 0x00}, entries[1].Key)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, entries[1].Value)
}

func TestInvalidHexPanics(t *testing.T) {
	store := newFakeStore()
	store.records["2f"] = "not hex"
	store.records["2f00"] = "0"

	database, err := Open("alice", store.opener(), nil)
	require.NoError(t, err)
	defer database.Close()

	tx, err := database.BeginTransaction()
	require.NoError(t, err)
	defer tx.Close()

	assert.Panics(t, func() { _, _ = tx.Get([]byte{0x2f}) })
	assert.Panics(t, func() { _, _ = tx.Get([]byte{0x2f, 0x00}) })

	// scans panic while decoding
	seq, err := tx.FindByPrefix([]byte{0x2f})
	require.NoError(t, err)
	assert.Panics(t, func() { db.Collect(seq) })
}

func TestCommitFailure(t *testing.T) {
	store := newFakeStore()
	database, err := Open("alice", store.opener(), nil)
	require.NoError(t, err)
	defer database.Close()

	cause := errors.New("quota exceeded")
	store.commitErr = cause

	tx, err := database.BeginTransaction()
	require.NoError(t, err)
	_, err = tx.Insert([]byte{0x2f}, []byte{0x01})
	require.NoError(t, err)

	err = tx.Commit()
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "commit", dbErr.Op)
	assert.Equal(t, db.RetCInternalError, dbErr.Code)
	assert.Contains(t, err.Error(), "quota exceeded")

	// the handle is consumed, Close does not abort a second time
	assert.Panics(t, func() { _ = tx.Commit() })
	tx.Close()
	require.NoError(t, database.Close())
	assert.Equal(t, 0, store.aborts)
	assert.Empty(t, store.records)
}

func TestDetachedAbort(t *testing.T) {
	store := newFakeStore()
	store.abortErr = errors.New("abort failed")

	database, err := Open("alice", store.opener(), nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tx, err := database.BeginTransaction()
		require.NoError(t, err)
		_, err = tx.Insert([]byte{byte(i)}, []byte{0x01})
		require.NoError(t, err)
		tx.Close()
		tx.Close() // second close is a no-op
	}

	// failing aborts are logged only, Close waits for all of them
	require.NoError(t, database.Close())
	assert.Equal(t, 3, store.aborts)
	assert.Empty(t, store.records)

	_, err = database.BeginTransaction()
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.RetCInvalidOperation, dbErr.Code)
}

func TestPrefixRange(t *testing.T) {
	r := prefixRange([]byte{0x10, 0xFF})
	assert.Equal(t, objectstore.Bound("10ff", "11", false, true), r)
	assert.True(t, r.Contains("10ff00"))
	assert.False(t, r.Contains("11"))

	r = prefixRange([]byte{0xFF})
	assert.Equal(t, objectstore.LowerBound("ff", false), r)
	assert.False(t, r.Contains("fe"))
	assert.True(t, r.Contains("ffff"))

	assert.Equal(t, objectstore.All(), prefixRange(nil))
}

func TestOpenFailure(t *testing.T) {
	cause := errors.New("permission denied")
	_, err := Open("alice", func(string) (objectstore.ObjectStore, error) { return nil, cause }, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}
