package testing

import (
	"errors"
	"slices"
	"testing"

	"github.com/ValentinKolb/wKV/lib/objectstore"
)

// RunObjectStoreTests runs the conformance suite for an objectstore implementation.
// Every subtest opens its own database name through opener.
func RunObjectStoreTests(t *testing.T, name string, opener objectstore.Opener) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, open(t, opener, "put-get"))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, open(t, opener, "delete"))
		})

		t.Run("EmptyKeyAndValue", func(t *testing.T) {
			testEmptyKeyAndValue(t, open(t, opener, "empty"))
		})

		t.Run("GetAllRanges", func(t *testing.T) {
			testGetAllRanges(t, open(t, opener, "ranges"))
		})

		t.Run("StoreIsolation", func(t *testing.T) {
			testStoreIsolation(t, open(t, opener, "isolation"))
		})

		t.Run("Abort", func(t *testing.T) {
			testAbort(t, open(t, opener, "abort"))
		})

		t.Run("ReadOnly", func(t *testing.T) {
			testReadOnly(t, open(t, opener, "read-only"))
		})

		t.Run("TxDone", func(t *testing.T) {
			testTxDone(t, open(t, opener, "tx-done"))
		})

		t.Run("Reopen", func(t *testing.T) {
			testReopen(t, opener)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

const storeName = "fedimint"

func open(t *testing.T, opener objectstore.Opener, name string) objectstore.ObjectStore {
	t.Helper()
	store, err := opener(name)
	if err != nil {
		t.Fatalf("Failed to open store %s: %v", name, err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func begin(t *testing.T, store objectstore.ObjectStore, mode objectstore.Mode) objectstore.Tx {
	t.Helper()
	tx, err := store.Transaction(storeName, mode)
	if err != nil {
		t.Fatalf("Failed to open %s transaction: %v", mode, err)
	}
	return tx
}

func put(t *testing.T, tx objectstore.Tx, key, value string) {
	t.Helper()
	if err := tx.Put(key, value); err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
}

func commit(t *testing.T, tx objectstore.Tx) {
	t.Helper()
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func requireValue(t *testing.T, tx objectstore.Tx, key, expected string) {
	t.Helper()
	value, found, err := tx.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	if !found {
		t.Fatalf("Expected key %q to be found", key)
	}
	if value != expected {
		t.Errorf("Get(%q) = %q, expected %q", key, value, expected)
	}
}

func requireMissing(t *testing.T, tx objectstore.Tx, key string) {
	t.Helper()
	_, found, err := tx.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	if found {
		t.Errorf("Expected key %q to be missing", key)
	}
}

func keysOf(records []objectstore.KV) []string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key
	}
	return keys
}

func requireKeys(t *testing.T, records []objectstore.KV, expected ...string) {
	t.Helper()
	keys := keysOf(records)
	if !slices.Equal(keys, expected) {
		t.Errorf("Expected keys %q, got %q", expected, keys)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, store objectstore.ObjectStore) {
	tx := begin(t, store, objectstore.ReadWrite)
	put(t, tx, "10", "01")
	put(t, tx, "20", "02")

	// read your own writes
	requireValue(t, tx, "10", "01")
	requireValue(t, tx, "20", "02")
	requireMissing(t, tx, "30")

	// overwrite
	put(t, tx, "10", "ff")
	requireValue(t, tx, "10", "ff")
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadOnly)
	defer tx.Abort()
	requireValue(t, tx, "10", "ff")
	requireValue(t, tx, "20", "02")
}

func testDelete(t *testing.T, store objectstore.ObjectStore) {
	tx := begin(t, store, objectstore.ReadWrite)
	put(t, tx, "10", "01")
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadWrite)
	if err := tx.Delete("10"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	requireMissing(t, tx, "10")

	// deleting a missing key is not an error
	if err := tx.Delete("99"); err != nil {
		t.Errorf("Delete of missing key failed: %v", err)
	}
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadOnly)
	defer tx.Abort()
	requireMissing(t, tx, "10")
}

func testEmptyKeyAndValue(t *testing.T, store objectstore.ObjectStore) {
	tx := begin(t, store, objectstore.ReadWrite)
	put(t, tx, "", "00")
	put(t, tx, "01", "")
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadOnly)
	defer tx.Abort()
	requireValue(t, tx, "", "00")
	requireValue(t, tx, "01", "")

	records, err := tx.GetAll(objectstore.All(), objectstore.Next)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	requireKeys(t, records, "", "01")
}

func testGetAllRanges(t *testing.T, store objectstore.ObjectStore) {
	tx := begin(t, store, objectstore.ReadWrite)
	for _, k := range []string{"10", "1001", "11", "20", "ff", "ff00"} {
		put(t, tx, k, "v"+k)
	}
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadOnly)
	defer tx.Abort()

	tests := []struct {
		name     string
		r        objectstore.KeyRange
		dir      objectstore.Direction
		expected []string
	}{
		{"prefix 10", objectstore.Bound("10", "11", false, true), objectstore.Next, []string{"10", "1001"}},
		{"prefix 10 desc", objectstore.Bound("10", "11", false, true), objectstore.Prev, []string{"1001", "10"}},
		{"closed bounds", objectstore.Bound("10", "11", false, false), objectstore.Next, []string{"10", "1001", "11"}},
		{"open lower", objectstore.Bound("10", "11", true, false), objectstore.Next, []string{"1001", "11"}},
		{"open both desc", objectstore.Bound("10", "20", true, true), objectstore.Prev, []string{"11", "1001"}},
		{"lower bound only", objectstore.LowerBound("ff", false), objectstore.Next, []string{"ff", "ff00"}},
		{"lower bound only desc", objectstore.LowerBound("ff", false), objectstore.Prev, []string{"ff00", "ff"}},
		{"open lower bound only", objectstore.LowerBound("ff", true), objectstore.Next, []string{"ff00"}},
		{"only", objectstore.Only("11"), objectstore.Next, []string{"11"}},
		{"only desc", objectstore.Only("11"), objectstore.Prev, []string{"11"}},
		{"upper between keys desc", objectstore.Bound("00", "15", false, false), objectstore.Prev, []string{"11", "1001", "10"}},
		{"upper past end desc", objectstore.Bound("20", "zz", false, false), objectstore.Prev, []string{"ff00", "ff", "20"}},
		{"no match", objectstore.Bound("30", "40", false, true), objectstore.Next, nil},
		{"empty range", objectstore.Bound("20", "10", false, false), objectstore.Next, nil},
		{"all", objectstore.All(), objectstore.Next, []string{"10", "1001", "11", "20", "ff", "ff00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := tx.GetAll(tt.r, tt.dir)
			if err != nil {
				t.Fatalf("GetAll failed: %v", err)
			}
			requireKeys(t, records, tt.expected...)
			for _, r := range records {
				if r.Value != "v"+r.Key {
					t.Errorf("Expected value %q for key %q, got %q", "v"+r.Key, r.Key, r.Value)
				}
			}
		})
	}
}

func testStoreIsolation(t *testing.T, store objectstore.ObjectStore) {
	tx, err := store.Transaction("other", objectstore.ReadWrite)
	if err != nil {
		t.Fatalf("Failed to open transaction: %v", err)
	}
	put(t, tx, "10", "other")
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadWrite)
	requireMissing(t, tx, "10")
	put(t, tx, "10", "mine")
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadOnly)
	records, err := tx.GetAll(objectstore.All(), objectstore.Next)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(records) != 1 || records[0].Value != "mine" {
		t.Errorf("Expected only the own record, got %v", records)
	}
	_ = tx.Abort()

	// a store that was never written to is readable and empty
	tx, err = store.Transaction("never-written", objectstore.ReadOnly)
	if err != nil {
		t.Fatalf("Failed to open transaction: %v", err)
	}
	defer tx.Abort()
	requireMissing(t, tx, "10")
	records, err = tx.GetAll(objectstore.All(), objectstore.Next)
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %v", records)
	}
}

func testAbort(t *testing.T, store objectstore.ObjectStore) {
	tx := begin(t, store, objectstore.ReadWrite)
	put(t, tx, "10", "01")
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadWrite)
	put(t, tx, "10", "02")
	put(t, tx, "20", "02")
	if err := tx.Delete("10"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := tx.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	tx = begin(t, store, objectstore.ReadWrite)
	defer tx.Abort()
	requireValue(t, tx, "10", "01")
	requireMissing(t, tx, "20")
}

func testReadOnly(t *testing.T, store objectstore.ObjectStore) {
	tx := begin(t, store, objectstore.ReadOnly)
	defer tx.Abort()

	if err := tx.Put("10", "01"); !errors.Is(err, objectstore.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly from Put, got %v", err)
	}
	if err := tx.Delete("10"); !errors.Is(err, objectstore.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly from Delete, got %v", err)
	}
}

func testTxDone(t *testing.T, store objectstore.ObjectStore) {
	tx := begin(t, store, objectstore.ReadWrite)
	commit(t, tx)

	if err := tx.Commit(); !errors.Is(err, objectstore.ErrTxDone) {
		t.Errorf("Expected ErrTxDone from second Commit, got %v", err)
	}
	if err := tx.Abort(); !errors.Is(err, objectstore.ErrTxDone) {
		t.Errorf("Expected ErrTxDone from Abort after Commit, got %v", err)
	}
	if err := tx.Put("10", "01"); !errors.Is(err, objectstore.ErrTxDone) {
		t.Errorf("Expected ErrTxDone from Put after Commit, got %v", err)
	}
	if _, _, err := tx.Get("10"); !errors.Is(err, objectstore.ErrTxDone) {
		t.Errorf("Expected ErrTxDone from Get after Commit, got %v", err)
	}
	if _, err := tx.GetAll(objectstore.All(), objectstore.Next); !errors.Is(err, objectstore.ErrTxDone) {
		t.Errorf("Expected ErrTxDone from GetAll after Commit, got %v", err)
	}
}

func testReopen(t *testing.T, opener objectstore.Opener) {
	store, err := opener("reopen")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	tx := begin(t, store, objectstore.ReadWrite)
	put(t, tx, "2f", "01")
	commit(t, tx)

	tx = begin(t, store, objectstore.ReadWrite)
	put(t, tx, "30", "uncommitted")
	if err := tx.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := store.Transaction(storeName, objectstore.ReadOnly); !errors.Is(err, objectstore.ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}

	store = open(t, opener, "reopen")
	tx = begin(t, store, objectstore.ReadOnly)
	defer tx.Abort()
	requireValue(t, tx, "2f", "01")
	requireMissing(t, tx, "30")
}
