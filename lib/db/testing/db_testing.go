package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/ValentinKolb/wKV/lib/db"
)

// DBFactory opens the database with the given name. Calling it again with the
// same name after the first instance was closed must see the committed state.
type DBFactory func(name string) (db.Database, error)

// RunTransactionTests runs a comprehensive test suite for a db.Database implementation.
func RunTransactionTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, open(t, factory, "insert-get"))
		})

		t.Run("Remove", func(t *testing.T) {
			testRemove(t, open(t, factory, "remove"))
		})

		t.Run("FindByPrefix", func(t *testing.T) {
			testFindByPrefix(t, open(t, factory, "find-by-prefix"))
		})

		t.Run("PrefixBoundaries", func(t *testing.T) {
			testPrefixBoundaries(t, open(t, factory, "prefix-boundaries"))
		})

		t.Run("ScanIsOneShot", func(t *testing.T) {
			testScanIsOneShot(t, open(t, factory, "one-shot"))
		})

		t.Run("RemoveByPrefix", func(t *testing.T) {
			testRemoveByPrefix(t, open(t, factory, "remove-by-prefix"))
		})

		t.Run("ManyKeys", func(t *testing.T) {
			testManyKeys(t, open(t, factory, "many-keys"))
		})

		t.Run("CommitDurability", func(t *testing.T) {
			testCommitDurability(t, factory)
		})

		t.Run("AbortNonDurability", func(t *testing.T) {
			testAbortNonDurability(t, factory)
		})

		t.Run("DatabaseIsolation", func(t *testing.T) {
			testDatabaseIsolation(t, factory)
		})

		t.Run("Lifecycle", func(t *testing.T) {
			testLifecycle(t, open(t, factory, "lifecycle"))
		})

		t.Run("Savepoints", func(t *testing.T) {
			testSavepoints(t, open(t, factory, "savepoints"))
		})

		t.Run("FederationMarker", func(t *testing.T) {
			testFederationMarker(t, factory)
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.Database, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func open(t testing.TB, factory DBFactory, name string) db.Database {
	t.Helper()
	database, err := factory(name)
	if err != nil {
		t.Fatalf("Failed to open database %s: %v", name, err)
	}
	return database
}

func begin(t testing.TB, database db.Database) db.Transaction {
	t.Helper()
	tx, err := database.BeginTransaction()
	if err != nil {
		t.Fatalf("Failed to begin transaction: %v", err)
	}
	return tx
}

func insert(t testing.TB, tx db.Transaction, key, value []byte) []byte {
	t.Helper()
	old, err := tx.Insert(key, value)
	if err != nil {
		t.Fatalf("Insert(%x) failed: %v", key, err)
	}
	return old
}

func get(t testing.TB, tx db.Transaction, key []byte) []byte {
	t.Helper()
	value, err := tx.Get(key)
	if err != nil {
		t.Fatalf("Get(%x) failed: %v", key, err)
	}
	return value
}

func commit(t testing.TB, tx db.Transaction) {
	t.Helper()
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func closeDB(t testing.TB, database db.Database) {
	t.Helper()
	if err := database.Close(); err != nil {
		t.Fatalf("Failed to close database: %v", err)
	}
}

func scan(t testing.TB, tx db.Transaction, prefix []byte, descending bool) []db.Entry {
	t.Helper()
	find := tx.FindByPrefix
	if descending {
		find = tx.FindByPrefixDescending
	}
	seq, err := find(prefix)
	if err != nil {
		t.Fatalf("Scan of %x failed: %v", prefix, err)
	}
	return db.Collect(seq)
}

func requireKeys(t testing.TB, entries []db.Entry, expected ...[]byte) {
	t.Helper()
	if len(entries) != len(expected) {
		t.Fatalf("Expected %d entries %x, got %d: %v", len(expected), expected, len(entries), formatEntries(entries))
	}
	for i := range expected {
		if !bytes.Equal(entries[i].Key, expected[i]) {
			t.Errorf("Entry %d: expected key %x, got %x", i, expected[i], entries[i].Key)
		}
	}
}

func formatEntries(entries []db.Entry) string {
	var sb bytes.Buffer
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("[%x=%x]", e.Key, e.Value))
	}
	return sb.String()
}

func requirePanic(t testing.TB, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("Expected %s to panic", name)
		}
	}()
	fn()
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, database db.Database) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	tx := begin(t, database)
	defer tx.Close()

	key := []byte{0x01, 0x02}
	value1 := []byte("value1")
	value2 := []byte("value2")

	if old := insert(t, tx, key, value1); old != nil {
		t.Errorf("Expected no previous value, got %x", old)
	}
	if result := get(t, tx, key); !bytes.Equal(result, value1) {
		t.Errorf("Expected value %s, got %s", value1, result)
	}

	// overwrite returns the previous value
	if old := insert(t, tx, key, value2); !bytes.Equal(old, value1) {
		t.Errorf("Expected previous value %s, got %s", value1, old)
	}
	if result := get(t, tx, key); !bytes.Equal(result, value2) {
		t.Errorf("Expected value %s, got %s", value2, result)
	}

	// missing key
	if result := get(t, tx, []byte{0x99}); result != nil {
		t.Errorf("Expected nil for missing key, got %x", result)
	}

	// empty value is present, not absent
	insert(t, tx, []byte{0x03}, []byte{})
	if result := get(t, tx, []byte{0x03}); result == nil || len(result) != 0 {
		t.Errorf("Expected empty non-nil value, got %#v", result)
	}

	// empty key
	insert(t, tx, []byte{}, []byte{0x42})
	if result := get(t, tx, []byte{}); !bytes.Equal(result, []byte{0x42}) {
		t.Errorf("Expected value 42 for empty key, got %x", result)
	}

	// embedded zeros and all byte values
	binKey := []byte{0x00, 0x00, 0xFF, 0x00}
	binValue := make([]byte, 256)
	for i := range binValue {
		binValue[i] = byte(i)
	}
	insert(t, tx, binKey, binValue)
	if result := get(t, tx, binKey); !bytes.Equal(result, binValue) {
		t.Errorf("Binary value did not round trip")
	}

	// returned values are copies
	result := get(t, tx, key)
	result[0] = 'X'
	if again := get(t, tx, key); !bytes.Equal(again, value2) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	// caller owned inputs may be reused after insert
	reused := []byte("reused")
	insert(t, tx, []byte{0x04}, reused)
	reused[0] = 'X'
	if again := get(t, tx, []byte{0x04}); !bytes.Equal(again, []byte("reused")) {
		t.Errorf("Insert should copy the value, got %s", again)
	}

	commit(t, tx)
}

func testRemove(t *testing.T, database db.Database) {
	defer database.Close()

	requireFeature(t, database, db.FeatureRemove)

	tx := begin(t, database)
	defer tx.Close()

	insert(t, tx, []byte{0x10}, []byte{0x01})
	insert(t, tx, []byte{0x11}, []byte{0x02})

	old, err := tx.Remove([]byte{0x10})
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !bytes.Equal(old, []byte{0x01}) {
		t.Errorf("Expected removed value 01, got %x", old)
	}
	if result := get(t, tx, []byte{0x10}); result != nil {
		t.Errorf("Expected key to be gone after remove, got %x", result)
	}

	// removing a missing key returns nil and changes nothing
	old, err = tx.Remove([]byte{0x10})
	if err != nil {
		t.Fatalf("Remove of missing key failed: %v", err)
	}
	if old != nil {
		t.Errorf("Expected nil from removing a missing key, got %x", old)
	}
	requireKeys(t, scan(t, tx, nil, false), []byte{0x11})

	commit(t, tx)
}

func testFindByPrefix(t *testing.T, database db.Database) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePrefixScan|db.FeatureDescendingScan)

	tx := begin(t, database)
	for _, k := range [][]byte{{0x20}, {0x11}, {0x10, 0x01}, {0x10}} {
		insert(t, tx, k, append([]byte{0xAA}, k...))
	}
	commit(t, tx)

	tx = begin(t, database)
	defer tx.Close()

	entries := scan(t, tx, []byte{0x10}, false)
	requireKeys(t, entries, []byte{0x10}, []byte{0x10, 0x01})
	for _, e := range entries {
		if !bytes.Equal(e.Value, append([]byte{0xAA}, e.Key...)) {
			t.Errorf("Unexpected value %x for key %x", e.Value, e.Key)
		}
	}

	requireKeys(t, scan(t, tx, []byte{0x10}, true), []byte{0x10, 0x01}, []byte{0x10})

	// exact key match only
	requireKeys(t, scan(t, tx, []byte{0x10, 0x01}, false), []byte{0x10, 0x01})

	// no match
	requireKeys(t, scan(t, tx, []byte{0x30}, false))
	requireKeys(t, scan(t, tx, []byte{0x30}, true))

	// empty prefix matches everything
	requireKeys(t, scan(t, tx, []byte{}, false), []byte{0x10}, []byte{0x10, 0x01}, []byte{0x11}, []byte{0x20})
	requireKeys(t, scan(t, tx, nil, true), []byte{0x20}, []byte{0x11}, []byte{0x10, 0x01}, []byte{0x10})

	// uncommitted writes are part of the scan
	insert(t, tx, []byte{0x10, 0x00}, []byte{0x01})
	requireKeys(t, scan(t, tx, []byte{0x10}, false), []byte{0x10}, []byte{0x10, 0x00}, []byte{0x10, 0x01})
}

func testPrefixBoundaries(t *testing.T, database db.Database) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePrefixScan)

	tx := begin(t, database)
	defer tx.Close()

	keys := [][]byte{
		{0x10, 0xFE},
		{0x10, 0xFF},
		{0x10, 0xFF, 0x00},
		{0x10, 0xFF, 0xFF},
		{0x11},
		{0x11, 0x00},
		{0xFE},
		{0xFE, 0xFF},
		{0xFF},
		{0xFF, 0x00},
		{0xFF, 0xFF, 0xFF},
	}
	for _, k := range keys {
		insert(t, tx, k, []byte{0x01})
	}

	// carry must not pull [0x11] into the range
	requireKeys(t, scan(t, tx, []byte{0x10, 0xFF}, false),
		[]byte{0x10, 0xFF}, []byte{0x10, 0xFF, 0x00}, []byte{0x10, 0xFF, 0xFF})
	requireKeys(t, scan(t, tx, []byte{0x10, 0xFF}, true),
		[]byte{0x10, 0xFF, 0xFF}, []byte{0x10, 0xFF, 0x00}, []byte{0x10, 0xFF})

	// all 0xFF prefix has no upper bound and must not return smaller keys
	requireKeys(t, scan(t, tx, []byte{0xFF}, false),
		[]byte{0xFF}, []byte{0xFF, 0x00}, []byte{0xFF, 0xFF, 0xFF})
	requireKeys(t, scan(t, tx, []byte{0xFF, 0xFF}, false), []byte{0xFF, 0xFF, 0xFF})
	requireKeys(t, scan(t, tx, []byte{0xFF}, true),
		[]byte{0xFF, 0xFF, 0xFF}, []byte{0xFF, 0x00}, []byte{0xFF})

	requireKeys(t, scan(t, tx, []byte{0xFE}, false), []byte{0xFE}, []byte{0xFE, 0xFF})
}

func testScanIsOneShot(t *testing.T, database db.Database) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePrefixScan)

	tx := begin(t, database)
	defer tx.Close()

	for i := 0; i < 5; i++ {
		insert(t, tx, []byte{0x2f, byte(i)}, []byte{byte(i)})
	}

	seq, err := tx.FindByPrefix([]byte{0x2f})
	if err != nil {
		t.Fatalf("FindByPrefix failed: %v", err)
	}

	// stop early
	count := 0
	for range seq {
		count++
		if count == 2 {
			break
		}
	}
	if count != 2 {
		t.Errorf("Expected to stop after 2 entries, got %d", count)
	}

	// the sequence is exhausted
	for k := range seq {
		t.Errorf("Expected no entries on second range, got %x", k)
	}

	// a new scan starts over
	if entries := scan(t, tx, []byte{0x2f}, true); len(entries) != 5 {
		t.Errorf("Expected 5 entries in a new scan, got %d", len(entries))
	}
}

func testRemoveByPrefix(t *testing.T, database db.Database) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePrefixScan|db.FeatureRemove)

	tx := begin(t, database)
	for _, k := range [][]byte{{0x10}, {0x10, 0x01}, {0x10, 0xFF}, {0x11}, {0x0F, 0xFF}} {
		insert(t, tx, k, []byte{0x01})
	}
	commit(t, tx)

	tx = begin(t, database)
	if err := tx.RemoveByPrefix([]byte{0x10}); err != nil {
		t.Fatalf("RemoveByPrefix failed: %v", err)
	}
	requireKeys(t, scan(t, tx, nil, false), []byte{0x0F, 0xFF}, []byte{0x11})

	// nothing to remove is not an error
	if err := tx.RemoveByPrefix([]byte{0x99}); err != nil {
		t.Errorf("RemoveByPrefix of a missing prefix failed: %v", err)
	}
	commit(t, tx)

	tx = begin(t, database)
	defer tx.Close()
	requireKeys(t, scan(t, tx, nil, false), []byte{0x0F, 0xFF}, []byte{0x11})
}

func testManyKeys(t *testing.T, database db.Database) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePrefixScan|db.FeatureDescendingScan)

	rng := rand.New(rand.NewSource(42))
	expected := make(map[string][]byte)

	tx := begin(t, database)
	for i := 0; i < 500; i++ {
		key := make([]byte, 1+rng.Intn(4))
		rng.Read(key)
		key[0] = 0x2f + byte(rng.Intn(2)) // prefix 0x2f or 0x30
		value := []byte(fmt.Sprintf("value-%d", i))
		insert(t, tx, key, value)
		expected[string(key)] = value
	}
	commit(t, tx)

	var keys []string
	for k := range expected {
		if k[0] == 0x2f {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	tx = begin(t, database)
	defer tx.Close()

	ascending := scan(t, tx, []byte{0x2f}, false)
	if len(ascending) != len(keys) {
		t.Fatalf("Expected %d entries, got %d", len(keys), len(ascending))
	}
	for i, e := range ascending {
		if string(e.Key) != keys[i] {
			t.Fatalf("Entry %d: expected key %x, got %x", i, keys[i], e.Key)
		}
		if !bytes.Equal(e.Value, expected[keys[i]]) {
			t.Errorf("Entry %d: expected value %s, got %s", i, expected[keys[i]], e.Value)
		}
	}

	descending := scan(t, tx, []byte{0x2f}, true)
	for i, e := range descending {
		if string(e.Key) != keys[len(keys)-1-i] {
			t.Fatalf("Descending entry %d: expected key %x, got %x", i, keys[len(keys)-1-i], e.Key)
		}
	}
}

func testCommitDurability(t *testing.T, factory DBFactory) {
	database := open(t, factory, "durability")

	tx := begin(t, database)
	insert(t, tx, []byte{0x01}, []byte("persisted"))
	insert(t, tx, []byte{0x02}, []byte("removed"))
	commit(t, tx)

	tx = begin(t, database)
	if _, err := tx.Remove([]byte{0x02}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	commit(t, tx)
	closeDB(t, database)

	// a fresh instance for the same name sees the committed state
	database = open(t, factory, "durability")
	defer database.Close()

	tx = begin(t, database)
	defer tx.Close()
	if result := get(t, tx, []byte{0x01}); !bytes.Equal(result, []byte("persisted")) {
		t.Errorf("Expected committed value after reopen, got %q", result)
	}
	if result := get(t, tx, []byte{0x02}); result != nil {
		t.Errorf("Expected removed key to stay removed after reopen, got %q", result)
	}
}

func testAbortNonDurability(t *testing.T, factory DBFactory) {
	database := open(t, factory, "abort")

	requireFeature(t, database, db.FeatureDurableAbort)

	tx := begin(t, database)
	insert(t, tx, []byte{0x01}, []byte("committed"))
	commit(t, tx)

	// close without commit
	tx = begin(t, database)
	insert(t, tx, []byte{0x01}, []byte("overwritten"))
	insert(t, tx, []byte{0x02}, []byte("dropped"))
	tx.Close()

	// a new transaction on the same instance
	tx = begin(t, database)
	if result := get(t, tx, []byte{0x02}); result != nil {
		t.Errorf("Expected aborted insert to be invisible, got %q", result)
	}
	if result := get(t, tx, []byte{0x01}); !bytes.Equal(result, []byte("committed")) {
		t.Errorf("Expected aborted overwrite to be invisible, got %q", result)
	}

	// a removal that is aborted
	if _, err := tx.Remove([]byte{0x01}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	tx.Close()
	closeDB(t, database)

	// and a fresh instance
	database = open(t, factory, "abort")
	defer database.Close()

	tx = begin(t, database)
	defer tx.Close()
	if result := get(t, tx, []byte{0x02}); result != nil {
		t.Errorf("Expected aborted insert to be invisible after reopen, got %q", result)
	}
	if result := get(t, tx, []byte{0x01}); !bytes.Equal(result, []byte("committed")) {
		t.Errorf("Expected committed value after reopen, got %q", result)
	}
}

func testDatabaseIsolation(t *testing.T, factory DBFactory) {
	alice := open(t, factory, "isolation-alice")
	defer alice.Close()
	bob := open(t, factory, "isolation-bob")
	defer bob.Close()

	if alice.Name() != "isolation-alice" {
		t.Errorf("Expected name isolation-alice, got %s", alice.Name())
	}

	tx := begin(t, alice)
	insert(t, tx, []byte{0x2f}, []byte{0x01})
	commit(t, tx)

	tx = begin(t, bob)
	defer tx.Close()
	if result := get(t, tx, []byte{0x2f}); result != nil {
		t.Errorf("Expected databases to be independent, got %x", result)
	}
	requireKeys(t, scan(t, tx, nil, false))
}

func testLifecycle(t *testing.T, database db.Database) {
	defer database.Close()

	info := database.GetInfo()
	if info.Name != database.Name() {
		t.Errorf("Expected info name %s, got %s", database.Name(), info.Name)
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected info to list supported features")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Info lists %s but SupportsFeature reports false", f)
		}
	}

	// double commit
	tx := begin(t, database)
	insert(t, tx, []byte{0x01}, []byte{0x01})
	commit(t, tx)
	requirePanic(t, "second Commit", func() { _ = tx.Commit() })
	requirePanic(t, "Get after Commit", func() { _, _ = tx.Get([]byte{0x01}) })
	requirePanic(t, "Insert after Commit", func() { _, _ = tx.Insert([]byte{0x01}, nil) })

	// close after commit does nothing
	tx.Close()
	tx.Close()

	// use after close
	tx = begin(t, database)
	tx.Close()
	requirePanic(t, "Commit after Close", func() { _ = tx.Commit() })
	requirePanic(t, "Remove after Close", func() { _, _ = tx.Remove([]byte{0x01}) })
	requirePanic(t, "FindByPrefix after Close", func() { _, _ = tx.FindByPrefix(nil) })
	tx.Close()

	// the committed value survived all of it
	tx = begin(t, database)
	defer tx.Close()
	if result := get(t, tx, []byte{0x01}); !bytes.Equal(result, []byte{0x01}) {
		t.Errorf("Expected committed value, got %x", result)
	}
}

func testSavepoints(t *testing.T, database db.Database) {
	defer database.Close()

	if database.SupportsFeature(db.FeatureSavepoint) {
		t.Skip()
	}

	tx := begin(t, database)
	defer tx.Close()

	requirePanic(t, "SetSavepoint", func() { _ = tx.SetSavepoint() })
	requirePanic(t, "RollbackToSavepoint", func() { _ = tx.RollbackToSavepoint() })
}

// testFederationMarker is the wallet flow: join a federation in one
// transaction, check for membership in the next.
func testFederationMarker(t *testing.T, factory DBFactory) {
	database := open(t, factory, "alice")

	tx := begin(t, database)
	if old := insert(t, tx, []byte{0x2f}, []byte{0x01}); old != nil {
		t.Errorf("Expected fresh database, got previous value %x", old)
	}
	commit(t, tx)

	tx = begin(t, database)
	entries := scan(t, tx, []byte{0x2f}, false)
	tx.Close()

	if len(entries) != 1 {
		t.Fatalf("Expected exactly one match, got %d: %v", len(entries), formatEntries(entries))
	}
	if !bytes.Equal(entries[0].Key, []byte{0x2f}) || !bytes.Equal(entries[0].Value, []byte{0x01}) {
		t.Errorf("Expected [2f=01], got %v", formatEntries(entries))
	}
	closeDB(t, database)

	// the marker survives a restart
	database = open(t, factory, "alice")
	defer database.Close()
	tx = begin(t, database)
	defer tx.Close()
	requireKeys(t, scan(t, tx, []byte{0x2f}, false), []byte{0x2f})
}
