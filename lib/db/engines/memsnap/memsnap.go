package memsnap

import (
	"bytes"
	"errors"
	"iter"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/wKV/lib/blob"
	"github.com/ValentinKolb/wKV/lib/db"
	"github.com/ValentinKolb/wKV/lib/db/util"
	"github.com/google/btree"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultNamespace is the blob name prefix of all databases. Empty means
	// every blob of the storage is a database.
	DefaultNamespace = ""

	btreeDegree = 32
)

var (
	log = logger.GetLogger("memsnap")

	errDatabaseClosed = errors.New("database is closed")

	features = db.FeatureInsert |
		db.FeatureGet |
		db.FeatureRemove |
		db.FeaturePrefixScan |
		db.FeatureDescendingScan |
		db.FeatureListDatabases |
		db.FeatureDurableAbort
)

// Options configures the memsnap engine
type Options struct {
	Namespace string // Prefix of the blob name of every database
}

// DefaultOptions returns the default memsnap options
func DefaultOptions() *Options {
	return &Options{
		Namespace: DefaultNamespace,
	}
}

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

// snapDatabase holds the ordered map of one open database. All transactions
// opened on the same instance share it.
type snapDatabase struct {
	name      string
	namespace string
	blobKey   string
	blobs     blob.Storage

	mu   sync.Mutex // guards single map operations, not transactions
	data *btree.BTreeG[db.Entry]

	closed atomic.Bool
}

func lessEntry(a, b db.Entry) bool {
	return bytes.Compare(a.Key, b.Key) < 0
}

// Open hydrates the database name from its snapshot blob. A database that was
// never committed starts empty; nothing is written until the first commit.
func Open(name string, blobs blob.Storage, opts *Options) (db.Database, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	database := &snapDatabase{
		name:      name,
		namespace: opts.Namespace,
		blobKey:   opts.Namespace + name,
		blobs:     blobs,
		data:      btree.NewG[db.Entry](btreeDegree, lessEntry),
	}

	raw, found, err := blobs.Get(database.blobKey)
	if err != nil {
		return nil, db.IOError("open", nil, err)
	}

	if found {
		entries, err := readSnapshot(raw)
		if err != nil {
			return nil, db.NewError(db.RetCCorruptData, "open", nil, err)
		}
		// replay as ordinary inserts
		for _, e := range entries {
			database.data.ReplaceOrInsert(e)
		}
	}

	log.Debugf("opened %s (%d entries)", name, database.data.Len())
	return database, nil
}

func (d *snapDatabase) Name() string {
	return d.name
}

func (d *snapDatabase) BeginTransaction() (db.Transaction, error) {
	if d.closed.Load() {
		return nil, db.NewError(db.RetCInvalidOperation, "begin", nil, errDatabaseClosed)
	}
	return &transaction{database: d}, nil
}

func (d *snapDatabase) SupportsFeature(feature db.Feature) bool {
	return features&feature == feature
}

func (d *snapDatabase) GetInfo() db.DatabaseInfo {
	d.mu.Lock()
	entries := d.data.Len()
	d.mu.Unlock()

	supported := make([]db.Feature, 0)
	for f := db.FeatureInsert; f <= db.FeatureDurableAbort; f <<= 1 {
		if d.SupportsFeature(f) {
			supported = append(supported, f)
		}
	}

	return db.DatabaseInfo{
		Name:              d.name,
		DbType:            db.ImplMemSnap,
		SupportedFeatures: supported,
		Metadata: map[string]interface{}{
			"blob":    d.blobKey,
			"entries": entries,
		},
	}
}

// ListDatabases lists all databases sharing the blob storage and namespace of d
func (d *snapDatabase) ListDatabases() ([]string, error) {
	return ListDatabases(d.blobs, d.namespace)
}

// Close marks the database closed. Committed state is already in the blob storage.
func (d *snapDatabase) Close() error {
	d.closed.Store(true)
	return nil
}

// snapshot serializes the whole map into one buffer
func (d *snapDatabase) snapshot() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := writeSnapshot(&buf, d.data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// --------------------------------------------------------------------------
// Directory
// --------------------------------------------------------------------------

// ListDatabases returns the sorted names of all databases in blobs that were
// committed at least once under namespace.
func ListDatabases(blobs blob.Storage, namespace string) ([]string, error) {
	keys, err := blobs.Keys()
	if err != nil {
		return nil, db.IOError("list", nil, err)
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, namespace) || len(key) == len(namespace) {
			continue
		}
		names = append(names, strings.TrimPrefix(key, namespace))
	}
	sort.Strings(names)
	return names, nil
}

// Directory lists the databases of one blob storage and namespace.
type Directory struct {
	blobs     blob.Storage
	namespace string
}

// NewDirectory returns the directory of the databases Open creates with the same arguments
func NewDirectory(blobs blob.Storage, opts *Options) *Directory {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Directory{blobs: blobs, namespace: opts.Namespace}
}

// ListDatabases returns the sorted names of all committed databases.
func (d *Directory) ListDatabases() ([]string, error) {
	return ListDatabases(d.blobs, d.namespace)
}

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

type txState int

const (
	txActive txState = iota
	txCommitted
	txClosed
)

// undoRecord restores one key to the value it had before a mutation
type undoRecord struct {
	key     []byte
	old     []byte
	existed bool
}

// transaction applies its mutations directly to the shared map and records
// how to revert each of them.
type transaction struct {
	database *snapDatabase
	undo     []undoRecord
	state    txState
}

func (t *transaction) checkActive(op string) {
	switch t.state {
	case txCommitted:
		panic("memsnap: " + op + " on committed transaction")
	case txClosed:
		panic("memsnap: " + op + " on closed transaction")
	}
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (t *transaction) Insert(key, value []byte) ([]byte, error) {
	t.checkActive("insert")

	e := db.Entry{Key: clone(key), Value: clone(value)}

	t.database.mu.Lock()
	old, existed := t.database.data.ReplaceOrInsert(e)
	t.database.mu.Unlock()

	t.undo = append(t.undo, undoRecord{key: e.Key, old: old.Value, existed: existed})

	if !existed {
		return nil, nil
	}
	return clone(old.Value), nil
}

func (t *transaction) Remove(key []byte) ([]byte, error) {
	t.checkActive("remove")

	t.database.mu.Lock()
	old, existed := t.database.data.Delete(db.Entry{Key: key})
	t.database.mu.Unlock()

	if !existed {
		return nil, nil
	}
	t.undo = append(t.undo, undoRecord{key: old.Key, old: old.Value, existed: true})
	return clone(old.Value), nil
}

func (t *transaction) RemoveByPrefix(prefix []byte) error {
	t.checkActive("remove by prefix")
	return db.RemoveEachByPrefix(t, prefix)
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (t *transaction) Get(key []byte) ([]byte, error) {
	t.checkActive("get")

	t.database.mu.Lock()
	e, ok := t.database.data.Get(db.Entry{Key: key})
	t.database.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return clone(e.Value), nil
}

// collect copies all entries with prefix in ascending order
func (t *transaction) collect(prefix []byte) []db.Entry {
	var entries []db.Entry
	fn := func(e db.Entry) bool {
		entries = append(entries, db.Entry{Key: clone(e.Key), Value: clone(e.Value)})
		return true
	}

	t.database.mu.Lock()
	defer t.database.mu.Unlock()

	if next, ok := util.NextPrefix(prefix); ok {
		t.database.data.AscendRange(db.Entry{Key: prefix}, db.Entry{Key: next}, fn)
	} else {
		t.database.data.AscendGreaterOrEqual(db.Entry{Key: prefix}, fn)
	}
	return entries
}

func (t *transaction) FindByPrefix(prefix []byte) (iter.Seq2[[]byte, []byte], error) {
	t.checkActive("find by prefix")
	return db.OneShot(t.collect(prefix)), nil
}

func (t *transaction) FindByPrefixDescending(prefix []byte) (iter.Seq2[[]byte, []byte], error) {
	t.checkActive("find by prefix descending")
	return db.OneShot(db.Reverse(t.collect(prefix))), nil
}

// --------------------------------------------------------------------------
// Savepoints
// --------------------------------------------------------------------------

func (t *transaction) SetSavepoint() error {
	panic("memsnap: savepoints are not implemented")
}

func (t *transaction) RollbackToSavepoint() error {
	panic("memsnap: savepoints are not implemented")
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Commit writes the full map as one blob. If the write fails the mutations
// of this transaction are reverted, so memory matches the last committed blob.
func (t *transaction) Commit() error {
	t.checkActive("commit")
	t.state = txCommitted

	data, err := t.database.snapshot()
	if err == nil {
		err = t.database.blobs.Set(t.database.blobKey, data)
	}
	if err != nil {
		t.rollback()
		log.Errorf("commit of %s failed, reverted %d mutations: %v", t.database.name, len(t.undo), err)
		t.undo = nil
		return db.IOError("commit", nil, err)
	}

	log.Debugf("committed %s (%d mutations, %d bytes)", t.database.name, len(t.undo), len(data))
	t.undo = nil
	return nil
}

// Close reverts the mutations of an uncommitted transaction.
func (t *transaction) Close() {
	if t.state != txActive {
		return
	}
	t.state = txClosed

	if len(t.undo) == 0 {
		return
	}
	log.Infof("aborting transaction on %s via close, reverting %d mutations", t.database.name, len(t.undo))
	t.rollback()
	t.undo = nil
}

// rollback replays the undo log in reverse
func (t *transaction) rollback() {
	t.database.mu.Lock()
	defer t.database.mu.Unlock()

	for i := len(t.undo) - 1; i >= 0; i-- {
		u := t.undo[i]
		if u.existed {
			t.database.data.ReplaceOrInsert(db.Entry{Key: u.key, Value: u.old})
		} else {
			t.database.data.Delete(db.Entry{Key: u.key})
		}
	}
}
