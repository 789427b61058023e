package idb

import (
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/wKV/lib/db"
	"github.com/ValentinKolb/wKV/lib/db/util"
	"github.com/ValentinKolb/wKV/lib/objectstore"
	"github.com/lni/dragonboat/v4/logger"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultStoreName is the object store all wallet data lives in
	DefaultStoreName = "fedimint"
)

var (
	log = logger.GetLogger("idb")

	errDatabaseClosed = errors.New("database is closed")

	features = db.FeatureInsert |
		db.FeatureGet |
		db.FeatureRemove |
		db.FeaturePrefixScan |
		db.FeatureDescendingScan |
		db.FeatureDurableAbort
)

// Options configures the idb engine
type Options struct {
	StoreName string // Name of the object store inside the database (empty = use default)
}

// DefaultOptions returns the default idb options
func DefaultOptions() *Options {
	return &Options{
		StoreName: DefaultStoreName,
	}
}

// --------------------------------------------------------------------------
// Encoding
// --------------------------------------------------------------------------

// encode converts raw bytes into the lowercase hex string stored in the object store
func encode(b []byte) string {
	return hex.EncodeToString(b)
}

// decode is the inverse of encode. Invalid hex means the persisted data is
// corrupt and there is no way to continue.
func decode(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("idb: corrupt record %q in object store: %v", s, err))
	}
	if b == nil {
		b = []byte{} // present but empty
	}
	return b
}

// --------------------------------------------------------------------------
// Database
// --------------------------------------------------------------------------

type idbDatabase struct {
	name      string
	storeName string
	store     objectstore.ObjectStore

	pending sync.WaitGroup // detached aborts
	closed  atomic.Bool
}

// Open opens the object store of name through opener and returns it as a db.Database
func Open(name string, opener objectstore.Opener, opts *Options) (db.Database, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	storeName := opts.StoreName
	if storeName == "" {
		storeName = DefaultStoreName
	}

	store, err := opener(name)
	if err != nil {
		return nil, db.IOError("open", nil, err)
	}

	log.Debugf("opened %s (store %s)", name, storeName)
	return &idbDatabase{
		name:      name,
		storeName: storeName,
		store:     store,
	}, nil
}

func (d *idbDatabase) Name() string {
	return d.name
}

// BeginTransaction opens one read-write transaction on the object store.
// It blocks while another read-write transaction (or its detached abort) is live.
func (d *idbDatabase) BeginTransaction() (db.Transaction, error) {
	if d.closed.Load() {
		return nil, db.NewError(db.RetCInvalidOperation, "begin", nil, errDatabaseClosed)
	}

	tx, err := d.store.Transaction(d.storeName, objectstore.ReadWrite)
	if err != nil {
		return nil, db.IOError("begin", nil, err)
	}
	return &transaction{database: d, tx: tx}, nil
}

func (d *idbDatabase) SupportsFeature(feature db.Feature) bool {
	return features&feature == feature
}

func (d *idbDatabase) GetInfo() db.DatabaseInfo {
	supported := make([]db.Feature, 0)
	for f := db.FeatureInsert; f <= db.FeatureDurableAbort; f <<= 1 {
		if d.SupportsFeature(f) {
			supported = append(supported, f)
		}
	}

	return db.DatabaseInfo{
		Name:              d.name,
		DbType:            db.ImplIDB,
		SupportedFeatures: supported,
		Metadata: map[string]interface{}{
			"store": d.storeName,
		},
	}
}

// Close waits for all detached aborts and closes the object store.
func (d *idbDatabase) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	d.pending.Wait()
	if err := d.store.Close(); err != nil {
		return db.IOError("close", nil, err)
	}
	return nil
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

type transaction struct {
	database *idbDatabase
	tx       objectstore.Tx
	state    txState
}

func (t *transaction) checkActive(op string) {
	switch t.state {
	case txCommitted:
		panic("idb: " + op + " on committed transaction")
	case txClosed:
		panic("idb: " + op + " on closed transaction")
	}
}

// get reads the decoded value of key, nil if absent
func (t *transaction) get(op string, key []byte) ([]byte, error) {
	v, found, err := t.tx.Get(encode(key))
	if err != nil {
		return nil, db.IOError(op, key, err)
	}
	if !found {
		return nil, nil
	}
	return decode(v), nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Insert reads the previous value and writes the new one in the same object store transaction.
func (t *transaction) Insert(key, value []byte) ([]byte, error) {
	t.checkActive("insert")

	old, err := t.get("insert", key)
	if err != nil {
		return nil, err
	}
	if err := t.tx.Put(encode(key), encode(value)); err != nil {
		return nil, db.IOError("insert", key, err)
	}
	return old, nil
}

func (t *transaction) Remove(key []byte) ([]byte, error) {
	t.checkActive("remove")

	old, err := t.get("remove", key)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return nil, nil
	}
	if err := t.tx.Delete(encode(key)); err != nil {
		return nil, db.IOError("remove", key, err)
	}
	return old, nil
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
	return t.get("get", key)
}

// prefixRange is [hex(prefix), hex(NextPrefix(prefix))), open ended if there is no next prefix.
// Lowercase hex keeps the byte order, two characters per byte.
func prefixRange(prefix []byte) objectstore.KeyRange {
	lower := encode(prefix)
	if next, ok := util.NextPrefix(prefix); ok {
		return objectstore.Bound(lower, encode(next), false, true)
	}
	return objectstore.LowerBound(lower, false)
}

// fetch runs one GetAll in ascending order
func (t *transaction) fetch(op string, prefix []byte) ([]objectstore.KV, error) {
	records, err := t.tx.GetAll(prefixRange(prefix), objectstore.Next)
	if err != nil {
		return nil, db.IOError(op, prefix, err)
	}
	return records, nil
}

// decodeRecords lazily decodes records. The sequence can be ranged over once.
func decodeRecords(records []objectstore.KV) iter.Seq2[[]byte, []byte] {
	var used atomic.Bool
	return func(yield func([]byte, []byte) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		for _, r := range records {
			if !yield(decode(r.Key), decode(r.Value)) {
				return
			}
		}
	}
}

func (t *transaction) FindByPrefix(prefix []byte) (iter.Seq2[[]byte, []byte], error) {
	t.checkActive("find by prefix")

	records, err := t.fetch("find by prefix", prefix)
	if err != nil {
		return nil, err
	}
	return decodeRecords(records), nil
}

// FindByPrefixDescending fetches the ascending range and reverses it in memory.
func (t *transaction) FindByPrefixDescending(prefix []byte) (iter.Seq2[[]byte, []byte], error) {
	t.checkActive("find by prefix descending")

	records, err := t.fetch("find by prefix descending", prefix)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return decodeRecords(records), nil
}

// --------------------------------------------------------------------------
// Savepoints
// --------------------------------------------------------------------------

func (t *transaction) SetSavepoint() error {
	panic("idb: savepoints are not implemented")
}

func (t *transaction) RollbackToSavepoint() error {
	panic("idb: savepoints are not implemented")
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func (t *transaction) Commit() error {
	t.checkActive("commit")
	t.state = txCommitted

	if err := t.tx.Commit(); err != nil {
		return db.IOError("commit", nil, err)
	}
	log.Debugf("committed transaction on %s", t.database.name)
	return nil
}

// Close hands the abort of an uncommitted transaction to a detached goroutine.
// A failing abort is only logged. Database.Close waits for it.
func (t *transaction) Close() {
	if t.state != txActive {
		return
	}
	t.state = txClosed

	log.Infof("aborting transaction on %s via close", t.database.name)

	t.database.pending.Add(1)
	go func(tx objectstore.Tx, name string) {
		defer t.database.pending.Done()
		if err := tx.Abort(); err != nil {
			log.Errorf("detached abort of transaction on %s failed: %v", name, err)
		}
	}(t.tx, t.database.name)
}
