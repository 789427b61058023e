package level

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/wKV/lib/objectstore"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// nsSep separates the store name from the key. Store names must not contain it.
	nsSep = 0x00

	defaultBloomBits = 10
	minCache         = 16 // MiB
)

var log = logger.GetLogger("objectstore")

// Options configures how leveldb databases are opened
type Options struct {
	Dir       string // Directory holding one leveldb directory per database
	InMemory  bool   // Keep the databases in memory storage instead of files
	CacheMiB  int    // Block cache and write buffer budget (min 16)
	BloomBits int    // Bits per key of the bloom filter (0 = use default)
}

// DefaultOptions returns the default options for the given directory
func DefaultOptions(dir string) *Options {
	return &Options{
		Dir:       dir,
		CacheMiB:  minCache,
		BloomBits: defaultBloomBits,
	}
}

func (o *Options) levelOptions() *opt.Options {
	cache := o.CacheMiB
	if cache < minCache {
		cache = minCache
	}
	bits := o.BloomBits
	if bits == 0 {
		bits = defaultBloomBits
	}
	return &opt.Options{
		BlockCacheCapacity: cache / 2 * opt.MiB,
		WriteBuffer:        cache / 4 * opt.MiB, // Two of these are used internally
		Filter:             filter.NewBloomFilter(bits),
	}
}

// --------------------------------------------------------------------------
// Opener
// --------------------------------------------------------------------------

// NewOpener returns an objectstore.Opener for the given options.
//
// With InMemory set the opener keeps the storage of every name it opened, so
// closing and reopening the same name within one opener sees the committed data.
func NewOpener(opts *Options) objectstore.Opener {
	if opts == nil {
		opts = DefaultOptions(".")
	}

	var (
		mu       sync.Mutex
		storages = make(map[string]storage.Storage)
	)

	return func(name string) (objectstore.ObjectStore, error) {
		if !opts.InMemory {
			if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create leveldb directory %s: %w", opts.Dir, err)
			}
			return OpenFile(filepath.Join(opts.Dir, name), opts)
		}

		mu.Lock()
		stor, ok := storages[name]
		if !ok {
			stor = storage.NewMemStorage()
			storages[name] = stor
		}
		mu.Unlock()

		ldb, err := leveldb.Open(stor, opts.levelOptions())
		if err != nil {
			return nil, err
		}
		return &levelStore{ldb: ldb}, nil
	}
}

// OpenFile opens (or creates) the leveldb database in path. A database that
// fails to open because of corruption is recovered.
func OpenFile(path string, opts *Options) (objectstore.ObjectStore, error) {
	if opts == nil {
		opts = DefaultOptions(filepath.Dir(path))
	}

	ldb, err := leveldb.OpenFile(path, opts.levelOptions())
	if lerrors.IsCorrupted(err) {
		log.Warningf("leveldb %s is corrupted, recovering: %v", path, err)
		ldb, err = leveldb.RecoverFile(path, opts.levelOptions())
	}
	// (Re)check for errors and abort if opening of the db failed
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb %s: %w", path, err)
	}

	return &levelStore{ldb: ldb}, nil
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

type levelStore struct {
	ldb    *leveldb.DB
	closed atomic.Bool
}

// reader is what a read-write transaction and a snapshot have in common
type reader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator
}

func (s *levelStore) Transaction(storeName string, mode objectstore.Mode) (objectstore.Tx, error) {
	if s.closed.Load() {
		return nil, objectstore.ErrClosed
	}

	ns := make([]byte, 0, len(storeName)+1)
	ns = append(ns, storeName...)
	ns = append(ns, nsSep)

	if mode == objectstore.ReadWrite {
		tr, err := s.ldb.OpenTransaction()
		if err != nil {
			return nil, err
		}
		return &levelTx{ns: ns, r: tr, tr: tr}, nil
	}

	snap, err := s.ldb.GetSnapshot()
	if err != nil {
		return nil, err
	}
	return &levelTx{ns: ns, r: snap, snap: snap}, nil
}

func (s *levelStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.ldb.Close()
}

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

type levelTx struct {
	ns   []byte
	r    reader
	tr   *leveldb.Transaction // nil for read-only transactions
	snap *leveldb.Snapshot    // nil for read-write transactions
	done bool
}

func (t *levelTx) key(key string) []byte {
	b := make([]byte, 0, len(t.ns)+len(key))
	b = append(b, t.ns...)
	return append(b, key...)
}

func (t *levelTx) check(write bool) error {
	if t.done {
		return objectstore.ErrTxDone
	}
	if write && t.tr == nil {
		return objectstore.ErrReadOnly
	}
	return nil
}

func (t *levelTx) Put(key, value string) error {
	if err := t.check(true); err != nil {
		return err
	}
	return t.tr.Put(t.key(key), []byte(value), nil)
}

func (t *levelTx) Get(key string) (string, bool, error) {
	if err := t.check(false); err != nil {
		return "", false, err
	}
	v, err := t.r.Get(t.key(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(v), true, nil
}

func (t *levelTx) Delete(key string) error {
	if err := t.check(true); err != nil {
		return err
	}
	return t.tr.Delete(t.key(key), nil)
}

// slice converts r into the half-open leveldb range of the namespace
func (t *levelTx) slice(r objectstore.KeyRange) *util.Range {
	start := t.key(r.Lower)
	if r.LowerOpen {
		start = append(start, 0x00) // smallest key after Lower
	}

	var limit []byte
	if r.HasUpper {
		limit = t.key(r.Upper)
		if !r.UpperOpen {
			limit = append(limit, 0x00)
		}
	} else {
		limit = util.BytesPrefix(t.ns).Limit
	}

	return &util.Range{Start: start, Limit: limit}
}

func (t *levelTx) GetAll(r objectstore.KeyRange, dir objectstore.Direction) ([]objectstore.KV, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if r.Empty() {
		return nil, nil
	}

	it := t.r.NewIterator(t.slice(r), nil)
	defer it.Release()

	var (
		records []objectstore.KV
		ok      bool
		step    func() bool
	)
	if dir == objectstore.Next {
		ok, step = it.First(), it.Next
	} else {
		ok, step = it.Last(), it.Prev
	}

	for ; ok; ok = step() {
		// string() copies, the iterator reuses its buffers
		records = append(records, objectstore.KV{
			Key:   string(it.Key()[len(t.ns):]),
			Value: string(it.Value()),
		})
	}
	return records, it.Error()
}

func (t *levelTx) Commit() error {
	if t.done {
		return objectstore.ErrTxDone
	}
	t.done = true

	if t.tr == nil {
		t.snap.Release()
		return nil
	}

	if err := t.tr.Commit(); err != nil {
		// a failed commit leaves the leveldb transaction open
		t.tr.Discard()
		return err
	}
	return nil
}

func (t *levelTx) Abort() error {
	if t.done {
		return objectstore.ErrTxDone
	}
	t.done = true

	if t.tr == nil {
		t.snap.Release()
		return nil
	}
	t.tr.Discard()
	return nil
}
