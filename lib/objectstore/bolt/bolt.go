package bolt

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/wKV/lib/objectstore"
	"go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// fileExt is appended to the database name to build the bolt file name
	fileExt = ".bolt"

	// keyTag is prepended to every stored key because bolt rejects empty keys.
	// The constant prefix keeps the key order intact.
	keyTag = 'k'

	defaultTimeout = 5 * time.Second
)

// Options configures how bolt files are opened
type Options struct {
	Dir      string        // Directory holding one bolt file per database
	Timeout  time.Duration // Time to wait for the file lock (0 = use default)
	FileMode os.FileMode   // Mode of newly created files (0 = 0600)
	NoSync   bool          // Skip fsync on commit, only for tests and benchmarks
}

// DefaultOptions returns the default options for the given directory
func DefaultOptions(dir string) *Options {
	return &Options{
		Dir:      dir,
		Timeout:  defaultTimeout,
		FileMode: 0600,
	}
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

type boltStore struct {
	db     *bbolt.DB
	closed atomic.Bool
}

// NewOpener returns an objectstore.Opener that opens <Dir>/<name>.bolt
func NewOpener(opts *Options) objectstore.Opener {
	if opts == nil {
		opts = DefaultOptions(".")
	}
	return func(name string) (objectstore.ObjectStore, error) {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bolt directory %s: %w", opts.Dir, err)
		}
		return Open(filepath.Join(opts.Dir, name+fileExt), opts)
	}
}

// Open opens (or creates) the bolt file at path
func Open(path string, opts *Options) (objectstore.ObjectStore, error) {
	if opts == nil {
		opts = DefaultOptions(filepath.Dir(path))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	mode := opts.FileMode
	if mode == 0 {
		mode = 0600
	}

	db, err := bbolt.Open(path, mode, &bbolt.Options{
		Timeout: timeout,
		NoSync:  opts.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt file %s: %w", path, err)
	}

	return &boltStore{db: db}, nil
}

func (s *boltStore) Transaction(storeName string, mode objectstore.Mode) (objectstore.Tx, error) {
	if s.closed.Load() {
		return nil, objectstore.ErrClosed
	}

	writable := mode == objectstore.ReadWrite

	tx, err := s.db.Begin(writable)
	if err != nil {
		return nil, err
	}

	var bucket *bbolt.Bucket
	if writable {
		bucket, err = tx.CreateBucketIfNotExists([]byte(storeName))
		if err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("failed to create bucket %s: %w", storeName, err)
		}
	} else {
		// may be nil, a store that was never written to is empty
		bucket = tx.Bucket([]byte(storeName))
	}

	return &boltTx{tx: tx, bucket: bucket, writable: writable}, nil
}

func (s *boltStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// --------------------------------------------------------------------------
// Transaction
// --------------------------------------------------------------------------

type boltTx struct {
	tx       *bbolt.Tx
	bucket   *bbolt.Bucket
	writable bool
	done     bool
}

func encodeKey(key string) []byte {
	b := make([]byte, 0, len(key)+1)
	b = append(b, keyTag)
	return append(b, key...)
}

func decodeKey(b []byte) string {
	return string(b[1:])
}

func (t *boltTx) check(write bool) error {
	if t.done {
		return objectstore.ErrTxDone
	}
	if write && !t.writable {
		return objectstore.ErrReadOnly
	}
	return nil
}

func (t *boltTx) Put(key, value string) error {
	if err := t.check(true); err != nil {
		return err
	}
	return t.bucket.Put(encodeKey(key), []byte(value))
}

func (t *boltTx) Get(key string) (string, bool, error) {
	if err := t.check(false); err != nil {
		return "", false, err
	}
	if t.bucket == nil {
		return "", false, nil
	}
	v := t.bucket.Get(encodeKey(key))
	if v == nil {
		return "", false, nil
	}
	// string() copies, the mmap'ed value is only valid during the transaction
	return string(v), true, nil
}

func (t *boltTx) Delete(key string) error {
	if err := t.check(true); err != nil {
		return err
	}
	return t.bucket.Delete(encodeKey(key))
}

func (t *boltTx) GetAll(r objectstore.KeyRange, dir objectstore.Direction) ([]objectstore.KV, error) {
	if err := t.check(false); err != nil {
		return nil, err
	}
	if t.bucket == nil || r.Empty() {
		return nil, nil
	}

	var records []objectstore.KV
	c := t.bucket.Cursor()

	if dir == objectstore.Next {
		for k, v := c.Seek(encodeKey(r.Lower)); k != nil; k, v = c.Next() {
			key := decodeKey(k)
			if !r.AboveLower(key) {
				continue // open lower bound
			}
			if !r.BelowUpper(key) {
				break
			}
			records = append(records, objectstore.KV{Key: key, Value: string(v)})
		}
		return records, nil
	}

	// descending: position on the last key <= upper
	var k, v []byte
	if r.HasUpper {
		k, v = c.Seek(encodeKey(r.Upper))
		if k == nil {
			k, v = c.Last()
		} else if !bytes.Equal(k, encodeKey(r.Upper)) {
			k, v = c.Prev()
		}
	} else {
		k, v = c.Last()
	}

	for ; k != nil; k, v = c.Prev() {
		key := decodeKey(k)
		if !r.BelowUpper(key) {
			continue // open upper bound
		}
		if !r.AboveLower(key) {
			break
		}
		records = append(records, objectstore.KV{Key: key, Value: string(v)})
	}
	return records, nil
}

func (t *boltTx) Commit() error {
	if t.done {
		return objectstore.ErrTxDone
	}
	t.done = true

	if !t.writable {
		return t.tx.Rollback()
	}
	// bolt rolls the transaction back itself if the commit fails
	return t.tx.Commit()
}

func (t *boltTx) Abort() error {
	if t.done {
		return objectstore.ErrTxDone
	}
	t.done = true
	return t.tx.Rollback()
}
