package objectstore

import (
	"errors"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

// Mode is the access mode of a transaction.
type Mode int

const (
	ReadOnly  Mode = iota // The transaction only reads
	ReadWrite             // The transaction may write, write transactions are serialized
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "readonly"
	case ReadWrite:
		return "readwrite"
	default:
		return "unknown"
	}
}

// Direction is the iteration order of GetAll.
type Direction int

const (
	Next Direction = iota // Ascending key order
	Prev                  // Descending key order
)

// KV is one record of an object store.
type KV struct {
	Key   string
	Value string
}

var (
	// ErrReadOnly is returned when a write is issued on a ReadOnly transaction.
	ErrReadOnly = errors.New("objectstore: transaction is read-only")

	// ErrTxDone is returned by every call on a committed or aborted transaction.
	ErrTxDone = errors.New("objectstore: transaction has already been committed or aborted")

	// ErrClosed is returned when a transaction is requested from a closed store.
	ErrClosed = errors.New("objectstore: store is closed")
)

// --------------------------------------------------------------------------
// Interfaces
// --------------------------------------------------------------------------

// ObjectStore is a durable, transactional, string keyed record store. One
// ObjectStore holds any number of named stores that share its transactions.
type ObjectStore interface {
	// Transaction opens a transaction on the named store. A ReadWrite transaction
	// creates the store if it does not exist yet. Opening a ReadWrite transaction
	// blocks while another ReadWrite transaction is live.
	Transaction(storeName string, mode Mode) (tx Tx, err error)

	// Close releases the store. Live transactions must be finished first.
	Close() (err error)
}

// Tx is a transaction on a single named store. A Tx must not be used concurrently.
type Tx interface {
	// Put inserts or overwrites the record for key.
	Put(key, value string) (err error)

	// Get returns the value of key. found is false if no record exists.
	Get(key string) (value string, found bool, err error)

	// Delete removes the record for key. Deleting a missing key is not an error.
	Delete(key string) (err error)

	// GetAll returns every record whose key is inside r, ordered by dir.
	GetAll(r KeyRange, dir Direction) (records []KV, err error)

	// Commit makes the writes durable. The transaction is finished afterward,
	// even if Commit fails.
	Commit() (err error)

	// Abort discards the writes and finishes the transaction.
	Abort() (err error)
}

// Opener opens (and creates if needed) the object store of a database name.
type Opener func(name string) (store ObjectStore, err error)
