package db

import (
	"iter"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplIDB     Implementation = "idb"
	ImplMemSnap Implementation = "memsnap"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureInsert          Feature = 1 << iota // Support for Insert operations
	FeatureGet                                 // Support for Get operations
	FeatureRemove                              // Support for Remove operations
	FeaturePrefixScan                          // Support for FindByPrefix and RemoveByPrefix
	FeatureDescendingScan                      // Support for FindByPrefixDescending
	FeatureSavepoint                           // Support for SetSavepoint and RollbackToSavepoint
	FeatureListDatabases                       // The backend can enumerate persisted database names
	FeatureDurableAbort                        // Uncommitted writes never reach persisted state
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureGet:
		return "Get"
	case FeatureRemove:
		return "Remove"
	case FeaturePrefixScan:
		return "PrefixScan"
	case FeatureDescendingScan:
		return "DescendingScan"
	case FeatureSavepoint:
		return "Savepoint"
	case FeatureListDatabases:
		return "ListDatabases"
	case FeatureDurableAbort:
		return "DurableAbort"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Name              string         `json:"name"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// Entry is a single key-value pair returned by prefix scans.
type Entry struct {
	Key   []byte
	Value []byte
}

// --------------------------------------------------------------------------
// Transaction Interface
// --------------------------------------------------------------------------

// Transaction is one read/write unit of work against a Database.
//
// Absent values are reported as a nil slice. A present but empty value is a
// non-nil slice of length zero.
//
// A Transaction must not be used concurrently. It ends with exactly one
// Commit, or with Close when the caller gives up on it. Any call after
// Commit or Close panics, except further calls to Close.
type Transaction interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert inserts or updates the value for key and returns the previous value (nil if none).
	Insert(key, value []byte) (old []byte, err error)

	// Remove deletes key if present and returns the deleted value (nil if none).
	Remove(key []byte) (old []byte, err error)

	// RemoveByPrefix deletes every key that starts with prefix.
	RemoveByPrefix(prefix []byte) (err error)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get returns the value for key, nil if the key does not exist.
	Get(key []byte) (value []byte, err error)

	// FindByPrefix returns all pairs whose key starts with prefix in ascending key order.
	// The exact prefix is included if it is a key itself. The sequence can be ranged over once.
	FindByPrefix(prefix []byte) (entries iter.Seq2[[]byte, []byte], err error)

	// FindByPrefixDescending is FindByPrefix in descending key order.
	FindByPrefixDescending(prefix []byte) (entries iter.Seq2[[]byte, []byte], err error)

	// --------------------------------------------------------------------------
	// Savepoints
	// --------------------------------------------------------------------------

	// SetSavepoint sets an intermediate rollback point.
	// Implementations that do not report FeatureSavepoint panic.
	SetSavepoint() (err error)

	// RollbackToSavepoint rolls back to the last savepoint.
	// Implementations that do not report FeatureSavepoint panic.
	RollbackToSavepoint() (err error)

	// --------------------------------------------------------------------------
	// Lifecycle
	// --------------------------------------------------------------------------

	// Commit makes all writes of the transaction visible and durable.
	// The transaction is consumed, a second Commit panics.
	Commit() (err error)

	// Close aborts the transaction if it was not committed and releases its resources.
	// Close after Commit does nothing.
	Close()
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// Database is a named, independent keyspace that hands out transactions.
type Database interface {
	// Name returns the name the database was opened with.
	Name() (name string)

	// BeginTransaction opens a new read-write transaction.
	BeginTransaction() (tx Transaction, err error)

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close waits for pending background work and releases the database.
	Close() (err error)
}
