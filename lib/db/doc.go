// Package db defines the transactional, byte oriented key-value contract that
// every wKV backend implements.
//
// The package focuses on:
//   - A Transaction interface with get/insert/remove, prefix scans and a single commit
//   - A Database interface that opens transactions and reports its capabilities
//   - A structured Error type carrying the failed operation and key
//
// Key Components:
//
//   - Transaction: One unit of work. Writes become visible and durable on Commit.
//     A transaction that is closed without Commit is aborted. Commit consumes the
//     handle; a second Commit or any operation after Commit/Close panics, since it can
//     only be a programming error of the caller.
//
//   - Prefix Scans: FindByPrefix and FindByPrefixDescending return iter.Seq2 sequences
//     that can be ranged over exactly once. Keys are compared as raw bytes, nothing else
//     about their structure is interpreted. RemoveByPrefix is implemented by all backends
//     as scan-then-remove-each (see RemoveEachByPrefix).
//
//   - Savepoints: SetSavepoint and RollbackToSavepoint are part of the contract for
//     compatibility with callers. No backend in this module supports them; they panic
//     instead of silently succeeding.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     advertise through the SupportsFeature method (e.g. FeatureListDatabases).
//
//   - Errors: Facility failures are returned as *Error with RetCInternalError. There is
//     no retry inside the store; the transaction owner decides whether to retry the whole
//     transaction.
//
// Usage Example:
//
//	tx, err := database.BeginTransaction()
//	if err != nil {
//		return err
//	}
//	defer tx.Close()
//
//	if _, err := tx.Insert([]byte{0x2f}, []byte{0x01}); err != nil {
//		return err
//	}
//	return tx.Commit()
//
// Related Packages:
//
// The engines/idb package wraps a native transactional object store (see the
// objectstore package) and hex encodes keys and values. The engines/memsnap package
// keeps an ordered in-memory map and writes a full snapshot to a blob store on every
// commit. The util package holds the prefix arithmetic both engines use, and the
// testing package provides the conformance suite every engine must pass.
package db
