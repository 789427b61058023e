// Package objectstore defines the native transactional object store the idb
// engine is built on.
//
// An ObjectStore holds named stores of string keys and string values, sorted by
// key. All access goes through transactions: Put, Get, Delete and range queries
// with GetAll, finished by exactly one Commit or Abort. This is the shape of the
// IndexedDB object store API, which is what the persisted wallet data was
// written with.
//
// Implementations:
//
//   - bolt: One bbolt file per database, one bucket per store name.
//   - level: One goleveldb directory (or in-memory storage) per database, the
//     store name is a key namespace.
//
// The testing sub package contains the conformance suite both implementations
// run, see RunObjectStoreTests.
package objectstore
