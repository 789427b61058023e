// Package memsnap implements the snapshot-backed in-memory database engine.
//
// Every open database holds one ordered map (a google/btree BTreeG) that all
// of its transactions share. On Open the map is hydrated from a single blob in
// a blob.Storage; on every Commit the whole map is serialized and written back
// as one blob, replacing the previous one. Commit cost is proportional to the
// size of the database, which is fine for wallet state.
//
// Key Components:
//
//   - snapDatabase: Implements db.Database. The blob name of a database is the
//     configured namespace followed by the database name. A database that is
//     opened but never committed leaves no blob behind.
//
//   - transaction: Implements db.Transaction. Mutations are applied to the
//     shared map immediately and recorded in an undo log. Close without Commit
//     replays the undo log in reverse, so abandoned writes are rolled back in
//     memory too, not only across a restart. A failed blob write rolls back the
//     same way and Commit returns the error.
//
//   - Directory: Lists the names of all databases committed under a namespace
//     by enumerating the keys of the blob storage.
//
// Snapshot format (little endian):
//
//	"WKVSNAP\x00" | version uint8 | count uint64 |
//	count * ( keyLen uint32 | key | valueLen uint32 | value )
//
// Entries are written in ascending key order.
//
// Concurrency:
//
// A mutex protects single map operations. Transactions themselves are not
// isolated from each other: two live transactions on the same instance see
// each other's writes, and the undo log of one can revert keys the other
// changed afterward. Using at most one live transaction per instance is the
// caller's responsibility.
package memsnap
