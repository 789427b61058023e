// Package util provides utility components for
// database implementations that satisfy the db.Database interface.
//
// The package contains:
//   - prefix: Byte prefix arithmetic used to turn a prefix scan into a half-open key range
//
// NextPrefix computes the exclusive upper bound of a prefix range. Both backends
// build their scan ranges from it: the idb engine as a hex encoded KeyRange for
// the object store, the memsnap engine as an AscendRange over its ordered map.
//
// Example usage:
//
//	lower := prefix
//	upper, ok := util.NextPrefix(prefix)
//	if !ok {
//		// no finite bound, scan from lower to the end of the keyspace
//	}
package util
