// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.Database interface.
//
// The package contains:
//   - testing: A comprehensive test suite for validating conformance to the Transaction contract
//   - benchmark: Performance tests for measuring throughput of common transaction operations
//
// The suite covers round trips of arbitrary bytes, prefix scan ordering and
// boundaries, one-shot scan sequences, commit durability across reopen,
// abort-on-close and the panics for savepoints and use after commit.
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	blobs := memory.NewStorage()
//	factory := func(name string) (db.Database, error) {
//		return memsnap.Open(name, blobs, nil)
//	}
//
//	// Running the standard test suite
//	dbtesting.RunTransactionTests(t, "MemSnap", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunTransactionBenchmarks(b, "MemSnap", factory)
//
// The factory must return an instance that sees the committed state of every
// earlier, closed instance of the same name.
package testing
