// Package idb implements the durable database engine on top of a native
// transactional object store (see the objectstore package).
//
// Every db.Transaction maps to exactly one read-write object store transaction
// on a single named store (DefaultStoreName unless configured). Keys and values
// are stored as lowercase hex strings. This doubles the stored size but keeps
// the records readable by every other client of the same store: the hex form is
// what the browser wallet has always written to IndexedDB.
//
// Operations:
//
//   - Insert and Remove read the previous value first and then write, both in
//     the same object store transaction, so they return the old value and a
//     later Get in the same transaction sees the write.
//
//   - FindByPrefix runs a single GetAll on [hex(p), hex(NextPrefix(p))), or on
//     [hex(p), +inf) when the prefix is empty or all 0xFF. Hex digits sort like
//     the bytes they encode, so the range is exact. Records are decoded lazily
//     while the sequence is ranged over. FindByPrefixDescending fetches the same
//     ascending set and reverses it in memory.
//
//   - Commit commits the object store transaction. A failure is returned as a
//     *db.Error with Op "commit"; there is no retry.
//
//   - Close without Commit aborts. The abort runs on a detached goroutine and a
//     failure is only logged. Database.Close waits for all pending aborts, so
//     transactions must be closed before their database.
//
// Records that are not valid hex can only come from corrupted storage and make
// the engine panic.
package idb
