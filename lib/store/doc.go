// Package store is the facade callers use to reach a wallet database. It hides
// which backend holds the data and adds metrics to every transaction.
//
// Key Components:
//
//   - Store: The handle of one open database. Transactions are started with
//     BeginTransaction, or with Update and View which also close them.
//
//   - DBFactory: A function type that opens a db.Database by name. NewBackend
//     builds one from a common.StoreConfig.
//
//   - Directory: Lists the databases of a backend. Only the memsnap backend
//     has one; Store.ListDatabases reports RetCUnsupportedOperation otherwise.
//
// Backends:
//
//   - idb: Hex encoded records in an object store, either bolt files or
//     leveldb directories below the data directory.
//     See "github.com/ValentinKolb/wKV/lib/db/engines/idb".
//
//   - memsnap: An in-memory ordered map persisted as one snapshot blob per
//     database, on the file system or in memory.
//     See "github.com/ValentinKolb/wKV/lib/db/engines/memsnap".
//
// Metrics:
//
// Every transaction started through a Store updates the counters
// wkv_tx_begin_total, wkv_tx_commit_total, wkv_tx_commit_errors_total and
// wkv_tx_abort_total as well as the histogram wkv_tx_commit_duration_seconds,
// all labeled with the backend. They are exposed with metrics.WritePrometheus.
//
// Usage example:
//
//	factory, _, err := store.NewBackend(conf)
//	if err != nil {
//		return err
//	}
//	s, err := store.Open("alice", factory)
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	err = s.Update(func(tx db.Transaction) error {
//		_, err := tx.Insert([]byte{0x2f}, []byte{0x01})
//		return err
//	})
package store
