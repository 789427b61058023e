package store

import (
	"github.com/ValentinKolb/wKV/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that opens the database with the given name.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func(name string) (database db.Database, err error)

// Directory enumerates the names of all persisted databases of a backend.
// Backends that can not enumerate their databases have no Directory.
type Directory interface {
	// ListDatabases returns the sorted names of all databases committed at least once.
	ListDatabases() (names []string, err error)
}
