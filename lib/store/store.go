package store

import (
	"errors"

	"github.com/ValentinKolb/wKV/lib/db"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	log = logger.GetLogger("store")

	errNoDirectory = errors.New("backend can not list databases")
)

// Store is the handle callers obtain for one database. Apart from the open
// database it holds no state; all work happens in transactions.
type Store struct {
	database db.Database
	backend  string
}

// Open opens the database name through factory.
func Open(name string, factory DBFactory) (*Store, error) {
	database, err := factory(name)
	if err != nil {
		return nil, err
	}
	return &Store{
		database: database,
		backend:  string(database.GetInfo().DbType),
	}, nil
}

// Name returns the name of the database.
func (s *Store) Name() string {
	return s.database.Name()
}

// Info returns information about the underlying database.
func (s *Store) Info() db.DatabaseInfo {
	return s.database.GetInfo()
}

// BeginTransaction opens a new transaction. The caller must Commit or Close
// it; `defer tx.Close()` right after this call is the idiom.
func (s *Store) BeginTransaction() (db.Transaction, error) {
	tx, err := s.database.BeginTransaction()
	if err != nil {
		return nil, err
	}
	return newInstrumentedTx(tx, s.backend), nil
}

// Update runs fn in a new transaction and commits it if fn returns nil.
// The transaction is always closed, so an error or a panic in fn aborts it.
func (s *Store) Update(fn func(tx db.Transaction) error) error {
	tx, err := s.BeginTransaction()
	if err != nil {
		return err
	}
	defer tx.Close()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// View runs fn in a new transaction that is closed afterward and never committed.
func (s *Store) View(fn func(tx db.Transaction) error) error {
	tx, err := s.BeginTransaction()
	if err != nil {
		return err
	}
	defer tx.Close()

	return fn(tx)
}

// ListDatabases lists all databases of the backend if it supports that.
func (s *Store) ListDatabases() ([]string, error) {
	dir, ok := s.database.(Directory)
	if !ok || !s.database.SupportsFeature(db.FeatureListDatabases) {
		return nil, db.NewError(db.RetCUnsupportedOperation, "list", nil, errNoDirectory)
	}
	return dir.ListDatabases()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	log.Debugf("closing store %s", s.database.Name())
	return s.database.Close()
}
