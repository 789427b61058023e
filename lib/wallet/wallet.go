package wallet

import (
	"errors"

	"github.com/ValentinKolb/wKV/lib/common"
	"github.com/ValentinKolb/wKV/lib/db"
	"github.com/ValentinKolb/wKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

const (
	// FederationPrefix tags the records of the federations a wallet has joined
	FederationPrefix byte = 0x2f
)

var (
	log = logger.GetLogger("wallet")

	errNoDirectory = errors.New("backend can not list wallets")
)

// Selector opens wallets by name. Every wallet is one database of the backend.
type Selector struct {
	factory   store.DBFactory
	directory store.Directory
}

// NewSelector returns a selector for the backend configured by conf
func NewSelector(conf common.StoreConfig) (*Selector, error) {
	factory, dir, err := store.NewBackend(conf)
	if err != nil {
		return nil, err
	}
	return NewSelectorWith(factory, dir), nil
}

// NewSelectorWith returns a selector for factory. dir may be nil.
func NewSelectorWith(factory store.DBFactory, dir store.Directory) *Selector {
	return &Selector{factory: factory, directory: dir}
}

// ListWallets returns the names of all persisted wallets
func (s *Selector) ListWallets() ([]string, error) {
	if s.directory == nil {
		return nil, db.NewError(db.RetCUnsupportedOperation, "list", nil, errNoDirectory)
	}
	return s.directory.ListDatabases()
}

// SelectWallet opens the wallet name and reports whether it already joined a
// federation. The caller owns the returned store and must close it.
func (s *Selector) SelectWallet(name string) (*store.Store, bool, error) {
	st, err := store.Open(name, s.factory)
	if err != nil {
		return nil, false, err
	}

	initialized, err := IsInitialized(st)
	if err != nil {
		_ = st.Close()
		return nil, false, err
	}

	log.Infof("selected wallet %s (initialized: %t)", name, initialized)
	return st, initialized, nil
}

// IsInitialized reports whether the wallet holds at least one federation record
func IsInitialized(st *store.Store) (bool, error) {
	initialized := false
	err := st.View(func(tx db.Transaction) error {
		entries, err := tx.FindByPrefix([]byte{FederationPrefix})
		if err != nil {
			return err
		}
		for range entries {
			initialized = true
			break
		}
		return nil
	})
	return initialized, err
}

// MarkJoined writes the federation record of st with value and commits it
func MarkJoined(st *store.Store, value []byte) error {
	return st.Update(func(tx db.Transaction) error {
		_, err := tx.Insert([]byte{FederationPrefix}, value)
		return err
	})
}
