package store

import (
	"fmt"

	"github.com/ValentinKolb/wKV/lib/blob"
	"github.com/ValentinKolb/wKV/lib/blob/fs"
	"github.com/ValentinKolb/wKV/lib/blob/memory"
	"github.com/ValentinKolb/wKV/lib/common"
	"github.com/ValentinKolb/wKV/lib/db"
	"github.com/ValentinKolb/wKV/lib/db/engines/idb"
	"github.com/ValentinKolb/wKV/lib/db/engines/memsnap"
	"github.com/ValentinKolb/wKV/lib/objectstore"
	"github.com/ValentinKolb/wKV/lib/objectstore/bolt"
	"github.com/ValentinKolb/wKV/lib/objectstore/level"
)

// --------------------------------------------------------------------------
// Backend Factory
// --------------------------------------------------------------------------

// NewBackend builds the factory for the backend selected by conf. The returned
// Directory is nil if the backend can not list its databases.
//
// All databases opened through one factory share the same object store opener
// or blob storage, so a memory backed configuration keeps its data for as long
// as the factory lives.
func NewBackend(conf common.StoreConfig) (DBFactory, Directory, error) {
	if err := conf.Validate(); err != nil {
		return nil, nil, err
	}

	switch conf.Backend {
	case common.BackendIDB:
		opener, err := newOpener(conf)
		if err != nil {
			return nil, nil, err
		}
		opts := &idb.Options{StoreName: conf.StoreName}
		factory := func(name string) (db.Database, error) {
			return idb.Open(name, opener, opts)
		}
		log.Debugf("using idb backend on %s in %s", conf.Engine, conf.DataDir)
		return factory, nil, nil

	case common.BackendMemSnap:
		blobs, err := newBlobStorage(conf)
		if err != nil {
			return nil, nil, err
		}
		opts := &memsnap.Options{Namespace: conf.Namespace}
		factory := func(name string) (db.Database, error) {
			return memsnap.Open(name, blobs, opts)
		}
		log.Debugf("using memsnap backend on %s blob storage", conf.Blob)
		return factory, memsnap.NewDirectory(blobs, opts), nil
	}

	return nil, nil, fmt.Errorf("unknown backend %q", conf.Backend)
}

func newOpener(conf common.StoreConfig) (objectstore.Opener, error) {
	switch conf.Engine {
	case common.EngineBolt:
		return bolt.NewOpener(bolt.DefaultOptions(conf.DataDir)), nil
	case common.EngineLevelDB:
		return level.NewOpener(level.DefaultOptions(conf.DataDir)), nil
	}
	return nil, fmt.Errorf("unknown engine %q", conf.Engine)
}

func newBlobStorage(conf common.StoreConfig) (blob.Storage, error) {
	if conf.Blob == common.BlobMemory {
		return memory.NewStorage(), nil
	}
	return fs.NewOsStorage(conf.DataDir)
}
