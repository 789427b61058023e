package store

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/wKV/lib/common"
	"github.com/ValentinKolb/wKV/lib/db"
	dbtesting "github.com/ValentinKolb/wKV/lib/db/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func memSnapConfig() common.StoreConfig {
	return common.StoreConfig{
		Backend: common.BackendMemSnap,
		Blob:    common.BlobMemory,
	}
}

func idbConfig(t *testing.T, engine common.Engine) common.StoreConfig {
	return common.StoreConfig{
		Backend:   common.BackendIDB,
		Engine:    engine,
		DataDir:   t.TempDir(),
		StoreName: "fedimint",
	}
}

func backends(t *testing.T) map[string]common.StoreConfig {
	return map[string]common.StoreConfig{
		"MemSnap(memory)": memSnapConfig(),
		"MemSnap(fs)": {
			Backend: common.BackendMemSnap,
			Blob:    common.BlobFS,
			DataDir: t.TempDir(),
		},
		"IDB(bolt)":    idbConfig(t, common.EngineBolt),
		"IDB(leveldb)": idbConfig(t, common.EngineLevelDB),
	}
}

func openStore(t *testing.T, conf common.StoreConfig, name string) (*Store, DBFactory, Directory) {
	factory, dir, err := NewBackend(conf)
	require.NoError(t, err)
	s, err := Open(name, factory)
	require.NoError(t, err)
	return s, factory, dir
}

func counter(name, backend string) uint64 {
	return metrics.GetOrCreateCounter(fmt.Sprintf(`%s{backend=%q}`, name, backend)).Get()
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestBackendsConformance(t *testing.T) {
	for name, conf := range backends(t) {
		factory, _, err := NewBackend(conf)
		require.NoError(t, err, name)
		dbtesting.RunTransactionTests(t, name, dbtesting.DBFactory(factory))
	}
}

func TestNewBackendInvalidConfig(t *testing.T) {
	_, _, err := NewBackend(common.StoreConfig{Backend: "sqlite"})
	assert.Error(t, err)

	_, _, err = NewBackend(common.StoreConfig{Backend: common.BackendIDB, Engine: common.EngineBolt, StoreName: "fedimint"})
	assert.Error(t, err, "idb without data directory must fail")
}

func TestUpdateCommits(t *testing.T) {
	for name, conf := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s, factory, _ := openStore(t, conf, "alice")

			err := s.Update(func(tx db.Transaction) error {
				_, err := tx.Insert([]byte{0x2f}, []byte{0x01})
				return err
			})
			require.NoError(t, err)
			require.NoError(t, s.Close())

			s, err = Open("alice", factory)
			require.NoError(t, err)
			defer s.Close()

			err = s.View(func(tx db.Transaction) error {
				v, err := tx.Get([]byte{0x2f})
				if err != nil {
					return err
				}
				if !bytes.Equal(v, []byte{0x01}) {
					return fmt.Errorf("got %x, want 01", v)
				}
				return nil
			})
			assert.NoError(t, err)
		})
	}
}

func TestUpdateAbortsOnError(t *testing.T) {
	s, _, _ := openStore(t, memSnapConfig(), "alice")
	defer s.Close()

	failure := errors.New("boom")
	err := s.Update(func(tx db.Transaction) error {
		if _, err := tx.Insert([]byte("k"), []byte("v")); err != nil {
			return err
		}
		return failure
	})
	require.ErrorIs(t, err, failure)

	err = s.View(func(tx db.Transaction) error {
		v, err := tx.Get([]byte("k"))
		require.NoError(t, err)
		assert.Nil(t, v, "write of failed update must be reverted")
		return nil
	})
	require.NoError(t, err)
}

func TestUpdateAbortsOnPanic(t *testing.T) {
	s, _, _ := openStore(t, memSnapConfig(), "alice")
	defer s.Close()

	assert.Panics(t, func() {
		_ = s.Update(func(tx db.Transaction) error {
			_, _ = tx.Insert([]byte("k"), []byte("v"))
			panic("boom")
		})
	})

	err := s.View(func(tx db.Transaction) error {
		v, err := tx.Get([]byte("k"))
		require.NoError(t, err)
		assert.Nil(t, v)
		return nil
	})
	require.NoError(t, err)
}

func TestListDatabases(t *testing.T) {
	s, factory, dir := openStore(t, memSnapConfig(), "alice")
	defer s.Close()
	require.NotNil(t, dir)

	require.NoError(t, s.Update(func(tx db.Transaction) error {
		_, err := tx.Insert([]byte{0x2f}, nil)
		return err
	}))

	bob, err := Open("bob", factory)
	require.NoError(t, err)
	require.NoError(t, bob.Update(func(tx db.Transaction) error { return nil }))
	require.NoError(t, bob.Close())

	// never committed
	carol, err := Open("carol", factory)
	require.NoError(t, err)
	require.NoError(t, carol.Close())

	names, err := s.ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)

	names, err = dir.ListDatabases()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}

func TestListDatabasesUnsupported(t *testing.T) {
	s, _, dir := openStore(t, idbConfig(t, common.EngineBolt), "alice")
	defer s.Close()
	assert.Nil(t, dir)

	_, err := s.ListDatabases()
	var dbErr *db.Error
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, db.RetCUnsupportedOperation, dbErr.Code)
}

func TestInfo(t *testing.T) {
	s, _, _ := openStore(t, idbConfig(t, common.EngineLevelDB), "alice")
	defer s.Close()

	assert.Equal(t, "alice", s.Name())
	info := s.Info()
	assert.Equal(t, db.ImplIDB, info.DbType)
	assert.Equal(t, "fedimint", info.Metadata.(map[string]interface{})["store"])
}

func TestTransactionMetrics(t *testing.T) {
	backend := string(db.ImplMemSnap)
	begins := counter("wkv_tx_begin_total", backend)
	commits := counter("wkv_tx_commit_total", backend)
	aborts := counter("wkv_tx_abort_total", backend)

	s, _, _ := openStore(t, memSnapConfig(), "metrics")
	defer s.Close()

	tx, err := s.BeginTransaction()
	require.NoError(t, err)
	_, err = tx.Insert([]byte("k"), []byte("v"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	tx.Close()

	tx, err = s.BeginTransaction()
	require.NoError(t, err)
	tx.Close()
	tx.Close()

	assert.Equal(t, begins+2, counter("wkv_tx_begin_total", backend))
	assert.Equal(t, commits+1, counter("wkv_tx_commit_total", backend))
	assert.Equal(t, aborts+1, counter("wkv_tx_abort_total", backend))

	var buf bytes.Buffer
	metrics.WritePrometheus(&buf, false)
	assert.Contains(t, buf.String(), `wkv_tx_commit_duration_seconds_bucket{backend="memsnap"`)
}

func TestInstrumentedTxPassesPanics(t *testing.T) {
	s, _, _ := openStore(t, memSnapConfig(), "panics")
	defer s.Close()

	tx, err := s.BeginTransaction()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Panics(t, func() { _ = tx.Commit() })
	assert.Panics(t, func() { _ = tx.SetSavepoint() })
}
