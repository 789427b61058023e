package store

import (
	"fmt"
	"iter"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/wKV/lib/db"
)

// --------------------------------------------------------------------------
// Transaction Metrics
// --------------------------------------------------------------------------

// txMetrics holds the metrics of one backend
type txMetrics struct {
	begin          *metrics.Counter
	commit         *metrics.Counter
	commitErrors   *metrics.Counter
	abort          *metrics.Counter
	commitDuration *metrics.Histogram
}

func metricsFor(backend string) *txMetrics {
	label := fmt.Sprintf(`{backend=%q}`, backend)
	return &txMetrics{
		begin:          metrics.GetOrCreateCounter("wkv_tx_begin_total" + label),
		commit:         metrics.GetOrCreateCounter("wkv_tx_commit_total" + label),
		commitErrors:   metrics.GetOrCreateCounter("wkv_tx_commit_errors_total" + label),
		abort:          metrics.GetOrCreateCounter("wkv_tx_abort_total" + label),
		commitDuration: metrics.GetOrCreateHistogram("wkv_tx_commit_duration_seconds" + label),
	}
}

// instrumentedTx counts the outcome of a transaction. All operations are
// passed to the wrapped transaction unchanged, including its panics.
type instrumentedTx struct {
	tx       db.Transaction
	metrics  *txMetrics
	finished bool
}

func newInstrumentedTx(tx db.Transaction, backend string) *instrumentedTx {
	m := metricsFor(backend)
	m.begin.Inc()
	return &instrumentedTx{tx: tx, metrics: m}
}

func (t *instrumentedTx) Insert(key, value []byte) ([]byte, error) {
	return t.tx.Insert(key, value)
}

func (t *instrumentedTx) Remove(key []byte) ([]byte, error) {
	return t.tx.Remove(key)
}

func (t *instrumentedTx) RemoveByPrefix(prefix []byte) error {
	return t.tx.RemoveByPrefix(prefix)
}

func (t *instrumentedTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(key)
}

func (t *instrumentedTx) FindByPrefix(prefix []byte) (iter.Seq2[[]byte, []byte], error) {
	return t.tx.FindByPrefix(prefix)
}

func (t *instrumentedTx) FindByPrefixDescending(prefix []byte) (iter.Seq2[[]byte, []byte], error) {
	return t.tx.FindByPrefixDescending(prefix)
}

func (t *instrumentedTx) SetSavepoint() error {
	return t.tx.SetSavepoint()
}

func (t *instrumentedTx) RollbackToSavepoint() error {
	return t.tx.RollbackToSavepoint()
}

func (t *instrumentedTx) Commit() error {
	// the wrapped Commit panics on a finished transaction
	start := time.Now()
	err := t.tx.Commit()
	t.finished = true

	t.metrics.commitDuration.UpdateDuration(start)
	if err != nil {
		t.metrics.commitErrors.Inc()
		log.Warningf("commit failed: %v", err)
		return err
	}
	t.metrics.commit.Inc()
	return nil
}

func (t *instrumentedTx) Close() {
	if !t.finished {
		t.finished = true
		t.metrics.abort.Inc()
	}
	t.tx.Close()
}
