package db

import (
	"iter"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Prefix scan helpers shared by all backends
// --------------------------------------------------------------------------

// OneShot exposes entries as a lazy sequence that can be ranged over once.
// A second range over the returned sequence yields nothing.
func OneShot(entries []Entry) iter.Seq2[[]byte, []byte] {
	var used atomic.Bool
	return func(yield func([]byte, []byte) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		for _, e := range entries {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Reverse reverses entries in place and returns them.
func Reverse(entries []Entry) []Entry {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries
}

// Collect drains a scan sequence into a slice.
func Collect(seq iter.Seq2[[]byte, []byte]) []Entry {
	var entries []Entry
	for k, v := range seq {
		entries = append(entries, Entry{Key: k, Value: v})
	}
	return entries
}

// prefixRemover is the part of a Transaction RemoveEachByPrefix needs.
type prefixRemover interface {
	FindByPrefix(prefix []byte) (iter.Seq2[[]byte, []byte], error)
	Remove(key []byte) ([]byte, error)
}

// RemoveEachByPrefix scans prefix and removes every key it found, one by one.
// The removal is not atomic with respect to other writers; there are none
// under the single writer model.
func RemoveEachByPrefix(tx prefixRemover, prefix []byte) error {
	seq, err := tx.FindByPrefix(prefix)
	if err != nil {
		return err
	}

	// collect first, the scan must not observe its own removals
	var keys [][]byte
	for k := range seq {
		keys = append(keys, k)
	}

	for _, k := range keys {
		if _, err := tx.Remove(k); err != nil {
			return err
		}
	}
	return nil
}
