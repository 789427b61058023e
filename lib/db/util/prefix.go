package util

// --------------------------------------------------------------------------
// Prefix Arithmetic
// --------------------------------------------------------------------------

// NextPrefix returns the exclusive upper bound of the half-open range that
// contains exactly the keys starting with prefix: the smallest byte string that
// is greater than every key with that prefix.
//
// The prefix is treated as a big-endian number which is incremented by one.
// Trailing 0xFF bytes overflow and are dropped, e.g. [0x10, 0xFF] -> [0x11].
// If every byte overflows (the prefix is empty or all 0xFF) there is no finite
// bound and ok is false: the scan has to run to the end of the keyspace.
//
// The input slice is never modified.
func NextPrefix(prefix []byte) (next []byte, ok bool) {
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] == 0xFF {
			continue
		}
		next = make([]byte, i+1)
		copy(next, prefix[:i+1])
		next[i]++
		return next, true
	}
	return nil, false
}

// HasPrefix reports whether key is inside the prefix range [prefix, NextPrefix(prefix)).
func HasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
