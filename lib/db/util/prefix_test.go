package util

import (
	"bytes"
	"testing"
)

func TestNextPrefix(t *testing.T) {
	tests := []struct {
		name     string
		prefix   []byte
		expected []byte
		ok       bool
	}{
		{"single byte", []byte{0x10}, []byte{0x11}, true},
		{"multi byte", []byte{0x10, 0x01}, []byte{0x10, 0x02}, true},
		{"zero byte", []byte{0x00}, []byte{0x01}, true},
		{"carry drops trailing 0xFF", []byte{0x10, 0xFF}, []byte{0x11}, true},
		{"carry over several bytes", []byte{0x01, 0xFF, 0xFF}, []byte{0x02}, true},
		{"0xFE is incremented", []byte{0xFE}, []byte{0xFF}, true},
		{"single 0xFF has no bound", []byte{0xFF}, nil, false},
		{"all 0xFF has no bound", []byte{0xFF, 0xFF, 0xFF}, nil, false},
		{"empty prefix has no bound", []byte{}, nil, false},
		{"nil prefix has no bound", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := NextPrefix(tt.prefix)
			if ok != tt.ok {
				t.Fatalf("NextPrefix(%x) ok = %v, want %v", tt.prefix, ok, tt.ok)
			}
			if !bytes.Equal(next, tt.expected) {
				t.Errorf("NextPrefix(%x) = %x, want %x", tt.prefix, next, tt.expected)
			}
		})
	}
}

func TestNextPrefixDoesNotModifyInput(t *testing.T) {
	prefix := []byte{0x10, 0xFF}
	_, _ = NextPrefix(prefix)
	if !bytes.Equal(prefix, []byte{0x10, 0xFF}) {
		t.Errorf("input was modified: %x", prefix)
	}
}

// TestNextPrefixBound checks the bound against every one and two byte key plus
// some longer keys: a key has the prefix iff prefix <= key < next.
func TestNextPrefixBound(t *testing.T) {
	prefixes := [][]byte{
		{0x00}, {0x10}, {0x10, 0xFF}, {0x7F, 0x00}, {0xFE, 0xFF}, {0xFF, 0x01}, {0x2f},
	}

	var keys [][]byte
	for a := 0; a < 256; a++ {
		keys = append(keys, []byte{byte(a)})
		for _, b := range []int{0x00, 0x01, 0x7F, 0xFE, 0xFF} {
			keys = append(keys, []byte{byte(a), byte(b)})
			keys = append(keys, []byte{byte(a), byte(b), 0x00})
			keys = append(keys, []byte{byte(a), byte(b), 0xFF, 0xFF})
		}
	}

	for _, prefix := range prefixes {
		next, ok := NextPrefix(prefix)
		if !ok {
			t.Fatalf("expected a bound for %x", prefix)
		}
		if bytes.Compare(next, prefix) <= 0 {
			t.Errorf("NextPrefix(%x) = %x is not greater than the prefix", prefix, next)
		}
		for _, key := range keys {
			inRange := bytes.Compare(key, prefix) >= 0 && bytes.Compare(key, next) < 0
			if inRange != HasPrefix(key, prefix) {
				t.Errorf("prefix %x, bound %x: key %x inRange=%v hasPrefix=%v",
					prefix, next, key, inRange, HasPrefix(key, prefix))
			}
		}
	}
}

func TestHasPrefix(t *testing.T) {
	if !HasPrefix([]byte{0x10, 0x01}, []byte{0x10}) {
		t.Errorf("expected 1001 to have prefix 10")
	}
	if !HasPrefix([]byte{0x10}, []byte{0x10}) {
		t.Errorf("expected exact match to have the prefix")
	}
	if HasPrefix([]byte{0x11}, []byte{0x10}) {
		t.Errorf("expected 11 to not have prefix 10")
	}
	if HasPrefix([]byte{}, []byte{0x10}) {
		t.Errorf("expected empty key to not have prefix 10")
	}
	if !HasPrefix([]byte{0x01}, nil) {
		t.Errorf("expected every key to have the empty prefix")
	}
}
