package memsnap

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/wKV/lib/db"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Snapshot Format
// --------------------------------------------------------------------------

// Constants for the snapshot blob structure
const (
	magicNum    = "WKVSNAP\x00" // Blob format identifier
	snapVersion = 1             // Snapshot format version
)

var errTruncated = errors.New("snapshot is truncated")

// writeSnapshot serializes every entry of tree in ascending key order:
//
//	magic | version (uint8) | count (uint64)
//	count * ( key len (uint32) | key | value len (uint32) | value )
//
// All integers are little endian.
func writeSnapshot(w io.Writer, tree *btree.BTreeG[db.Entry]) error {
	bw := bufio.NewWriter(w)

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write snapshot version
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapVersion)); err != nil {
		return err
	}

	// Write total entry count
	if err := binary.Write(bw, binary.LittleEndian, uint64(tree.Len())); err != nil {
		return err
	}

	// Write entries
	var err error
	tree.Ascend(func(e db.Entry) bool {
		if err = binary.Write(bw, binary.LittleEndian, uint32(len(e.Key))); err != nil {
			return false
		}
		if _, err = bw.Write(e.Key); err != nil {
			return false
		}
		if err = binary.Write(bw, binary.LittleEndian, uint32(len(e.Value))); err != nil {
			return false
		}
		_, err = bw.Write(e.Value)
		return err == nil
	})
	if err != nil {
		return err
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// readSnapshot decodes a blob written by writeSnapshot. Lengths are checked
// against the remaining input before anything is allocated.
func readSnapshot(data []byte) ([]db.Entry, error) {
	r := bytes.NewReader(data)

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(r, magicBytes); err != nil {
		return nil, errTruncated
	}
	if string(magicBytes) != magicNum {
		return nil, fmt.Errorf("invalid snapshot format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, errTruncated
	}
	if version != snapVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d (expected %d)", version, snapVersion)
	}

	// Read entry count, every entry needs at least its two length fields
	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, errTruncated
	}
	if count > uint64(r.Len())/8 {
		return nil, fmt.Errorf("invalid entry count %d for %d remaining bytes", count, r.Len())
	}

	readField := func() ([]byte, error) {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, errTruncated
		}
		if uint64(n) > uint64(r.Len()) {
			return nil, errTruncated
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, errTruncated
		}
		return b, nil
	}

	entries := make([]db.Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		key, err := readField()
		if err != nil {
			return nil, err
		}
		value, err := readField()
		if err != nil {
			return nil, err
		}
		entries = append(entries, db.Entry{Key: key, Value: value})
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after last entry", r.Len())
	}
	return entries, nil
}
