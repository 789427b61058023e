package testing

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/ValentinKolb/wKV/lib/db"
)

// RunTransactionBenchmarks runs all benchmarks for a db.Database implementation
func RunTransactionBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, open(b, factory, name+"-insert"))
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, open(b, factory, name+"-get"))
	})

	b.Run("FindByPrefix", func(b *testing.B) {
		benchmarkFindByPrefix(b, open(b, factory, name+"-find"))
	})

	b.Run("CommitSmall", func(b *testing.B) {
		benchmarkCommit(b, open(b, factory, name+"-commit-small"), 0)
	})

	b.Run("CommitWallet", func(b *testing.B) {
		benchmarkCommit(b, open(b, factory, name+"-commit-wallet"), 1000)
	})
}

func benchKey(i int) []byte {
	key := make([]byte, 9)
	key[0] = 0x2f
	binary.BigEndian.PutUint64(key[1:], uint64(i))
	return key
}

// fill writes n entries of 128 byte values in one transaction
func fill(b *testing.B, database db.Database, n int) {
	value := make([]byte, 128)
	tx := begin(b, database)
	for i := 0; i < n; i++ {
		insert(b, tx, benchKey(i), value)
	}
	commit(b, tx)
}

func benchmarkInsert(b *testing.B, database db.Database) {
	defer database.Close()

	value := []byte("benchmark-value")
	tx := begin(b, database)
	defer tx.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tx.Insert(benchKey(i), value); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, database db.Database) {
	defer database.Close()

	const n = 1000
	fill(b, database, n)

	tx := begin(b, database)
	defer tx.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := tx.Get(benchKey(i % n)); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkFindByPrefix(b *testing.B, database db.Database) {
	defer database.Close()

	const n = 1000
	fill(b, database, n)

	tx := begin(b, database)
	defer tx.Close()

	// prefixes matching 256 entries each
	prefixes := make([][]byte, 0, 4)
	for i := 0; i < 4; i++ {
		prefixes = append(prefixes, benchKey(i*256)[:8])
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		seq, err := tx.FindByPrefix(prefixes[i%len(prefixes)])
		if err != nil {
			b.Fatal(err)
		}
		for range seq {
		}
	}
}

func benchmarkCommit(b *testing.B, database db.Database, size int) {
	defer database.Close()

	if size > 0 {
		fill(b, database, size)
	}
	b.ReportMetric(float64(size), "entries")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		tx := begin(b, database)
		insert(b, tx, []byte(fmt.Sprintf("k%d", i%100)), []byte{0x01})
		commit(b, tx)
	}
}
