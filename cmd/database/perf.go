package database

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/wKV/cmd/util"
	"github.com/ValentinKolb/wKV/lib/db"
	"github.com/ValentinKolb/wKV/lib/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the configured backend",
		Long:    "Runs insert, get, scan and commit benchmarks on a scratch database of the configured backend. All keys written are removed afterward.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = []byte("__test")
	perfLargeValueSizeKB = 100
	perfKeySpread        = 100
	perfBatchSize        = 50
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. insert,get)"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the insert-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "batch"
	perfTestCmd.Flags().Int(key, 50, util.WrapString("How many inserts the commit-batch test runs per transaction"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfBatchSize = viper.GetInt("batch")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread < 1 || perfBatchSize < 1 {
		return fmt.Errorf("keys and batch must be positive")
	}
	return nil
}

// benchmark is one named performance test run against an open store
type benchmark struct {
	name string
	run  func(b *testing.B, s *store.Store)
}

var benchmarks = []benchmark{
	{"insert", func(b *testing.B, s *store.Store) {
		getKey := getKeys("insert")
		for i := 0; i < b.N; i++ {
			update(s, "insert", func(tx db.Transaction) error {
				_, err := tx.Insert(getKey(i), []byte("test"))
				return err
			})
		}
	}},
	{"insert-large", func(b *testing.B, s *store.Store) {
		largeValue := make([]byte, perfLargeValueSizeKB*1024)
		getKey := getKeys("insert-large")
		for i := 0; i < b.N; i++ {
			update(s, "insert-large", func(tx db.Transaction) error {
				_, err := tx.Insert(getKey(i), largeValue)
				return err
			})
		}
	}},
	{"commit-batch", func(b *testing.B, s *store.Store) {
		getKey := getKeys("commit-batch")
		for i := 0; i < b.N; i++ {
			update(s, "commit-batch", func(tx db.Transaction) error {
				for j := 0; j < perfBatchSize; j++ {
					if _, err := tx.Insert(getKey(i*perfBatchSize+j), []byte("test")); err != nil {
						return err
					}
				}
				return nil
			})
		}
	}},
	{"get", func(b *testing.B, s *store.Store) {
		getKey := getKeys("get")
		fill(s, "get", getKey)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			view(s, "get", func(tx db.Transaction) error {
				_, err := tx.Get(getKey(i))
				return err
			})
		}
	}},
	{"scan", func(b *testing.B, s *store.Store) {
		getKey := getKeys("scan")
		fill(s, "scan", getKey)
		prefix := append(append([]byte{}, perfKeyPrefix...), "-scan-"...)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			view(s, "scan", func(tx db.Transaction) error {
				entries, err := tx.FindByPrefix(prefix)
				if err != nil {
					return err
				}
				for range entries {
				}
				return nil
			})
		}
	}},
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for wKV backends")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Keys: %d, Batch: %d\n", perfKeySpread, perfBatchSize)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)

	err := withStore(func(s *store.Store) error {
		// cleanup
		defer update(s, "cleanup", func(tx db.Transaction) error {
			return tx.RemoveByPrefix(perfKeyPrefix)
		})

		for _, bm := range benchmarks {
			if shouldSkip(bm.name) {
				results[bm.name] = testing.BenchmarkResult{}
				printResult(bm.name, results[bm.name])
				continue
			}
			result := testing.Benchmark(func(b *testing.B) {
				bm.run(b, s)
			})
			results[bm.name] = result
			printResult(bm.name, result)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if csvPath := viper.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// getKeys returns a function that maps an index to one of perfKeySpread test keys (with wraparound)
func getKeys(prefix string) func(int) []byte {
	keys := make([][]byte, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = []byte(fmt.Sprintf("%s-%s-%08d", perfKeyPrefix, prefix, i))
	}
	return func(i int) []byte {
		return keys[i%perfKeySpread]
	}
}

// fill writes every test key of getKey in one transaction
func fill(s *store.Store, test string, getKey func(int) []byte) {
	update(s, test, func(tx db.Transaction) error {
		for i := 0; i < perfKeySpread; i++ {
			if _, err := tx.Insert(getKey(i), []byte("test")); err != nil {
				return err
			}
		}
		return nil
	})
}

func update(s *store.Store, test string, fn func(tx db.Transaction) error) {
	if err := s.Update(fn); err != nil {
		log.Printf("(%s) - error in transaction: %v\n", test, err)
	}
}

func view(s *store.Store, test string, fn func(tx db.Transaction) error) {
	if err := s.View(fn); err != nil {
		log.Printf("(%s) - error in transaction: %v\n", test, err)
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Backend", "Engine", "Blob", "Keys Count", "LargeValueSizeKB", "BatchSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for _, bm := range benchmarks {
		result := results[bm.name]

		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			bm.name,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			string(conf.Backend),
			string(conf.Engine),
			string(conf.Blob),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfBatchSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", bm.name, err)
		}
	}

	return nil
}
