package database

import (
	"fmt"
	"os"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ValentinKolb/wKV/cmd/util"
	"github.com/ValentinKolb/wKV/lib/common"
	"github.com/ValentinKolb/wKV/lib/store"
	"github.com/ValentinKolb/wKV/lib/wallet"
	"github.com/spf13/cobra"
)

var (
	selector *wallet.Selector
	conf     common.StoreConfig

	// DatabaseCommands represents the db command group
	DatabaseCommands = &cobra.Command{
		Use:                "db",
		Short:              "Perform operations on a wallet database",
		Long:               `Perform operations on a wallet database. Keys and values are given and printed in hex.`,
		PersistentPreRunE:  setupSelector,
		PersistentPostRunE: printMetrics,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the backend flags to the db command
	util.SetupStoreFlags(DatabaseCommands)

	// Add subcommands
	DatabaseCommands.AddCommand(listCmd)
	DatabaseCommands.AddCommand(getCmd)
	DatabaseCommands.AddCommand(putCmd)
	DatabaseCommands.AddCommand(delCmd)
	DatabaseCommands.AddCommand(scanCmd)
	DatabaseCommands.AddCommand(delPrefixCmd)
	DatabaseCommands.AddCommand(joinedCmd)
	DatabaseCommands.AddCommand(perfTestCmd)
}

// setupSelector reads the configuration and creates the wallet selector
func setupSelector(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	conf = util.GetStoreConfig()
	if err := common.InitLoggers(conf.LogLevel); err != nil {
		return err
	}

	var err error
	selector, err = wallet.NewSelector(conf)
	return err
}

func printMetrics(_ *cobra.Command, _ []string) error {
	if !conf.Metrics {
		return nil
	}
	fmt.Println()
	metrics.WritePrometheus(os.Stdout, false)
	return nil
}

// withStore opens the configured database, runs fn and closes the database
func withStore(fn func(s *store.Store) error) error {
	s, _, err := selector.SelectWallet(util.GetDatabaseName())
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "closing database failed: %v\n", err)
		}
	}()
	return fn(s)
}
