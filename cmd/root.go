package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/wKV/cmd/database"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "wkv",
		Short: "transactional key-value store for wallets",
		Long: fmt.Sprintf(`wKV (v%s)

A transactional byte key-value store for wallet data written in Go,
backed either by an object store (bolt, leveldb) or by in-memory
databases persisted as snapshot blobs.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of wKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("wKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(database.DatabaseCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
