package database

import (
	"encoding/hex"
	"fmt"
	"iter"

	"github.com/ValentinKolb/wKV/cmd/util"
	"github.com/ValentinKolb/wKV/lib/db"
	"github.com/ValentinKolb/wKV/lib/store"
	"github.com/ValentinKolb/wKV/lib/wallet"
	"github.com/spf13/cobra"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all wallet databases (memsnap only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := selector.ListWallets()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseHex("key", args[0])
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				return s.View(func(tx db.Transaction) error {
					value, err := tx.Get(key)
					if err != nil {
						return err
					}
					fmt.Printf("key=%x, found=%t, value=%x\n", key, value != nil, value)
					return nil
				})
			})
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseHex("key", args[0])
			if err != nil {
				return err
			}
			value, err := util.ParseHex("value", args[1])
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				return s.Update(func(tx db.Transaction) error {
					old, err := tx.Insert(key, value)
					if err != nil {
						return err
					}
					fmt.Printf("put successfully, previous=%s\n", formatOptional(old))
					return nil
				})
			})
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := util.ParseHex("key", args[0])
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				return s.Update(func(tx db.Transaction) error {
					old, err := tx.Remove(key)
					if err != nil {
						return err
					}
					fmt.Printf("delete successfully, previous=%s\n", formatOptional(old))
					return nil
				})
			})
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan [prefix]",
		Short: "Lists all key value pairs starting with prefix (all if omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := prefixArg(args)
			if err != nil {
				return err
			}
			descending, _ := cmd.Flags().GetBool("desc")

			return withStore(func(s *store.Store) error {
				return s.View(func(tx db.Transaction) error {
					var entries iter.Seq2[[]byte, []byte]
					if descending {
						entries, err = tx.FindByPrefixDescending(prefix)
					} else {
						entries, err = tx.FindByPrefix(prefix)
					}
					if err != nil {
						return err
					}
					count := 0
					for k, v := range entries {
						fmt.Printf("%s = %s\n", hex.EncodeToString(k), hex.EncodeToString(v))
						count++
					}
					fmt.Printf("(%d entries)\n", count)
					return nil
				})
			})
		},
	}
	delPrefixCmd = &cobra.Command{
		Use:   "del-prefix [prefix]",
		Short: "Deletes all key value pairs starting with prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, err := prefixArg(args)
			if err != nil {
				return err
			}
			return withStore(func(s *store.Store) error {
				return s.Update(func(tx db.Transaction) error {
					if err := tx.RemoveByPrefix(prefix); err != nil {
						return err
					}
					fmt.Println("delete by prefix successfully")
					return nil
				})
			})
		},
	}
	joinedCmd = &cobra.Command{
		Use:   "joined [value]",
		Short: "Shows whether the wallet joined a federation, marks it as joined if a value is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(s *store.Store) error {
				if len(args) == 1 {
					value, err := util.ParseHex("value", args[0])
					if err != nil {
						return err
					}
					if err := wallet.MarkJoined(s, value); err != nil {
						return err
					}
				}
				initialized, err := wallet.IsInitialized(s)
				if err != nil {
					return err
				}
				fmt.Printf("db=%s, joined=%t\n", s.Name(), initialized)
				return nil
			})
		},
	}
)

func init() {
	scanCmd.Flags().Bool("desc", false, util.WrapString("Return the entries in descending key order"))
}

func prefixArg(args []string) ([]byte, error) {
	if len(args) == 0 {
		return []byte{}, nil
	}
	return util.ParseHex("prefix", args[0])
}

// formatOptional renders an absent value as <none>
func formatOptional(value []byte) string {
	if value == nil {
		return "<none>"
	}
	return hex.EncodeToString(value)
}
