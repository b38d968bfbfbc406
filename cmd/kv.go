package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AmrMurad1/tiny-store/config"
	"github.com/AmrMurad1/tiny-store/store"
)

func newSetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "set <key> <value>",
		Short:   "Store a value under a key",
		Example: "tiny-store set Name Alice",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withDB(func(db *store.DB, _ *config.Config) error {
				return db.Set(args[0], args[1])
			})
		},
	}
}

func newGetCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withDB(func(db *store.DB, _ *config.Config) error {
				val, found, err := db.Get(args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("key %q not found", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), val)
				return nil
			})
		},
	}
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"del", "rm"},
		Short:   "Delete a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withDB(func(db *store.DB, _ *config.Config) error {
				return db.Delete(args[0])
			})
		},
	}
}
