package cmd

import (
	"fmt"

	"code.cloudfoundry.org/bytefmt"
	"github.com/spf13/cobra"

	"github.com/AmrMurad1/tiny-store/config"
	"github.com/AmrMurad1/tiny-store/store"
)

func newCompactCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Rewrite the log without overwritten and deleted entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withDB(func(db *store.DB, _ *config.Config) error {
				before, err := db.Stats()
				if err != nil {
					return err
				}
				if err := db.Close(); err != nil {
					return err
				}
				after, err := db.Stats()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (%d live keys)\n", after.Path,
					bytefmt.ByteSize(uint64(before.LogSize)), bytefmt.ByteSize(uint64(after.LogSize)), after.LiveKeys)
				return nil
			})
		},
	}
}

func newStatsCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print size and key statistics of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withDB(func(db *store.DB, _ *config.Config) error {
				stats, err := db.Stats()
				if err != nil {
					return err
				}
				sum, err := db.Digest()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "path:       %s\n", stats.Path)
				fmt.Fprintf(out, "live keys:  %d\n", stats.LiveKeys)
				fmt.Fprintf(out, "log size:   %s\n", bytefmt.ByteSize(uint64(stats.LogSize)))
				fmt.Fprintf(out, "live bytes: %s\n", bytefmt.ByteSize(uint64(stats.LiveBytes)))
				fmt.Fprintf(out, "dead bytes: %s\n", bytefmt.ByteSize(uint64(stats.DeadBytes)))
				fmt.Fprintf(out, "digest:     %016x\n", sum)
				return nil
			})
		},
	}
}
