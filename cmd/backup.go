package cmd

import (
	"fmt"
	"os"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AmrMurad1/tiny-store/backup"
	"github.com/AmrMurad1/tiny-store/config"
	"github.com/AmrMurad1/tiny-store/shared/log"
	"github.com/AmrMurad1/tiny-store/store"
)

const (
	restoreSuffix = ".restore"

	restoreLong = `Replace the database with the contents of a snapshot.

The snapshot is extracted next to the database and opened once before it
is renamed over the database file. Nothing else may have the database open.`
)

func newBackupCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <snapshot-file>",
		Short: "Write an s2 compressed snapshot of the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.withDB(func(db *store.DB, cfg *config.Config) error {
				file, err := os.OpenFile(args[0], os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
				if err != nil {
					return errors.Wrapf(err, "create snapshot %q", args[0])
				}

				n, err := db.Backup(file)
				if err == nil {
					err = file.Sync()
				}
				if cerr := file.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					os.Remove(args[0])
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "backed up %s (%s) to %s\n", cfg.Path, bytefmt.ByteSize(uint64(n)), args[0])
				return nil
			})
		},
	}
}

func newRestoreCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <snapshot-file>",
		Short: "Replace the database with the contents of a snapshot",
		Long:  restoreLong,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			tmp := cfg.Path + restoreSuffix
			n, err := backup.ExtractFile(args[0], tmp)
			if err != nil {
				return err
			}

			e, err := store.NewEngine(tmp, store.DefaultOptions())
			if err != nil {
				os.Remove(tmp)
				return errors.Wrapf(err, "snapshot %q is not a valid database", args[0])
			}
			stats := e.Stats()
			if err := e.Release(); err != nil {
				log.Warn("restore: releasing %s: %v", tmp, err)
			}

			if err := os.Rename(tmp, cfg.Path); err != nil {
				os.Remove(tmp)
				return errors.Wrapf(err, "restore %q", cfg.Path)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "restored %s (%s, %d live keys) from %s\n",
				cfg.Path, bytefmt.ByteSize(uint64(n)), stats.LiveKeys, args[0])
			return nil
		},
	}
}
