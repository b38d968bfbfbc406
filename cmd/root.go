package cmd

import (
	"github.com/spf13/cobra"

	"github.com/AmrMurad1/tiny-store/config"
	"github.com/AmrMurad1/tiny-store/shared/log"
	"github.com/AmrMurad1/tiny-store/store"
)

type rootFlags struct {
	configPath string
	dbPath     string
	logLevel   string
}

// Execute builds the command tree and executes commands.
func Execute() error {
	defer log.Sync()
	return NewRootCmd().Execute()
}

// NewRootCmd returns the tiny-store command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	flags := &rootFlags{}

	c := &cobra.Command{
		Use:          "tiny-store",
		Short:        "Embedded single-file key/value store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	c.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML configuration file")
	c.PersistentFlags().StringVarP(&flags.dbPath, "path", "p", "", "database file (overrides db_path)")
	c.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warning or error (overrides log_level)")

	c.AddCommand(
		newSetCmd(flags),
		newGetCmd(flags),
		newDeleteCmd(flags),
		newCompactCmd(flags),
		newStatsCmd(flags),
		newBackupCmd(flags),
		newRestoreCmd(flags),
		newDemoCmd(flags),
	)
	return c
}

func (f *rootFlags) load() (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	if f.dbPath != "" {
		cfg.Path = f.dbPath
	}
	if f.logLevel != "" {
		level, err := log.ParseLevel(f.logLevel)
		if err != nil {
			return nil, err
		}
		cfg.LogLevel = level
	}

	log.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// withDB opens the configured database, runs fn and releases the file handle
// without compacting.
func (f *rootFlags) withDB(fn func(db *store.DB, cfg *config.Config) error) error {
	cfg, err := f.load()
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Path, cfg.StoreOptions())
	if err != nil {
		return err
	}

	err = fn(db, cfg)
	if rerr := db.Release(); err == nil {
		err = rerr
	}
	return err
}
