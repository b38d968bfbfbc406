package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/AmrMurad1/tiny-store/store"
)

const (
	demoWriters       = 5
	demoKeysPerWriter = 3
	demoRewrites      = 10

	demoLong = `Walk through basic operations, concurrent writers and compaction on a
scratch database. The scratch file is deleted before the demo starts.`
)

func newDemoCmd(flags *rootFlags) *cobra.Command {
	var file string

	c := &cobra.Command{
		Use:   "demo",
		Short: "Walk through basic operations, concurrent writers and compaction",
		Long:  demoLong,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "remove %q", file)
			}

			db, err := store.Open(file, cfg.StoreOptions())
			if err != nil {
				return err
			}
			defer db.Release()

			out := cmd.OutOrStdout()
			for _, step := range []func(io.Writer, *store.DB) error{demoBasics, demoConcurrency, demoCompaction} {
				if err := step(out, db); err != nil {
					return err
				}
			}
			return nil
		},
	}

	c.Flags().StringVar(&file, "file", filepath.Join(os.TempDir(), "tiny-store-demo.db"), "scratch database used by the demo")
	return c
}

func demoBasics(out io.Writer, db *store.DB) error {
	fmt.Fprintln(out, "== basic operations")

	if err := db.Set("Name1", "Alice"); err != nil {
		return err
	}
	if err := db.Set("Name2", "Bob"); err != nil {
		return err
	}
	if err := show(out, db, "Name1", "Name2"); err != nil {
		return err
	}

	fmt.Fprintln(out, "overwrite Name1, delete Name2")
	if err := db.Set("Name1", "Janet"); err != nil {
		return err
	}
	if err := db.Delete("Name2"); err != nil {
		return err
	}
	return show(out, db, "Name1", "Name2")
}

func demoConcurrency(out io.Writer, db *store.DB) error {
	fmt.Fprintf(out, "== %d concurrent writers\n", demoWriters)

	var (
		wg   sync.WaitGroup
		errs = make(chan error, demoWriters*demoKeysPerWriter)
	)
	for w := 0; w < demoWriters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < demoKeysPerWriter; i++ {
				key := fmt.Sprintf("writer%d-key%d", w, i)
				if err := db.Set(key, fmt.Sprintf("value-%d-%d", w, i)); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		return err
	}

	for w := 0; w < demoWriters; w++ {
		key := fmt.Sprintf("writer%d-key0", w)
		if err := show(out, db, key); err != nil {
			return err
		}
	}
	return nil
}

func demoCompaction(out io.Writer, db *store.DB) error {
	fmt.Fprintln(out, "== compaction")

	for i := 0; i < demoRewrites; i++ {
		if err := db.Set("Counter", fmt.Sprintf("%d", i)); err != nil {
			return err
		}
	}

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

	fmt.Fprintf(out, "log size before: %s, after: %s\n",
		bytefmt.ByteSize(uint64(before.LogSize)), bytefmt.ByteSize(uint64(after.LogSize)))
	return show(out, db, "Counter", "Name1")
}

func show(out io.Writer, db *store.DB, keys ...string) error {
	for _, key := range keys {
		val, found, err := db.Get(key)
		if err != nil {
			return err
		}
		if !found {
			fmt.Fprintf(out, "  %s: <not found>\n", key)
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", key, val)
	}
	return nil
}
