package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmrMurad1/tiny-store/index"
	"github.com/AmrMurad1/tiny-store/shared"
)

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(filepath.Join(t.TempDir(), "test.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Release() })

	require.NoError(t, e.Set("Name1", "Alice"))
	require.NoError(t, e.Set("Name2", "Bob"))
	require.NoError(t, e.Set("Name1", "Janet"))
	require.NoError(t, e.Delete("Name2"))
	require.NoError(t, e.Set("Name3", "Finn"))
	return e
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func TestCompactionKeyNotFound(t *testing.T) {
	tests := map[string]func(e *Engine){
		"offset past end of log": func(e *Engine) {
			e.index.Set("Ghost", index.Location{Offset: e.log.Size() + 100, Size: 40})
		},
		"offset of another key": func(e *Engine) {
			loc, _ := e.index.Get("Name3")
			e.index.Set("Ghost", loc)
		},
		"offset of a tombstone": func(e *Engine) {
			// Name2's tombstone is the entry right before Name3
			loc, _ := e.index.Get("Name3")
			tombstoneSize := shared.EntrySize(2*shared.LengthPrefixSize + len("Name2"))
			e.index.Set("Name2", index.Location{Offset: loc.Offset - tombstoneSize, Size: tombstoneSize})
		},
		"offset in the middle of an entry": func(e *Engine) {
			loc, _ := e.index.Get("Name1")
			e.index.Set("Name1", index.Location{Offset: loc.Offset + 3, Size: loc.Size})
		},
	}
	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			e := newTestEngine(t, DefaultOptions())
			before := readFile(t, e.path)
			corrupt(e)
			oldIndex := e.index

			err := e.Compact()
			require.Error(t, err)
			assert.ErrorIs(t, err, shared.ErrCompactionKeyNotFound)

			var notFound *shared.CompactionKeyNotFoundError
			require.True(t, errors.As(err, &notFound))
			assert.NotEmpty(t, notFound.Key)

			// old state is untouched and still serves reads
			assert.Same(t, oldIndex, e.index)
			assert.Equal(t, before, readFile(t, e.path))
			_, err = os.Stat(e.path + shared.CompactSuffix)
			assert.True(t, os.IsNotExist(err))

			val, found, err := e.Get("Name3")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "Finn", val)
		})
	}
}

func TestCompactionFailureKeepsOldState(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	before := readFile(t, e.path)
	oldLog, oldIndex := e.log, e.index

	// the compaction target cannot be created
	require.NoError(t, os.Mkdir(e.path+shared.CompactSuffix, 0755))

	err := e.Compact()
	require.Error(t, err)

	assert.Same(t, oldLog, e.log)
	assert.Same(t, oldIndex, e.index)
	assert.Equal(t, before, readFile(t, e.path))

	require.NoError(t, e.Set("Name4", "Adam"))
	val, found, err := e.Get("Name4")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Adam", val)

	require.NoError(t, os.Remove(e.path+shared.CompactSuffix))
	require.NoError(t, e.Compact())
	assert.Less(t, int64(len(readFile(t, e.path))), int64(len(before)))
}

func TestCompactionBackupFailureAborts(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	e := newTestEngine(t, Options{BackupDir: filepath.Join(blocker, "backups")})
	before := readFile(t, e.path)

	require.Error(t, e.Compact())
	assert.Equal(t, before, readFile(t, e.path))
}

func TestCompactionOverwritesStaleTarget(t *testing.T) {
	e := newTestEngine(t, DefaultOptions())
	require.NoError(t, os.WriteFile(e.path+shared.CompactSuffix, []byte("stale leftovers from a crash"), 0644))

	require.NoError(t, e.Compact())
	require.NoError(t, e.Release())

	reopened, err := NewEngine(e.path, DefaultOptions())
	require.NoError(t, err)
	defer reopened.Release()
	assert.Equal(t, 2, reopened.index.Len())
}

func TestVerifyDetectsMismatch(t *testing.T) {
	e := newTestEngine(t, Options{VerifyCompaction: true})
	require.NoError(t, e.Compact())

	target := index.New()
	e.index.Range(func(key string, loc index.Location) bool {
		target.Set(key, loc)
		return true
	})
	target.Delete("Name1")

	err := e.verify(e.log, target)
	assert.ErrorIs(t, err, shared.ErrCompactionVerify)
}
