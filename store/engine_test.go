package store_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmrMurad1/tiny-store/backup"
	"github.com/AmrMurad1/tiny-store/record"
	"github.com/AmrMurad1/tiny-store/shared"
	"github.com/AmrMurad1/tiny-store/store"
)

func openEngine(t *testing.T, path string, opts store.Options) *store.Engine {
	t.Helper()
	e, err := store.NewEngine(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Release() })
	return e
}

func dbPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.db")
}

func fileSize(t *testing.T, path string) int64 {
	t.Helper()
	fi, err := os.Stat(path)
	require.NoError(t, err)
	return fi.Size()
}

func assertValue(t *testing.T, e *store.Engine, key, want string) {
	t.Helper()
	got, found, err := e.Get(key)
	require.NoError(t, err)
	assert.True(t, found, "key %q should exist", key)
	assert.Equal(t, want, got)
}

func assertMissing(t *testing.T, e *store.Engine, key string) {
	t.Helper()
	_, found, err := e.Get(key)
	require.NoError(t, err)
	assert.False(t, found, "key %q should not exist", key)
}

func TestSetGetReopen(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Set("Name", "Alice"))
	assertValue(t, e, "Name", "Alice")
	require.NoError(t, e.Release())

	e = openEngine(t, path, store.DefaultOptions())
	assertValue(t, e, "Name", "Alice")
	assertMissing(t, e, "Age")
}

func TestDeletePersists(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Set("Name", "Alice"))
	require.NoError(t, e.Delete("Name"))
	assertMissing(t, e, "Name")
	require.NoError(t, e.Release())

	e = openEngine(t, path, store.DefaultOptions())
	assertMissing(t, e, "Name")
}

func TestDeleteAbsentKeyWritesTombstone(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Delete("ghost"))
	assertMissing(t, e, "ghost")
	assert.Equal(t, int64(8+8+5+8), fileSize(t, path))
	assert.Equal(t, 0, e.Stats().LiveKeys)
}

func TestLastWriteWins(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Set("key", "v1"))
	require.NoError(t, e.Set("key", "v2"))
	assertValue(t, e, "key", "v2")
	require.NoError(t, e.Release())

	e = openEngine(t, path, store.DefaultOptions())
	assertValue(t, e, "key", "v2")
}

func TestEndToEndScenario(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Set("Name", "Alice"))
	assertValue(t, e, "Name", "Alice")
	require.NoError(t, e.Set("Name", "Bob"))
	assertValue(t, e, "Name", "Bob")
	require.NoError(t, e.Delete("Name"))
	assertMissing(t, e, "Name")
	require.NoError(t, e.Release())

	e = openEngine(t, path, store.DefaultOptions())
	assertMissing(t, e, "Name")
}

func TestCompactionScenario(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Set("Name1", "Alice"))
	require.NoError(t, e.Set("Name2", "Bob"))
	require.NoError(t, e.Set("Name3", "Joe"))
	require.NoError(t, e.Set("Name1", "Janet"))
	require.NoError(t, e.Set("Name3", "Finn"))
	require.NoError(t, e.Delete("Name2"))
	require.NoError(t, e.Set("Name4", "Adam"))

	check := func(e *store.Engine) {
		assertValue(t, e, "Name1", "Janet")
		assertMissing(t, e, "Name2")
		assertValue(t, e, "Name3", "Finn")
		assertValue(t, e, "Name4", "Adam")
	}
	check(e)

	before := fileSize(t, path)
	require.NoError(t, e.Close())
	after := fileSize(t, path)
	assert.Less(t, after, before)

	// still usable after close
	check(e)
	_, err := os.Stat(path + shared.CompactSuffix)
	assert.True(t, os.IsNotExist(err))

	stats := e.Stats()
	assert.Equal(t, 3, stats.LiveKeys)
	assert.Equal(t, after, stats.LogSize)
	assert.Equal(t, int64(0), stats.DeadBytes)

	require.NoError(t, e.Release())
	e = openEngine(t, path, store.DefaultOptions())
	check(e)
	assert.Equal(t, after, fileSize(t, path))
}

func TestCompactedFileHoldsOnlyLiveEntries(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Set("a", "3"))
	require.NoError(t, e.Delete("b"))
	require.NoError(t, e.Compact())

	payload, err := record.Encode(shared.Record{Key: "a", Val: "3"})
	require.NoError(t, err)
	want := binary.LittleEndian.AppendUint64(nil, uint64(len(payload)))
	want = append(want, payload...)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, raw)
}

func TestCompactionWithoutDeadEntriesKeepsSize(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	for i := 0; i < 20; i++ {
		require.NoError(t, e.Set(fmt.Sprintf("k%02d", i), fmt.Sprintf("v%d", i)))
	}
	before := fileSize(t, path)
	require.NoError(t, e.Compact())
	assert.Equal(t, before, fileSize(t, path))
}

func TestCompactEmptyStore(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Set("k", "v"))
	require.NoError(t, e.Delete("k"))
	require.NoError(t, e.Compact())
	assert.Equal(t, int64(0), fileSize(t, path))

	require.NoError(t, e.Set("k", "again"))
	assertValue(t, e, "k", "again")
}

func TestCompactionPreservesRandomState(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.Options{VerifyCompaction: true})
	r := rand.New(rand.NewSource(1))
	model := map[string]string{}

	for round := 0; round < 3; round++ {
		for i := 0; i < 400; i++ {
			key := fmt.Sprintf("key-%d", r.Intn(60))
			if r.Intn(4) == 0 {
				require.NoError(t, e.Delete(key))
				delete(model, key)
				continue
			}
			val := fmt.Sprintf("val-%d-%d", round, i)
			require.NoError(t, e.Set(key, val))
			model[key] = val
		}

		digestBefore, err := e.Digest()
		require.NoError(t, err)
		before := fileSize(t, path)

		require.NoError(t, e.Compact())

		assert.Less(t, fileSize(t, path), before)
		digestAfter, err := e.Digest()
		require.NoError(t, err)
		assert.Equal(t, digestBefore, digestAfter)

		for i := 0; i < 60; i++ {
			key := fmt.Sprintf("key-%d", i)
			if want, ok := model[key]; ok {
				assertValue(t, e, key, want)
			} else {
				assertMissing(t, e, key)
			}
		}
		assert.Equal(t, len(model), e.Stats().LiveKeys)
	}
}

func TestEmptyValueIsTombstone(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())

	require.NoError(t, e.Set("k", "v"))
	require.NoError(t, e.Set("k", ""))
	assertMissing(t, e, "k")
	require.NoError(t, e.Release())

	e = openEngine(t, path, store.DefaultOptions())
	assertMissing(t, e, "k")
}

func TestInvalidInput(t *testing.T) {
	e := openEngine(t, dbPath(t), store.DefaultOptions())

	assert.ErrorIs(t, e.Set("", "v"), shared.ErrEmptyKey)
	assert.ErrorIs(t, e.Delete(""), shared.ErrEmptyKey)
	assert.ErrorIs(t, e.Set("k", string([]byte{0xff})), shared.ErrInvalidText)
	assert.Equal(t, int64(0), e.Stats().LogSize)
}

func TestDigestIgnoresHistory(t *testing.T) {
	a := openEngine(t, dbPath(t), store.DefaultOptions())
	b := openEngine(t, dbPath(t), store.DefaultOptions())

	require.NoError(t, a.Set("x", "1"))
	require.NoError(t, a.Set("y", "2"))

	require.NoError(t, b.Set("y", "old"))
	require.NoError(t, b.Set("z", "gone"))
	require.NoError(t, b.Set("x", "1"))
	require.NoError(t, b.Delete("z"))
	require.NoError(t, b.Set("y", "2"))

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)

	require.NoError(t, b.Set("y", "3"))
	db, err = b.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}

func TestOpenDiscardsTornTail(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())
	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Release())
	validSize := fileSize(t, path)

	// a crash halfway through appending set("c", "3")
	payload, err := record.Encode(shared.Record{Key: "c", Val: "3"})
	require.NoError(t, err)
	entry := binary.LittleEndian.AppendUint64(nil, uint64(len(payload)))
	entry = append(entry, payload...)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write(entry[:len(entry)-3])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	e = openEngine(t, path, store.DefaultOptions())
	assertValue(t, e, "a", "1")
	assertValue(t, e, "b", "2")
	assertMissing(t, e, "c")
	assert.Equal(t, validSize, fileSize(t, path))

	require.NoError(t, e.Set("d", "4"))
	require.NoError(t, e.Release())

	e = openEngine(t, path, store.DefaultOptions())
	assertValue(t, e, "d", "4")
	assert.Equal(t, 3, e.Stats().LiveKeys)
}

func TestOpenFailsOnCorruptEntry(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())
	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Release())

	// a whole entry whose payload is not a record
	garbage := binary.LittleEndian.AppendUint64(nil, 4)
	garbage = append(garbage, 0xde, 0xad, 0xbe, 0xef)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write(garbage)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = store.NewEngine(path, store.DefaultOptions())
	assert.ErrorIs(t, err, shared.ErrCorruptRecord)
}

func TestOpenInaccessiblePath(t *testing.T) {
	_, err := store.NewEngine(filepath.Join(t.TempDir(), "no", "such", "dir", "test.db"), store.DefaultOptions())
	assert.Error(t, err)
}

func TestReleasedEngine(t *testing.T) {
	e := openEngine(t, dbPath(t), store.DefaultOptions())
	require.NoError(t, e.Release())
	require.NoError(t, e.Release())

	assert.ErrorIs(t, e.Set("k", "v"), shared.ErrClosed)
	assert.ErrorIs(t, e.Delete("k"), shared.ErrClosed)
	assert.ErrorIs(t, e.Compact(), shared.ErrClosed)
	_, _, err := e.Get("k")
	assert.ErrorIs(t, err, shared.ErrClosed)
	_, err = e.Digest()
	assert.ErrorIs(t, err, shared.ErrClosed)
}

func TestAutoCompaction(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.Options{AutoCompactDeadBytes: 256})

	for i := 0; i < 100; i++ {
		require.NoError(t, e.Set("counter", fmt.Sprintf("%d", i)))
		assert.Less(t, e.Stats().DeadBytes, int64(256))
	}
	assertValue(t, e, "counter", "99")
	assert.Less(t, fileSize(t, path), int64(256+64))
}

func TestBackupBeforeCompaction(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")
	backupDir := filepath.Join(dir, "backups")
	e := openEngine(t, path, store.Options{BackupDir: backupDir})

	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("a", "2"))
	precompact, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, e.Compact())

	restored := filepath.Join(dir, "restored.db")
	_, err = backup.ExtractFile(filepath.Join(backupDir, "test.db"+shared.SnapshotExt), restored)
	require.NoError(t, err)
	got, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, precompact, got)
}

func TestBackupStream(t *testing.T) {
	path := dbPath(t)
	e := openEngine(t, path, store.DefaultOptions())
	require.NoError(t, e.Set("Name", "Alice"))
	require.NoError(t, e.Set("Age", "30"))

	var snapshot bytes.Buffer
	n, err := e.Backup(&snapshot)
	require.NoError(t, err)
	assert.Equal(t, fileSize(t, path), n)

	restored := filepath.Join(t.TempDir(), "restored.db")
	f, err := os.Create(restored)
	require.NoError(t, err)
	_, err = backup.Read(f, &snapshot)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r := openEngine(t, restored, store.DefaultOptions())
	assertValue(t, r, "Name", "Alice")
	assertValue(t, r, "Age", "30")
}
