// Package store is a single-file, log-structured key/value store.
//
// Every write is appended to one log file; an in-memory index maps each live
// key to the offset of its latest entry. Opening a store replays the log to
// rebuild the index. Compaction rewrites the log with only live entries and
// swaps it in with a rename.
//
//	set/delete:  encode -> append to log -> update index
//	get:         index -> read entry at offset -> decode
//	compact:     live entries -> <path>.compact -> rename over <path>
//
// Engine has a single owner. DB wraps an Engine behind one mutex so it can be
// shared between goroutines.
package store

import (
	"io"
	"path/filepath"

	"code.cloudfoundry.org/bytefmt"
	"github.com/pkg/errors"

	"github.com/AmrMurad1/tiny-store/backup"
	"github.com/AmrMurad1/tiny-store/datafile"
	"github.com/AmrMurad1/tiny-store/index"
	"github.com/AmrMurad1/tiny-store/metrics"
	"github.com/AmrMurad1/tiny-store/record"
	"github.com/AmrMurad1/tiny-store/shared"
	"github.com/AmrMurad1/tiny-store/shared/log"
)

type Options struct {
	// VerifyCompaction re-reads the compacted log and compares its digest with
	// the live data before the compacted log replaces the old one.
	VerifyCompaction bool
	// BackupDir, when set, receives an s2 snapshot of the log before each compaction.
	BackupDir string
	// AutoCompactDeadBytes triggers a compaction after a mutation once the log
	// holds at least this many bytes of overwritten or deleted entries. 0 disables it.
	AutoCompactDeadBytes uint64
}

func DefaultOptions() Options {
	return Options{}
}

type Engine struct {
	path   string
	log    *datafile.Log
	index  *index.Index
	opts   Options
	closed bool
}

type Stats struct {
	Path      string
	LiveKeys  int
	LogSize   int64
	LiveBytes int64
	DeadBytes int64
}

// NewEngine opens the log at path, creating it if needed, and rebuilds the index from it.
func NewEngine(path string, opts Options) (*Engine, error) {
	l, err := datafile.Open(path)
	if err != nil {
		return nil, err
	}

	idx, err := replay(l)
	if err != nil {
		l.Close()
		return nil, err
	}

	e := &Engine{
		path:  path,
		log:   l,
		index: idx,
		opts:  opts,
	}
	e.updateGauges()
	log.Info("opened %s: %d live keys, %s log", path, idx.Len(), bytefmt.ByteSize(uint64(l.Size())))
	return e, nil
}

// replay rebuilds the index from the log. Later entries win over earlier ones,
// and a tombstone removes its key.
//
// A partial entry at the end of the file is the trace of a crash during an
// append. It is cut off here rather than reported: the entry never completed,
// so no caller was told it succeeded, and appends must start right after the
// last whole entry.
func replay(l *datafile.Log) (*index.Index, error) {
	idx := index.New()

	res, err := l.Replay(func(offset int64, payload []byte) error {
		r, err := record.Decode(payload)
		if err != nil {
			return errors.Wrapf(err, "log %q entry at offset %d", l.Path(), offset)
		}
		if r.IsTombstone() {
			idx.Delete(r.Key)
			return nil
		}
		idx.Set(r.Key, index.Location{Offset: offset, Size: shared.EntrySize(len(payload))})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Torn {
		log.Warn("log %s: discarding %d bytes of torn trailing entry after offset %d",
			l.Path(), l.Size()-res.ValidSize, res.ValidSize)
		metrics.TornTailsTotal.Inc()
		if err := l.Truncate(res.ValidSize); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func (e *Engine) Path() string {
	return e.path
}

// Set stores val under key. An empty val is stored as a tombstone, exactly
// like Delete: the format cannot tell an empty value from a deletion.
func (e *Engine) Set(key, val string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}
	if len(val) == 0 {
		log.Debug("set %q with empty value, storing tombstone", key)
		return e.Delete(key)
	}

	payload, err := record.Encode(shared.Record{Key: key, Val: val})
	if err != nil {
		return errors.Wrapf(err, "set %q", key)
	}

	offset, err := e.log.Append(payload)
	if err != nil {
		return errors.Wrapf(err, "set %q", key)
	}

	e.index.Set(key, index.Location{Offset: offset, Size: shared.EntrySize(len(payload))})
	e.afterMutation()
	return nil
}

// Get returns the current value of key; found is false if the key was never
// set or has been deleted.
func (e *Engine) Get(key string) (val string, found bool, err error) {
	if err := e.checkOpen(); err != nil {
		return "", false, err
	}

	loc, ok := e.index.Get(key)
	if !ok {
		return "", false, nil
	}

	payload, err := e.log.ReadAt(loc.Offset)
	if err != nil {
		return "", false, errors.Wrapf(err, "get %q", key)
	}
	r, err := record.Decode(payload)
	if err != nil {
		return "", false, errors.Wrapf(err, "get %q at offset %d", key, loc.Offset)
	}
	return r.Val, true, nil
}

// Delete appends a tombstone for key and drops it from the index. Deleting a
// key that does not exist still writes the tombstone.
func (e *Engine) Delete(key string) error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	payload, err := record.Encode(shared.Tombstone(key))
	if err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}

	if _, err := e.log.Append(payload); err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}

	e.index.Delete(key)
	e.afterMutation()
	return nil
}

// Close compacts the log. The engine stays usable afterwards, backed by the
// compacted file; use Release to give up the file handle.
func (e *Engine) Close() error {
	return e.Compact()
}

// Release closes the file handle. Every later call fails with shared.ErrClosed.
func (e *Engine) Release() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.log.Close()
}

func (e *Engine) Stats() Stats {
	return Stats{
		Path:      e.path,
		LiveKeys:  e.index.Len(),
		LogSize:   e.log.Size(),
		LiveBytes: e.index.LiveBytes(),
		DeadBytes: e.deadBytes(),
	}
}

// Backup writes an s2 snapshot of the log to w and returns the uncompressed size.
func (e *Engine) Backup(w io.Writer) (int64, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	return backup.Write(w, e.log.Section())
}

func (e *Engine) snapshotPath() string {
	return filepath.Join(e.opts.BackupDir, filepath.Base(e.path)+shared.SnapshotExt)
}

func (e *Engine) deadBytes() int64 {
	return e.log.Size() - e.index.LiveBytes()
}

func (e *Engine) afterMutation() {
	e.updateGauges()

	threshold := e.opts.AutoCompactDeadBytes
	if threshold == 0 || e.deadBytes() < int64(threshold) {
		return
	}
	// the mutation itself has already succeeded
	if err := e.Compact(); err != nil {
		log.Error("auto compaction of %s failed: %v", e.path, err)
	}
}

func (e *Engine) updateGauges() {
	metrics.LogSizeBytes.Set(float64(e.log.Size()))
	metrics.LiveKeys.Set(float64(e.index.Len()))
}

func (e *Engine) checkOpen() error {
	if e.closed {
		return shared.ErrClosed
	}
	return nil
}
