package store

import (
	"io"
	"time"

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

// Compact rewrites the log so it holds exactly one entry per live key.
//
// The new log and index are built off to the side in <path>.compact. Nothing
// about the engine changes until the rename over path has succeeded; any error
// before that leaves the old file and index in charge and removes the
// temporary file.
func (e *Engine) Compact() error {
	if err := e.checkOpen(); err != nil {
		return err
	}

	start := time.Now()
	before := e.log.Size()

	if e.opts.BackupDir != "" {
		if _, err := backup.WriteFile(e.snapshotPath(), e.log.Section()); err != nil {
			return errors.Wrap(err, "compact: backup")
		}
	}

	compactPath := e.path + shared.CompactSuffix
	target, err := datafile.Create(compactPath)
	if err != nil {
		return errors.Wrap(err, "compact")
	}

	newIndex, err := e.copyLive(target)
	if err == nil && e.opts.VerifyCompaction {
		err = e.verify(target, newIndex)
	}
	if err == nil {
		err = target.Sync()
	}
	if err != nil {
		if rerr := target.Remove(); rerr != nil {
			log.Warn("compact: cleanup of %s: %v", compactPath, rerr)
		}
		return errors.Wrapf(err, "compact %q", e.path)
	}

	if err := target.Rename(e.path); err != nil {
		if rerr := target.Remove(); rerr != nil {
			log.Warn("compact: cleanup of %s: %v", compactPath, rerr)
		}
		return errors.Wrapf(err, "compact %q: rename", e.path)
	}

	// target's handle now refers to the file at e.path
	old := e.log
	e.log = target
	e.index = newIndex
	if err := old.Close(); err != nil {
		log.Warn("compact: closing replaced log: %v", err)
	}

	after := e.log.Size()
	elapsed := time.Since(start)
	metrics.CompactionsTotal.Inc()
	metrics.CompactionDuration.Observe(elapsed.Seconds())
	metrics.CompactionReclaimedBytesTotal.Add(float64(before - after))
	e.updateGauges()

	log.Info("compacted %s: %s -> %s, %d live keys in %s", e.path,
		bytefmt.ByteSize(uint64(before)), bytefmt.ByteSize(uint64(after)), newIndex.Len(), elapsed)
	return nil
}

// copyLive appends the entry of every indexed key to target and returns the
// index of target. The payload is copied unchanged, so each new entry is byte
// for byte the old one.
func (e *Engine) copyLive(target *datafile.Log) (*index.Index, error) {
	newIndex := index.New()

	var err error
	e.index.Range(func(key string, loc index.Location) bool {
		var payload []byte
		payload, err = e.locate(key, loc)
		if err != nil {
			return false
		}

		var offset int64
		offset, err = target.Append(payload)
		if err != nil {
			return false
		}
		newIndex.Set(key, index.Location{Offset: offset, Size: shared.EntrySize(len(payload))})
		return true
	})
	if err != nil {
		return nil, err
	}
	return newIndex, nil
}

// locate reads the entry at loc and checks that it is the live entry of key.
// Anything else means the index and the log disagree; skipping the key would
// silently drop data, so it fails the compaction instead.
func (e *Engine) locate(key string, loc index.Location) ([]byte, error) {
	notFound := &shared.CompactionKeyNotFoundError{Key: key, Offset: loc.Offset}

	payload, err := e.log.ReadAt(loc.Offset)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, errors.Wrap(notFound, err.Error())
	}
	if err != nil {
		return nil, err
	}

	r, err := record.Decode(payload)
	if err != nil {
		return nil, errors.Wrap(notFound, err.Error())
	}
	if r.Key != key || r.IsTombstone() {
		return nil, notFound
	}
	return payload, nil
}

// verify compares the digest of the live data in the current log with the
// digest of target read back through newIndex.
func (e *Engine) verify(target *datafile.Log, newIndex *index.Index) error {
	want, err := digest(e.log, e.index)
	if err != nil {
		return err
	}
	got, err := digest(target, newIndex)
	if err != nil {
		return err
	}
	if want != got || e.index.Len() != newIndex.Len() {
		return errors.Wrapf(shared.ErrCompactionVerify, "digest %016x, compacted %016x", want, got)
	}
	return nil
}
