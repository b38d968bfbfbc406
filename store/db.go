package store

import (
	"io"
	"sync"
	"time"

	"github.com/AmrMurad1/tiny-store/metrics"
	"github.com/AmrMurad1/tiny-store/shared"
	"github.com/AmrMurad1/tiny-store/shared/log"
)

// DB shares one Engine between goroutines. Every call holds a single mutex
// for its whole duration, so calls are applied one at a time in the order
// they acquire it; reads block writes and the other way round.
//
// If an operation panics while holding the lock the DB is poisoned: the
// panic continues in the calling goroutine and every later call returns
// shared.ErrLockPoisoned, since the index may no longer match the log.
type DB struct {
	mu       sync.Mutex
	engine   *Engine
	poisoned bool
}

func Open(path string, opts Options) (*DB, error) {
	engine, err := NewEngine(path, opts)
	if err != nil {
		return nil, err
	}
	return &DB{engine: engine}, nil
}

func (db *DB) Set(key, val string) error {
	return db.withLock("set", func(e *Engine) error {
		return e.Set(key, val)
	})
}

func (db *DB) Get(key string) (string, bool, error) {
	var (
		val   string
		found bool
	)
	err := db.withLock("get", func(e *Engine) error {
		var err error
		val, found, err = e.Get(key)
		return err
	})
	return val, found, err
}

func (db *DB) Delete(key string) error {
	return db.withLock("delete", func(e *Engine) error {
		return e.Delete(key)
	})
}

// Close compacts the log and leaves the DB usable.
func (db *DB) Close() error {
	return db.withLock("close", func(e *Engine) error {
		return e.Close()
	})
}

func (db *DB) Compact() error {
	return db.withLock("compact", func(e *Engine) error {
		return e.Compact()
	})
}

func (db *DB) Stats() (Stats, error) {
	var stats Stats
	err := db.withLock("stats", func(e *Engine) error {
		stats = e.Stats()
		return nil
	})
	return stats, err
}

func (db *DB) Digest() (uint64, error) {
	var sum uint64
	err := db.withLock("digest", func(e *Engine) error {
		var err error
		sum, err = e.Digest()
		return err
	})
	return sum, err
}

func (db *DB) Backup(w io.Writer) (int64, error) {
	var n int64
	err := db.withLock("backup", func(e *Engine) error {
		var err error
		n, err = e.Backup(w)
		return err
	})
	return n, err
}

// Release closes the underlying file. It is allowed on a poisoned DB so the
// handle can still be freed.
func (db *DB) Release() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.engine.Release()
}

func (db *DB) withLock(op string, fn func(e *Engine) error) (err error) {
	start := time.Now()
	metrics.OperationsTotal.WithLabelValues(op).Inc()
	defer func() {
		metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.OperationErrorsTotal.WithLabelValues(op).Inc()
		}
	}()

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.poisoned {
		return shared.ErrLockPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			db.poisoned = true
			log.Error("%s panicked while holding the lock of %s: %v", op, db.engine.Path(), r)
			panic(r)
		}
	}()

	return fn(db.engine)
}
