package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrCorruptRecord is returned when a payload does not decode into a record.
	ErrCorruptRecord = errors.New("corrupt record")

	// ErrCompactionKeyNotFound is returned when an indexed key cannot be located
	// at its recorded offset while compacting.
	ErrCompactionKeyNotFound = errors.New("key not found in index during compaction")

	// ErrCompactionVerify is returned when the compacted log does not hold the same live data.
	ErrCompactionVerify = errors.New("compacted log does not match live data")

	// ErrLockPoisoned is returned once an operation panicked while holding the database lock.
	ErrLockPoisoned = errors.New("failed to acquire mutex lock: a goroutine panicked while holding the lock")

	ErrEmptyKey    = errors.New("key should not be empty")
	ErrInvalidText = errors.New("key and value must be valid UTF-8")
	ErrClosed      = errors.New("database is closed")
)

type CompactionKeyNotFoundError struct {
	Key    string
	Offset int64
}

func (e *CompactionKeyNotFoundError) Error() string {
	return fmt.Sprintf("%v: %q at offset %d", ErrCompactionKeyNotFound, e.Key, e.Offset)
}

func (e *CompactionKeyNotFoundError) Is(target error) bool {
	return target == ErrCompactionKeyNotFound
}
