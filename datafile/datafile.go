// Package datafile is the append-only log backing the store.
//
// A file is a gapless sequence of entries, each an 8 byte little endian length
// followed by that many payload bytes. There is no header and no footer.
package datafile

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/AmrMurad1/tiny-store/shared"
)

type Log struct {
	file *os.File
	path string
	// size is the end of the last whole entry; appends are written here.
	size int64
}

// ReplayResult describes how far a replay got.
type ReplayResult struct {
	Entries   int
	ValidSize int64
	// Torn is set when the file ends with a partial entry past ValidSize.
	Torn bool
}

// Open opens the log at path for reading and appending, creating it if absent.
func Open(path string) (*Log, error) {
	return openFile(path, os.O_RDWR|os.O_CREATE)
}

// Create creates an empty log at path, truncating any existing file.
func Create(path string) (*Log, error) {
	return openFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC)
}

func openFile(path string, flag int) (*Log, error) {
	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "log %q cannot open file", path)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "log %q cannot stat file", path)
	}

	return &Log{file: file, path: path, size: stat.Size()}, nil
}

func (l *Log) Path() string {
	return l.path
}

func (l *Log) Size() int64 {
	return l.size
}

// Append writes payload as a new entry and returns the offset of its length prefix.
func (l *Log) Append(payload []byte) (int64, error) {
	buf := make([]byte, 0, shared.EntrySize(len(payload)))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(payload)))
	buf = append(buf, payload...)

	offset := l.size
	if _, err := l.file.WriteAt(buf, offset); err != nil {
		// drop whatever part of the entry made it to the file
		_ = l.file.Truncate(offset)
		return 0, errors.Wrapf(err, "log %q append at %d", l.path, offset)
	}
	l.size += int64(len(buf))
	return offset, nil
}

// ReadAt returns the payload of the entry whose length prefix starts at offset.
// Reads past the end of data fail with an error wrapping io.ErrUnexpectedEOF.
func (l *Log) ReadAt(offset int64) ([]byte, error) {
	if offset < 0 || offset+shared.LengthPrefixSize > l.size {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "log %q: no entry at offset %d (size %d)", l.path, offset, l.size)
	}

	var prefix [shared.LengthPrefixSize]byte
	if _, err := l.file.ReadAt(prefix[:], offset); err != nil {
		return nil, errors.Wrapf(shortRead(err), "log %q read length at %d", l.path, offset)
	}

	n := binary.LittleEndian.Uint64(prefix[:])
	start := offset + shared.LengthPrefixSize
	if n > uint64(l.size-start) {
		return nil, errors.Wrapf(io.ErrUnexpectedEOF, "log %q: entry at %d declares %d bytes, %d available",
			l.path, offset, n, l.size-start)
	}

	payload := make([]byte, n)
	if _, err := l.file.ReadAt(payload, start); err != nil {
		return nil, errors.Wrapf(shortRead(err), "log %q read payload at %d", l.path, start)
	}
	return payload, nil
}

// Replay calls fn for every whole entry in file order.
//
// A tail too short to hold a length prefix, or a payload shorter than its
// prefix declares, is what a crash in the middle of an append leaves behind.
// Replay treats it as the end of the data instead of an error and reports it
// through ReplayResult.Torn; the caller decides whether to cut it off.
func (l *Log) Replay(fn func(offset int64, payload []byte) error) (ReplayResult, error) {
	var res ReplayResult

	stat, err := l.file.Stat()
	if err != nil {
		return res, errors.Wrapf(err, "log %q cannot stat file", l.path)
	}
	fileSize := stat.Size()

	reader := bufio.NewReader(io.NewSectionReader(l.file, 0, fileSize))
	var prefix [shared.LengthPrefixSize]byte
	position := int64(0)

	for position < fileSize {
		if fileSize-position < shared.LengthPrefixSize {
			res.Torn = true
			break
		}
		if _, err := io.ReadFull(reader, prefix[:]); err != nil {
			return res, errors.Wrapf(err, "log %q read length at %d", l.path, position)
		}

		n := binary.LittleEndian.Uint64(prefix[:])
		if n > uint64(fileSize-position-shared.LengthPrefixSize) {
			res.Torn = true
			break
		}

		payload := make([]byte, n)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return res, errors.Wrapf(err, "log %q read payload at %d", l.path, position)
		}

		if err := fn(position, payload); err != nil {
			return res, err
		}

		res.Entries++
		position += shared.EntrySize(len(payload))
	}

	res.ValidSize = position
	l.size = fileSize
	return res, nil
}

// Truncate cuts the file down to size.
func (l *Log) Truncate(size int64) error {
	if err := l.file.Truncate(size); err != nil {
		return errors.Wrapf(err, "log %q truncate to %d", l.path, size)
	}
	l.size = size
	return nil
}

// Section returns a reader over the current data, for snapshots.
func (l *Log) Section() *io.SectionReader {
	return io.NewSectionReader(l.file, 0, l.size)
}

func (l *Log) Sync() error {
	return errors.Wrapf(l.file.Sync(), "log %q sync", l.path)
}

func (l *Log) Close() error {
	return errors.Wrapf(l.file.Close(), "log %q close", l.path)
}

// Rename moves the file to path. The open handle keeps working on the moved file.
func (l *Log) Rename(path string) error {
	if err := os.Rename(l.path, path); err != nil {
		return errors.Wrapf(err, "log %q rename to %q", l.path, path)
	}
	l.path = path
	return nil
}

// Remove closes the log and deletes its file.
func (l *Log) Remove() error {
	l.file.Close()
	return errors.Wrapf(os.Remove(l.path), "log %q remove", l.path)
}

func shortRead(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
