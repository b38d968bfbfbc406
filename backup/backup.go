// Package backup writes and restores s2 compressed snapshots of a log file.
//
// A snapshot is the raw log byte stream framed by the s2 stream format, so a
// restored file is byte for byte the log it was taken from.
package backup

import (
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/s2"
	"github.com/pkg/errors"
)

// Write compresses src into dst and returns the number of uncompressed bytes.
func Write(dst io.Writer, src io.Reader) (int64, error) {
	enc := s2.NewWriter(dst)
	n, err := io.Copy(enc, src)
	if err != nil {
		enc.Close()
		return n, errors.Wrap(err, "snapshot compress")
	}
	if err := enc.Close(); err != nil {
		return n, errors.Wrap(err, "snapshot flush")
	}
	return n, nil
}

// Read decompresses a snapshot from src into dst and returns the number of bytes written.
func Read(dst io.Writer, src io.Reader) (int64, error) {
	n, err := io.Copy(dst, s2.NewReader(src))
	return n, errors.Wrap(err, "snapshot decompress")
}

// WriteFile stores a snapshot of src at path. The snapshot is written next to
// path and renamed into place so an existing snapshot is never left half written.
func WriteFile(path string, src io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, errors.Wrapf(err, "snapshot %q create directory", path)
	}

	tmp := path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, errors.Wrapf(err, "snapshot %q create", tmp)
	}

	n, err := Write(file, src)
	if err == nil {
		err = file.Sync()
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return n, errors.Wrapf(err, "snapshot %q write", path)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return n, errors.Wrapf(err, "snapshot %q rename", path)
	}
	return n, nil
}

// ExtractFile decompresses the snapshot at snapshotPath into a new file at dstPath.
func ExtractFile(snapshotPath, dstPath string) (int64, error) {
	src, err := os.Open(snapshotPath)
	if err != nil {
		return 0, errors.Wrapf(err, "snapshot %q open", snapshotPath)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, errors.Wrapf(err, "restore %q create", dstPath)
	}

	n, err := Read(dst, src)
	if err == nil {
		err = dst.Sync()
	}
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dstPath)
		return n, errors.Wrapf(err, "restore %q", dstPath)
	}
	return n, nil
}
