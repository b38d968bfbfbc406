// Package record encodes a key/value pair into the payload of a log entry.
//
// Layout (little endian, no padding):
//
//	keyLen u64 | key bytes | valLen u64 | val bytes
package record

import (
	"encoding/binary"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/AmrMurad1/tiny-store/shared"
)

// EncodedSize returns the payload length of Encode(key, val).
func EncodedSize(key, val string) int {
	return 2*shared.LengthPrefixSize + len(key) + len(val)
}

func Encode(r shared.Record) ([]byte, error) {
	if len(r.Key) == 0 {
		return nil, shared.ErrEmptyKey
	}
	if !utf8.ValidString(r.Key) || !utf8.ValidString(r.Val) {
		return nil, shared.ErrInvalidText
	}

	buf := make([]byte, 0, EncodedSize(r.Key, r.Val))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(r.Key)))
	buf = append(buf, r.Key...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(len(r.Val)))
	buf = append(buf, r.Val...)
	return buf, nil
}

func Decode(payload []byte) (shared.Record, error) {
	key, rest, err := readField(payload, "key")
	if err != nil {
		return shared.Record{}, err
	}
	val, rest, err := readField(rest, "value")
	if err != nil {
		return shared.Record{}, err
	}
	if len(rest) != 0 {
		return shared.Record{}, errors.Wrapf(shared.ErrCorruptRecord, "%d trailing bytes after value", len(rest))
	}
	return shared.Record{Key: key, Val: val}, nil
}

func readField(b []byte, name string) (string, []byte, error) {
	if len(b) < shared.LengthPrefixSize {
		return "", nil, errors.Wrapf(shared.ErrCorruptRecord, "%s length: need %d bytes, have %d",
			name, shared.LengthPrefixSize, len(b))
	}
	n := binary.LittleEndian.Uint64(b)
	b = b[shared.LengthPrefixSize:]
	if n > uint64(len(b)) {
		return "", nil, errors.Wrapf(shared.ErrCorruptRecord, "%s declares %d bytes, have %d", name, n, len(b))
	}
	field := b[:n]
	if !utf8.Valid(field) {
		return "", nil, errors.Wrapf(shared.ErrCorruptRecord, "%s is not valid UTF-8", name)
	}
	return string(field), b[n:], nil
}
