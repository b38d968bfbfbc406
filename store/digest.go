package store

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/spaolacci/murmur3"

	"github.com/AmrMurad1/tiny-store/datafile"
	"github.com/AmrMurad1/tiny-store/index"
	"github.com/AmrMurad1/tiny-store/record"
)

// Digest returns a fingerprint of the live key/value pairs. It depends only on
// the pairs, not on where or in which order they sit in the log, so it is
// unchanged by compaction.
func (e *Engine) Digest() (uint64, error) {
	if err := e.checkOpen(); err != nil {
		return 0, err
	}
	return digest(e.log, e.index)
}

func digest(l *datafile.Log, idx *index.Index) (uint64, error) {
	var (
		sum    uint64
		err    error
		lenBuf [8]byte
	)
	h := murmur3.New64()

	idx.Range(func(key string, loc index.Location) bool {
		var payload []byte
		payload, err = l.ReadAt(loc.Offset)
		if err != nil {
			return false
		}
		r, derr := record.Decode(payload)
		if derr != nil {
			err = derr
			return false
		}
		if r.Key != key {
			err = errors.Errorf("entry at offset %d holds %q, indexed as %q", loc.Offset, r.Key, key)
			return false
		}

		h.Reset()
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(r.Key)))
		_, _ = h.Write(lenBuf[:])
		_, _ = h.Write([]byte(r.Key))
		_, _ = h.Write([]byte(r.Val))
		// addition keeps the result independent of iteration order
		sum += h.Sum64()
		return true
	})
	if err != nil {
		return 0, errors.Wrapf(err, "digest %q", l.Path())
	}
	return sum, nil
}
