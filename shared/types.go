package shared

// Record is a single key/value pair as stored in the log.
// An empty Val marks the key as deleted.
type Record struct {
	Key string
	Val string
}

func (r Record) IsTombstone() bool {
	return len(r.Val) == 0
}

func Tombstone(key string) Record {
	return Record{Key: key}
}
