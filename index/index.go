// Package index is the in-memory offset index: key -> position of the key's
// latest live entry in the log. It is derived state and is rebuilt from the
// log on every open.
package index

const (
	defaultMaxLevel = 18
	defaultP        = 0.5
)

// Location points at a log entry.
type Location struct {
	// Offset of the entry's length prefix.
	Offset int64
	// Size of the whole entry, length prefix included.
	Size int64
}

// Index is not safe for concurrent use; the store serializes access.
type Index struct {
	list      *skipList
	liveBytes int64
}

func New() *Index {
	return &Index{
		list: newSkipList(defaultMaxLevel, defaultP),
	}
}

// Set points key at loc and returns the location it replaced, if any.
func (idx *Index) Set(key string, loc Location) (Location, bool) {
	prev, replaced := idx.list.set(key, loc)
	if replaced {
		idx.liveBytes -= prev.Size
	}
	idx.liveBytes += loc.Size
	return prev, replaced
}

func (idx *Index) Get(key string) (Location, bool) {
	return idx.list.get(key)
}

// Delete removes key. Removing an absent key is a no-op.
func (idx *Index) Delete(key string) (Location, bool) {
	loc, ok := idx.list.delete(key)
	if ok {
		idx.liveBytes -= loc.Size
	}
	return loc, ok
}

func (idx *Index) Len() int {
	return idx.list.length
}

// LiveBytes is the total size of the entries the index points at.
func (idx *Index) LiveBytes() int64 {
	return idx.liveBytes
}

// Range calls fn for each key in key order until fn returns false.
// fn must not modify the index.
func (idx *Index) Range(fn func(key string, loc Location) bool) {
	idx.list.each(fn)
}

// Keys returns all keys in key order.
func (idx *Index) Keys() []string {
	keys := make([]string, 0, idx.Len())
	idx.Range(func(key string, _ Location) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
