package shared

const (
	// LengthPrefixSize is the size of every length field on disk (u64, little endian):
	// the entry prefix in the log as well as the key and value lengths of a payload.
	LengthPrefixSize = 8

	// CompactSuffix is appended to the database path to name the compaction target.
	CompactSuffix = ".compact"

	// SnapshotExt is the extension of s2 compressed log snapshots.
	SnapshotExt = ".s2"
)

// EntrySize returns the on-disk size of a log entry carrying payloadLen bytes.
func EntrySize(payloadLen int) int64 {
	return int64(LengthPrefixSize + payloadLen)
}
