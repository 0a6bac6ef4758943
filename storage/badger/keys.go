package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/schedex/core"
)

// Key prefixes for different data types
const (
	catalogItemPrefix = "catitm:"
	jobPrefix         = "job:"
	ingestLogPrefix   = "inglog:"
	ingestLogIDPrefix = "inglogid:"
)

// makeItemKey generates a key for a catalog item.
// Format: prefix:number, with the number BigEndian so keys sort numerically.
func makeItemKey(number core.ItemNumber) []byte {
	buf := make([]byte, len(catalogItemPrefix)+8)
	offset := copy(buf, catalogItemPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(number))
	return buf
}

// makeJobKey generates a key for a job by id.
func makeJobKey(id string) []byte {
	return []byte(jobPrefix + id)
}

// makeIngestLogKey generates the primary key for an ingestion log.
// Format: prefix:startedAt:id so a reverse scan yields the newest first.
func makeIngestLogKey(startedAt time.Time, id string) []byte {
	prefixSize := len(ingestLogPrefix)
	buf := make([]byte, prefixSize+8+len(id))
	offset := copy(buf, ingestLogPrefix)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(startedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}

// makeIngestLogIDKey generates the id index key pointing at a log's primary key.
func makeIngestLogIDKey(id string) []byte {
	return []byte(ingestLogIDPrefix + id)
}

// prefixEnd returns the smallest key greater than every key with prefix.
// Used to seek reverse iterators.
func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
