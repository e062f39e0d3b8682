package badger

import (
	"encoding/binary"

	"github.com/poiesic/minutes/core"
)

// Key prefixes for different data types
const (
	embeddingPrefix = "embcache:"
)

// makeEmbeddingKey generates a key for a cached embedding.
// Format: prefix + 8 byte big-endian content hash
func makeEmbeddingKey(id core.ID) []byte {
	buf := make([]byte, len(embeddingPrefix)+8)
	offset := copy(buf, embeddingPrefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}
