// Package hashkey provides a fast structural hash used to pre-filter
// candidates before an exact equality check, e.g. for bytecode constant-pool
// deduplication. Adapted from inspector/graph/hash.go's highwayhash-based
// content hash.
package hashkey

import "github.com/minio/highwayhash"

// key is a fixed 32-byte key; this hash is used for in-process
// deduplication only, never as a security primitive.
var key = []byte("PYAOT-CONST-POOL-DEDUP-KEY-00000")

// Sum64 returns a 64-bit structural hash of data. Errors from highwayhash
// only occur for a malformed key, which is a programmer error here, so such
// an error panics.
func Sum64(data []byte) uint64 {
	h, err := highwayhash.New64(key)
	if err != nil {
		panic("hashkey: invalid key: " + err.Error())
	}
	_, _ = h.Write(data)
	return h.Sum64()
}
