package voting

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// IPHasher turns client addresses into salted digests. The salt is the
// BLAKE2b key, so digests cannot be reversed by hashing the IPv4 space
// without it.
type IPHasher struct {
	key []byte
}

// NewIPHasher creates a hasher keyed by salt
func NewIPHasher(salt string) *IPHasher {
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &IPHasher{key: key}
}

// Hash returns the hex BLAKE2b-256 digest of ip
func (h *IPHasher) Hash(ip string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// only reachable with a key over 64 bytes, which NewIPHasher prevents
		panic(err)
	}
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}

// PartialIP keeps the first three characters for coarse audit
func PartialIP(ip string) string {
	if len(ip) > 3 {
		ip = ip[:3]
	}
	return ip + "***"
}
