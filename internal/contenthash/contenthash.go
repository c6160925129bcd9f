// Package contenthash produces the content digests used for optimistic
// concurrency control. The same digest function covers whole files and
// line-range slices so that clients can recompute either side from a read
// response without negotiation.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the lowercase hex SHA-256 digest of the UTF-8 bytes of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Empty is the digest of the empty string. A request carrying it as the
// expected file hash asserts that the file does not exist yet.
var Empty = Hash("")

// IsEmpty reports whether h is absent or the empty-string sentinel.
func IsEmpty(h string) bool {
	return h == "" || h == Empty
}
