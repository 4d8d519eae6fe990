// Package checksum fingerprints exported archives.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ShortID derives a stable identifier from a digest returned by Sum.
func ShortID(sum string) string {
	if len(sum) > 16 {
		return sum[:16]
	}
	return sum
}
