package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Digest returns the hex sha256 of s. Used to correlate documents in logs
// without writing their contents.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
