package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the hex sha-256 of the raw upload, used to deduplicate
// identical files within a node.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
