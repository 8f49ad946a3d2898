package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the short content hash used to detect changed snapshots.
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])[:16]
}
