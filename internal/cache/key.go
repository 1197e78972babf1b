package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GenerateCacheKey derives a stable key from a question. Case and
// surrounding whitespace don't change the answer, so they don't change
// the key either.
func GenerateCacheKey(question string) string {
	normalized := strings.ToLower(strings.TrimSpace(question))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
