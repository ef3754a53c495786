package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key builders. Keys are namespaced so query results, embedding memos and
// session blobs never collide even when fingerprints coincide.

func QueryKey(normalizedQuery string) string {
	return "search:query:" + Fingerprint([]byte(normalizedQuery))
}

func EmbeddingKey(modality string, content []byte) string {
	return "search:embed:" + modality + ":" + Fingerprint(content)
}

func SessionKey(sessionID string) string {
	return "session:ctx:" + strings.TrimSpace(sessionID)
}

// Fingerprint returns the hex SHA-256 of content. Used for both query
// normalization keys and embedding input keys.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NormalizeQueryText collapses whitespace and case so trivially different
// spellings of the same query share a cache entry.
func NormalizeQueryText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
