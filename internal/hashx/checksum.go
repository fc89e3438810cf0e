// Package hashx computes content digests used for sync divergence checks.
package hashx

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Checksum returns a hex-encoded SHA-256 digest of s.
//
// The digest is compared between client and server to detect divergence of
// one entity's content, so both sides must build s the same way (see the
// DataHash methods in internal/models).
func Checksum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Fields builds the canonical concatenation hashed by Checksum.
// Fields are joined with a separator that cannot appear ambiguous after
// numeric formatting.
func Fields(fields ...string) string {
	return strings.Join(fields, "\x1f")
}

// Aggregate digests a whole dataset from per-record lines (for example
// "uuid:contentHash"). The lines are sorted first, so any two datasets
// with the same records produce the same digest regardless of order.
func Aggregate(lines []string) string {
	sorted := make([]string, len(lines))
	copy(sorted, lines)
	sort.Strings(sorted)
	return Checksum(strings.Join(sorted, "\n"))
}
