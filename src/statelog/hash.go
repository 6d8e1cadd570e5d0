package statelog

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// contentHash digests file content for dedup and audit. One-way only:
// content is never reconstructed from it.
func contentHash(content string) string {
	sum := blake3.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
