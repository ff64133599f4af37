package memory

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash computes the exact-duplicate key for a fact: a sha256 hex
// digest over the kind and summary. Deterministic, so two facts with the
// same kind and text always collide and dedup upstream of the embedder.
func ContentHash(kind Kind, summary string) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(summary))

	return hex.EncodeToString(h.Sum(nil))
}
