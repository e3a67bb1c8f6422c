package idempotency

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Key derives a stable idempotency key from a caller identity and a seed
// value. The same identity and seed always produce the same key, so a
// resubmitted command can be recognized and deduplicated.
func Key(identity, seed string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = "anonymous"
	}
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(identity))
	_, _ = hasher.Write([]byte{0})
	_, _ = hasher.Write([]byte(strings.TrimSpace(seed)))
	return fmt.Sprintf("idem_%x", hasher.Sum64())
}
