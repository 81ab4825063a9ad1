package simulation

import (
	"hash/fnv"
	"math/rand"
	"strconv"
)

// subSeed derives a stable sub-stream seed from the root seed and a stream
// name. Sub-streams keep parallel store workers reproducible regardless of
// execution order: every (store, day) pair draws from its own source.
func subSeed(root int64, parts ...string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strconv.FormatInt(root, 10)))

	for _, part := range parts {
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(part))
	}

	return int64(h.Sum64()) //nolint:gosec // wraparound is fine, this is a seed
}

// newStream creates the deterministic random source for a named sub-stream.
func newStream(root int64, parts ...string) *rand.Rand {
	return rand.New(rand.NewSource(subSeed(root, parts...))) //nolint:gosec // deterministic simulation randomness
}
