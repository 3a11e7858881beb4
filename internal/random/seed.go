// Package random seeds the arena's pseudo-random generators.
//
// The scripted opponent and flavor-text picker share one math/rand source
// per process; seeding it from crypto/rand keeps replayed matches from
// repeating the same move choices after a restart.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed draws a high-entropy seed from crypto/rand.
func NewSeed() (int64, error) {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.BigEndian.Uint64(buf[:])), nil
}
