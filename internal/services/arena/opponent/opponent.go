// Package opponent implements the scripted computer move policy.
//
// The policy is intentionally a weak baseline: a uniformly random capture
// when one exists, otherwise a uniformly random legal move. There is no
// search and no evaluation.
package opponent

import (
	"math/rand"

	"github.com/arenaworks/colosseum/internal/services/arena/engine"
)

// Pick selects a move for the computer seat from the legal candidates.
// It reports false when no legal move exists.
func Pick(moves []engine.Record, rng *rand.Rand) (engine.Record, bool) {
	if len(moves) == 0 {
		return engine.Record{}, false
	}

	var captures []engine.Record
	for _, mv := range moves {
		if mv.Capture {
			captures = append(captures, mv)
		}
	}
	if len(captures) > 0 {
		return captures[rng.Intn(len(captures))], true
	}
	return moves[rng.Intn(len(moves))], true
}
