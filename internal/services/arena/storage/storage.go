// Package storage defines the durable rating ledger contract.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound reports a missing player record.
var ErrNotFound = errors.New("player not found")

// DefaultRating is assigned to newly created player records.
const DefaultRating = 1200

// Player is one rating ledger record, keyed by case-sensitive display name.
type Player struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
}

// PlayerStore persists player ratings. Records are created read-through on
// first reference and never deleted.
type PlayerStore interface {
	// EnsurePlayer returns the record for name, creating it with defaults
	// when absent.
	EnsurePlayer(ctx context.Context, name string) (Player, error)
	// ApplyResult records a decisive game. Both new ratings are derived from
	// one consistent pre-update snapshot of the pair, and the winner's win
	// counter and loser's loss counter are incremented atomically.
	ApplyResult(ctx context.Context, winner, loser string) error
	// Leaderboard returns up to limit players ordered by rating descending.
	Leaderboard(ctx context.Context, limit int) ([]Player, error)
	// Close releases the underlying store.
	Close() error
}
