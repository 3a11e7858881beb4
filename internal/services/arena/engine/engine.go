// Package engine defines the rules and legality oracle for one match.
//
// The arena server never interprets positions itself; it delegates move
// validation, position transitions, and terminal-state detection to a Game
// so the underlying rules implementation stays swappable in tests.
package engine

import "errors"

// ErrIllegalMove reports a well-formed candidate the rules reject in the
// current position.
var ErrIllegalMove = errors.New("illegal move")

// Color identifies a side of the board.
type Color string

const (
	// White moves first.
	White Color = "w"
	// Black moves second.
	Black Color = "b"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Move is a candidate move as submitted by a client.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// Record is a move annotated by the engine, either applied to the position
// or offered as a legal candidate.
type Record struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	SAN       string `json:"san"`
	Color     Color  `json:"color"`
	Capture   bool   `json:"capture"`
}

// Candidate returns the record's move for resubmission through ApplyMove.
func (r Record) Candidate() Move {
	return Move{From: r.From, To: r.To, Promotion: r.Promotion}
}

// Game owns one match's position and rules state.
//
// Implementations are not safe for concurrent use; the owning room
// serializes access.
type Game interface {
	// Turn reports the side to move.
	Turn() Color
	// FEN serializes the current position.
	FEN() string
	// ApplyMove validates and applies a candidate, returning the annotated
	// record. ErrIllegalMove is returned when the rules reject it, with the
	// position unchanged.
	ApplyMove(Move) (Record, error)
	// LegalMoves lists every legal move in the current position.
	LegalMoves() []Record
	// IsCheckmate reports whether the side to move is checkmated.
	IsCheckmate() bool
	// IsGameOver reports whether the position is terminal.
	IsGameOver() bool
	// Reset restores the initial position.
	Reset()
}

// Factory creates a fresh Game at the initial position.
type Factory func() Game
