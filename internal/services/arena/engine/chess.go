package engine

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// chessGame adapts corentings/chess to the Game interface.
type chessGame struct {
	game *nchess.Game
}

// NewGame returns a chess Game at the starting position.
func NewGame() Game {
	return &chessGame{game: nchess.NewGame()}
}

func (g *chessGame) Turn() Color {
	return colorFrom(g.game.Position().Turn())
}

func (g *chessGame) FEN() string {
	return g.game.FEN()
}

func (g *chessGame) ApplyMove(candidate Move) (Record, error) {
	uci := strings.ToLower(strings.TrimSpace(candidate.From) + strings.TrimSpace(candidate.To) + strings.TrimSpace(candidate.Promotion))
	pos := g.game.Position()
	if err := g.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return Record{}, ErrIllegalMove
	}
	moves := g.game.Moves()
	return recordFrom(pos, moves[len(moves)-1]), nil
}

func (g *chessGame) LegalMoves() []Record {
	pos := g.game.Position()
	valid := g.game.ValidMoves()
	records := make([]Record, 0, len(valid))
	for i := range valid {
		records = append(records, recordFrom(pos, &valid[i]))
	}
	return records
}

func (g *chessGame) IsCheckmate() bool {
	return g.game.Method() == nchess.Checkmate
}

func (g *chessGame) IsGameOver() bool {
	return g.game.Outcome() != nchess.NoOutcome
}

func (g *chessGame) Reset() {
	g.game = nchess.NewGame()
}

// recordFrom annotates a move against the position it was played from.
func recordFrom(pos *nchess.Position, mv *nchess.Move) Record {
	uci := mv.String()
	record := Record{
		From:    uci[:2],
		To:      uci[2:4],
		SAN:     nchess.AlgebraicNotation{}.Encode(pos, mv),
		Color:   colorFrom(pos.Turn()),
		Capture: mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant),
	}
	if len(uci) > 4 {
		record.Promotion = uci[4:]
	}
	return record
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}
