package engine

import (
	"errors"
	"strings"
	"testing"
)

func applyMoves(t *testing.T, game Game, moves ...string) {
	t.Helper()
	for _, uci := range moves {
		candidate := Move{From: uci[:2], To: uci[2:4]}
		if len(uci) > 4 {
			candidate.Promotion = uci[4:]
		}
		if _, err := game.ApplyMove(candidate); err != nil {
			t.Fatalf("apply %s: %v", uci, err)
		}
	}
}

func TestNewGameStartingPosition(t *testing.T) {
	game := NewGame()

	if game.Turn() != White {
		t.Fatalf("expected white to move, got %q", game.Turn())
	}
	if !strings.HasPrefix(game.FEN(), "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w") {
		t.Fatalf("unexpected starting FEN %q", game.FEN())
	}
	if moves := game.LegalMoves(); len(moves) != 20 {
		t.Fatalf("expected 20 legal opening moves, got %d", len(moves))
	}
	if game.IsGameOver() || game.IsCheckmate() {
		t.Fatal("fresh game should not be terminal")
	}
}

func TestApplyMoveAnnotatesRecord(t *testing.T) {
	game := NewGame()

	record, err := game.ApplyMove(Move{From: "e2", To: "e4"})
	if err != nil {
		t.Fatalf("apply e2e4: %v", err)
	}
	if record.From != "e2" || record.To != "e4" {
		t.Fatalf("unexpected record squares %q %q", record.From, record.To)
	}
	if record.SAN != "e4" {
		t.Fatalf("expected SAN e4, got %q", record.SAN)
	}
	if record.Color != White {
		t.Fatalf("expected white record, got %q", record.Color)
	}
	if record.Capture {
		t.Fatal("e4 is not a capture")
	}
	if game.Turn() != Black {
		t.Fatalf("expected black to move, got %q", game.Turn())
	}
}

func TestApplyMoveRejectsIllegal(t *testing.T) {
	game := NewGame()
	before := game.FEN()

	if _, err := game.ApplyMove(Move{From: "e2", To: "e5"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove, got %v", err)
	}
	if _, err := game.ApplyMove(Move{From: "zz", To: "99"}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("expected ErrIllegalMove for garbage squares, got %v", err)
	}
	if game.FEN() != before {
		t.Fatal("rejected move must not mutate the position")
	}
	if game.Turn() != White {
		t.Fatalf("expected white still to move, got %q", game.Turn())
	}
}

func TestApplyMoveMarksCaptures(t *testing.T) {
	game := NewGame()
	applyMoves(t, game, "e2e4", "d7d5")

	record, err := game.ApplyMove(Move{From: "e4", To: "d5"})
	if err != nil {
		t.Fatalf("apply exd5: %v", err)
	}
	if !record.Capture {
		t.Fatal("exd5 should be flagged as a capture")
	}
	if record.SAN != "exd5" {
		t.Fatalf("expected SAN exd5, got %q", record.SAN)
	}
}

func TestFoolsMateIsCheckmate(t *testing.T) {
	game := NewGame()
	applyMoves(t, game, "f2f3", "e7e5", "g2g4")

	record, err := game.ApplyMove(Move{From: "d8", To: "h4"})
	if err != nil {
		t.Fatalf("apply Qh4#: %v", err)
	}
	if record.SAN != "Qh4#" {
		t.Fatalf("expected SAN Qh4#, got %q", record.SAN)
	}
	if !game.IsCheckmate() {
		t.Fatal("expected checkmate")
	}
	if !game.IsGameOver() {
		t.Fatal("expected game over")
	}
	if game.Turn() != White {
		t.Fatalf("checkmated side to move should be white, got %q", game.Turn())
	}
}

func TestLegalMovesAnnotatesCaptures(t *testing.T) {
	game := NewGame()
	applyMoves(t, game, "e2e4", "d7d5")

	var captures []Record
	for _, mv := range game.LegalMoves() {
		if mv.Capture {
			captures = append(captures, mv)
		}
	}
	if len(captures) != 1 {
		t.Fatalf("expected exactly one capture (exd5), got %d", len(captures))
	}
	if captures[0].From != "e4" || captures[0].To != "d5" {
		t.Fatalf("unexpected capture %+v", captures[0])
	}
}

func TestResetRestoresInitialPosition(t *testing.T) {
	game := NewGame()
	applyMoves(t, game, "e2e4", "e7e5")

	game.Reset()

	if game.Turn() != White {
		t.Fatalf("expected white to move after reset, got %q", game.Turn())
	}
	if !strings.HasPrefix(game.FEN(), "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w") {
		t.Fatalf("unexpected FEN after reset %q", game.FEN())
	}
}

func TestPromotionRoundTrips(t *testing.T) {
	game := NewGame()
	applyMoves(t, game, "a2a4", "b7b5", "a4b5", "e7e6", "b5b6", "g8e7", "b6b7", "e7g6")

	record, err := game.ApplyMove(Move{From: "b7", To: "a8", Promotion: "q"})
	if err != nil {
		t.Fatalf("apply promotion: %v", err)
	}
	if record.Promotion != "q" {
		t.Fatalf("expected promotion q, got %q", record.Promotion)
	}
	if !record.Capture {
		t.Fatal("bxa8=Q should capture the rook")
	}
}
