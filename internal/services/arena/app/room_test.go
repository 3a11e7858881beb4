package server

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/arenaworks/colosseum/internal/services/arena/engine"
)

func discardPeer() *wsPeer {
	return newWSPeer(json.NewEncoder(io.Discard))
}

func TestRoomHubCreatesOnceAndLooksUpWithoutCreating(t *testing.T) {
	hub := newRoomHub()

	if hub.lookup("alpha") != nil {
		t.Fatalf("lookup must not create rooms")
	}
	first := hub.room("alpha", engine.NewGame)
	if first == nil {
		t.Fatalf("expected room to be created")
	}
	if hub.room("alpha", engine.NewGame) != first {
		t.Fatalf("expected the same room on repeat access")
	}
	if hub.lookup("alpha") != first {
		t.Fatalf("expected lookup to find the created room")
	}
}

func TestRoomHubRemovesOnlyEmptyRooms(t *testing.T) {
	hub := newRoomHub()
	room := hub.room("alpha", engine.NewGame)

	white := discardPeer()
	spectator := discardPeer()
	room.join(white, "Alice", nil)
	room.join(discardPeer(), "Bob", nil)
	room.join(spectator, "Carol", nil)

	if room.leave(white) {
		t.Fatalf("room with peers left must not report empty")
	}
	hub.removeIfEmpty("alpha")
	if hub.lookup("alpha") != room {
		t.Fatalf("occupied room must survive removeIfEmpty")
	}
}

func TestRoomLeaveKeepsSeatIdentity(t *testing.T) {
	hub := newRoomHub()
	room := hub.room("alpha", engine.NewGame)

	white := discardPeer()
	room.join(white, "Alice", json.RawMessage(`{"id":"eevee"}`))
	room.join(discardPeer(), "Bob", nil)
	room.leave(white)

	// A rejoiner takes the vacant white seat and is told about Bob.
	res := room.join(discardPeer(), "Carol", nil)
	if res.role != roleWhite {
		t.Fatalf("expected rejoiner to take white, got %q", res.role)
	}
	var snapshot initSnapshotPayload
	if err := json.Unmarshal(res.snapshot.Payload, &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snapshot.OpponentName != "Bob" {
		t.Fatalf("expected opponent Bob, got %q", snapshot.OpponentName)
	}
}

func TestRoomBecomesEmptyWhenLastPeerLeaves(t *testing.T) {
	hub := newRoomHub()
	room := hub.room("alpha", engine.NewGame)

	white := discardPeer()
	spectator := discardPeer()
	room.join(white, "Alice", nil)
	room.join(discardPeer(), "Bob", nil)
	room.join(spectator, "Carol", nil)

	black := func() *wsPeer {
		room.mu.Lock()
		defer room.mu.Unlock()
		return room.black.peer
	}()

	if room.leave(white) || room.leave(black) {
		t.Fatalf("room must not be empty while the spectator remains")
	}
	if !room.leave(spectator) {
		t.Fatalf("expected room to be empty after the last leave")
	}
	hub.removeIfEmpty("alpha")
	if hub.lookup("alpha") != nil {
		t.Fatalf("expected empty room to be removed")
	}
}

func TestLeaveClearsEveryBindingOfThePeer(t *testing.T) {
	hub := newRoomHub()
	room := hub.room("alpha", engine.NewGame)

	// One connection joining the same room twice ends up holding both
	// seats; its single disconnect must still empty the room.
	double := discardPeer()
	if res := room.join(double, "Alice", nil); res.role != roleWhite {
		t.Fatalf("expected first join to take white, got %q", res.role)
	}
	if res := room.join(double, "Alice", nil); res.role != roleBlack {
		t.Fatalf("expected repeat join to take black, got %q", res.role)
	}

	if !room.leave(double) {
		t.Fatalf("expected room to be empty after its only connection left")
	}
	hub.removeIfEmpty("alpha")
	if hub.lookup("alpha") != nil {
		t.Fatalf("expected the room to be collected")
	}
	if keys := hub.activeKeys(); len(keys) != 0 {
		t.Fatalf("expected no active rooms, got %v", keys)
	}
}

func TestActiveKeysListsSeatedNonComputerRooms(t *testing.T) {
	hub := newRoomHub()

	seated := hub.room("rated-1", engine.NewGame)
	seated.join(discardPeer(), "Alice", nil)

	computer := hub.room("ai-1", engine.NewGame)
	computer.join(discardPeer(), "Bob", nil)

	hub.room("idle", engine.NewGame)

	vacated := hub.room("vacated", engine.NewGame)
	ghost := discardPeer()
	vacated.join(ghost, "Carol", nil)
	vacated.leave(ghost)

	keys := hub.activeKeys()
	if len(keys) != 1 || keys[0] != "rated-1" {
		t.Fatalf("expected only the seated room, got %v", keys)
	}
}

func TestRatingPairGuards(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		white      string
		black      string
		winner     engine.Color
		wantWinner string
		wantLoser  string
	}{
		{name: "named players", key: "rated", white: "Alice", black: "Bob", winner: engine.Black, wantWinner: "Bob", wantLoser: "Alice"},
		{name: "white wins", key: "rated", white: "Alice", black: "Bob", winner: engine.White, wantWinner: "Alice", wantLoser: "Bob"},
		{name: "computer room", key: "ai-rated", white: "Alice", black: "Bob", winner: engine.White},
		{name: "anonymous white", key: "rated", white: anonymousName, black: "Bob", winner: engine.Black},
		{name: "vacant black seat", key: "rated", white: "Alice", black: "", winner: engine.White},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := newRoom(tc.key, engine.NewGame)
			r.white.name = tc.white
			r.black.name = tc.black

			r.mu.Lock()
			winner, loser := r.ratingPair(tc.winner)
			r.mu.Unlock()
			if winner != tc.wantWinner || loser != tc.wantLoser {
				t.Fatalf("got %q/%q, want %q/%q", winner, loser, tc.wantWinner, tc.wantLoser)
			}
		})
	}
}
