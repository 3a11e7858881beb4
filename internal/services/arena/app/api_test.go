package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arenaworks/colosseum/internal/services/arena/storage"
)

func getJSON(t *testing.T, ts *httptest.Server, path string, into any) {
	t.Helper()

	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", path, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("get %s: content type %q", path, ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	var body struct {
		Status string `json:"status"`
	}
	getJSON(t, ts, "/api/health", &body)
	if body.Status != "ok" {
		t.Fatalf("expected ok status, got %q", body.Status)
	}
}

func TestUpEndpoint(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/up")
	if err != nil {
		t.Fatalf("get /up: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Fatalf("unexpected /up response: %d %q", resp.StatusCode, body)
	}
}

func TestQueryEndpointsRejectNonGet(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)

	for _, path := range []string{"/api/health", "/api/rooms", "/api/leaderboard", "/ws"} {
		resp, err := http.Post(ts.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("post %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("post %s: expected 405, got %d", path, resp.StatusCode)
		}
		if allow := resp.Header.Get("Allow"); allow != http.MethodGet {
			t.Fatalf("post %s: expected Allow GET, got %q", path, allow)
		}
	}
}

func TestRoomsEndpointListsActiveRooms(t *testing.T) {
	ts, srv, _ := newTestServer(t, nil)

	var body struct {
		Rooms []string `json:"rooms"`
	}
	getJSON(t, ts, "/api/rooms", &body)
	if body.Rooms == nil || len(body.Rooms) != 0 {
		t.Fatalf("expected empty room list, got %v", body.Rooms)
	}

	srv.arena.hub.room("lobby-b", srv.arena.newGame).join(discardPeer(), "Bob", nil)
	srv.arena.hub.room("lobby-a", srv.arena.newGame).join(discardPeer(), "Alice", nil)
	srv.arena.hub.room("ai-solo", srv.arena.newGame).join(discardPeer(), "Carol", nil)

	getJSON(t, ts, "/api/rooms", &body)
	if len(body.Rooms) != 2 || body.Rooms[0] != "lobby-a" || body.Rooms[1] != "lobby-b" {
		t.Fatalf("expected sorted non-computer rooms, got %v", body.Rooms)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	ts, _, ratings := newTestServer(t, nil)

	ratings.board = []storage.Player{
		{Name: "Alice", Rating: 1403, Wins: 3, Losses: 1},
		{Name: "Bob", Rating: 1184, Wins: 1, Losses: 3},
	}

	var body struct {
		Leaderboard []storage.Player `json:"leaderboard"`
	}
	getJSON(t, ts, "/api/leaderboard", &body)
	if len(body.Leaderboard) != 2 {
		t.Fatalf("expected two players, got %v", body.Leaderboard)
	}
	if body.Leaderboard[0].Name != "Alice" || body.Leaderboard[0].Rating != 1403 {
		t.Fatalf("unexpected leader %+v", body.Leaderboard[0])
	}
}

func TestLeaderboardEndpointReportsStoreFailure(t *testing.T) {
	ts, _, ratings := newTestServer(t, nil)
	ratings.boardErr = errors.New("disk on fire")

	resp, err := http.Get(ts.URL + "/api/leaderboard")
	if err != nil {
		t.Fatalf("get leaderboard: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json error response, got content type %q", ct)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error != "failed to fetch leaderboard" {
		t.Fatalf("unexpected error body %q", body.Error)
	}
}
