package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/arenaworks/colosseum/internal/services/arena/engine"
	"github.com/arenaworks/colosseum/internal/services/arena/opponent"
	"github.com/arenaworks/colosseum/internal/services/arena/storage"
)

// maxDecodeErrorsPerConn closes a connection that only ever sends garbage.
// The counter resets on each well-formed frame.
const maxDecodeErrorsPerConn = 3

type wsSession struct {
	mu   sync.Mutex
	room *room
	peer *wsPeer
}

func newWSSession(peer *wsPeer) *wsSession {
	return &wsSession{peer: peer}
}

func (s *wsSession) setRoom(next *room) *room {
	s.mu.Lock()
	previous := s.room
	s.room = next
	s.mu.Unlock()
	return previous
}

func (s *wsSession) currentRoom() *room {
	s.mu.Lock()
	room := s.room
	s.mu.Unlock()
	return room
}

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

func (a *arena) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		writeJSON(w, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("/api/rooms", a.handleRooms)
	mux.HandleFunc("/api/leaderboard", a.handleLeaderboard)

	wsHandler := websocket.Handler(a.handleWSConn)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		wsHandler.ServeHTTP(w, r)
	})

	return mux
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("arena: write json response: %v", err)
	}
}

func (a *arena) handleRooms(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, map[string][]string{"rooms": a.hub.activeKeys()})
}

func (a *arena) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	players, err := a.ratings.Leaderboard(r.Context(), leaderboardLimit)
	if err != nil {
		log.Printf("arena: fetch leaderboard: %v", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to fetch leaderboard"}` + "\n"))
		return
	}
	if players == nil {
		players = []storage.Player{}
	}
	writeJSON(w, map[string][]storage.Player{"leaderboard": players})
}

func (a *arena) handleWSConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx := context.Background()
	if request := conn.Request(); request != nil {
		ctx = request.Context()
	}

	peer := newWSPeer(json.NewEncoder(conn))
	session := newWSSession(peer)
	defer func() {
		if room := session.currentRoom(); room != nil {
			a.leaveRoom(room, session.peer)
		}
	}()

	decodeErrors := 0
	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return
		}
		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("arena: drop malformed frame: %v", err)
			decodeErrors++
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		switch frame.Type {
		case "join-room":
			a.handleJoinFrame(ctx, session, frame)
		case "move":
			a.handleMoveFrame(session, frame)
		case "surrender":
			a.handleSurrenderFrame(session)
		case "reset":
			a.handleResetFrame(session)
		case "chat":
			a.handleChatFrame(session, frame)
		default:
			log.Printf("arena: drop unsupported frame type %q", frame.Type)
		}
	}
}

// leaveRoom detaches peer from room and garbage-collects the room when it
// was the last connection.
func (a *arena) leaveRoom(room *room, peer *wsPeer) {
	if room == nil || peer == nil {
		return
	}
	if room.leave(peer) {
		a.hub.removeIfEmpty(room.key)
	}
}

func (a *arena) handleJoinFrame(ctx context.Context, session *wsSession, frame wsFrame) {
	var payload joinRoomPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		log.Printf("arena: drop malformed join payload: %v", err)
		return
	}

	key := strings.TrimSpace(payload.RoomKey)
	if key == "" {
		log.Printf("arena: drop join without room key")
		return
	}
	name := strings.TrimSpace(payload.DisplayName)

	target := a.hub.room(key, a.newGame)
	res := target.join(session.peer, name, payload.Character)
	previous := session.setRoom(target)
	if previous != nil && previous != target {
		a.leaveRoom(previous, session.peer)
	}

	// Seated players get a rating row up front so the leaderboard shows
	// them at the default rating before their first decided game.
	if res.seated {
		if _, err := a.ratings.EnsurePlayer(ctx, res.seatName); err != nil {
			log.Printf("arena: ensure player %q: %v", res.seatName, err)
		}
	}

	_ = session.peer.writeFrame(res.snapshot)
	if res.notifyPeer != nil {
		_ = res.notifyPeer.writeFrame(res.notifyFrame)
	}
}

func (a *arena) handleMoveFrame(session *wsSession, frame wsFrame) {
	room := session.currentRoom()
	if room == nil {
		return
	}
	var payload movePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		log.Printf("arena: drop malformed move payload: %v", err)
		return
	}

	res := room.move(session.peer, payload.Move)
	switch res.outcome {
	case moveIgnored:
		return
	case moveRejected:
		_ = session.peer.writeFrame(errorFrame("Invalid move"))
		return
	}

	for _, peer := range res.recipients {
		_ = peer.writeFrame(res.update)
	}
	if res.ratingWinner != "" {
		a.applyResult(res.ratingWinner, res.ratingLoser)
	}
	if res.computerReply {
		a.scheduleComputerReply(room.key)
	}
}

func (a *arena) handleSurrenderFrame(session *wsSession) {
	room := session.currentRoom()
	if room == nil {
		return
	}
	res := room.surrender(session.peer)
	if !res.ok {
		return
	}
	for _, peer := range res.recipients {
		_ = peer.writeFrame(res.update)
	}
	if res.ratingWinner != "" {
		a.applyResult(res.ratingWinner, res.ratingLoser)
	}
}

func (a *arena) handleResetFrame(session *wsSession) {
	room := session.currentRoom()
	if room == nil {
		return
	}
	res := room.reset()
	for _, peer := range res.recipients {
		_ = peer.writeFrame(res.update)
	}
}

func (a *arena) handleChatFrame(session *wsSession, frame wsFrame) {
	room := session.currentRoom()
	if room == nil {
		return
	}
	var payload chatPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		log.Printf("arena: drop malformed chat payload: %v", err)
		return
	}
	res := room.chatMsg(session.peer, payload.Text)
	for _, peer := range res.recipients {
		_ = peer.writeFrame(res.event)
	}
}

// applyResult records a decided game. Failures are logged only: the game
// outcome already reached the players and must not be retracted.
func (a *arena) applyResult(winner, loser string) {
	if err := a.ratings.ApplyResult(context.Background(), winner, loser); err != nil {
		log.Printf("arena: apply result %s over %s: %v", winner, loser, err)
	}
}

// tauntLine picks a random line from the configured taunt file. A missing
// or empty file yields no line and no error.
func (a *arena) tauntLine() (string, error) {
	if strings.TrimSpace(a.tauntsPath) == "" {
		return "", nil
	}
	content, err := os.ReadFile(a.tauntsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "", nil
	}
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return lines[a.rng.Intn(len(lines))], nil
}

// pickMove guards the shared rng for the scripted opponent.
func (a *arena) pickMove(moves []engine.Record) (engine.Record, bool) {
	a.rngMu.Lock()
	defer a.rngMu.Unlock()
	return opponent.Pick(moves, a.rng)
}
