package server

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/arenaworks/colosseum/internal/services/arena/engine"
)

const (
	roleWhite     = "w"
	roleBlack     = "b"
	roleSpectator = "s"
)

func isComputerRoom(key string) bool {
	return strings.HasPrefix(key, computerRoomPrefix)
}

// seat is one side of the board. peer is nil while the seat is vacant;
// name and character survive a disconnect so the opponent keeps seeing
// who they were playing.
type seat struct {
	peer      *wsPeer
	name      string
	character json.RawMessage
}

// room holds one game and its audience. Methods lock internally and return
// precomputed frames plus recipient lists, so socket writes never happen
// under the room lock.
type room struct {
	mu         sync.Mutex
	key        string
	game       engine.Game
	history    []engine.Record
	white      seat
	black      seat
	spectators map[*wsPeer]struct{}

	// winner is set only when a seat concedes. Checkmate outcomes live in
	// the engine state.
	winner engine.Color
}

func newRoom(key string, newGame engine.Factory) *room {
	return &room{
		key:        key,
		game:       newGame(),
		spectators: make(map[*wsPeer]struct{}),
	}
}

// roleOf reports the caller's role. Callers must hold r.mu.
func (r *room) roleOf(p *wsPeer) string {
	switch {
	case r.white.peer == p:
		return roleWhite
	case r.black.peer == p:
		return roleBlack
	default:
		return roleSpectator
	}
}

// openPeers lists every connected socket in the room. Callers must hold r.mu.
func (r *room) openPeers() []*wsPeer {
	peers := make([]*wsPeer, 0, 2+len(r.spectators))
	if r.white.peer != nil {
		peers = append(peers, r.white.peer)
	}
	if r.black.peer != nil {
		peers = append(peers, r.black.peer)
	}
	for p := range r.spectators {
		peers = append(peers, p)
	}
	return peers
}

func (r *room) historySnapshot() []engine.Record {
	return append([]engine.Record{}, r.history...)
}

// ratingPair resolves the persisted names for a decided game. It returns
// empty strings when the result must not reach the ledger: computer rooms
// and games with an anonymous or vacant-from-the-start seat.
// Callers must hold r.mu.
func (r *room) ratingPair(winner engine.Color) (winnerName, loserName string) {
	if isComputerRoom(r.key) {
		return "", ""
	}
	white, black := r.white.name, r.black.name
	if white == "" || black == "" || white == anonymousName || black == anonymousName {
		return "", ""
	}
	if winner == engine.White {
		return white, black
	}
	return black, white
}

type joinResult struct {
	role     string
	seated   bool
	seatName string

	snapshot wsFrame

	// notifyPeer receives notifyFrame when a player sits down opposite an
	// already-connected opponent.
	notifyPeer  *wsPeer
	notifyFrame wsFrame
}

// join assigns the first vacant seat in white, black order, everyone else
// spectates. Rejoining a room with a vacant seat takes that seat over.
func (r *room) join(p *wsPeer, name string, character json.RawMessage) joinResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		name = anonymousName
	}

	res := joinResult{role: roleSpectator}
	var opponent *seat
	switch {
	case r.white.peer == nil:
		r.white = seat{peer: p, name: name, character: character}
		res.role = roleWhite
		res.seated = true
		res.seatName = name
		opponent = &r.black
	case r.black.peer == nil:
		r.black = seat{peer: p, name: name, character: character}
		res.role = roleBlack
		res.seated = true
		res.seatName = name
		opponent = &r.white
	default:
		r.spectators[p] = struct{}{}
		opponent = &r.white
	}

	snapshot := initSnapshotPayload{
		FEN:     r.game.FEN(),
		Role:    res.role,
		History: r.historySnapshot(),
		Turn:    r.game.Turn(),
	}
	if opponent.name != "" {
		snapshot.OpponentName = opponent.name
		snapshot.OpponentCharacter = opponent.character
	}
	res.snapshot = wsFrame{Type: "init-snapshot", Payload: mustJSON(snapshot)}

	if res.seated && opponent.peer != nil {
		res.notifyPeer = opponent.peer
		res.notifyFrame = wsFrame{Type: "opponent-joined", Payload: mustJSON(opponentJoinedPayload{
			Name:      name,
			Character: character,
		})}
	}
	return res
}

// leave vacates every binding the peer holds and reports whether the room
// is now fully empty. A connection that joined the same room twice may hold
// both seats, so each binding is checked independently. A vacated seat keeps
// its name and character.
func (r *room) leave(p *wsPeer) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.white.peer == p {
		r.white.peer = nil
	}
	if r.black.peer == p {
		r.black.peer = nil
	}
	delete(r.spectators, p)
	return r.white.peer == nil && r.black.peer == nil && len(r.spectators) == 0
}

type moveOutcome int

const (
	// moveIgnored drops the command silently: spectator, out of turn.
	moveIgnored moveOutcome = iota
	// moveRejected means the engine refused a seated player's candidate.
	moveRejected
	moveApplied
)

type moveResult struct {
	outcome    moveOutcome
	update     wsFrame
	recipients []*wsPeer

	// ratingWinner/ratingLoser are set when checkmate concluded a rated game.
	ratingWinner string
	ratingLoser  string

	// computerReply asks the caller to schedule the scripted opponent.
	computerReply bool
}

func (r *room) move(p *wsPeer, candidate engine.Move) moveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	role := r.roleOf(p)
	if role == roleSpectator {
		return moveResult{outcome: moveIgnored}
	}
	if string(r.game.Turn()) != role {
		return moveResult{outcome: moveIgnored}
	}

	rec, err := r.game.ApplyMove(candidate)
	if err != nil {
		return moveResult{outcome: moveRejected}
	}
	r.history = append(r.history, rec)

	res := moveResult{
		outcome:    moveApplied,
		update:     r.gameUpdateFrame(&rec, false),
		recipients: r.openPeers(),
	}
	if r.game.IsCheckmate() {
		// The side to move is the mated side.
		res.ratingWinner, res.ratingLoser = r.ratingPair(r.game.Turn().Other())
	}
	if isComputerRoom(r.key) && r.game.Turn() == engine.Black && !r.game.IsGameOver() {
		res.computerReply = true
	}
	return res
}

type surrenderResult struct {
	ok         bool
	update     wsFrame
	recipients []*wsPeer

	ratingWinner string
	ratingLoser  string
}

// surrender concedes the game for a seated player. The position is left
// untouched, only the winner flag changes.
func (r *room) surrender(p *wsPeer) surrenderResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	role := r.roleOf(p)
	if role == roleSpectator {
		return surrenderResult{}
	}

	winner := engine.Color(role).Other()
	r.winner = winner

	res := surrenderResult{
		ok:         true,
		update:     r.gameUpdateFrame(nil, true),
		recipients: r.openPeers(),
	}
	res.ratingWinner, res.ratingLoser = r.ratingPair(winner)
	return res
}

type resetResult struct {
	update     wsFrame
	recipients []*wsPeer
}

// reset restarts the game in place. Seats and spectators are untouched, so
// any peer in the room may trigger it.
func (r *room) reset() resetResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.game.Reset()
	r.history = nil
	r.winner = ""

	return resetResult{
		update:     r.gameUpdateFrame(nil, false),
		recipients: r.openPeers(),
	}
}

type chatResult struct {
	event      wsFrame
	recipients []*wsPeer
}

// chatMsg relays a chat line to the whole room, labeling seated players by
// their display name and everyone else as a spectator.
func (r *room) chatMsg(p *wsPeer, text string) chatResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	sender := spectatorLabel
	switch {
	case r.white.peer == p:
		sender = r.white.name
	case r.black.peer == p:
		sender = r.black.name
	}
	if sender == "" {
		sender = anonymousName
	}

	return chatResult{
		event:      wsFrame{Type: "chat", Payload: mustJSON(chatEventPayload{Sender: sender, Text: text})},
		recipients: r.openPeers(),
	}
}

type computerResult struct {
	ok         bool
	update     wsFrame
	recipients []*wsPeer

	// tauntPeer is the white seat, the only recipient of flavor text.
	tauntPeer *wsPeer

	ratingWinner string
	ratingLoser  string
}

// computerMove replies for black in a computer room. It re-validates under
// the lock because the room may have changed during the reply delay.
func (r *room) computerMove(pick func([]engine.Record) (engine.Record, bool)) computerResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !isComputerRoom(r.key) || r.game.Turn() != engine.Black || r.game.IsGameOver() {
		return computerResult{}
	}
	choice, ok := pick(r.game.LegalMoves())
	if !ok {
		return computerResult{}
	}
	rec, err := r.game.ApplyMove(choice.Candidate())
	if err != nil {
		return computerResult{}
	}
	r.history = append(r.history, rec)

	res := computerResult{
		ok:         true,
		update:     r.gameUpdateFrame(&rec, false),
		tauntPeer:  r.white.peer,
		recipients: make([]*wsPeer, 0, 1+len(r.spectators)),
	}
	if r.white.peer != nil {
		res.recipients = append(res.recipients, r.white.peer)
	}
	for p := range r.spectators {
		res.recipients = append(res.recipients, p)
	}
	if r.game.IsCheckmate() {
		res.ratingWinner, res.ratingLoser = r.ratingPair(r.game.Turn().Other())
	}
	return res
}

// gameUpdateFrame renders the shared post-move frame. Callers must hold r.mu.
func (r *room) gameUpdateFrame(lastMove *engine.Record, surrender bool) wsFrame {
	payload := gameUpdatePayload{
		FEN:       r.game.FEN(),
		LastMove:  lastMove,
		History:   r.historySnapshot(),
		Turn:      r.game.Turn(),
		Surrender: surrender,
	}
	if surrender {
		payload.Winner = r.winner
	}
	return wsFrame{Type: "game-update", Payload: mustJSON(payload)}
}

// roomHub is the room registry. Lock order is hub before room.
type roomHub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newRoomHub() *roomHub {
	return &roomHub{rooms: make(map[string]*room)}
}

// room returns the room for key, creating it on first use.
func (h *roomHub) room(key string, newGame engine.Factory) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	if r, ok := h.rooms[key]; ok {
		return r
	}
	r := newRoom(key, newGame)
	h.rooms[key] = r
	return r
}

// lookup returns the room for key without creating one.
func (h *roomHub) lookup(key string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[key]
}

// removeIfEmpty drops the room once its last peer is gone. The emptiness
// check repeats under both locks because a join may have raced the leave.
func (h *roomHub) removeIfEmpty(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[key]
	if !ok {
		return
	}
	r.mu.Lock()
	empty := r.white.peer == nil && r.black.peer == nil && len(r.spectators) == 0
	r.mu.Unlock()
	if empty {
		delete(h.rooms, key)
	}
}

// activeKeys lists rooms with at least one seated player, excluding
// computer rooms. Sorted for stable output.
func (h *roomHub) activeKeys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := make([]string, 0, len(h.rooms))
	for key, r := range h.rooms {
		if isComputerRoom(key) {
			continue
		}
		r.mu.Lock()
		seated := r.white.peer != nil || r.black.peer != nil
		r.mu.Unlock()
		if seated {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
