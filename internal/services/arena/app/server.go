// Package server wires the arena coordination layer into an HTTP process:
// room registry, WebSocket sessions, computer opponent scheduling, and the
// read-side query endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/arenaworks/colosseum/internal/platform/timeouts"
	"github.com/arenaworks/colosseum/internal/random"
	"github.com/arenaworks/colosseum/internal/services/arena/engine"
	"github.com/arenaworks/colosseum/internal/services/arena/storage"
)

const (
	// anonymousName is assigned to players who join without a display name.
	// Games involving an anonymous seat never touch the rating ledger.
	anonymousName = "Anonymous"

	// computerRoomPrefix marks rooms where black is played by the scripted
	// opponent. The prefix is checked on the room key at resolution time, so
	// a room needs no dedicated mode flag.
	computerRoomPrefix = "ai"

	// spectatorLabel replaces the sender name on chat lines from peers
	// without a seat.
	spectatorLabel = "Spectator"

	defaultComputerMoveDelay = time.Second

	leaderboardLimit = 20
)

// Config carries the arena server dependencies and tunables.
type Config struct {
	// HTTPAddr is the listen address for the WebSocket and query endpoints.
	HTTPAddr string

	// DBPath locates the SQLite rating database. Ignored when Ratings is
	// set explicitly.
	DBPath string

	// TauntsPath locates the flavor-text file read on each computer move.
	// A missing file disables flavor text without error.
	TauntsPath string

	// ComputerMoveDelay is the pause before the scripted opponent replies.
	// Zero means defaultComputerMoveDelay.
	ComputerMoveDelay time.Duration

	// NewGame builds a fresh rules engine per room. Defaults to engine.NewGame.
	NewGame engine.Factory

	// Ratings overrides the SQLite player store, mainly for tests.
	Ratings storage.PlayerStore

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server owns the HTTP listener and the shared arena state.
type Server struct {
	cfg        Config
	arena      *arena
	httpServer *http.Server

	// ownsRatings records whether Close should also close the player store.
	ownsRatings bool
}

// NewServer validates cfg, opens the rating store when none was supplied,
// and prepares the HTTP server without listening yet.
func NewServer(cfg Config, openStore func(path string) (storage.PlayerStore, error)) (*Server, error) {
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http address is required")
	}
	if cfg.NewGame == nil {
		cfg.NewGame = engine.NewGame
	}
	if cfg.ComputerMoveDelay <= 0 {
		cfg.ComputerMoveDelay = defaultComputerMoveDelay
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}

	ownsRatings := false
	ratings := cfg.Ratings
	if ratings == nil {
		if openStore == nil {
			return nil, fmt.Errorf("rating store is required")
		}
		opened, err := openStore(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open rating store: %w", err)
		}
		ratings = opened
		ownsRatings = true
	}

	seed, err := random.NewSeed()
	if err != nil {
		if ownsRatings {
			_ = ratings.Close()
		}
		return nil, fmt.Errorf("seed rng: %w", err)
	}

	a := &arena{
		hub:           newRoomHub(),
		ratings:       ratings,
		newGame:       cfg.NewGame,
		computerDelay: cfg.ComputerMoveDelay,
		tauntsPath:    cfg.TauntsPath,
		rng:           rand.New(rand.NewSource(seed)),
	}

	srv := &Server{
		cfg:         cfg,
		arena:       a,
		ownsRatings: ownsRatings,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           a.handler(),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
	}
	return srv, nil
}

// Run serves until ctx is canceled or the listener fails, then shuts down
// with the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	defer s.Close()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("arena: serving http on %s", s.httpServer.Addr)
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	}
}

// Handler exposes the routing surface for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Close releases resources owned by the server. Safe to call more than once.
func (s *Server) Close() error {
	if s.ownsRatings && s.arena.ratings != nil {
		err := s.arena.ratings.Close()
		s.arena.ratings = nil
		return err
	}
	return nil
}

// arena is the state shared by every connection: the room registry, the
// rating ledger, and the scripted opponent's randomness.
type arena struct {
	hub           *roomHub
	ratings       storage.PlayerStore
	newGame       engine.Factory
	computerDelay time.Duration
	tauntsPath    string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// wsFrame is the wire envelope. One JSON object per WebSocket message.
type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type joinRoomPayload struct {
	RoomKey     string          `json:"room_key"`
	DisplayName string          `json:"display_name"`
	Character   json.RawMessage `json:"character,omitempty"`
}

type movePayload struct {
	Move engine.Move `json:"move"`
}

type chatPayload struct {
	Text string `json:"text"`
}

type initSnapshotPayload struct {
	FEN               string          `json:"fen"`
	Role              string          `json:"role"`
	History           []engine.Record `json:"history"`
	Turn              engine.Color    `json:"turn"`
	OpponentName      string          `json:"opponent_name,omitempty"`
	OpponentCharacter json.RawMessage `json:"opponent_character,omitempty"`
}

type opponentJoinedPayload struct {
	Name      string          `json:"name"`
	Character json.RawMessage `json:"character,omitempty"`
}

type gameUpdatePayload struct {
	FEN       string          `json:"fen"`
	LastMove  *engine.Record  `json:"last_move,omitempty"`
	History   []engine.Record `json:"history"`
	Turn      engine.Color    `json:"turn"`
	Surrender bool            `json:"surrender,omitempty"`
	Winner    engine.Color    `json:"winner,omitempty"`
}

type flavorTextPayload struct {
	Text string `json:"text"`
}

type chatEventPayload struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// mustJSON marshals a payload that is built from our own types and cannot
// legitimately fail. A failure is logged and produces an empty payload.
func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("arena: marshal payload: %v", err)
		return nil
	}
	return data
}

func errorFrame(message string) wsFrame {
	return wsFrame{Type: "error", Payload: mustJSON(errorPayload{Message: message})}
}
