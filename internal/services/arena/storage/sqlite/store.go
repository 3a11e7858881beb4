// Package sqlite provides the SQLite-backed rating ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/arenaworks/colosseum/internal/platform/storage/sqlitemigrate"
	"github.com/arenaworks/colosseum/internal/services/arena/storage"
	"github.com/arenaworks/colosseum/internal/services/arena/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const (
	// kFactor controls rating volatility per decisive game.
	kFactor = 32
	// ratingDivisor scales rating differences in the expected-score formula.
	ratingDivisor = 400
)

// Store persists player ratings in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite rating store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// EnsurePlayer returns the record for name, creating it with defaults when
// absent.
func (s *Store) EnsurePlayer(ctx context.Context, name string) (storage.Player, error) {
	if err := ctx.Err(); err != nil {
		return storage.Player{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Player{}, fmt.Errorf("storage is not configured")
	}
	if name == "" {
		return storage.Player{}, fmt.Errorf("player name is required")
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO players (name) VALUES (?)`,
		name,
	); err != nil {
		return storage.Player{}, fmt.Errorf("ensure player: %w", err)
	}
	return s.getPlayer(ctx, s.sqlDB, name)
}

// ApplyResult records a decisive game between winner and loser.
//
// Both new ratings are computed from the pair's ratings as read inside one
// transaction, so concurrent results for other players never skew the
// deltas of this call.
func (s *Store) ApplyResult(ctx context.Context, winner, loser string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if winner == "" || loser == "" {
		return fmt.Errorf("winner and loser names are required")
	}
	if winner == loser {
		return fmt.Errorf("winner and loser must differ")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range []string{winner, loser} {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO players (name) VALUES (?)`, name); err != nil {
			return fmt.Errorf("ensure player %s: %w", name, err)
		}
	}

	winnerRecord, err := s.getPlayer(ctx, tx, winner)
	if err != nil {
		return err
	}
	loserRecord, err := s.getPlayer(ctx, tx, loser)
	if err != nil {
		return err
	}

	newWinner, newLoser := ratePair(winnerRecord.Rating, loserRecord.Rating)

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE players SET rating = ?, wins = wins + 1 WHERE name = ?`,
		newWinner,
		winner,
	); err != nil {
		return fmt.Errorf("update winner: %w", err)
	}
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE players SET rating = ?, losses = losses + 1 WHERE name = ?`,
		newLoser,
		loser,
	); err != nil {
		return fmt.Errorf("update loser: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result: %w", err)
	}
	return nil
}

// Leaderboard returns up to limit players ordered by rating descending.
// Ties fall back to storage order.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]storage.Player, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT name, rating, wins, losses
		   FROM players
		  ORDER BY rating DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	players := make([]storage.Player, 0, limit)
	for rows.Next() {
		var player storage.Player
		if err := rows.Scan(&player.Name, &player.Rating, &player.Wins, &player.Losses); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		players = append(players, player)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read leaderboard: %w", err)
	}
	return players, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getPlayer(ctx context.Context, q rowQuerier, name string) (storage.Player, error) {
	row := q.QueryRowContext(
		ctx,
		`SELECT name, rating, wins, losses FROM players WHERE name = ?`,
		name,
	)

	var player storage.Player
	err := row.Scan(&player.Name, &player.Rating, &player.Wins, &player.Losses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Player{}, storage.ErrNotFound
		}
		return storage.Player{}, fmt.Errorf("get player %s: %w", name, err)
	}
	return player, nil
}

// ratePair computes both new ratings from one pre-update snapshot using the
// standard logistic expected-score pairing.
func ratePair(winnerRating, loserRating int) (int, int) {
	expectedWinner := 1 / (1 + math.Pow(10, float64(loserRating-winnerRating)/ratingDivisor))
	expectedLoser := 1 / (1 + math.Pow(10, float64(winnerRating-loserRating)/ratingDivisor))

	newWinner := int(math.Round(float64(winnerRating) + kFactor*(1-expectedWinner)))
	newLoser := int(math.Round(float64(loserRating) + kFactor*(0-expectedLoser)))
	return newWinner, newLoser
}

var _ storage.PlayerStore = (*Store)(nil)
