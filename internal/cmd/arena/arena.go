// Package arena parses arena command flags and composes the server entrypoint.
package arena

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/arenaworks/colosseum/internal/platform/cmd"
	server "github.com/arenaworks/colosseum/internal/services/arena/app"
	"github.com/arenaworks/colosseum/internal/services/arena/storage"
	"github.com/arenaworks/colosseum/internal/services/arena/storage/sqlite"
)

// Config holds arena command configuration.
type Config struct {
	HTTPAddr   string `env:"COLOSSEUM_HTTP_ADDR"   envDefault:":3000"`
	DBPath     string `env:"COLOSSEUM_DB_PATH"     envDefault:"colosseum.db"`
	TauntsPath string `env:"COLOSSEUM_TAUNTS_PATH" envDefault:"taunts.txt"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "arena HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite rating database path")
	fs.StringVar(&cfg.TauntsPath, "taunts-path", cfg.TauntsPath, "computer opponent flavor text file")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the arena server and serves until ctx is canceled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceArena, func(context.Context) error {
		srv, err := server.NewServer(server.Config{
			HTTPAddr:   cfg.HTTPAddr,
			DBPath:     cfg.DBPath,
			TauntsPath: cfg.TauntsPath,
		}, openRatingStore)
		if err != nil {
			return fmt.Errorf("build arena server: %w", err)
		}
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("serve arena: %w", err)
		}
		return nil
	})
}

func openRatingStore(path string) (storage.PlayerStore, error) {
	return sqlite.Open(path)
}
