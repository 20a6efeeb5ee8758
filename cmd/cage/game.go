package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/google/blockly-games-sub000/internal/config"
	"github.com/google/blockly-games-sub000/internal/domain/player"
	"github.com/google/blockly-games-sub000/internal/engine"
	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/infra/storage"
	"github.com/google/blockly-games-sub000/internal/platform/logger"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
	"github.com/google/blockly-games-sub000/internal/script"
)

// playerFile is a --player argument: a display name and a script path.
type playerFile struct {
	Name string
	Path string
}

// parsePlayers accepts "name=path" or a bare path, which is named after
// the file.
func parsePlayers(specs []string) ([]playerFile, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("at least one --player is required")
	}
	out := make([]playerFile, 0, len(specs))
	for _, s := range specs {
		name, path, ok := strings.Cut(s, "=")
		if !ok {
			path = s
			name = strings.TrimSuffix(filepath.Base(s), filepath.Ext(s))
		}
		if name == "" || path == "" {
			return nil, fmt.Errorf("invalid --player %q (want name=file.star)", s)
		}
		out = append(out, playerFile{Name: name, Path: path})
	}
	return out, nil
}

// load reads the script file. A missing or unreadable file is reported
// before the game starts.
func (p playerFile) load() (player.Script, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return player.Script{}, fmt.Errorf("player %q: %w", p.Name, err)
	}
	s := player.FromText(string(data))
	if err := s.Validate(); err != nil {
		return player.Script{}, fmt.Errorf("player %q (%s): %w", p.Name, p.Path, err)
	}
	return s, nil
}

// addGameFlags registers the flags shared by run and serve.
func addGameFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("player", "p", nil, "Player script as name=file.star (repeatable, first is player 0)")
	cmd.Flags().Uint64("seed", 0, "Random seed (0 picks one from the clock)")
	cmd.Flags().Int("rounds", 0, "Round limit override")
	cmd.Flags().Bool("headless", false, "Record only the final END_GAME event")
	cmd.Flags().Bool("discrete", false, "Resolve fights by size alone")
	cmd.Flags().String("db", "", "SQLite file to record the game in")
	cmd.Flags().String("csv", "", "Directory for rounds.csv and rankings.csv")
}

// loadConfig reads --config and applies command line overrides on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if level, _ := flags.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if flags.Changed("seed") {
		cfg.Cage.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("rounds") {
		cfg.Cage.RoundLimit, _ = flags.GetInt("rounds")
	}
	if flags.Changed("headless") {
		cfg.Cage.Headless, _ = flags.GetBool("headless")
	}
	if flags.Changed("discrete") {
		cfg.Cage.DiscreteFights, _ = flags.GetBool("discrete")
	}
	if flags.Changed("db") {
		cfg.Storage.SQLitePath, _ = flags.GetString("db")
	}
	if flags.Changed("csv") {
		cfg.Telemetry.CSVDir, _ = flags.GetString("csv")
	}
	return cfg, cfg.Validate()
}

// game bundles a cage with its recording.
type game struct {
	cage    *engine.Cage
	log     *events.EventLog
	opts    engine.Options
	players []playerFile

	db     *sql.DB
	repo   *storage.SQLiteEventRepository
	gameID string
}

// newGame registers players in a fresh cage and, when a database is
// configured, opens a transcript for it.
func newGame(ctx context.Context, cfg *config.Config, specs []string, log *logger.Logger, mc *metrics.Collector) (*game, error) {
	players, err := parsePlayers(specs)
	if err != nil {
		return nil, err
	}
	scripts := make([]player.Script, len(players))
	for i, p := range players {
		if scripts[i], err = p.load(); err != nil {
			return nil, err
		}
	}
	g := &game{opts: cfg.Options(), players: players}

	var persister events.Persister
	if cfg.Storage.SQLitePath != "" {
		db, err := storage.InitSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open recording database: %w", err)
		}
		g.db = db
		g.repo = storage.NewSQLiteEventRepository(db)

		names := make([]string, len(players))
		for i, p := range players {
			names[i] = p.Name
		}
		g.gameID, err = g.repo.CreateGame(ctx, names, g.opts.Seed)
		if err != nil {
			db.Close()
			return nil, err
		}
		persister = storage.NewPersister(g.repo, g.gameID)
		log = log.With("game", g.gameID)
	}

	g.log = events.NewEventLog(persister)
	g.log.OnPersistError(func(err error) {
		log.Warn("failed to record event", "err", err)
		mc.RecordEventWriteError()
	})

	g.cage = engine.NewCage(g.opts, script.NewStarlark(), g.log, log, mc)
	for i, p := range players {
		if _, err := g.cage.AddPlayer(p.Name, scripts[i]); err != nil {
			g.Close()
			return nil, err
		}
	}
	return g, nil
}

// finish records the outcome of a recorded game.
func (g *game) finish(ctx context.Context, end *events.EndGame) error {
	if g.repo == nil || end == nil {
		return nil
	}
	return g.repo.FinishGame(ctx, g.gameID, end.Success)
}

// Close releases the recording database.
func (g *game) Close() error {
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}

// playerName returns the display name of player id.
func (g *game) playerName(id int) string {
	if id >= 0 && id < len(g.players) {
		return g.players[id].Name
	}
	return fmt.Sprintf("player %d", id)
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *logger.Logger {
	return logger.New(cfg.Logging.Level, cmd.ErrOrStderr())
}
