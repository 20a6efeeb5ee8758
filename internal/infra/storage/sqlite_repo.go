package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/google/blockly-games-sub000/internal/events"
)

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) CreateGame(ctx context.Context, players []string, seed uint64) (string, error) {
	names, err := json.Marshal(players)
	if err != nil {
		return "", fmt.Errorf("failed to marshal players: %w", err)
	}

	id := uuid.NewString()
	query := `INSERT INTO games (id, players, seed, started_at) VALUES (?, ?, ?, ?)`
	// SQLite integers are signed; the seed round-trips through int64.
	if _, err := r.db.ExecContext(ctx, query, id, string(names), int64(seed), time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to create game: %w", err)
	}
	return id, nil
}

func (r *SQLiteEventRepository) FinishGame(ctx context.Context, gameID string, success bool) error {
	query := `UPDATE games SET finished_at = ?, success = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), success, gameID)
	if err != nil {
		return fmt.Errorf("failed to finish game: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return nil
}

func (r *SQLiteEventRepository) Append(ctx context.Context, gameID string, seq int64, event events.Event) error {
	env, err := events.Encode(seq, event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	query := `
		INSERT INTO events (game_id, seq, event_type, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query, gameID, seq, string(env.Type), string(env.Payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]RecordedEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecordedEvent
	for rows.Next() {
		var e RecordedEvent
		var payload string
		if err := rows.Scan(&e.GameID, &e.Seq, &e.Type, &payload, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Event, err = events.Decode(events.Envelope{Seq: e.Seq, Type: e.Type, Payload: json.RawMessage(payload)})
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteEventRepository) GetByGameID(ctx context.Context, gameID string) ([]RecordedEvent, error) {
	query := `SELECT game_id, seq, event_type, payload, recorded_at FROM events WHERE game_id = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, gameID)
}

func (r *SQLiteEventRepository) GetByEventType(ctx context.Context, gameID string, eventType events.EventType) ([]RecordedEvent, error) {
	query := `SELECT game_id, seq, event_type, payload, recorded_at FROM events WHERE game_id = ? AND event_type = ? ORDER BY seq ASC`
	return r.getMany(ctx, query, gameID, string(eventType))
}

const gameColumns = `g.id, g.players, g.seed, g.started_at, g.finished_at, g.success,
	(SELECT COUNT(*) FROM events e WHERE e.game_id = g.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*Game, error) {
	var (
		g        Game
		players  string
		seed     int64
		finished sql.NullTime
		success  sql.NullBool
	)
	if err := row.Scan(&g.ID, &players, &seed, &g.StartedAt, &finished, &success, &g.Events); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(players), &g.Players); err != nil {
		return nil, fmt.Errorf("game %s players: %w", g.ID, err)
	}
	g.Seed = uint64(seed)
	if finished.Valid {
		t := finished.Time
		g.FinishedAt = &t
	}
	if success.Valid {
		b := success.Bool
		g.Success = &b
	}
	return &g, nil
}

func (r *SQLiteEventRepository) GetGame(ctx context.Context, gameID string) (*Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games g WHERE g.id = ?`
	g, err := scanGame(r.db.QueryRowContext(ctx, query, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return g, err
}

func (r *SQLiteEventRepository) ListGames(ctx context.Context) ([]Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games g ORDER BY g.started_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, *g)
	}
	return games, rows.Err()
}

// Persister writes one game's events through to the repository.
// It satisfies events.Persister.
type Persister struct {
	repo   EventRepository
	gameID string
}

// NewPersister binds repo to gameID.
func NewPersister(repo EventRepository, gameID string) *Persister {
	return &Persister{repo: repo, gameID: gameID}
}

// GameID returns the transcript this persister writes to.
func (p *Persister) GameID() string {
	return p.gameID
}

func (p *Persister) Append(seq int64, event events.Event) error {
	return p.repo.Append(context.Background(), p.gameID, seq, event)
}
