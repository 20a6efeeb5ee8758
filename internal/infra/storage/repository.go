// Package storage records match transcripts.
// A transcript is written while a game runs and read back for replay and
// analysis; the engine never restores state from it.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/blockly-games-sub000/internal/events"
)

// ErrGameNotFound is returned when a game id has no record.
var ErrGameNotFound = errors.New("game not found")

// Game describes one recorded match.
type Game struct {
	ID         string     `json:"id" db:"id"`
	Players    []string   `json:"players" db:"players"`
	Seed       uint64     `json:"seed" db:"seed"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	// Success is nil until the game finishes.
	Success *bool `json:"success,omitempty" db:"success"`
	Events  int   `json:"events" db:"-"`
}

// RecordedEvent is one event of a transcript.
type RecordedEvent struct {
	GameID     string           `json:"game_id" db:"game_id"`
	Seq        int64            `json:"seq" db:"seq"`
	Type       events.EventType `json:"type" db:"event_type"`
	Event      events.Event     `json:"-" db:"payload"`
	RecordedAt time.Time        `json:"recorded_at" db:"recorded_at"`
}

// EventRepository defines transcript persistence.
type EventRepository interface {
	// CreateGame opens a transcript and returns its id.
	CreateGame(ctx context.Context, players []string, seed uint64) (string, error)

	// FinishGame stamps the final outcome.
	FinishGame(ctx context.Context, gameID string, success bool) error

	// Append adds an event under its log sequence number.
	Append(ctx context.Context, gameID string, seq int64, event events.Event) error

	// GetByGameID returns the whole transcript in sequence order.
	GetByGameID(ctx context.Context, gameID string) ([]RecordedEvent, error)

	// GetByEventType returns the events of one type in sequence order.
	GetByEventType(ctx context.Context, gameID string, eventType events.EventType) ([]RecordedEvent, error)

	// GetGame returns a single game record.
	GetGame(ctx context.Context, gameID string) (*Game, error)

	// ListGames returns every recorded game, newest first.
	ListGames(ctx context.Context) ([]Game, error)
}
