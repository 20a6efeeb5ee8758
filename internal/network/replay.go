package network

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/infra/storage"
	"github.com/google/blockly-games-sub000/internal/platform/logger"
)

// ReplayHandler serves recorded games.
type ReplayHandler struct {
	repo          storage.EventRepository
	reconstructor *storage.Reconstructor
	logger        *logger.Logger
}

// NewReplayHandler creates a replay handler over repo.
func NewReplayHandler(repo storage.EventRepository, log *logger.Logger) *ReplayHandler {
	return &ReplayHandler{
		repo:          repo,
		reconstructor: storage.NewReconstructor(repo),
		logger:        log,
	}
}

// ReplayEvent is one transcript event as served to viewers.
type ReplayEvent struct {
	Seq     int64           `json:"seq"`
	Type    string          `json:"type"`
	Summary string          `json:"summary"`
	Impact  string          `json:"impact"`
	Payload json.RawMessage `json:"payload"`
}

// ReplayResponse is the API response for a replay.
type ReplayResponse struct {
	Game        *storage.Game `json:"game"`
	TotalEvents int           `json:"total_events"`
	FilteredBy  string        `json:"filtered_by,omitempty"`
	GeneratedAt string        `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// HandleReplay returns the transcript of a game.
// GET /api/replay?game_id=XXX&type=FIGHT
func (rh *ReplayHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		rh.jsonError(w, "Missing game_id", http.StatusBadRequest)
		return
	}
	game, ok := rh.game(w, r, gameID)
	if !ok {
		return
	}

	eventType := r.URL.Query().Get("type")
	var (
		recorded []storage.RecordedEvent
		err      error
	)
	if eventType != "" {
		recorded, err = rh.repo.GetByEventType(r.Context(), gameID, events.EventType(eventType))
	} else {
		recorded, err = rh.repo.GetByGameID(r.Context(), gameID)
	}
	if err != nil {
		rh.logger.Error("replay query failed", "game", gameID, "err", err)
		rh.jsonError(w, "Failed to read transcript", http.StatusInternalServerError)
		return
	}

	out := make([]ReplayEvent, 0, len(recorded))
	for _, e := range recorded {
		env, err := events.Encode(e.Seq, e.Event)
		if err != nil {
			rh.jsonError(w, "Failed to encode transcript", http.StatusInternalServerError)
			return
		}
		out = append(out, ReplayEvent{
			Seq:     e.Seq,
			Type:    string(e.Type),
			Summary: storage.Summarize(e.Event),
			Impact:  storage.Impact(e.Event),
			Payload: env.Payload,
		})
	}

	rh.logger.Debug("replay served", "game", gameID, "events", len(out))
	rh.writeJSON(w, ReplayResponse{
		Game:        game,
		TotalEvents: len(out),
		FilteredBy:  eventType,
		GeneratedAt: time.Now().Format(time.RFC3339),
		Events:      out,
	})
}

// HandlePopulation returns the mice alive after a given event.
// GET /api/population?game_id=XXX&seq=N
func (rh *ReplayHandler) HandlePopulation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		rh.jsonError(w, "Missing game_id", http.StatusBadRequest)
		return
	}
	var upTo int64
	if s := r.URL.Query().Get("seq"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			rh.jsonError(w, "Invalid seq", http.StatusBadRequest)
			return
		}
		upTo = n
	}
	if _, ok := rh.game(w, r, gameID); !ok {
		return
	}

	mice, err := rh.reconstructor.Population(r.Context(), gameID, upTo)
	if err != nil {
		rh.jsonError(w, "Failed to rebuild population", http.StatusInternalServerError)
		return
	}
	if mice == nil {
		mice = []mouse.Mouse{}
	}
	rh.writeJSON(w, map[string]interface{}{
		"game_id": gameID,
		"seq":     upTo,
		"mice":    mice,
	})
}

// HandleStats returns per-type event counts of a game.
// GET /api/stats?game_id=XXX
func (rh *ReplayHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		rh.jsonError(w, "Missing game_id", http.StatusBadRequest)
		return
	}
	if _, ok := rh.game(w, r, gameID); !ok {
		return
	}
	recorded, err := rh.repo.GetByGameID(r.Context(), gameID)
	if err != nil {
		rh.jsonError(w, "Failed to read transcript", http.StatusInternalServerError)
		return
	}

	stats := map[string]int{
		"total_events": len(recorded),
		"births":       0,
		"deaths":       0,
	}
	for _, e := range recorded {
		stats[string(e.Type)]++
		switch storage.Impact(e.Event) {
		case "BIRTH":
			stats["births"]++
		case "DEATH":
			stats["deaths"] += len(events.Deaths(e.Event))
		}
	}

	rh.writeJSON(w, map[string]interface{}{
		"generated_at": time.Now().Format(time.RFC3339),
		"stats":        stats,
	})
}

// HandleGames lists recorded games.
// GET /api/games
func (rh *ReplayHandler) HandleGames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rh.jsonError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	games, err := rh.repo.ListGames(r.Context())
	if err != nil {
		rh.jsonError(w, "Failed to list games", http.StatusInternalServerError)
		return
	}
	if games == nil {
		games = []storage.Game{}
	}
	rh.writeJSON(w, games)
}

// RegisterRoutes sets up the replay API routes.
func (rh *ReplayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/games", rh.HandleGames)
	mux.HandleFunc("/api/replay", rh.HandleReplay)
	mux.HandleFunc("/api/population", rh.HandlePopulation)
	mux.HandleFunc("/api/stats", rh.HandleStats)
}

func (rh *ReplayHandler) game(w http.ResponseWriter, r *http.Request, gameID string) (*storage.Game, bool) {
	game, err := rh.repo.GetGame(r.Context(), gameID)
	switch {
	case errors.Is(err, storage.ErrGameNotFound):
		rh.jsonError(w, "Game not found", http.StatusNotFound)
		return nil, false
	case err != nil:
		rh.logger.Error("game lookup failed", "game", gameID, "err", err)
		rh.jsonError(w, "Failed to read game", http.StatusInternalServerError)
		return nil, false
	}
	return game, true
}

func (rh *ReplayHandler) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// jsonError sends an error response.
func (rh *ReplayHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
