package network

import (
	"encoding/json"
	"net/http"

	"github.com/google/blockly-games-sub000/internal/engine"
	"github.com/google/blockly-games-sub000/internal/infra/storage"
	"github.com/google/blockly-games-sub000/internal/platform/logger"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
)

// Snapshotter is the read-only view of a live cage.
type Snapshotter interface {
	Snapshot() engine.Snapshot
}

// ServerDeps groups what the spectator server exposes. Nil fields turn
// their routes off.
type ServerDeps struct {
	Hub     *Hub
	Cage    Snapshotter
	GameID  string
	Repo    storage.EventRepository
	Metrics *metrics.Collector
	Logger  *logger.Logger
}

// NewServeMux wires the spectator routes:
//
//	/ws                  live event stream
//	/api/status          live cage snapshot
//	/api/games, /api/replay, /api/population, /api/stats   recorded games
//	/metrics, /metrics/prometheus
func NewServeMux(d ServerDeps) *http.ServeMux {
	mux := http.NewServeMux()

	if d.Hub != nil {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			ServeWS(d.Hub, w, r)
		})
	}

	if d.Cage != nil {
		mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			snap := d.Cage.Snapshot()
			spectators := 0
			if d.Hub != nil {
				spectators = d.Hub.Clients()
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"game_id":     d.GameID,
				"running":     snap.Running,
				"finished":    snap.Finished,
				"round":       snap.Round,
				"round_limit": snap.RoundLimit,
				"population":  len(snap.Mice),
				"queued":      snap.Queued,
				"players":     snap.Players,
				"spectators":  spectators,
			})
		})
	}

	if d.Repo != nil {
		NewReplayHandler(d.Repo, d.Logger).RegisterRoutes(mux)
	}

	if d.Metrics != nil {
		mux.HandleFunc("/metrics", d.Metrics.Handler())
		mux.HandleFunc("/metrics/prometheus", d.Metrics.PrometheusHandler())
	}

	return mux
}
