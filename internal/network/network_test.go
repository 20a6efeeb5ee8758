package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/engine"
	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/infra/storage"
	"github.com/google/blockly-games-sub000/internal/platform/logger"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
)

func founderAdd(id, player int) events.Add {
	m := mouse.NewFounder(id, mouse.Female, player, mouse.Traits{Size: 1, Aggressiveness: 1, Fertility: 1})
	return events.Add{Mouse: *m}
}

func TestSpectatorReceivesWholeGameInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mc := metrics.NewCollector()
	hub := NewHub(logger.Discard(), mc)
	go hub.Run(ctx)

	eventLog := events.NewEventLog(nil)
	eventLog.Append(founderAdd(0, 0))
	eventLog.Append(founderAdd(1, 1))
	eventLog.Append(events.StartGame{})

	srv := httptest.NewServer(NewServeMux(ServerDeps{Hub: hub, Metrics: mc, Logger: logger.Discard()}))
	defer srv.Close()

	done := hub.StartEventPoller(ctx, eventLog, 5*time.Millisecond)
	// Let part of the game go out before the spectator joins.
	time.Sleep(30 * time.Millisecond)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	eventLog.Append(events.NextRound{})
	eventLog.Append(events.Retire{ID: 0})
	eventLog.Append(events.EndGame{Success: false})

	var got []events.EventType
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %v: %v", got, err)
		}
		seq, e, err := events.Unmarshal(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if seq != int64(len(got)+1) {
			t.Fatalf("seq %d after %d events", seq, len(got))
		}
		got = append(got, e.Type())
		if e.Type() == events.EventTypeEndGame {
			break
		}
	}
	if len(got) != 6 {
		t.Errorf("received %v", got)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop after END_GAME")
	}
	if eventLog.Len() != 0 {
		t.Error("poller left events in the log")
	}
}

func TestPollerFeedsSinks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(logger.Discard(), nil)
	go hub.Run(ctx)

	eventLog := events.NewEventLog(nil)
	eventLog.Append(events.StartGame{})
	eventLog.Append(events.EndGame{Success: true})

	var seqs []int64
	done := hub.StartEventPoller(ctx, eventLog, time.Millisecond, func(seq int64, _ events.Event) {
		seqs = append(seqs, seq)
	})
	<-done
	if len(seqs) != 2 || seqs[0] != 1 || seqs[1] != 2 {
		t.Errorf("sink saw %v", seqs)
	}
}

type fixedSnapshot engine.Snapshot

func (f fixedSnapshot) Snapshot() engine.Snapshot { return engine.Snapshot(f) }

func TestStatusEndpoint(t *testing.T) {
	snap := fixedSnapshot{Running: true, Round: 3, RoundLimit: 50, Queued: 2, Mice: make([]mouse.Mouse, 2)}
	srv := httptest.NewServer(NewServeMux(ServerDeps{Cage: snap, GameID: "g1", Logger: logger.Discard()}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["game_id"] != "g1" || body["round"] != float64(3) || body["population"] != float64(2) {
		t.Errorf("status = %v", body)
	}
}

func TestReplayRoutes(t *testing.T) {
	ctx := context.Background()
	db, err := storage.InitSQLite(filepath.Join(t.TempDir(), "replay.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	repo := storage.NewSQLiteEventRepository(db)

	gameID, err := repo.CreateGame(ctx, []string{"a", "b"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	transcript := []events.Event{
		founderAdd(0, 0),
		founderAdd(1, 1),
		events.StartGame{},
		events.Fight{ID: 0, Result: events.FightLoss, Opponent: events.Ref(1)},
		events.EndGame{Success: false},
	}
	for i, e := range transcript {
		if err := repo.Append(ctx, gameID, int64(i+1), e); err != nil {
			t.Fatal(err)
		}
	}

	srv := httptest.NewServer(NewServeMux(ServerDeps{Repo: repo, Logger: logger.Discard()}))
	defer srv.Close()

	get := func(path string, out interface{}) int {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if out != nil && resp.StatusCode == http.StatusOK {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				t.Fatal(err)
			}
		}
		return resp.StatusCode
	}

	var replay ReplayResponse
	if code := get("/api/replay?game_id="+gameID, &replay); code != http.StatusOK {
		t.Fatalf("replay status %d", code)
	}
	if replay.TotalEvents != 5 || replay.Events[3].Impact != "DEATH" || replay.Game.ID != gameID {
		t.Errorf("replay = %+v", replay)
	}

	var fights ReplayResponse
	get("/api/replay?game_id="+gameID+"&type=FIGHT", &fights)
	if fights.TotalEvents != 1 || fights.FilteredBy != "FIGHT" {
		t.Errorf("filtered replay = %+v", fights)
	}

	var pop struct {
		Mice []mouse.Mouse `json:"mice"`
	}
	get("/api/population?game_id="+gameID, &pop)
	if len(pop.Mice) != 1 || pop.Mice[0].ID != 1 {
		t.Errorf("population = %+v", pop.Mice)
	}

	var stats struct {
		Stats map[string]int `json:"stats"`
	}
	get("/api/stats?game_id="+gameID, &stats)
	if stats.Stats["deaths"] != 1 || stats.Stats["ADD"] != 2 || stats.Stats["total_events"] != 5 {
		t.Errorf("stats = %v", stats.Stats)
	}

	var games []storage.Game
	get("/api/games", &games)
	if len(games) != 1 || games[0].Events != 5 {
		t.Errorf("games = %+v", games)
	}

	if code := get("/api/replay?game_id=missing", nil); code != http.StatusNotFound {
		t.Errorf("missing game status %d", code)
	}
	if code := get("/api/replay", nil); code != http.StatusBadRequest {
		t.Errorf("no game_id status %d", code)
	}
}
