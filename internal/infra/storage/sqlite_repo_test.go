package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/events"
)

func newRepo(t *testing.T) *SQLiteEventRepository {
	t.Helper()
	db, err := InitSQLite(filepath.Join(t.TempDir(), "nested", "cage.db"))
	if err != nil {
		t.Fatalf("InitSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteEventRepository(db)
}

func sampleGame() []events.Event {
	a := mouse.NewFounder(0, mouse.Male, 0, mouse.Traits{Size: 1, Aggressiveness: 1, Fertility: 1})
	b := mouse.NewFounder(1, mouse.Female, 1, mouse.Traits{Size: 2, Aggressiveness: 1, Fertility: 1})
	return []events.Event{
		events.Add{Mouse: *a},
		events.Add{Mouse: *b},
		events.StartGame{},
		events.NextRound{},
		events.Fight{ID: 1, Result: events.FightWin, Opponent: events.Ref(0)},
		events.EndGame{Success: false},
	}
}

func TestTranscriptRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	gameID, err := repo.CreateGame(ctx, []string{"alice", "bob"}, 1<<63+5)
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	// Write through the event log as the cage does.
	log := events.NewEventLog(NewPersister(repo, gameID))
	var writeErr error
	log.OnPersistError(func(err error) { writeErr = err })
	for _, e := range sampleGame() {
		log.Append(e)
	}
	if writeErr != nil {
		t.Fatalf("persist: %v", writeErr)
	}
	if err := repo.FinishGame(ctx, gameID, false); err != nil {
		t.Fatalf("FinishGame: %v", err)
	}

	recorded, err := repo.GetByGameID(ctx, gameID)
	if err != nil {
		t.Fatalf("GetByGameID: %v", err)
	}
	if len(recorded) != len(sampleGame()) {
		t.Fatalf("recorded %d events", len(recorded))
	}
	for i, r := range recorded {
		if r.Seq != int64(i+1) {
			t.Errorf("event %d has seq %d", i, r.Seq)
		}
	}
	fight, ok := recorded[4].Event.(events.Fight)
	if !ok || fight.Result != events.FightWin || *fight.Opponent != 0 {
		t.Errorf("fight decoded as %#v", recorded[4].Event)
	}

	adds, err := repo.GetByEventType(ctx, gameID, events.EventTypeAdd)
	if err != nil || len(adds) != 2 {
		t.Fatalf("GetByEventType: %d, %v", len(adds), err)
	}

	g, err := repo.GetGame(ctx, gameID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.Seed != 1<<63+5 || g.Events != 6 || len(g.Players) != 2 || g.Players[1] != "bob" {
		t.Errorf("game = %+v", g)
	}
	if g.FinishedAt == nil || g.Success == nil || *g.Success {
		t.Errorf("finish not recorded: %+v", g)
	}
}

func TestListGamesAndMissingGame(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	for i := 0; i < 3; i++ {
		if _, err := repo.CreateGame(ctx, []string{"p"}, uint64(i)); err != nil {
			t.Fatal(err)
		}
	}
	games, err := repo.ListGames(ctx)
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(games) != 3 {
		t.Fatalf("listed %d games", len(games))
	}
	for _, g := range games {
		if g.FinishedAt != nil || g.Success != nil {
			t.Errorf("unfinished game has outcome: %+v", g)
		}
	}

	if _, err := repo.GetGame(ctx, "nope"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("GetGame(nope) = %v", err)
	}
	if err := repo.FinishGame(ctx, "nope", true); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("FinishGame(nope) = %v", err)
	}
}

func TestReconstructor(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	gameID, err := repo.CreateGame(ctx, []string{"a", "b"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range sampleGame() {
		if err := repo.Append(ctx, gameID, int64(i+1), e); err != nil {
			t.Fatal(err)
		}
	}

	rc := NewReconstructor(repo)
	before, err := rc.Population(ctx, gameID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 2 {
		t.Errorf("population before the fight = %d", len(before))
	}
	after, err := rc.Population(ctx, gameID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 1 || after[0].ID != 1 {
		t.Errorf("population after the fight = %+v", after)
	}

	recap, err := rc.Recap(ctx, gameID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recap) != 6 || recap[4].Impact != "DEATH" || recap[0].Impact != "NEUTRAL" {
		t.Errorf("recap = %+v", recap)
	}
	if want := "mouse 1 fights mouse 0: WIN"; recap[4].Summary != want {
		t.Errorf("summary = %q, want %q", recap[4].Summary, want)
	}
}

func TestMirrorTracksBirthsAndDeaths(t *testing.T) {
	m := NewMirror()
	for _, e := range sampleGame() {
		m.Apply(e)
	}
	child := mouse.Mouse{ID: 2, Parents: &[2]int{1, 0}}
	m.Apply(events.Add{Mouse: child})
	m.Apply(events.Overpopulation{ID: 1})

	got := m.Mice()
	if m.Len() != 1 || got[0].ID != 2 {
		t.Errorf("mirror = %+v", got)
	}
	if Impact(events.Add{Mouse: child}) != "BIRTH" {
		t.Error("offspring not classified as a birth")
	}
}
