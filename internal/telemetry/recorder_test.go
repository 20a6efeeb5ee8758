package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gocarina/gocsv"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/events"
)

func game() []events.Event {
	traits := mouse.Traits{Size: 1, Aggressiveness: 1, Fertility: 2}
	a := mouse.NewFounder(0, mouse.Male, 0, traits)
	b := mouse.NewFounder(1, mouse.Female, 1, traits)
	c := mouse.NewFounder(2, mouse.Female, 1, traits)
	child := mouse.Mouse{ID: 3, Sex: mouse.Male, Size: 1, Owners: mouse.OwnedBy(1), Parents: &[2]int{1, 2}}
	return []events.Event{
		events.Add{Mouse: *a},
		events.Add{Mouse: *b},
		events.Add{Mouse: *c},
		events.StartGame{},
		events.NextRound{},
		events.Fight{ID: 0, Result: events.FightLoss, Opponent: events.Ref(1)},
		events.Mate{ID: 1, Result: events.MateRejection, Partner: events.Ref(2)},
		events.Fight{ID: 2, Result: events.FightNone},
		events.NextRound{},
		events.Mate{ID: 1, Result: events.MateSuccess, Partner: events.Ref(2), Offspring: events.Ref(3)},
		events.Add{Mouse: child},
		events.Explode{ID: 2, Source: mouse.AcceptMate, Cause: "boom"},
		events.EndGame{Success: true},
	}
}

func readRounds(t *testing.T, dir string) []RoundStats {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "rounds.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var rows []RoundStats
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		t.Fatalf("reading rounds.csv: %v", err)
	}
	return rows
}

func TestRecorderWritesRounds(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r, err := NewRecorder(dir)
	if err != nil {
		t.Fatal(err)
	}
	r.ObserveBatch(game()[:7])
	r.ObserveBatch(game()[7:])
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.Rounds() != 2 {
		t.Fatalf("rounds = %d", r.Rounds())
	}

	rows := readRounds(t, dir)
	if len(rows) != 2 {
		t.Fatalf("rounds.csv has %d rows", len(rows))
	}

	first := rows[0]
	if first.Round != 1 || first.FirstSeq != 5 || first.LastSeq != 8 {
		t.Errorf("round 1 spans %+v", first)
	}
	if first.Fights != 1 || first.FightDeaths != 1 || first.Proposals != 1 || first.Population != 2 {
		t.Errorf("round 1 = %+v", first)
	}
	if first.PickFightLeader != 1 || first.PickFightShare != 1 {
		t.Errorf("round 1 leader = %d (%v)", first.PickFightLeader, first.PickFightShare)
	}

	second := rows[1]
	if second.Births != 1 || second.Explosions != 1 || second.Population != 2 || second.Males != 1 {
		t.Errorf("round 2 = %+v", second)
	}

	f, err := os.Open(filepath.Join(dir, "rankings.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var rankings []RankingRecord
	if err := gocsv.UnmarshalFile(f, &rankings); err != nil {
		t.Fatal(err)
	}
	if len(rankings) != 1 || rankings[0].Outcome != "SUCCESS" {
		t.Errorf("rankings = %+v", rankings)
	}
}

func TestRankingRecordsFlattensTieGroups(t *testing.T) {
	end := events.EndGame{Rankings: events.Rankings{
		mouse.PickFight:   {{0, 1}},
		mouse.ProposeMate: {{1}, {0}},
		mouse.AcceptMate:  {{0}},
	}}
	got := RankingRecords(end)
	if len(got) != 4 {
		t.Fatalf("records = %+v", got)
	}
	if got[0].Function != "pickFight" || got[0].Players != "0;1" || got[0].Place != 1 {
		t.Errorf("first record = %+v", got[0])
	}
	if got[2].Function != "proposeMate" || got[2].Place != 2 || got[2].Players != "0" {
		t.Errorf("third record = %+v", got[2])
	}
	for _, rec := range got {
		if rec.Outcome != "TIME_LIMIT" {
			t.Errorf("outcome = %q", rec.Outcome)
		}
	}

	if fail := RankingRecords(events.EndGame{}); len(fail) != 1 || fail[0].Outcome != "FAILURE" {
		t.Errorf("extinction = %+v", fail)
	}
}

func TestNilRecorderIsDisabled(t *testing.T) {
	r, err := NewRecorder("")
	if err != nil || r != nil {
		t.Fatalf("NewRecorder(\"\") = %v, %v", r, err)
	}
	r.Observe(1, events.StartGame{})
	r.ObserveBatch(game())
	if r.Close() != nil || r.Err() != nil || r.Rounds() != 0 {
		t.Error("nil recorder should do nothing")
	}
}
