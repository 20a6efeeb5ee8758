package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/domain/player"
)

// execute runs the cage command line and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParsePlayers(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []playerFile
		wantErr bool
	}{
		{"named", []string{"alice=a.star"}, []playerFile{{"alice", "a.star"}}, false},
		{"bare path", []string{"dir/romantic.star"}, []playerFile{{"romantic", "dir/romantic.star"}}, false},
		{"empty name", []string{"=a.star"}, nil, true},
		{"empty path", []string{"alice="}, nil, true},
		{"none", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePlayers(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePlayers(%v) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsePlayers(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parsePlayers(%v)[%d] = %v, want %v", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRunRecordAndReplay(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "games.db")
	csvDir := filepath.Join(tmpDir, "out")

	out, err := execute(t, "run",
		"--config", "testdata/config.yaml",
		"-p", "alice=testdata/aggressive.star",
		"-p", "bob=testdata/romantic.star",
		"--seed", "3", "--db", dbPath, "--csv", csvDir)
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Game over after") || !strings.Contains(out, "Recorded as") {
		t.Errorf("unexpected run output:\n%s", out)
	}
	for _, name := range []string{"rounds.csv", "rankings.csv"} {
		if _, err := os.Stat(filepath.Join(csvDir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	out, err = execute(t, "games", "--db", dbPath)
	if err != nil {
		t.Fatalf("games failed: %v", err)
	}
	if !strings.Contains(out, "alice, bob") {
		t.Errorf("games output missing players:\n%s", out)
	}

	out, err = execute(t, "replay", "--db", dbPath)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if !strings.Contains(out, "START_GAME") || !strings.Contains(out, "END_GAME") {
		t.Errorf("replay output incomplete:\n%s", out)
	}

	// Events 1 and 2 are the first two founders.
	out, err = execute(t, "replay", "--db", dbPath, "--seq", "2", "--json")
	if err != nil {
		t.Fatalf("replay --seq failed: %v", err)
	}
	var mice []mouse.Mouse
	if err := json.Unmarshal([]byte(out), &mice); err != nil {
		t.Fatalf("decoding population: %v\n%s", err, out)
	}
	if len(mice) != 2 || mice[0].Owners != mouse.OwnedBy(0) {
		t.Errorf("population after event 2 = %+v", mice)
	}
}

func TestRunHeadlessJSON(t *testing.T) {
	out, err := execute(t, "run", "--json", "--headless",
		"--config", "testdata/config.yaml",
		"-p", "testdata/romantic.star",
		"-p", "testdata/broken.star",
		"--seed", "11")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	var result runResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decoding result: %v\n%s", err, out)
	}
	if result.Events != 1 || result.End == nil {
		t.Errorf("headless game recorded %d events, end = %v", result.Events, result.End)
	}
	if result.Seed != 11 || result.Rounds == 0 {
		t.Errorf("result = %+v", result)
	}
}

func TestRunRequiresPlayers(t *testing.T) {
	if _, err := execute(t, "run", "--config", "testdata/config.yaml"); err == nil {
		t.Error("run without players should fail")
	}
}

func TestReplayRequiresDB(t *testing.T) {
	if _, err := execute(t, "replay"); err == nil {
		t.Error("replay without --db should fail")
	}
}

func TestRunRejectsMissingScript(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "games.db")
	_, err := execute(t, "run", "--config", "testdata/config.yaml",
		"-p", "alice=testdata/aggressive.star",
		"-p", "bob=testdata/no-such-file.star",
		"--db", dbPath)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
	if !strings.Contains(err.Error(), `"bob"`) {
		t.Errorf("error does not name the player: %v", err)
	}
	if _, statErr := os.Stat(dbPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("recording database created for a game that never started: %v", statErr)
	}
}

func TestRunRejectsEmptyScript(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.star")
	if err := os.WriteFile(empty, []byte("  \n\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := execute(t, "run", "--config", "testdata/config.yaml", "-p", "empty="+empty)
	if !errors.Is(err, player.ErrInvalidScript) {
		t.Fatalf("expected ErrInvalidScript, got %v", err)
	}
}
