package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/infra/storage"
)

// Recorder is an event-stream observer that writes rounds.csv and
// rankings.csv. It keeps its own mirror of the population, so it works on
// the live stream as well as on a recorded transcript.
//
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	dir          string
	roundsFile   *os.File
	rankingsFile *os.File

	roundsHeaderWritten bool

	mirror  *storage.Mirror
	seq     int64
	current RoundStats
	rounds  int
	err     error
}

// NewRecorder creates dir and opens both output files.
// Returns nil if dir is empty (output disabled).
func NewRecorder(dir string) (*Recorder, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	r := &Recorder{dir: dir, mirror: storage.NewMirror()}

	f, err := os.Create(filepath.Join(dir, "rounds.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating rounds.csv: %w", err)
	}
	r.roundsFile = f

	f, err = os.Create(filepath.Join(dir, "rankings.csv"))
	if err != nil {
		r.roundsFile.Close()
		return nil, fmt.Errorf("creating rankings.csv: %w", err)
	}
	r.rankingsFile = f

	return r, nil
}

// Dir returns the output directory.
func (r *Recorder) Dir() string {
	if r == nil {
		return ""
	}
	return r.dir
}

// Rounds returns the number of rounds written so far.
func (r *Recorder) Rounds() int {
	if r == nil {
		return 0
	}
	return r.rounds
}

// Observe folds one event into the current round. Its signature matches
// network.Sink.
func (r *Recorder) Observe(seq int64, e events.Event) {
	if r == nil || r.err != nil {
		return
	}
	r.seq = seq
	if e.Type() == events.EventTypeNextRound {
		r.flushRound()
		r.current = RoundStats{Round: r.rounds + 1}
	}
	if r.current.FirstSeq == 0 {
		r.current.FirstSeq = seq
	}
	r.current.LastSeq = seq
	r.mirror.Apply(e)

	switch ev := e.(type) {
	case events.Add:
		if ev.Mouse.Parents != nil {
			r.current.Births++
		}
	case events.Fight:
		if ev.Result != events.FightNone {
			r.current.Fights++
			r.current.FightDeaths += len(events.Deaths(ev))
		}
	case events.Mate:
		if ev.Result != events.MateNone {
			r.current.Proposals++
		}
	case events.Retire:
		r.current.Retirements++
	case events.Overpopulation:
		r.current.Overpopulation++
	case events.Explode:
		r.current.Explosions++
	case events.EndGame:
		r.flushRound()
		r.fail(r.writeRankings(ev))
	}
}

// ObserveBatch observes events numbered after the last one seen, as
// delivered by Cage.RunToEnd.
func (r *Recorder) ObserveBatch(batch []events.Event) {
	if r == nil {
		return
	}
	for _, e := range batch {
		r.Observe(r.seq+1, e)
	}
}

// Err returns the first write failure.
func (r *Recorder) Err() error {
	if r == nil {
		return nil
	}
	return r.err
}

// Close flushes and closes the output files.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	return errors.Join(r.err, r.roundsFile.Close(), r.rankingsFile.Close())
}

func (r *Recorder) fail(err error) {
	if err != nil && r.err == nil {
		r.err = err
	}
}

// flushRound writes the round in progress. The stretch before the first
// NEXT_ROUND only seeds founders and is not a round.
func (r *Recorder) flushRound() {
	if r.current.Round == 0 {
		return
	}
	r.current.sample(r.mirror.Mice())
	r.fail(r.writeRound(r.current))
	r.rounds++
}

func (r *Recorder) writeRound(stats RoundStats) error {
	records := []RoundStats{stats}

	if !r.roundsHeaderWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, r.roundsFile); err != nil {
			return fmt.Errorf("writing rounds: %w", err)
		}
		r.roundsHeaderWritten = true
		return nil
	}
	// Subsequent writes skip headers
	if err := gocsv.MarshalWithoutHeaders(records, r.roundsFile); err != nil {
		return fmt.Errorf("writing rounds: %w", err)
	}
	return nil
}

func (r *Recorder) writeRankings(end events.EndGame) error {
	records := RankingRecords(end)
	if err := gocsv.Marshal(records, r.rankingsFile); err != nil {
		return fmt.Errorf("writing rankings: %w", err)
	}
	return nil
}

// RankingRecords flattens an END_GAME into rows, one per tie group. A game
// without rankings yields a single outcome row.
func RankingRecords(end events.EndGame) []RankingRecord {
	outcome := "FAILURE"
	switch {
	case end.Success:
		outcome = "SUCCESS"
	case len(end.Rankings) > 0:
		outcome = "TIME_LIMIT"
	}
	if len(end.Rankings) == 0 {
		return []RankingRecord{{Outcome: outcome}}
	}

	var records []RankingRecord
	for _, fn := range mouse.Functions {
		for place, group := range end.Rankings[fn] {
			ids := make([]string, len(group))
			for i, id := range group {
				ids[i] = strconv.Itoa(id)
			}
			records = append(records, RankingRecord{
				Outcome:  outcome,
				Function: string(fn),
				Place:    place + 1,
				Players:  strings.Join(ids, ";"),
			})
		}
	}
	return records
}
