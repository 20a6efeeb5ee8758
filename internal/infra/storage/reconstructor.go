package storage

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/events"
)

// Reconstructor rebuilds views of a recorded game from its transcript.
// Used by replay and post-game analysis only.
type Reconstructor struct {
	eventRepo EventRepository
}

// NewReconstructor creates a new transcript reader.
func NewReconstructor(eventRepo EventRepository) *Reconstructor {
	return &Reconstructor{eventRepo: eventRepo}
}

// RecapEvent is a one-line description of a transcript event.
type RecapEvent struct {
	Seq     int64  `json:"seq"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
	Impact  string `json:"impact"` // "BIRTH", "DEATH" or "NEUTRAL"
}

// Mirror is the view a renderer keeps: mice keyed by id, created by ADD
// events and removed by deaths. Mice keep the attributes they were added with.
type Mirror struct {
	mice  map[int]mouse.Mouse
	order []int
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{mice: make(map[int]mouse.Mouse)}
}

// Apply folds one event into the mirror.
func (m *Mirror) Apply(e events.Event) {
	if add, ok := e.(events.Add); ok {
		if _, dup := m.mice[add.Mouse.ID]; !dup {
			m.order = append(m.order, add.Mouse.ID)
		}
		m.mice[add.Mouse.ID] = add.Mouse
		return
	}
	for _, id := range events.Deaths(e) {
		delete(m.mice, id)
		m.order = slices.DeleteFunc(m.order, func(x int) bool { return x == id })
	}
}

// Mice returns the mirrored mice in order of arrival.
func (m *Mirror) Mice() []mouse.Mouse {
	out := make([]mouse.Mouse, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.mice[id])
	}
	return out
}

// Len returns the mirrored population size.
func (m *Mirror) Len() int {
	return len(m.mice)
}

// Population rebuilds the living mice after the event numbered upTo.
// upTo <= 0 replays the whole transcript.
func (r *Reconstructor) Population(ctx context.Context, gameID string, upTo int64) ([]mouse.Mouse, error) {
	recorded, err := r.eventRepo.GetByGameID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game events: %w", err)
	}

	mirror := NewMirror()
	for _, e := range recorded {
		if upTo > 0 && e.Seq > upTo {
			break
		}
		mirror.Apply(e.Event)
	}
	return mirror.Mice(), nil
}

// Recap describes every event of a game in sequence order.
func (r *Reconstructor) Recap(ctx context.Context, gameID string) ([]RecapEvent, error) {
	recorded, err := r.eventRepo.GetByGameID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	recap := make([]RecapEvent, 0, len(recorded))
	for _, e := range recorded {
		recap = append(recap, RecapEvent{
			Seq:     e.Seq,
			Type:    string(e.Type),
			Summary: Summarize(e.Event),
			Impact:  Impact(e.Event),
		})
	}
	return recap, nil
}

// Summarize renders an event as a short sentence.
func Summarize(e events.Event) string {
	switch ev := e.(type) {
	case events.Add:
		m := ev.Mouse
		if m.Parents != nil {
			return fmt.Sprintf("mouse %d (%s, size %.2f) born to %d and %d", m.ID, m.Sex, m.Size, m.Parents[0], m.Parents[1])
		}
		return fmt.Sprintf("founder mouse %d (%s) joins for player %d", m.ID, m.Sex, m.Owners.PickFight)
	case events.StartGame:
		return "game started"
	case events.NextRound:
		return "next round"
	case events.Fight:
		switch ev.Result {
		case events.FightNone:
			return fmt.Sprintf("mouse %d declines to fight", ev.ID)
		case events.FightSelf:
			return fmt.Sprintf("mouse %d attacks itself and dies", ev.ID)
		}
		return fmt.Sprintf("mouse %d fights mouse %d: %s", ev.ID, deref(ev.Opponent), ev.Result)
	case events.Mate:
		switch ev.Result {
		case events.MateNone:
			return fmt.Sprintf("mouse %d declines to mate", ev.ID)
		case events.MateSelf:
			return fmt.Sprintf("mouse %d proposes to itself", ev.ID)
		case events.MateSuccess:
			return fmt.Sprintf("mouse %d mates with mouse %d, offspring %d", ev.ID, deref(ev.Partner), deref(ev.Offspring))
		}
		return fmt.Sprintf("mouse %d proposes to mouse %d: %s", ev.ID, deref(ev.Partner), ev.Result)
	case events.Retire:
		return fmt.Sprintf("mouse %d retires", ev.ID)
	case events.Overpopulation:
		return fmt.Sprintf("mouse %d culled by overpopulation", ev.ID)
	case events.Explode:
		return fmt.Sprintf("mouse %d explodes in %s: %s", ev.ID, ev.Source, ev.Cause)
	case events.EndGame:
		if ev.Success {
			return "game over: player 0 dominates"
		}
		return "game over"
	}
	return string(e.Type())
}

func deref(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

// Impact classifies an event as "BIRTH", "DEATH" or "NEUTRAL".
func Impact(e events.Event) string {
	if len(events.Deaths(e)) > 0 {
		return "DEATH"
	}
	if add, ok := e.(events.Add); ok && add.Mouse.Parents != nil {
		return "BIRTH"
	}
	return "NEUTRAL"
}
