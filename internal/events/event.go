// Package events provides the ordered log of everything that happens in the cage.
// Renderers and judges read the cage exclusively through this log.
package events

import "github.com/google/blockly-games-sub000/internal/domain/mouse"

// EventType defines the category of a cage event.
type EventType string

const (
	EventTypeAdd            EventType = "ADD"
	EventTypeStartGame      EventType = "START_GAME"
	EventTypeNextRound      EventType = "NEXT_ROUND"
	EventTypeFight          EventType = "FIGHT"
	EventTypeMate           EventType = "MATE"
	EventTypeRetire         EventType = "RETIRE"
	EventTypeOverpopulation EventType = "OVERPOPULATION"
	EventTypeExplode        EventType = "EXPLODE"
	EventTypeEndGame        EventType = "END_GAME"
)

// FightResult is the outcome of a pickFight turn.
type FightResult string

const (
	FightNone FightResult = "NONE"
	FightSelf FightResult = "SELF"
	FightTie  FightResult = "TIE"
	FightWin  FightResult = "WIN"
	FightLoss FightResult = "LOSS"
)

// MateResult is the outcome of a proposeMate turn.
type MateResult string

const (
	MateNone         MateResult = "NONE"
	MateSelf         MateResult = "SELF"
	MateRejection    MateResult = "REJECTION"
	MateIncompatible MateResult = "INCOMPATIBLE"
	MateInfertile    MateResult = "INFERTILE"
	MateSuccess      MateResult = "SUCCESS"
)

// Event is one of the variants below. The set is closed.
type Event interface {
	Type() EventType
	event()
}

// Rankings maps each decision function to tie groups of player ids, best first.
type Rankings map[mouse.Function][][]int

// Add announces a mouse entering the cage.
type Add struct {
	Mouse mouse.Mouse `json:"mouse"`
}

// StartGame marks the beginning of the simulation.
type StartGame struct{}

// NextRound marks a round boundary.
type NextRound struct{}

// Fight reports a pickFight turn. Opponent is nil for NONE and SELF.
type Fight struct {
	ID       int         `json:"id"`
	Result   FightResult `json:"result"`
	Opponent *int        `json:"opponent,omitempty"`
}

// Mate reports a proposeMate turn.
type Mate struct {
	ID        int        `json:"id"`
	Result    MateResult `json:"result"`
	Partner   *int       `json:"partner,omitempty"`
	Offspring *int       `json:"offspring,omitempty"`
}

// Retire reports a natural death.
type Retire struct {
	ID int `json:"id"`
}

// Overpopulation reports the oldest mouse culled to make room.
type Overpopulation struct {
	ID int `json:"id"`
}

// Explode reports a mouse killed by a faulting script.
type Explode struct {
	ID     int            `json:"id"`
	Source mouse.Function `json:"source"`
	Cause  string         `json:"cause"`
}

// EndGame reports the final outcome. Rankings are set only on time expiry.
type EndGame struct {
	Success  bool     `json:"success"`
	Rankings Rankings `json:"rankings,omitempty"`
}

func (Add) Type() EventType            { return EventTypeAdd }
func (StartGame) Type() EventType      { return EventTypeStartGame }
func (NextRound) Type() EventType      { return EventTypeNextRound }
func (Fight) Type() EventType          { return EventTypeFight }
func (Mate) Type() EventType           { return EventTypeMate }
func (Retire) Type() EventType         { return EventTypeRetire }
func (Overpopulation) Type() EventType { return EventTypeOverpopulation }
func (Explode) Type() EventType        { return EventTypeExplode }
func (EndGame) Type() EventType        { return EventTypeEndGame }

func (Add) event()            {}
func (StartGame) event()      {}
func (NextRound) event()      {}
func (Fight) event()          {}
func (Mate) event()           {}
func (Retire) event()         {}
func (Overpopulation) event() {}
func (Explode) event()        {}
func (EndGame) event()        {}

// Ref returns a pointer to id for the optional reference fields.
func Ref(id int) *int {
	return &id
}

// Deaths returns the ids of mice that an event removes from the cage.
func Deaths(e Event) []int {
	switch ev := e.(type) {
	case Retire:
		return []int{ev.ID}
	case Overpopulation:
		return []int{ev.ID}
	case Explode:
		return []int{ev.ID}
	case Fight:
		switch ev.Result {
		case FightSelf, FightLoss:
			return []int{ev.ID}
		case FightWin:
			return []int{*ev.Opponent}
		}
	}
	return nil
}
