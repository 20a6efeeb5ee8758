package engine

import (
	"slices"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/events"
)

// EndCondition inspects the cage after a turn and returns the final event,
// or nil while the game goes on.
type EndCondition func(s Snapshot) *events.EndGame

// DefaultEndCondition ends the game on extinction, time expiry or domination.
func DefaultEndCondition(s Snapshot) *events.EndGame {
	if s.Queued == 0 {
		return &events.EndGame{Success: false}
	}
	if s.Round > s.RoundLimit {
		return &events.EndGame{Success: false, Rankings: Rank(s.Mice)}
	}

	owners := s.Mice[0].Owners
	for _, m := range s.Mice[1:] {
		if m.Owners != owners {
			return nil
		}
	}
	return &events.EndGame{Success: owners == mouse.OwnedBy(0)}
}

// Rank builds, for every decision function, the tie groups of owners
// ordered by number of living mice they control, highest first.
func Rank(mice []mouse.Mouse) events.Rankings {
	out := make(events.Rankings, len(mouse.Functions))
	for _, fn := range mouse.Functions {
		counts := make(map[int]int)
		for _, m := range mice {
			counts[m.Owners.Of(fn)]++
		}
		out[fn] = rankCounts(counts)
	}
	return out
}

type tieGroup struct {
	count   int
	players []int
}

func rankCounts(counts map[int]int) [][]int {
	ids := make([]int, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var groups []tieGroup
	for _, id := range ids {
		n := counts[id]
		placed := false
		for i := range groups {
			if groups[i].count == n {
				groups[i].players = append(groups[i].players, id)
				placed = true
				break
			}
			if groups[i].count < n {
				groups = slices.Insert(groups, i, tieGroup{count: n, players: []int{id}})
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, tieGroup{count: n, players: []int{id}})
		}
	}

	ranked := make([][]int, len(groups))
	for i, g := range groups {
		ranked[i] = g.players
	}
	return ranked
}
