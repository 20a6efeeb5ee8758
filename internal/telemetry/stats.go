// Package telemetry aggregates the event stream into per-round CSV output.
package telemetry

import (
	"sort"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
)

// RoundStats holds the aggregated statistics of one round.
type RoundStats struct {
	Round    int   `csv:"round"`
	FirstSeq int64 `csv:"first_seq"`
	LastSeq  int64 `csv:"last_seq"`

	// Population at round end
	Population int `csv:"population"`
	Males      int `csv:"males"`
	Females    int `csv:"females"`

	// Events during round
	Births         int `csv:"births"`
	Fights         int `csv:"fights"`
	FightDeaths    int `csv:"fight_deaths"`
	Proposals      int `csv:"proposals"`
	Retirements    int `csv:"retirements"`
	Overpopulation int `csv:"overpopulation"`
	Explosions     int `csv:"explosions"`

	MeanSize float64 `csv:"mean_size"`
	MeanAge  float64 `csv:"mean_age"`

	// Leading owner per decision function, and the fraction of mice it owns.
	PickFightLeader   int     `csv:"pick_fight_leader"`
	PickFightShare    float64 `csv:"pick_fight_share"`
	ProposeMateLeader int     `csv:"propose_mate_leader"`
	ProposeMateShare  float64 `csv:"propose_mate_share"`
	AcceptMateLeader  int     `csv:"accept_mate_leader"`
	AcceptMateShare   float64 `csv:"accept_mate_share"`
}

// RankingRecord is one row of rankings.csv.
type RankingRecord struct {
	Outcome  string `csv:"outcome"`
	Function string `csv:"function"`
	Place    int    `csv:"place"`
	Players  string `csv:"players"`
}

// sample fills the population columns from the mice alive at round end.
func (s *RoundStats) sample(mice []mouse.Mouse) {
	s.Population = len(mice)
	s.PickFightLeader, s.ProposeMateLeader, s.AcceptMateLeader = -1, -1, -1
	if len(mice) == 0 {
		return
	}

	var size, age float64
	for _, m := range mice {
		if m.Sex == mouse.Male {
			s.Males++
		} else {
			s.Females++
		}
		size += m.Size
		age += float64(m.Age)
	}
	n := float64(len(mice))
	s.MeanSize = size / n
	s.MeanAge = age / n

	s.PickFightLeader, s.PickFightShare = leader(mice, mouse.PickFight)
	s.ProposeMateLeader, s.ProposeMateShare = leader(mice, mouse.ProposeMate)
	s.AcceptMateLeader, s.AcceptMateShare = leader(mice, mouse.AcceptMate)
}

// leader returns the owner of fn with the most mice and its share.
// Ties go to the lower player id.
func leader(mice []mouse.Mouse, fn mouse.Function) (int, float64) {
	counts := make(map[int]int)
	for _, m := range mice {
		counts[m.Owners.Of(fn)]++
	}
	owners := make([]int, 0, len(counts))
	for id := range counts {
		owners = append(owners, id)
	}
	sort.Ints(owners)

	best := owners[0]
	for _, id := range owners[1:] {
		if counts[id] > counts[best] {
			best = id
		}
	}
	return best, float64(counts[best]) / float64(len(mice))
}
