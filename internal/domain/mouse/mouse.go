// Package mouse defines the core domain entity of the cage.
// This package is PURE and must NOT import any infrastructure packages (network, events, platform).
package mouse

import "math"

// Sex of a mouse. Only opposite sexes can produce offspring.
type Sex string

const (
	Male   Sex = "Male"
	Female Sex = "Female"
)

// Opposite returns the other sex.
func (s Sex) Opposite() Sex {
	if s == Male {
		return Female
	}
	return Male
}

// Function names a player-owned decision function.
type Function string

const (
	PickFight   Function = "pickFight"
	ProposeMate Function = "proposeMate"
	AcceptMate  Function = "acceptMate"
)

// Functions lists the decision functions in their canonical order.
var Functions = []Function{PickFight, ProposeMate, AcceptMate}

// Owners identifies which player controls each decision function.
type Owners struct {
	PickFight   int `json:"pickFightOwner"`
	ProposeMate int `json:"proposeMateOwner"`
	AcceptMate  int `json:"acceptMateOwner"`
}

// Of returns the owner of fn.
func (o Owners) Of(fn Function) int {
	switch fn {
	case PickFight:
		return o.PickFight
	case ProposeMate:
		return o.ProposeMate
	default:
		return o.AcceptMate
	}
}

// OwnedBy returns an ownership triple where a single player controls everything.
func OwnedBy(playerID int) Owners {
	return Owners{PickFight: playerID, ProposeMate: playerID, AcceptMate: playerID}
}

// Traits are the heritable starting values of a mouse.
type Traits struct {
	Size           float64 `json:"size" yaml:"size"`
	Aggressiveness int     `json:"aggressiveness" yaml:"aggressiveness"`
	Fertility      int     `json:"fertility" yaml:"fertility"`
}

// Mouse represents the state of a single simulated agent.
type Mouse struct {
	ID     int     `json:"id"`
	Sex    Sex     `json:"sex"`
	Size   float64 `json:"size"`
	Age    int     `json:"age"`
	Owners Owners  `json:"owners"`

	// Remaining fight and mate attempts. Decrease-only.
	Aggressiveness int `json:"aggressiveness"`
	Fertility      int `json:"fertility"`

	StartAggressiveness int `json:"startAggressiveness"`
	StartFertility      int `json:"startFertility"`

	// Parents is nil for founder mice.
	Parents *[2]int `json:"parents,omitempty"`
}

// NewFounder creates a first-generation mouse fully owned by one player.
func NewFounder(id int, sex Sex, playerID int, t Traits) *Mouse {
	return &Mouse{
		ID:                  id,
		Sex:                 sex,
		Size:                t.Size,
		Owners:              OwnedBy(playerID),
		Aggressiveness:      t.Aggressiveness,
		Fertility:           t.Fertility,
		StartAggressiveness: t.Aggressiveness,
		StartFertility:      t.Fertility,
	}
}

// Source supplies the randomness used for inheritance.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// Mutation bounds the random drift applied to inherited traits.
type Mutation struct {
	// Size is the maximum relative change of the averaged size (0.2 = ±20%).
	Size float64 `yaml:"size"`
	// Trait is the maximum absolute change of the averaged start counters.
	Trait int `yaml:"trait"`
}

// NewOffspring creates a child of a and b. Each owner is inherited from
// either parent with equal probability.
func NewOffspring(id int, sex Sex, a, b *Mouse, rng Source, mut Mutation) *Mouse {
	pick := func(x, y int) int {
		if rng.IntN(2) == 0 {
			return x
		}
		return y
	}
	owners := Owners{
		PickFight:   pick(a.Owners.PickFight, b.Owners.PickFight),
		ProposeMate: pick(a.Owners.ProposeMate, b.Owners.ProposeMate),
		AcceptMate:  pick(a.Owners.AcceptMate, b.Owners.AcceptMate),
	}

	size := (a.Size + b.Size) / 2
	if mut.Size > 0 {
		size *= 1 + (rng.Float64()*2-1)*mut.Size
	}
	aggr := inherit(a.StartAggressiveness, b.StartAggressiveness, rng, mut.Trait)
	fert := inherit(a.StartFertility, b.StartFertility, rng, mut.Trait)

	return &Mouse{
		ID:                  id,
		Sex:                 sex,
		Size:                size,
		Owners:              owners,
		Aggressiveness:      aggr,
		Fertility:           fert,
		StartAggressiveness: aggr,
		StartFertility:      fert,
		Parents:             &[2]int{a.ID, b.ID},
	}
}

func inherit(x, y int, rng Source, spread int) int {
	v := int(math.Round(float64(x+y) / 2))
	if spread > 0 {
		v += rng.IntN(2*spread+1) - spread
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Clone returns an independent copy, used for read-only snapshots.
func (m *Mouse) Clone() *Mouse {
	c := *m
	if m.Parents != nil {
		p := *m.Parents
		c.Parents = &p
	}
	return &c
}
