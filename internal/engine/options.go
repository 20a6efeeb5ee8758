package engine

import (
	"time"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
)

// DefaultBacklogLimit is the undrained-event count at which ticks are skipped.
const DefaultBacklogLimit = 100

// DefaultStepBudget is the per-call interpreter step limit.
const DefaultStepBudget = 100000

// Options configures a cage. A zero StepBudget means DefaultStepBudget.
type Options struct {
	MaxPopulation     int
	RoundLimit        int
	StepBudget        uint64
	TickDelay         time.Duration
	FoundersPerPlayer int
	Founder           mouse.Traits
	Mutation          mouse.Mutation
	Seed              uint64

	// DiscreteFights resolves fights by size alone.
	DiscreteFights bool
	// PreserveHistory disables backpressure skipping.
	PreserveHistory bool
	// Headless records only the END_GAME event.
	Headless bool
	// BacklogLimit overrides DefaultBacklogLimit when positive.
	BacklogLimit int

	Hooks TestHooks
}

// TestHooks narrow the simulation for tests.
type TestHooks struct {
	// SoloMouse, when set, is the only mouse whose turns are simulated.
	SoloMouse *int
	// IgnoreMouse, when set, never has its turns simulated.
	IgnoreMouse *int
	// SkipFights disables fighting for every mouse.
	SkipFights bool
}

// DefaultOptions returns the standard game settings.
func DefaultOptions() Options {
	return Options{
		MaxPopulation:     50,
		RoundLimit:        50,
		StepBudget:        DefaultStepBudget,
		TickDelay:         10 * time.Millisecond,
		FoundersPerPlayer: 2,
		Founder:           mouse.Traits{Size: 1, Aggressiveness: 2, Fertility: 4},
		Mutation:          mouse.Mutation{Size: 0.2, Trait: 1},
		DiscreteFights:    false,
		BacklogLimit:      DefaultBacklogLimit,
	}
}

func (o Options) backlogLimit() int {
	if o.BacklogLimit > 0 {
		return o.BacklogLimit
	}
	return DefaultBacklogLimit
}

func (o Options) stepBudget() uint64 {
	if o.StepBudget > 0 {
		return o.StepBudget
	}
	return DefaultStepBudget
}
