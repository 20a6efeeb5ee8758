// Package engine contains the round scheduler and life-cycle rules of the cage.
//
// ARCHITECTURAL RULE: all mutation of the population and the event log
// happens inside Tick. Observers read the cage only through the event log
// and Snapshot.
package engine

import (
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/domain/player"
	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/platform/logger"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
	"github.com/google/blockly-games-sub000/internal/script"
)

// simulationState is everything a game mutates.
type simulationState struct {
	players []*player.Player

	// mice is the registry; order keeps registry iteration order (ascending id).
	mice  map[int]*mouse.Mouse
	order []int

	// current drains one mouse per tick; next is the roster for the following round.
	current []*mouse.Mouse
	next    []*mouse.Mouse

	nextID int
	round  int
}

// Cage is the central orchestrator: it owns the population, the event log
// and the scheduler state.
type Cage struct {
	mu sync.Mutex

	opts     Options
	eventLog *events.EventLog
	logger   *logger.Logger
	metrics  *metrics.Collector
	rng      *rand.Rand
	sandbox  *Sandbox

	check    EndCondition
	running  bool
	finished bool
	stopCh   chan struct{}

	st simulationState
}

// NewCage initializes an empty cage. mc may be nil.
func NewCage(opts Options, interp script.Interpreter, eventLog *events.EventLog, log *logger.Logger, mc *metrics.Collector) *Cage {
	c := &Cage{
		opts:     opts,
		eventLog: eventLog,
		logger:   log,
		metrics:  mc,
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		st: simulationState{
			mice: make(map[int]*mouse.Mouse),
		},
	}
	c.sandbox = NewSandbox(interp, opts.stepBudget(), mc)
	return c
}

// EventLog exposes the log for consumers to drain.
func (c *Cage) EventLog() *events.EventLog {
	return c.eventLog
}

// AddPlayer registers a player and returns its id. The script is not
// compiled here; broken scripts surface as explosions during play.
func (c *Cage) AddPlayer(name string, s player.Script) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := len(c.st.players)
	p, err := player.New(id, name, s)
	if err != nil {
		return 0, err
	}
	c.st.players = append(c.st.players, p)
	c.logger.Info("player registered", "player", id, "name", name)
	return id, nil
}

// AddMouse puts m into the cage. The cage always allocates the id; any id
// already set on m is overwritten.
func (c *Cage) AddMouse(m *mouse.Mouse) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	m.ID = c.allocID()
	c.addMouse(m)
	return m.ID
}

func (c *Cage) allocID() int {
	id := c.st.nextID
	c.st.nextID++
	return id
}

// addMouse inserts a mouse whose id came from allocID.
func (c *Cage) addMouse(m *mouse.Mouse) {
	c.st.mice[m.ID] = m
	c.st.order = append(c.st.order, m.ID)
	c.st.next = slices.Insert(c.st.next, 0, m)
	c.emit(events.Add{Mouse: *m.Clone()})
}

// die removes m from the registry and both queues. It reports whether m was alive.
func (c *Cage) die(m *mouse.Mouse) bool {
	if _, ok := c.st.mice[m.ID]; !ok {
		return false
	}
	delete(c.st.mice, m.ID)
	c.st.order = slices.DeleteFunc(c.st.order, func(id int) bool { return id == m.ID })
	c.st.current = slices.DeleteFunc(c.st.current, func(x *mouse.Mouse) bool { return x.ID == m.ID })
	c.st.next = slices.DeleteFunc(c.st.next, func(x *mouse.Mouse) bool { return x.ID == m.ID })
	return true
}

func (c *Cage) alive(id int) (*mouse.Mouse, bool) {
	m, ok := c.st.mice[id]
	return m, ok
}

// living returns the registry in iteration order.
func (c *Cage) living() []*mouse.Mouse {
	out := make([]*mouse.Mouse, 0, len(c.st.order))
	for _, id := range c.st.order {
		out = append(out, c.st.mice[id])
	}
	return out
}

func (c *Cage) emit(e events.Event) {
	if c.metrics != nil {
		c.metrics.RecordEvent(string(e.Type()))
	}
	if c.opts.Headless && e.Type() != events.EventTypeEndGame {
		return
	}
	c.eventLog.Append(e)
}

// seedFounders gives every player FoundersPerPlayer mice of alternating sex.
func (c *Cage) seedFounders() {
	for _, p := range c.st.players {
		for i := 0; i < c.opts.FoundersPerPlayer; i++ {
			sex := mouse.Male
			if i%2 == 1 {
				sex = mouse.Female
			}
			c.addMouse(mouse.NewFounder(c.allocID(), sex, p.ID, c.opts.Founder))
		}
	}
}

// Snapshot is a read-only view of the cage.
type Snapshot struct {
	Running    bool
	Finished   bool
	Round      int
	RoundLimit int
	Players    []PlayerInfo
	// Mice are copies in registry order.
	Mice []mouse.Mouse
	// Queued is the size of the next-round roster.
	Queued int
}

// PlayerInfo describes a registered player.
type PlayerInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Snapshot returns the current view of the cage.
func (c *Cage) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Cage) snapshot() Snapshot {
	s := Snapshot{
		Running:    c.running,
		Finished:   c.finished,
		Round:      c.st.round,
		RoundLimit: c.opts.RoundLimit,
		Queued:     len(c.st.next),
		Mice:       make([]mouse.Mouse, 0, len(c.st.order)),
	}
	for _, p := range c.st.players {
		s.Players = append(s.Players, PlayerInfo{ID: p.ID, Name: p.Name})
	}
	for _, m := range c.living() {
		s.Mice = append(s.Mice, *m.Clone())
	}
	return s
}
