package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/blockly-games-sub000/internal/events"
)

var (
	ErrAlreadyRunning = errors.New("cage already running")
	ErrFinished       = errors.New("game already finished")
)

// TickOutcome reports what a single tick did.
type TickOutcome int

const (
	Continue TickOutcome = iota
	RoundBoundary
	GameOver
)

func (o TickOutcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case RoundBoundary:
		return "round-boundary"
	default:
		return "game-over"
	}
}

// Start seeds founders into an empty cage, builds generated scripts and
// emits START_GAME. A nil check uses DefaultEndCondition.
func (c *Cage) Start(check EndCondition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.running:
		return ErrAlreadyRunning
	case c.finished:
		return ErrFinished
	}
	if check == nil {
		check = DefaultEndCondition
	}
	c.check = check

	if len(c.st.mice) == 0 {
		c.seedFounders()
	}
	c.precompile()
	c.emit(events.StartGame{})

	c.running = true
	c.stopCh = make(chan struct{})
	c.logger.Info("cage started", "players", len(c.st.players), "mice", len(c.st.mice), "seed", c.opts.Seed)
	return nil
}

// Stop halts the game. It is safe to call any number of times.
func (c *Cage) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop()
}

func (c *Cage) stop() {
	if !c.running {
		return
	}
	c.running = false
	c.finished = true
	close(c.stopCh)
	c.logger.Info("cage stopped", "round", c.st.round, "mice", len(c.st.mice))
}

// Running reports whether ticks still have an effect.
func (c *Cage) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Tick advances the simulation by at most one mouse turn.
func (c *Cage) Tick() TickOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return GameOver
	}
	started := time.Now()

	if !c.opts.PreserveHistory && c.eventLog.Len() >= c.opts.backlogLimit() {
		c.metrics.RecordSkippedTick()
		return Continue
	}

	outcome := Continue
	if len(c.st.current) == 0 {
		if c.st.round < c.opts.RoundLimit {
			c.st.current = append(c.st.current[:0], c.st.next...)
			c.emit(events.NextRound{})
			c.logger.Event(string(events.EventTypeNextRound), -1, "")
		}
		c.st.round++
		outcome = RoundBoundary
	}

	if len(c.st.current) > 0 {
		m := c.st.current[0]
		c.st.current = c.st.current[1:]
		if c.simulated(m.ID) {
			c.simulateLife(m)
		}
	}

	if end := c.check(c.snapshot()); end != nil {
		c.emit(*end)
		c.logger.Info("game over", "success", end.Success, "round", c.st.round)
		c.stop()
		outcome = GameOver
	}

	c.metrics.RecordTick(time.Since(started))
	return outcome
}

// simulated applies the solo and ignore hooks.
func (c *Cage) simulated(id int) bool {
	h := c.opts.Hooks
	if h.SoloMouse != nil && *h.SoloMouse != id {
		return false
	}
	if h.IgnoreMouse != nil && *h.IgnoreMouse == id {
		return false
	}
	return true
}

// Run drives Tick every TickDelay until the game ends, Stop is called or
// ctx is done. A zero delay ticks back to back.
func (c *Cage) Run(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	stopCh := c.stopCh
	delay := c.opts.TickDelay
	c.mu.Unlock()

	if delay <= 0 {
		for {
			select {
			case <-ctx.Done():
				c.Stop()
				return ctx.Err()
			case <-stopCh:
				return nil
			default:
			}
			if c.Tick() == GameOver {
				return nil
			}
		}
	}

	ticker := time.NewTicker(delay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			if c.Tick() == GameOver {
				return nil
			}
		}
	}
}

// RunToEnd ticks without delay until the game ends, draining the event
// log into sink after every tick. sink may be nil.
func (c *Cage) RunToEnd(ctx context.Context, sink func([]events.Event)) error {
	for {
		if err := ctx.Err(); err != nil {
			c.Stop()
			return err
		}
		outcome := c.Tick()
		if batch := c.eventLog.Drain(); sink != nil && len(batch) > 0 {
			sink(batch)
		}
		if outcome == GameOver {
			return nil
		}
	}
}
