package engine

import (
	"math"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/events"
	"github.com/google/blockly-games-sub000/internal/script"
)

// tieThreshold is the outcome magnitude below which a fight is a draw.
const tieThreshold = 0.1

// simulateLife plays one turn for m.
func (c *Cage) simulateLife(m *mouse.Mouse) {
	m.Age++
	switch {
	case !c.opts.Hooks.SkipFights && m.Aggressiveness > 0:
		c.tryFight(m)
	case m.Fertility > 0:
		c.tryMate(m)
	default:
		c.emit(events.Retire{ID: m.ID})
		c.die(m)
	}
}

// explode kills m because its script for fn misbehaved.
func (c *Cage) explode(m *mouse.Mouse, fn mouse.Function, cause string) {
	c.logger.Warn("mouse exploded", "mouse", m.ID, "source", fn, "cause", cause, "owner", m.Owners.Of(fn))
	c.metrics.RecordExplosion(string(fn))
	c.emit(events.Explode{ID: m.ID, Source: fn, Cause: cause})
	c.die(m)
}

// target resolves a script's return value to a living mouse.
func (c *Cage) target(v script.Value) (*mouse.Mouse, bool) {
	if v.Kind != script.KindInt {
		return nil, false
	}
	return c.alive(int(v.Int))
}

func invalidResult(v script.Value) string {
	return "invalid result: " + v.Repr
}

func (c *Cage) tryFight(m *mouse.Mouse) {
	res := c.runFunction(m, mouse.PickFight, nil)
	m.Aggressiveness--
	if res.Failed() {
		c.explode(m, mouse.PickFight, res.Reason())
		return
	}
	if res.Value.IsNone() {
		// Declining once means never fighting again.
		m.Aggressiveness = 0
		c.emit(events.Fight{ID: m.ID, Result: events.FightNone})
		return
	}
	opponent, ok := c.target(res.Value)
	if !ok {
		c.explode(m, mouse.PickFight, invalidResult(res.Value))
		return
	}
	if opponent.ID == m.ID {
		c.emit(events.Fight{ID: m.ID, Result: events.FightSelf})
		c.die(m)
		return
	}

	outcome := c.fightOutcome(m, opponent)
	switch {
	case math.Abs(outcome) < tieThreshold:
		c.emit(events.Fight{ID: m.ID, Result: events.FightTie, Opponent: events.Ref(opponent.ID)})
	case outcome < 0:
		c.emit(events.Fight{ID: m.ID, Result: events.FightWin, Opponent: events.Ref(opponent.ID)})
		c.die(opponent)
	default:
		c.emit(events.Fight{ID: m.ID, Result: events.FightLoss, Opponent: events.Ref(opponent.ID)})
		c.die(m)
	}
}

// fightOutcome is negative when self wins and positive when it loses.
func (c *Cage) fightOutcome(self, opponent *mouse.Mouse) float64 {
	if c.opts.DiscreteFights {
		switch {
		case opponent.Size > self.Size:
			return 1
		case opponent.Size < self.Size:
			return -1
		}
		return 0
	}
	share := 0.5
	if total := self.Size + opponent.Size; total > 0 {
		share = self.Size / total
	}
	return c.rng.Float64() - share
}

func (c *Cage) tryMate(m *mouse.Mouse) {
	res := c.runFunction(m, mouse.ProposeMate, nil)
	if res.Failed() {
		c.explode(m, mouse.ProposeMate, res.Reason())
		return
	}
	if res.Value.IsNone() {
		m.Fertility = 0
		c.emit(events.Mate{ID: m.ID, Result: events.MateNone})
		return
	}
	partner, ok := c.target(res.Value)
	if !ok {
		c.explode(m, mouse.ProposeMate, invalidResult(res.Value))
		return
	}
	if c.acceptsMate(m, partner) {
		c.createOffspring(m, partner)
	}
	m.Fertility--
}

// acceptsMate decides whether partner agrees to and can mate with suitor.
// Every failure emits its own event.
func (c *Cage) acceptsMate(suitor, partner *mouse.Mouse) bool {
	if suitor.ID == partner.ID {
		c.emit(events.Mate{ID: suitor.ID, Result: events.MateSelf})
		return false
	}
	res := c.runFunction(partner, mouse.AcceptMate, suitor)
	if res.Failed() {
		c.explode(partner, mouse.AcceptMate, res.Reason())
		return false
	}
	if !res.Value.Truthy {
		c.emit(events.Mate{ID: suitor.ID, Result: events.MateRejection, Partner: events.Ref(partner.ID)})
		return false
	}

	// Accepting costs fertility even when the match turns out to be doomed.
	partner.Fertility--
	switch {
	case partner.Sex == suitor.Sex:
		c.emit(events.Mate{ID: suitor.ID, Result: events.MateIncompatible, Partner: events.Ref(partner.ID)})
		return false
	case partner.Fertility < 0:
		c.emit(events.Mate{ID: suitor.ID, Result: events.MateInfertile, Partner: events.Ref(partner.ID)})
		return false
	}
	return true
}

func (c *Cage) createOffspring(a, b *mouse.Mouse) {
	id := c.allocID()
	child := mouse.NewOffspring(id, c.determineSex(), a, b, c.rng, c.opts.Mutation)
	c.emit(events.Mate{ID: a.ID, Result: events.MateSuccess, Partner: events.Ref(b.ID), Offspring: events.Ref(id)})
	c.addMouse(child)

	if len(c.st.mice) > c.opts.MaxPopulation {
		oldest := c.oldest()
		c.emit(events.Overpopulation{ID: oldest.ID})
		c.die(oldest)
	}
}

// determineSex draws against the fertility of the next-round roster. A draw
// below the female share yields a male.
func (c *Cage) determineSex() mouse.Sex {
	var total, female int
	for _, m := range c.st.next {
		total += m.Fertility
		if m.Sex == mouse.Female {
			female += m.Fertility
		}
	}
	if c.rng.Float64()*float64(total) < float64(female) {
		return mouse.Male
	}
	return mouse.Female
}

// oldest returns the oldest living mouse; ties go to the earliest in registry order.
func (c *Cage) oldest() *mouse.Mouse {
	var best *mouse.Mouse
	for _, m := range c.living() {
		if best == nil || m.Age > best.Age {
			best = m
		}
	}
	return best
}
