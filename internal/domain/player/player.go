// Package player defines the participants whose scripts drive mouse behavior.
package player

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrInvalidScript is returned when a player is registered without usable script data.
var ErrInvalidScript = errors.New("player: missing script")

// Generator produces script text on demand, e.g. from a block editor export.
type Generator func() (string, error)

// Script is either literal source text or a lazily evaluated generator.
type Script struct {
	Text      string
	Generator Generator
}

// FromText wraps literal source.
func FromText(src string) Script {
	return Script{Text: src}
}

// FromGenerator wraps a generator.
func FromGenerator(g Generator) Script {
	return Script{Generator: g}
}

// Validate checks that the script carries some source.
// It does not check that the source is correct.
func (s Script) Validate() error {
	if s.Generator == nil && strings.TrimSpace(s.Text) == "" {
		return ErrInvalidScript
	}
	return nil
}

// Player represents a registered participant.
type Player struct {
	ID     int
	Name   string
	Script Script

	once     sync.Once
	compiled string
	genErr   error
}

// New creates a player. Player 0 is the protagonist whose domination counts as success.
func New(id int, name string, s Script) (*Player, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w for %q", err, name)
	}
	return &Player{ID: id, Name: name, Script: s}, nil
}

// Source returns the cached script text, running the generator on first use.
// A generator failure, panics included, is cached and returned on every call.
func (p *Player) Source() (string, error) {
	p.once.Do(func() {
		if p.Script.Generator == nil {
			p.compiled = p.Script.Text
			return
		}
		defer func() {
			if r := recover(); r != nil {
				p.compiled, p.genErr = "", fmt.Errorf("script generator panicked: %v", r)
			}
		}()
		p.compiled, p.genErr = p.Script.Generator()
	})
	return p.compiled, p.genErr
}

// IsGenerated reports whether the script comes from a generator.
func (p *Player) IsGenerated() bool {
	return p.Script.Generator != nil
}
