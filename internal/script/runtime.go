// Package script is the contract between the cage and the interpreter that
// runs player code. The cage only compiles programs and runs them under a
// step budget; it never sees interpreter internals.
package script

import (
	"errors"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
)

// ErrStepBudget is returned by Program.Run when the step budget runs out.
var ErrStepBudget = errors.New("script: step budget exceeded")

// API is the surface a running script can call into.
type API interface {
	// Self is the mouse whose function is running.
	Self() *mouse.Mouse
	// Mice lists every other living mouse.
	Mice() []*mouse.Mouse
	// Suitor is the proposing mouse while acceptMate runs, nil otherwise.
	Suitor() *mouse.Mouse
	// RandomInt returns a number in [lo, hi] from the cage's seeded source.
	RandomInt(lo, hi int) int
}

// Interpreter turns program text into runnable programs.
type Interpreter interface {
	Compile(name, src string) (Program, error)
}

// Program is a compiled program. Every Run starts from fresh globals.
type Program interface {
	// Run executes the program against api for at most maxSteps
	// interpretive steps and returns the value bound to ResultVar.
	Run(api API, maxSteps uint64) (Value, error)
}

// ResultVar is the global a program must bind to report its value.
const ResultVar = "cage_result"

// Kind classifies a returned value.
type Kind int

const (
	KindNone Kind = iota
	KindInt
	KindOther
)

// Value is an interpreter value reduced to what the cage inspects.
type Value struct {
	Kind   Kind
	Int    int64
	Truthy bool
	Repr   string
}

// None is the null value.
var None = Value{Kind: KindNone, Repr: "None"}

// IsNone reports whether v is null.
func (v Value) IsNone() bool {
	return v.Kind == KindNone
}
