package engine

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/domain/player"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
	"github.com/google/blockly-games-sub000/internal/script"
)

// ResultKind classifies a sandboxed run.
type ResultKind int

const (
	Success ResultKind = iota
	RuntimeFault
	Timeout
)

func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case RuntimeFault:
		return "fault"
	default:
		return "timeout"
	}
}

// Result is the outcome of one decision function call.
type Result struct {
	Kind  ResultKind
	Value script.Value
	Cause error
}

// Failed reports whether the run did not complete normally.
func (r Result) Failed() bool {
	return r.Kind != Success
}

// Reason is the explosion cause for a failed run.
func (r Result) Reason() string {
	switch r.Kind {
	case Timeout:
		return "timeout"
	case RuntimeFault:
		if r.Cause != nil {
			return r.Cause.Error()
		}
		return "runtime fault"
	}
	return ""
}

type programKey struct {
	player int
	fn     mouse.Function
}

// Sandbox runs one decision function of one player's script at a time.
type Sandbox struct {
	interp  script.Interpreter
	budget  uint64
	metrics *metrics.Collector

	// programs caches compiled programs; every run still starts from fresh globals.
	programs map[programKey]script.Program
}

// NewSandbox creates a runner with a per-call step budget.
func NewSandbox(interp script.Interpreter, budget uint64, mc *metrics.Collector) *Sandbox {
	return &Sandbox{
		interp:   interp,
		budget:   budget,
		metrics:  mc,
		programs: make(map[programKey]script.Program),
	}
}

// buildSource appends to src statements that null the other entry points
// and call fn, binding its value to script.ResultVar.
func buildSource(src string, fn mouse.Function) string {
	var b strings.Builder
	b.WriteString(src)
	b.WriteString("\n")
	for _, other := range mouse.Functions {
		if other != fn {
			fmt.Fprintf(&b, "%s = None\n", other)
		}
	}
	fmt.Fprintf(&b, "%s = %s()\n", script.ResultVar, fn)
	return b.String()
}

// raisingSource is a program that always fails with msg.
func raisingSource(msg string) string {
	return "fail(" + strconv.QuoteToASCII(msg) + ")\n"
}

func (s *Sandbox) program(p *player.Player, fn mouse.Function) (script.Program, error) {
	key := programKey{player: p.ID, fn: fn}
	if prog, ok := s.programs[key]; ok {
		return prog, nil
	}

	name := fmt.Sprintf("player%d/%s", p.ID, fn)
	src, err := p.Source()
	if err == nil {
		var prog script.Program
		prog, err = s.interp.Compile(name, buildSource(src, fn))
		if err == nil {
			s.programs[key] = prog
			return prog, nil
		}
	}

	// Build failures become a program that raises, so they take the same
	// path as any runtime fault.
	prog, rerr := s.interp.Compile(name, raisingSource("script failed to build: "+err.Error()))
	if rerr != nil {
		return nil, errors.Join(err, rerr)
	}
	s.programs[key] = prog
	return prog, nil
}

// Run invokes fn for the mouse on behalf of owner. A panic inside the
// interpreter is reported as a runtime fault.
func (s *Sandbox) Run(owner *player.Player, fn mouse.Function, api script.API) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordScriptRun(false, true)
			res = Result{Kind: RuntimeFault, Cause: fmt.Errorf("interpreter panic: %v", r)}
		}
	}()
	if owner == nil {
		s.metrics.RecordScriptRun(false, true)
		return Result{Kind: RuntimeFault, Cause: errors.New("no such player")}
	}
	prog, err := s.program(owner, fn)
	if err != nil {
		s.metrics.RecordScriptRun(false, true)
		return Result{Kind: RuntimeFault, Cause: err}
	}

	v, err := prog.Run(api, s.budget)
	switch {
	case errors.Is(err, script.ErrStepBudget):
		s.metrics.RecordScriptRun(true, false)
		return Result{Kind: Timeout, Cause: err}
	case err != nil:
		s.metrics.RecordScriptRun(false, true)
		return Result{Kind: RuntimeFault, Cause: err}
	}
	s.metrics.RecordScriptRun(false, false)
	return Result{Kind: Success, Value: v}
}

// mouseAPI is what a script sees while one of its functions runs.
type mouseAPI struct {
	cage   *Cage
	self   *mouse.Mouse
	suitor *mouse.Mouse
}

func (a *mouseAPI) Self() *mouse.Mouse {
	return a.self.Clone()
}

func (a *mouseAPI) Mice() []*mouse.Mouse {
	all := a.cage.living()
	out := make([]*mouse.Mouse, 0, len(all))
	for _, m := range all {
		if m.ID != a.self.ID {
			out = append(out, m.Clone())
		}
	}
	return out
}

func (a *mouseAPI) Suitor() *mouse.Mouse {
	if a.suitor == nil {
		return nil
	}
	return a.suitor.Clone()
}

func (a *mouseAPI) RandomInt(lo, hi int) int {
	if lo > hi {
		lo, hi = hi, lo
	}
	span := hi - lo + 1
	if span <= 0 {
		return lo
	}
	return lo + a.cage.rng.IntN(span)
}

// runFunction runs fn for m. suitor is set only for acceptMate.
func (c *Cage) runFunction(m *mouse.Mouse, fn mouse.Function, suitor *mouse.Mouse) Result {
	var owner *player.Player
	if id := m.Owners.Of(fn); id >= 0 && id < len(c.st.players) {
		owner = c.st.players[id]
	}
	return c.sandbox.Run(owner, fn, &mouseAPI{cage: c, self: m, suitor: suitor})
}

// precompile runs every generator so export failures happen before the first turn.
func (c *Cage) precompile() {
	for _, p := range c.st.players {
		if !p.IsGenerated() {
			continue
		}
		if _, err := p.Source(); err != nil {
			c.logger.Warn("script generator failed", "player", p.ID, "err", err)
		}
	}
}
