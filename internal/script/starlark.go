package script

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
	"go.starlark.net/syntax"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
)

// Names predeclared in every program in addition to the Starlark universe.
var predeclaredNames = map[string]bool{
	"getSelf":   true,
	"getMice":   true,
	"getSuitor": true,
	"randomInt": true,
	"Sex":       true,
}

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Starlark runs programs written in Starlark.
//
// Starlark counts interpretive steps itself, so the budget is enforced by
// the interpreter and cancellation is deterministic. Builtins do not
// count steps; the ones exposed here are at most linear in population.
type Starlark struct {
	// Print receives output of the print builtin. Nil discards it.
	Print func(msg string)
}

// NewStarlark creates a Starlark interpreter.
func NewStarlark() *Starlark {
	return &Starlark{}
}

// Compile parses and resolves src.
func (s *Starlark) Compile(name, src string) (Program, error) {
	_, prog, err := starlark.SourceProgramOptions(fileOptions, name, src, func(n string) bool {
		return predeclaredNames[n]
	})
	if err != nil {
		return nil, err
	}
	return &starlarkProgram{name: name, prog: prog, print: s.Print}, nil
}

type starlarkProgram struct {
	name  string
	prog  *starlark.Program
	print func(msg string)
}

func (p *starlarkProgram) Run(api API, maxSteps uint64) (Value, error) {
	thread := &starlark.Thread{
		Name: p.name,
		Print: func(_ *starlark.Thread, msg string) {
			if p.print != nil {
				p.print(msg)
			}
		},
	}
	thread.SetMaxExecutionSteps(maxSteps)

	globals, err := p.prog.Init(thread, predeclared(api))
	if err != nil {
		if maxSteps > 0 && thread.ExecutionSteps() >= maxSteps {
			return None, ErrStepBudget
		}
		return None, unwrapEvalError(err)
	}

	v, ok := globals[ResultVar]
	if !ok {
		return None, fmt.Errorf("script: %s not bound", ResultVar)
	}
	return toValue(v), nil
}

func unwrapEvalError(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return errors.New(evalErr.Msg)
	}
	return err
}

func toValue(v starlark.Value) Value {
	out := Value{Kind: KindOther, Truthy: bool(v.Truth()), Repr: v.String()}
	switch x := v.(type) {
	case starlark.NoneType:
		return None
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			out.Kind = KindInt
			out.Int = i
		}
	}
	return out
}

var sexEnum = starlarkstruct.FromStringDict(starlarkstruct.Default, starlark.StringDict{
	"Male":   starlark.String(mouse.Male),
	"Female": starlark.String(mouse.Female),
})

func predeclared(api API) starlark.StringDict {
	return starlark.StringDict{
		"Sex": sexEnum,
		"getSelf": starlark.NewBuiltin("getSelf", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return mouseValue(api.Self()), nil
		}),
		"getMice": starlark.NewBuiltin("getMice", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			mice := api.Mice()
			elems := make([]starlark.Value, 0, len(mice))
			for _, m := range mice {
				elems = append(elems, mouseValue(m))
			}
			list := starlark.NewList(elems)
			list.Freeze()
			return list, nil
		}),
		"getSuitor": starlark.NewBuiltin("getSuitor", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
				return nil, err
			}
			return mouseValue(api.Suitor()), nil
		}),
		"randomInt": starlark.NewBuiltin("randomInt", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var lo, hi int
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &lo, &hi); err != nil {
				return nil, err
			}
			return starlark.MakeInt(api.RandomInt(lo, hi)), nil
		}),
	}
}

func mouseValue(m *mouse.Mouse) starlark.Value {
	if m == nil {
		return starlark.None
	}
	return starlarkstruct.FromStringDict(starlark.String("mouse"), starlark.StringDict{
		"id":                  starlark.MakeInt(m.ID),
		"sex":                 starlark.String(m.Sex),
		"size":                starlark.Float(m.Size),
		"age":                 starlark.MakeInt(m.Age),
		"aggressiveness":      starlark.MakeInt(m.Aggressiveness),
		"fertility":           starlark.MakeInt(m.Fertility),
		"startAggressiveness": starlark.MakeInt(m.StartAggressiveness),
		"startFertility":      starlark.MakeInt(m.StartFertility),
		"pickFightOwner":      starlark.MakeInt(m.Owners.PickFight),
		"proposeMateOwner":    starlark.MakeInt(m.Owners.ProposeMate),
		"acceptMateOwner":     starlark.MakeInt(m.Owners.AcceptMate),
	})
}
