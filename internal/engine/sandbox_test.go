package engine

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/blockly-games-sub000/internal/domain/mouse"
	"github.com/google/blockly-games-sub000/internal/domain/player"
	"github.com/google/blockly-games-sub000/internal/platform/metrics"
	"github.com/google/blockly-games-sub000/internal/script"
)

type stubAPI struct{ self *mouse.Mouse }

func (s stubAPI) Self() *mouse.Mouse      { return s.self }
func (s stubAPI) Mice() []*mouse.Mouse    { return nil }
func (s stubAPI) Suitor() *mouse.Mouse    { return nil }
func (s stubAPI) RandomInt(lo, _ int) int { return lo }

func newPlayer(t *testing.T, src string) *player.Player {
	t.Helper()
	p, err := player.New(0, "p", player.FromText(src))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestBuildSourceNullsOtherFunctions(t *testing.T) {
	src := buildSource("x = 1", mouse.ProposeMate)
	for _, want := range []string{"pickFight = None\n", "acceptMate = None\n", "cage_result = proposeMate()\n"} {
		if !strings.Contains(src, want) {
			t.Errorf("missing %q in:\n%s", want, src)
		}
	}
	if strings.Contains(src, "proposeMate = None") {
		t.Error("requested function was nulled")
	}
}

func TestSandboxResults(t *testing.T) {
	const src = `
def pickFight():
    return getSelf().id + 1

def proposeMate():
    fail("no partner")

def acceptMate():
    while True:
        pass
`
	mc := metrics.NewCollector()
	sb := NewSandbox(script.NewStarlark(), 5000, mc)
	p := newPlayer(t, src)
	api := stubAPI{self: &mouse.Mouse{ID: 41}}

	res := sb.Run(p, mouse.PickFight, api)
	if res.Kind != Success || res.Value.Kind != script.KindInt || res.Value.Int != 42 {
		t.Errorf("pickFight: %+v", res)
	}

	res = sb.Run(p, mouse.ProposeMate, api)
	if res.Kind != RuntimeFault || !strings.Contains(res.Reason(), "no partner") {
		t.Errorf("proposeMate: %+v", res)
	}

	res = sb.Run(p, mouse.AcceptMate, api)
	if res.Kind != Timeout || res.Reason() != "timeout" {
		t.Errorf("acceptMate: %+v", res)
	}

	if mc.ScriptRuns != 3 || mc.ScriptFaults != 1 || mc.ScriptTimeouts != 1 {
		t.Errorf("metrics runs=%d faults=%d timeouts=%d", mc.ScriptRuns, mc.ScriptFaults, mc.ScriptTimeouts)
	}
}

func TestSandboxCannotCallOtherFunctions(t *testing.T) {
	const src = `
def pickFight():
    return acceptMate()

def proposeMate():
    return None

def acceptMate():
    return 1
`
	sb := NewSandbox(script.NewStarlark(), 5000, nil)
	res := sb.Run(newPlayer(t, src), mouse.PickFight, stubAPI{self: &mouse.Mouse{}})
	if res.Kind != RuntimeFault {
		t.Errorf("expected a fault calling a nulled function, got %+v", res)
	}
}

func TestSandboxBuildFailureIsFault(t *testing.T) {
	sb := NewSandbox(script.NewStarlark(), 5000, nil)
	p := newPlayer(t, "def pickFight(\n")
	res := sb.Run(p, mouse.PickFight, stubAPI{self: &mouse.Mouse{}})
	if res.Kind != RuntimeFault || !strings.Contains(res.Reason(), "failed to build") {
		t.Errorf("got %+v", res)
	}
}

func TestSandboxGeneratorFailure(t *testing.T) {
	sb := NewSandbox(script.NewStarlark(), 5000, nil)
	p, err := player.New(0, "gen", player.FromGenerator(func() (string, error) {
		return "", errExport
	}))
	if err != nil {
		t.Fatal(err)
	}
	res := sb.Run(p, mouse.PickFight, stubAPI{self: &mouse.Mouse{}})
	if res.Kind != RuntimeFault || !strings.Contains(res.Reason(), errExport.Error()) {
		t.Errorf("got %+v", res)
	}
}

func TestSandboxMissingOwner(t *testing.T) {
	sb := NewSandbox(script.NewStarlark(), 5000, nil)
	if res := sb.Run(nil, mouse.PickFight, stubAPI{}); res.Kind != RuntimeFault {
		t.Errorf("got %+v", res)
	}
}

var errExport = errors.New("block export failed")
