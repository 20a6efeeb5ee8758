package player

import (
	"errors"
	"testing"
)

func TestNewRejectsMissingScript(t *testing.T) {
	_, err := New(0, "empty", FromText("   \n"))
	if !errors.Is(err, ErrInvalidScript) {
		t.Fatalf("Expected ErrInvalidScript, got %v", err)
	}

	if _, err := New(1, "nil", Script{}); !errors.Is(err, ErrInvalidScript) {
		t.Fatalf("Expected ErrInvalidScript for zero script, got %v", err)
	}
}

func TestNewAcceptsBrokenSource(t *testing.T) {
	// Correctness is checked at run time, not registration.
	if _, err := New(0, "broken", FromText("def (")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestGeneratorRunsOnce(t *testing.T) {
	calls := 0
	p, err := New(0, "gen", FromGenerator(func() (string, error) {
		calls++
		return "def pickFight():\n    return None\n", nil
	}))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		src, err := p.Source()
		if err != nil || src == "" {
			t.Fatalf("Source() = %q, %v", src, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected generator to run once, ran %d times", calls)
	}
}

func TestGeneratorErrorIsCached(t *testing.T) {
	boom := errors.New("export failed")
	p, _ := New(0, "gen", FromGenerator(func() (string, error) { return "", boom }))

	if _, err := p.Source(); !errors.Is(err, boom) {
		t.Fatalf("Expected generator error, got %v", err)
	}
	if _, err := p.Source(); !errors.Is(err, boom) {
		t.Fatalf("Expected cached generator error, got %v", err)
	}
}

func TestGeneratorPanicBecomesError(t *testing.T) {
	calls := 0
	p, _ := New(0, "gen", FromGenerator(func() (string, error) {
		calls++
		panic("exporter crashed")
	}))

	for i := 0; i < 2; i++ {
		src, err := p.Source()
		if err == nil || src != "" {
			t.Fatalf("Source() = %q, %v; want an error", src, err)
		}
	}
	if calls != 1 {
		t.Errorf("Expected generator to run once, ran %d times", calls)
	}
}
