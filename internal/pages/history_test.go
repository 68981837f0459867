package pages

import (
	"strings"
	"testing"
	"time"

	"github.com/buckleypaul/vboard/internal/store"
)

func TestHistoryPageLoadsRecords(t *testing.T) {
	st := store.New(t.TempDir(), 0)
	st.AddCompile(store.CompileRecord{Source: "blink.ino", FQBN: "arduino:avr:uno", Timestamp: time.Now(), Success: true, Duration: "4s"})
	st.AddRun(store.RunRecord{Board: "board.yaml", Timestamp: time.Now(), ExitCode: 3, Duration: "1s"})

	p := NewHistoryPage(st)
	cmd := p.Init()
	if cmd == nil {
		t.Fatal("expected load command")
	}
	p.Update(cmd())

	if len(p.compiles) != 1 || len(p.runs) != 1 {
		t.Fatalf("expected 1 compile and 1 run, got %d and %d", len(p.compiles), len(p.runs))
	}
	view := p.View()
	for _, want := range []string{"arduino:avr:uno", "blink.ino", "board.yaml", "exit 3"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}

func TestHistoryPageWithoutStore(t *testing.T) {
	p := NewHistoryPage(nil)
	if p.Init() != nil {
		t.Fatal("expected no load command without a store")
	}
	if !strings.Contains(p.View(), "No compiles recorded.") {
		t.Errorf("unexpected view %q", p.View())
	}
}
