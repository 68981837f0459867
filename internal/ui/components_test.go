package ui

import (
	"strings"
	"testing"

	"github.com/muesli/reflow/ansi"
)

func TestWrapKeepsLinesWithinWidth(t *testing.T) {
	content := "-- Build files written to /a/very/long/path/without/any/spaces/in/it\nshort"
	out := Wrap(content, 20)
	for _, line := range strings.Split(out, "\n") {
		if w := ansi.PrintableRuneWidth(line); w > 20 {
			t.Errorf("line %q is %d wide", line, w)
		}
	}
	if !strings.HasSuffix(out, "short") {
		t.Errorf("expected last line to survive, got %q", out)
	}
}

func TestWrapZeroWidth(t *testing.T) {
	if got := Wrap("abc", 0); got != "abc" {
		t.Errorf("expected content unchanged, got %q", got)
	}
}

func TestPanelEmbedsTitle(t *testing.T) {
	out := Panel("UART 0", "hello", 30, 0, true)
	lines := strings.Split(out, "\n")
	if !strings.Contains(lines[0], "UART 0") {
		t.Errorf("expected title in top border, got %q", lines[0])
	}
	if !strings.Contains(out, "hello") {
		t.Errorf("expected body content, got %q", out)
	}
}
