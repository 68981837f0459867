package pages

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/vboard"
	"github.com/buckleypaul/vboard/internal/app"
)

func newTestDevices() (*DevicesPage, *fakePin, *fakePin) {
	led := &fakePin{info: vboard.GpioDriver{PinID: 13, Mode: vboard.DigitalPin}}
	pot := &fakePin{info: vboard.GpioDriver{PinID: 14, Mode: vboard.AnalogPin}, analog: 100}
	cam := &fakeFrame{info: vboard.FrameBufferConfig{Key: 0, AllowWrite: true, Width: 4, Height: 2, Freq: 30}}
	return NewDevicesPage([]Pin{led, pot}, []Frame{cam}), led, pot
}

func TestDevicesToggleDigitalPin(t *testing.T) {
	p, led, _ := newTestDevices()

	p.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	if !led.digital {
		t.Fatal("expected space to drive pin 13 high")
	}
	if !p.pins[0].digital {
		t.Error("expected cached level to follow the pin")
	}
	p.Update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")})
	if led.digital {
		t.Fatal("expected second space to drive pin 13 low")
	}
}

func TestDevicesAdjustAnalogPin(t *testing.T) {
	p, _, pot := newTestDevices()

	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")})
	if pot.analog != 100+analogStep {
		t.Fatalf("expected %d, got %d", 100+analogStep, pot.analog)
	}
	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("-")})
	if pot.analog != 0 {
		t.Fatalf("expected analog to clamp at 0, got %d", pot.analog)
	}
}

func TestDevicesReportsModeErrors(t *testing.T) {
	p, _, _ := newTestDevices()

	p.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("+")})
	if !strings.Contains(p.message, "pin 13") || !strings.Contains(p.message, "not analog") {
		t.Errorf("unexpected message %q", p.message)
	}
}

func TestDevicesPollRefreshesAndRenders(t *testing.T) {
	p, led, pot := newTestDevices()
	led.digital = true
	pot.analog = 512

	p.Update(app.PollMsg{})
	view := p.View()
	for _, want := range []string{"pin 13", "HIGH", "512", "fb 0", "camera", "4x2 @ 30 Hz", "vflip"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in view:\n%s", want, view)
		}
	}
}
