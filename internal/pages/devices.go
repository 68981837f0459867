package pages

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/vboard"
	"github.com/buckleypaul/vboard/internal/app"
	"github.com/buckleypaul/vboard/internal/ui"
)

const analogStep = 64

// Pin is the host end of a board pin. *vboard.GpioPin implements it.
type Pin interface {
	Info() vboard.GpioDriver
	DigitalRead() (bool, error)
	DigitalWrite(bool) error
	AnalogRead() (uint16, error)
	AnalogWrite(uint16) error
}

// Frame is a board frame buffer. *vboard.FrameBuffer implements it.
type Frame interface {
	Info() vboard.FrameBufferConfig
	Width() uint16
	Height() uint16
	Freq() uint8
	NeedsHorizontalFlip() bool
	NeedsVerticalFlip() bool
}

type pinRow struct {
	pin     Pin
	digital bool
	analog  uint16
}

// DevicesPage shows pin levels and frame buffer geometry. The selected
// pin can be driven from the keyboard.
type DevicesPage struct {
	pins    []pinRow
	frames  []Frame
	cursor  int
	message string

	width, height int
}

func NewDevicesPage(pins []Pin, frames []Frame) *DevicesPage {
	p := &DevicesPage{}
	p.bind(pins, frames)
	return p
}

// DevicesOf lists the pins and frame buffers of a board view in id order.
func DevicesOf(v *vboard.BoardView) ([]Pin, []Frame) {
	if v == nil {
		return nil, nil
	}
	var pins []Pin
	for _, id := range v.PinIDs() {
		pins = append(pins, v.Pin(id))
	}
	keys := make([]int, 0, len(v.FrameBuffers))
	for k := range v.FrameBuffers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var frames []Frame
	for _, k := range keys {
		frames = append(frames, v.FrameBuffer(k))
	}
	return pins, frames
}

func (p *DevicesPage) bind(pins []Pin, frames []Frame) {
	p.pins = make([]pinRow, 0, len(pins))
	for _, pin := range pins {
		p.pins = append(p.pins, pinRow{pin: pin})
	}
	p.frames = frames
	if p.cursor >= len(p.pins) {
		p.cursor = 0
	}
	p.refresh()
}

func (p *DevicesPage) refresh() {
	for i := range p.pins {
		row := &p.pins[i]
		mode := row.pin.Info().Mode
		if mode != vboard.AnalogPin {
			if v, err := row.pin.DigitalRead(); err == nil {
				row.digital = v
			}
		}
		if mode != vboard.DigitalPin {
			if v, err := row.pin.AnalogRead(); err == nil {
				row.analog = v
			}
		}
	}
}

func (p *DevicesPage) Init() tea.Cmd { return nil }

func (p *DevicesPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PollMsg:
		p.refresh()
	case app.BoardRebootedMsg:
		p.bind(DevicesOf(msg.View))
		p.message = ""
	case tea.KeyMsg:
		p.handleKey(msg)
	}
	return p, nil
}

func (p *DevicesPage) handleKey(msg tea.KeyMsg) {
	switch msg.String() {
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
		return
	case "down", "j":
		if p.cursor < len(p.pins)-1 {
			p.cursor++
		}
		return
	}
	if len(p.pins) == 0 {
		return
	}
	row := &p.pins[p.cursor]
	var err error
	switch msg.String() {
	case " ", "enter":
		err = row.pin.DigitalWrite(!row.digital)
	case "+", "=":
		v := uint32(row.analog) + analogStep
		if v > 0xFFFF {
			v = 0xFFFF
		}
		err = row.pin.AnalogWrite(uint16(v))
	case "-":
		v := row.analog
		if v < analogStep {
			v = 0
		} else {
			v -= analogStep
		}
		err = row.pin.AnalogWrite(v)
	default:
		return
	}
	if err != nil {
		p.message = fmt.Sprintf("pin %d: %v", row.pin.Info().PinID, err)
	} else {
		p.message = ""
	}
	p.refresh()
}

func (p *DevicesPage) View() string {
	var b strings.Builder
	b.WriteString(ui.Title("Pins"))
	b.WriteString("\n")
	if len(p.pins) == 0 {
		b.WriteString(ui.DimStyle.Render("No pins configured."))
		b.WriteString("\n")
	}
	for i, row := range p.pins {
		info := row.pin.Info()
		cursor := "  "
		if i == p.cursor {
			cursor = ui.AccentStyle.Render("▸ ")
		}
		line := fmt.Sprintf("%spin %-4d %-8s", cursor, info.PinID, info.Mode)
		if info.Mode != vboard.AnalogPin {
			if row.digital {
				line += ui.HighStyle.Render("HIGH")
			} else {
				line += ui.LowStyle.Render("low ")
			}
		}
		if info.Mode != vboard.DigitalPin {
			line += fmt.Sprintf("  %5d", row.analog)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(p.frames) > 0 {
		b.WriteString("\n")
		b.WriteString(ui.Title("Frame buffers"))
		b.WriteString("\n")
	}
	for _, f := range p.frames {
		info := f.Info()
		kind := "display"
		if info.AllowWrite {
			kind = "camera"
		}
		line := fmt.Sprintf("  fb %-3d %-8s %dx%d @ %d Hz", info.Key, kind, f.Width(), f.Height(), f.Freq())
		var flips []string
		if f.NeedsHorizontalFlip() {
			flips = append(flips, "hflip")
		}
		if f.NeedsVerticalFlip() {
			flips = append(flips, "vflip")
		}
		if len(flips) > 0 {
			line += "  " + ui.DimStyle.Render(strings.Join(flips, " "))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if p.message != "" {
		b.WriteString("\n")
		b.WriteString(ui.ErrorStyle.Render(p.message))
	}
	return b.String()
}

func (p *DevicesPage) Name() string { return "Devices" }

func (p *DevicesPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "pin")),
		key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "toggle")),
		key.NewBinding(key.WithKeys("+", "-"), key.WithHelp("+/-", "analog")),
	}
}

func (p *DevicesPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
