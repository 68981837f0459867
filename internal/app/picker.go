package app

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/vboard"
	"github.com/buckleypaul/vboard/internal/ui"
)

// UartEntry is one channel in the UART picker.
type UartEntry struct {
	Index int
	Baud  uint32
	// Pending is what the firmware sent and the host has not read yet.
	Pending  int
	Capacity int
}

// UartEntries snapshots the UART channels of a view.
func UartEntries(v *vboard.BoardView) []UartEntry {
	if v == nil {
		return nil
	}
	entries := make([]UartEntry, 0, len(v.UartChannels))
	for _, u := range v.UartChannels {
		entries = append(entries, UartEntry{
			Index:    u.Index(),
			Baud:     u.Info().BaudRate,
			Pending:  u.Readable(),
			Capacity: u.MaxRead(),
		})
	}
	return entries
}

// UartPickedMsg is sent when the user picks a channel.
type UartPickedMsg struct {
	Index int
}

// PickerClosedMsg is sent when the user closes the picker without picking.
type PickerClosedMsg struct{}

// Picker is the UART selection overlay. Digits pick a channel directly.
type Picker struct {
	entries []UartEntry
	current int
	cursor  int
	width   int
}

func NewPicker(entries []UartEntry, current int) *Picker {
	p := &Picker{current: current}
	p.SetEntries(entries)
	for i, e := range p.entries {
		if e.Index == current {
			p.cursor = i
		}
	}
	return p
}

// SetEntries refreshes the occupancy figures, keeping the cursor in range.
func (p *Picker) SetEntries(entries []UartEntry) {
	p.entries = entries
	if p.cursor >= len(p.entries) {
		p.cursor = len(p.entries) - 1
	}
	if p.cursor < 0 {
		p.cursor = 0
	}
}

func (p *Picker) SetSize(w, h int) {
	p.width = w
}

func (p *Picker) Update(msg tea.Msg) (*Picker, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch s := keyMsg.String(); s {
	case "esc", "u":
		return p, func() tea.Msg { return PickerClosedMsg{} }
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.entries)-1 {
			p.cursor++
		}
	case "enter":
		if p.cursor < len(p.entries) {
			return p, pick(p.entries[p.cursor].Index)
		}
	default:
		if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
			idx := int(s[0] - '0')
			for _, e := range p.entries {
				if e.Index == idx {
					return p, pick(idx)
				}
			}
		}
	}
	return p, nil
}

func pick(idx int) tea.Cmd {
	return func() tea.Msg { return UartPickedMsg{Index: idx} }
}

func (p *Picker) View() string {
	boxWidth := p.width - 4
	if boxWidth > 48 {
		boxWidth = 48
	}
	if boxWidth < 30 {
		boxWidth = 30
	}

	var b strings.Builder
	b.WriteString(ui.Title("Select UART"))
	b.WriteString("\n\n")

	selectedStyle := lipgloss.NewStyle().Foreground(ui.Primary).Bold(true)
	for i, e := range p.entries {
		line := fmt.Sprintf("UART %d  %6d baud", e.Index, e.Baud)
		if i == p.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("  ")
		b.WriteString(occupancy(e))
		if e.Index == p.current {
			b.WriteString(ui.DimStyle.Render("  (shown)"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.DimStyle.Render("0-9:pick  enter:select  esc:close"))

	return lipgloss.NewStyle().
		Width(boxWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ui.Primary).
		Padding(1, 1).
		Render(b.String())
}

// occupancy renders how full the firmware's send buffer is.
func occupancy(e UartEntry) string {
	text := fmt.Sprintf("tx %d/%d", e.Pending, e.Capacity)
	switch {
	case e.Capacity > 0 && e.Pending >= e.Capacity:
		return ui.ErrorStyle.Render(text)
	case e.Pending > 0:
		return lipgloss.NewStyle().Foreground(ui.Warning).Render(text)
	}
	return ui.DimStyle.Render(text)
}
