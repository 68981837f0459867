package pages

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/buckleypaul/vboard"
	"github.com/buckleypaul/vboard/internal/app"
	"github.com/buckleypaul/vboard/internal/ui"
)

// maxConsoleOutput bounds the text kept per UART.
const maxConsoleOutput = 64 << 10

// Uart is the host end of a board UART. *vboard.UartChannel implements it.
type Uart interface {
	Index() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// UartsOf lists the channels of a board view.
func UartsOf(v *vboard.BoardView) []Uart {
	if v == nil {
		return nil
	}
	uarts := make([]Uart, 0, len(v.UartChannels))
	for _, u := range v.UartChannels {
		uarts = append(uarts, u)
	}
	return uarts
}

// ConsolePage shows what the firmware prints on one UART and sends typed
// lines to it.
type ConsolePage struct {
	uarts   map[int]Uart
	active  int
	output  map[int]*strings.Builder
	pending map[int][]byte
	ended   map[int]bool

	input    textinput.Model
	viewport viewport.Model
	message  string
	buf      []byte

	width, height int
}

func NewConsolePage(uarts []Uart) *ConsolePage {
	input := textinput.New()
	input.Placeholder = "type a line, enter to send"
	input.CharLimit = 512
	input.Prompt = "> "

	p := &ConsolePage{
		input:    input,
		viewport: viewport.New(0, 0),
		buf:      make([]byte, 1024),
	}
	p.bind(uarts)
	return p
}

func (p *ConsolePage) bind(uarts []Uart) {
	p.uarts = make(map[int]Uart, len(uarts))
	p.pending = make(map[int][]byte)
	p.ended = make(map[int]bool)
	if p.output == nil {
		p.output = make(map[int]*strings.Builder)
	}
	for _, u := range uarts {
		p.uarts[u.Index()] = u
		if p.output[u.Index()] == nil {
			p.output[u.Index()] = &strings.Builder{}
		}
	}
	if _, ok := p.uarts[p.active]; !ok {
		p.active = 0
	}
}

func (p *ConsolePage) Init() tea.Cmd { return nil }

func (p *ConsolePage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PollMsg:
		if p.poll() {
			p.refresh()
		}
		return p, nil

	case app.UartSelectedMsg:
		if _, ok := p.uarts[msg.Index]; ok {
			p.active = msg.Index
			p.refresh()
		}
		return p, nil

	case app.BoardExitedMsg:
		p.appendAll(fmt.Sprintf("\n--- firmware exited with code %d ---\n", msg.Code))
		p.refresh()
		return p, nil

	case app.BoardRebootedMsg:
		p.bind(UartsOf(msg.View))
		p.appendAll("\n--- reboot ---\n")
		p.message = ""
		p.refresh()
		return p, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

func (p *ConsolePage) handleKey(msg tea.KeyMsg) (app.Page, tea.Cmd) {
	if p.input.Focused() {
		switch msg.String() {
		case "enter":
			p.send(p.input.Value() + "\n")
			p.input.SetValue("")
			return p, nil
		case "esc":
			p.input.Blur()
			return p, nil
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd
	}

	switch msg.String() {
	case "i":
		return p, p.input.Focus()
	case "c":
		if out := p.output[p.active]; out != nil {
			out.Reset()
		}
		p.refresh()
		return p, nil
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// send queues text for the active UART and pushes what fits right away.
func (p *ConsolePage) send(text string) {
	if _, ok := p.uarts[p.active]; !ok {
		p.message = "no UART selected"
		return
	}
	p.pending[p.active] = append(p.pending[p.active], text...)
	p.flush(p.active)
}

func (p *ConsolePage) flush(idx int) {
	data := p.pending[idx]
	if len(data) == 0 {
		return
	}
	n, err := p.uarts[idx].Write(data)
	p.pending[idx] = data[n:]
	switch {
	case err == nil, errors.Is(err, vboard.ErrWouldBlock):
		if len(p.pending[idx]) > 0 {
			p.message = fmt.Sprintf("UART %d: %d bytes waiting for room", idx, len(p.pending[idx]))
		} else {
			p.message = ""
		}
	default:
		p.pending[idx] = nil
		p.message = fmt.Sprintf("UART %d: %v", idx, err)
	}
}

// poll drains every UART and reports whether the active one got output.
func (p *ConsolePage) poll() bool {
	changed := false
	for _, idx := range p.indexes() {
		if p.ended[idx] {
			continue
		}
		p.flush(idx)
		for {
			n, err := p.uarts[idx].Read(p.buf)
			if err != nil {
				p.ended[idx] = true
				p.message = fmt.Sprintf("UART %d: %v", idx, err)
				break
			}
			if n == 0 {
				break
			}
			p.append(idx, string(p.buf[:n]))
			if idx == p.active {
				changed = true
			}
		}
	}
	return changed
}

func (p *ConsolePage) indexes() []int {
	idx := make([]int, 0, len(p.uarts))
	for i := range p.uarts {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

func (p *ConsolePage) append(idx int, text string) {
	out := p.output[idx]
	if out == nil {
		out = &strings.Builder{}
		p.output[idx] = out
	}
	out.WriteString(text)
	if out.Len() > maxConsoleOutput {
		keep := out.String()[out.Len()-maxConsoleOutput:]
		out.Reset()
		out.WriteString(keep)
	}
}

func (p *ConsolePage) appendAll(text string) {
	for _, idx := range p.indexes() {
		p.append(idx, text)
	}
}

// Output returns the text received so far on UART idx.
func (p *ConsolePage) Output(idx int) string {
	if out := p.output[idx]; out != nil {
		return out.String()
	}
	return ""
}

func (p *ConsolePage) refresh() {
	atBottom := p.viewport.AtBottom()
	p.viewport.SetContent(ui.Wrap(p.Output(p.active), p.viewport.Width))
	if atBottom {
		p.viewport.GotoBottom()
	}
}

func (p *ConsolePage) View() string {
	if len(p.uarts) == 0 {
		return ui.Title("Console") + "\n\n" + ui.DimStyle.Render("This board has no UART channels.")
	}

	panelHeight := p.height - 3
	if panelHeight < 5 {
		panelHeight = 5
	}
	oldWidth := p.viewport.Width
	p.viewport.Width = p.width - 4
	p.viewport.Height = panelHeight - 2
	if p.viewport.Width != oldWidth {
		p.refresh()
	}

	body := p.viewport.View()
	if p.output[p.active] == nil || p.output[p.active].Len() == 0 {
		body = ui.DimStyle.Render("Nothing received yet...")
	}
	title := fmt.Sprintf("UART %d", p.active)
	view := ui.Panel(title, body, p.width, panelHeight, p.input.Focused()) + "\n" + p.input.View()
	if p.message != "" {
		view += "\n" + ui.DimStyle.Render(p.message)
	}
	return view
}

func (p *ConsolePage) Name() string { return "Console" }

func (p *ConsolePage) ShortHelp() []key.Binding {
	if p.input.Focused() {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
			key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "unfocus")),
		}
	}
	return []key.Binding{
		key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "type")),
		key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
	}
}

func (p *ConsolePage) InputCaptured() bool {
	return p.input.Focused()
}

func (p *ConsolePage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
