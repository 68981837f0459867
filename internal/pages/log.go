package pages

import (
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/vboard/internal/app"
	"github.com/buckleypaul/vboard/internal/ui"
)

// LogPage tails a log whose Read never blocks, such as a BuildLogReader or
// a BoardLogReader. It reads on every poll until the log reports io.EOF.
type LogPage struct {
	name   string
	src    io.Reader
	rebind bool
	done   bool

	output   strings.Builder
	viewport viewport.Model
	buf      []byte

	width, height int
}

// NewLogPage creates a log page. When rebind is set the page switches to
// the runtime log of a rebooted board.
func NewLogPage(name string, src io.Reader, rebind bool) *LogPage {
	return &LogPage{
		name:     name,
		src:      src,
		rebind:   rebind,
		viewport: viewport.New(0, 0),
		buf:      make([]byte, 4096),
	}
}

func (p *LogPage) Init() tea.Cmd { return nil }

func (p *LogPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case app.PollMsg:
		if p.drain() {
			p.updateViewportContent()
		}
		return p, nil

	case app.BoardRebootedMsg:
		if p.rebind && msg.Log != nil {
			p.src = msg.Log
			p.done = false
			p.output.WriteString("\n--- reboot ---\n")
			p.updateViewportContent()
		}
		return p, nil
	}

	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// drain reads whatever the log holds and reports whether anything arrived.
func (p *LogPage) drain() bool {
	if p.src == nil || p.done {
		return false
	}
	got := false
	for {
		n, err := p.src.Read(p.buf)
		if n > 0 {
			p.output.Write(p.buf[:n])
			got = true
		}
		if err != nil {
			p.done = true
			return got
		}
		if n == 0 {
			return got
		}
	}
}

// Done reports whether the log has been read to its end.
func (p *LogPage) Done() bool { return p.done }

// Content returns everything read so far.
func (p *LogPage) Content() string { return p.output.String() }

func (p *LogPage) updateViewportContent() {
	atBottom := p.viewport.AtBottom()
	p.viewport.SetContent(ui.Wrap(p.output.String(), p.viewport.Width))
	if atBottom {
		p.viewport.GotoBottom()
	}
}

func (p *LogPage) View() string {
	// Account for border (2 chars top+bottom) and padding (1 char left)
	contentWidth := p.width - 3
	contentHeight := p.height - 2
	if contentWidth < 10 {
		contentWidth = 10
	}
	if contentHeight < 3 {
		contentHeight = 3
	}

	oldWidth := p.viewport.Width
	p.viewport.Width = contentWidth
	p.viewport.Height = contentHeight
	if oldWidth != contentWidth && p.output.Len() > 0 {
		p.updateViewportContent()
	}

	style := lipgloss.NewStyle().
		Width(p.width).
		Height(p.height).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderTop(true).
		BorderForeground(ui.Surface).
		PaddingLeft(1)

	if p.output.Len() == 0 {
		return style.Render(ui.DimStyle.Render(p.name + " output will appear here..."))
	}
	return style.Render(p.viewport.View())
}

func (p *LogPage) Name() string { return p.name }

func (p *LogPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll")),
		key.NewBinding(key.WithKeys("pgup", "pgdown"), key.WithHelp("pgup/pgdn", "page")),
	}
}

func (p *LogPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
