package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/buckleypaul/vboard"
	"github.com/buckleypaul/vboard/internal/ui"
)

// Board is the lifecycle control the console drives. *vboard.BoardHandle
// implements it.
type Board interface {
	Status() vboard.Status
	Suspend() bool
	Resume() bool
	Tick() error
	Reboot() error
	View() *vboard.BoardView
	Log() *vboard.BoardLogReader
}

type FocusArea int

const (
	FocusSidebar FocusArea = iota
	FocusContent
)

type Model struct {
	pages      map[PageID]Page
	activePage PageID
	focus      FocusArea
	width      int
	height     int
	showHelp   bool
	picker     *Picker

	board    Board
	sketch   string
	interval time.Duration
	status   string
	exit     *int
	uart     int
	message  string
}

// New creates the console model. board may be nil when there is nothing
// running, e.g. when only showing a build log.
func New(pages map[PageID]Page, board Board, sketch string, interval time.Duration) Model {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	m := Model{
		pages:    pages,
		board:    board,
		sketch:   sketch,
		interval: interval,
		status:   vboard.Stopped.String(),
	}
	if _, ok := pages[m.activePage]; !ok {
		for _, id := range PageOrder {
			if _, ok := pages[id]; ok {
				m.activePage = id
				break
			}
		}
	}
	return m
}

// ExitCode reports the firmware exit code once it has exited.
func (m Model) ExitCode() (int, bool) {
	if m.exit == nil {
		return 0, false
	}
	return *m.exit, true
}

func poll(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return PollMsg{At: t} })
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{poll(m.interval)}
	for _, p := range m.pages {
		if cmd := p.Init(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		contentWidth := m.width - sidebarWidth
		contentHeight := m.height - 2 - 1 // status bar + board bar
		for _, p := range m.pages {
			p.SetSize(contentWidth, contentHeight)
		}
		return m, nil

	case PollMsg:
		cmds := []tea.Cmd{m.broadcast(msg), poll(m.interval)}
		if m.picker != nil && m.board != nil {
			if v := m.board.View(); v != nil {
				m.picker.SetEntries(UartEntries(v))
			}
		}
		if code, exited := m.tick(); exited {
			cmds = append(cmds, func() tea.Msg { return BoardExitedMsg{Code: code} })
		}
		return m, tea.Batch(cmds...)

	case UartPickedMsg:
		m.picker = nil
		m.uart = msg.Index
		return m, func() tea.Msg { return UartSelectedMsg{Index: msg.Index} }

	case PickerClosedMsg:
		m.picker = nil
		return m, nil

	case tea.KeyMsg:
		if m.picker != nil {
			var cmd tea.Cmd
			m.picker, cmd = m.picker.Update(msg)
			return m, cmd
		}

		// When a page has an active text input, forward all keys
		// directly to the page; only ctrl+c still quits.
		if m.focus == FocusContent {
			if ic, ok := m.pages[m.activePage].(InputCapturer); ok && ic.InputCaptured() {
				if msg.String() == "ctrl+c" {
					return m, tea.Quit
				}
				return m, m.updateActive(msg)
			}
		}

		switch {
		case key.Matches(msg, GlobalKeys.Quit):
			return m, tea.Quit
		case key.Matches(msg, GlobalKeys.Help):
			m.showHelp = !m.showHelp
			return m, nil
		case key.Matches(msg, GlobalKeys.ToggleFocus):
			if m.focus == FocusSidebar {
				m.focus = FocusContent
				return m, nil
			}
		}

		if m.focus == FocusSidebar {
			switch {
			case key.Matches(msg, GlobalKeys.Suspend):
				m.toggleSuspend()
				return m, nil
			case key.Matches(msg, GlobalKeys.Reboot):
				return m, m.reboot()
			case key.Matches(msg, GlobalKeys.UartPicker):
				m.openUartPicker()
				return m, nil
			}
			switch msg.String() {
			case "up":
				m.prevPage()
				return m, nil
			case "down":
				m.nextPage()
				return m, nil
			case "enter", "right":
				m.focus = FocusContent
				return m, nil
			}
			return m, nil
		}

		if msg.String() == "left" {
			m.focus = FocusSidebar
			return m, nil
		}
		return m, m.updateActive(msg)
	}

	// Non-key messages (command results, etc.): forward to all pages
	// so responses reach the page that initiated the command
	return m, m.broadcast(msg)
}

func (m Model) updateActive(msg tea.Msg) tea.Cmd {
	page, ok := m.pages[m.activePage]
	if !ok {
		return nil
	}
	newPage, cmd := page.Update(msg)
	m.pages[m.activePage] = newPage
	return cmd
}

func (m Model) broadcast(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for id, page := range m.pages {
		newPage, cmd := page.Update(msg)
		m.pages[id] = newPage
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// tick polls the board and reports whether the firmware exited during
// this poll.
func (m *Model) tick() (int, bool) {
	if m.board == nil {
		return 0, false
	}
	err := m.board.Tick()
	m.status = m.board.Status().String()

	var ee *vboard.ExitError
	switch {
	case errors.As(err, &ee):
		if m.exit != nil {
			return 0, false
		}
		code := ee.Code
		m.exit = &code
		m.message = fmt.Sprintf("firmware exited with code %d", code)
		return code, true
	case err != nil:
		m.message = err.Error()
	}
	return 0, false
}

func (m *Model) toggleSuspend() {
	if m.board == nil {
		return
	}
	var ok bool
	if m.board.Status() == vboard.Suspended {
		ok = m.board.Resume()
		m.message = "resumed"
	} else {
		ok = m.board.Suspend()
		m.message = "suspended"
	}
	if !ok {
		m.message = "board is not running"
	}
	m.status = m.board.Status().String()
}

func (m *Model) reboot() tea.Cmd {
	if m.board == nil {
		return nil
	}
	if err := m.board.Reboot(); err != nil {
		m.message = "reboot failed: " + err.Error()
		return nil
	}
	m.exit = nil
	m.message = "rebooted"
	m.status = m.board.Status().String()
	rebooted := BoardRebootedMsg{View: m.board.View(), Log: m.board.Log()}
	return func() tea.Msg { return rebooted }
}

func (m *Model) openUartPicker() {
	if m.board == nil {
		return
	}
	view := m.board.View()
	if view == nil || len(view.UartChannels) == 0 {
		m.message = "no UART channels"
		return
	}
	m.picker = NewPicker(UartEntries(view), m.uart)
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	contentWidth := m.width - sidebarWidth
	contentHeight := m.height - 2 - 1 // status bar + board bar

	page := m.pages[m.activePage]

	boardBar := renderBoardBar(m.sketch, m.status, m.exit, m.uart, m.width)
	sidebar := renderSidebar(PageOrder, m.activePage, m.pages, contentHeight, m.focus == FocusSidebar)

	body := ""
	var help []key.Binding
	if page != nil {
		body = page.View()
		help = page.ShortHelp()
	}
	if m.showHelp {
		body = renderHelp(contentWidth)
	}
	content := ui.ContentStyle.
		Width(contentWidth).
		Height(contentHeight).
		Render(body)

	if m.picker != nil {
		m.picker.SetSize(contentWidth, contentHeight)
		content = lipgloss.Place(
			contentWidth, contentHeight,
			lipgloss.Center, lipgloss.Center,
			m.picker.View(),
		)
	}

	statusBar := renderStatusBar(help, m.message, m.width, m.focus)

	return renderLayout(boardBar, sidebar, content, statusBar)
}

func (m *Model) nextPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			for j := 1; j <= len(PageOrder); j++ {
				next := PageOrder[(i+j)%len(PageOrder)]
				if _, ok := m.pages[next]; ok {
					m.activePage = next
					return
				}
			}
		}
	}
}

func (m *Model) prevPage() {
	for i, id := range PageOrder {
		if id == m.activePage {
			for j := 1; j <= len(PageOrder); j++ {
				prev := PageOrder[(i-j+len(PageOrder)*2)%len(PageOrder)]
				if _, ok := m.pages[prev]; ok {
					m.activePage = prev
					return
				}
			}
		}
	}
}
