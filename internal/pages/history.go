package pages

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/vboard/internal/app"
	"github.com/buckleypaul/vboard/internal/store"
	"github.com/buckleypaul/vboard/internal/ui"
)

const historyRows = 10

type historyLoadedMsg struct {
	compiles []store.CompileRecord
	runs     []store.RunRecord
	err      error
}

// HistoryPage lists recent compiles and runs.
type HistoryPage struct {
	store    *store.Store
	compiles []store.CompileRecord
	runs     []store.RunRecord
	message  string

	width, height int
}

func NewHistoryPage(s *store.Store) *HistoryPage {
	return &HistoryPage{store: s}
}

func (p *HistoryPage) load() tea.Cmd {
	s := p.store
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		compiles, err := s.Compiles()
		if err != nil {
			return historyLoadedMsg{err: err}
		}
		runs, err := s.Runs()
		return historyLoadedMsg{compiles: compiles, runs: runs, err: err}
	}
}

func (p *HistoryPage) Init() tea.Cmd { return p.load() }

func (p *HistoryPage) Update(msg tea.Msg) (app.Page, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		if msg.err != nil {
			p.message = fmt.Sprintf("Error loading history: %v", msg.err)
			return p, nil
		}
		p.message = ""
		p.compiles = msg.compiles
		p.runs = msg.runs
	case tea.KeyMsg:
		if msg.String() == "ctrl+r" {
			return p, p.load()
		}
	}
	return p, nil
}

func (p *HistoryPage) View() string {
	var b strings.Builder
	b.WriteString(ui.Title("Compiles"))
	b.WriteString("\n")
	if len(p.compiles) == 0 {
		b.WriteString(ui.DimStyle.Render("No compiles recorded."))
		b.WriteString("\n")
	}
	for i := len(p.compiles) - 1; i >= 0 && i >= len(p.compiles)-historyRows; i-- {
		r := p.compiles[i]
		badge := ui.SuccessBadge("ok")
		if !r.Success {
			badge = ui.ErrorBadge("fail")
		}
		fmt.Fprintf(&b, "%s %s  %s  %s  %s\n", badge,
			r.Timestamp.Format("01-02 15:04:05"), r.FQBN, r.Source, ui.DimStyle.Render(r.Duration))
	}

	b.WriteString("\n")
	b.WriteString(ui.Title("Runs"))
	b.WriteString("\n")
	if len(p.runs) == 0 {
		b.WriteString(ui.DimStyle.Render("No runs recorded."))
		b.WriteString("\n")
	}
	for i := len(p.runs) - 1; i >= 0 && i >= len(p.runs)-historyRows; i-- {
		r := p.runs[i]
		exit := fmt.Sprintf("exit %d", r.ExitCode)
		if r.Terminated {
			exit = "stopped"
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s\n",
			r.Timestamp.Format("01-02 15:04:05"), r.Board, exit, ui.DimStyle.Render(r.Duration))
	}

	if p.message != "" {
		b.WriteString("\n")
		b.WriteString(ui.ErrorStyle.Render(p.message))
	}
	return b.String()
}

func (p *HistoryPage) Name() string { return "History" }

func (p *HistoryPage) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reload")),
	}
}

func (p *HistoryPage) SetSize(w, h int) {
	p.width = w
	p.height = h
}
