package app

import (
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buckleypaul/vboard"
)

// PageID identifies each page in the console.
type PageID int

const (
	ConsolePage PageID = iota
	DevicesPage
	RuntimeLogPage
	BuildLogPage
	HistoryPage
)

var PageOrder = []PageID{
	ConsolePage,
	DevicesPage,
	RuntimeLogPage,
	BuildLogPage,
	HistoryPage,
}

// Page is the interface every page in the console implements.
type Page interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (Page, tea.Cmd)
	View() string
	Name() string
	ShortHelp() []key.Binding
	SetSize(width, height int)
}

// InputCapturer is an optional interface for pages with text inputs.
// When InputCaptured returns true, the app forwards all keys directly
// to the page instead of processing shortcuts like q, ?, left, etc.
type InputCapturer interface {
	InputCaptured() bool
}

// PollMsg is broadcast to all pages on every poll of the board. Pages
// drain their UARTs and logs when they see it.
type PollMsg struct {
	At time.Time
}

// BoardExitedMsg is broadcast once when the firmware exits on its own.
type BoardExitedMsg struct {
	Code int
}

// BoardRebootedMsg is broadcast after a reboot. Accessors taken before it
// are stale; pages rebind to View and Log.
type BoardRebootedMsg struct {
	View *vboard.BoardView
	Log  *vboard.BoardLogReader
}

// UartSelectedMsg is broadcast when a UART channel is picked.
type UartSelectedMsg struct {
	Index int
}
