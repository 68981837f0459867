package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/buckleypaul/vboard/internal/ui"
)

const sidebarWidth = 18 // 16 content + 2 border/padding

func renderBoardBar(sketch string, status string, exit *int, uart int, width int) string {
	if sketch == "" {
		sketch = "(none)"
	}
	badge := ui.StatusBadge(status)
	if exit != nil {
		badge = ui.ErrorBadge(fmt.Sprintf("exited %d", *exit))
		if *exit == 0 {
			badge = ui.SuccessBadge("exited 0")
		}
	}
	content := fmt.Sprintf("Sketch: %s  UART: %d  ", sketch, uart)
	return ui.StatusBarStyle.Width(width).Render(content + badge)
}

func renderSidebar(pages []PageID, active PageID, pageMap map[PageID]Page, height int, focused bool) string {
	var b strings.Builder
	if focused {
		b.WriteString(ui.BoldStyle.Render("vboard [FOCUSED]"))
	} else {
		b.WriteString(ui.TitleStyle.Render("vboard"))
	}
	b.WriteString("\n\n")

	for _, id := range pages {
		p, ok := pageMap[id]
		if !ok {
			continue
		}
		if id == active {
			b.WriteString(ui.SidebarActiveStyle.Render("▸ " + p.Name()))
		} else {
			b.WriteString(ui.SidebarItemStyle.Render("  " + p.Name()))
		}
		b.WriteString("\n")
	}

	style := ui.SidebarStyle.Height(height)
	if focused {
		style = style.BorderForeground(ui.Primary)
	}
	return style.Render(b.String())
}

func renderStatusBar(pageHelp []key.Binding, message string, width int, focus FocusArea) string {
	var parts []string

	if focus == FocusSidebar {
		parts = append(parts,
			ui.StatusKey("↑/↓", "navigate"),
			ui.StatusKey("enter", "select"),
			ui.StatusKey("s", "suspend"),
			ui.StatusKey("r", "reboot"),
			ui.StatusKey("u", "uart"),
		)
	} else {
		for _, kb := range pageHelp {
			if kb.Enabled() {
				parts = append(parts, ui.StatusKey(kb.Help().Key, kb.Help().Desc))
			}
		}
	}

	parts = append(parts,
		ui.StatusKey("tab", "focus"),
		ui.StatusKey("?", "help"),
		ui.StatusKey("q", "quit"),
	)

	line := strings.Join(parts, "  ")
	if message != "" {
		line = ui.AccentStyle.Render(message) + "  " + line
	}
	return ui.StatusBarStyle.Width(width).Render(line)
}

func renderHelp(width int) string {
	var b strings.Builder
	b.WriteString(ui.Title("Keys"))
	b.WriteString("\n")
	for _, kb := range []key.Binding{
		GlobalKeys.ToggleFocus, GlobalKeys.Suspend, GlobalKeys.Reboot,
		GlobalKeys.UartPicker, GlobalKeys.Help, GlobalKeys.Quit,
	} {
		h := kb.Help()
		fmt.Fprintf(&b, "%-6s %s\n", h.Key, ui.DimStyle.Render(h.Desc))
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

func renderLayout(boardBar, sidebar, content, statusBar string) string {
	main := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, boardBar, main, statusBar)
}
