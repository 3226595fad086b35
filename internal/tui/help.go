package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpPage lists the key bindings in a scrollable viewport.
type HelpPage struct {
	keys     KeyMap
	viewport viewport.Model
	close    key.Binding
}

// NewHelpPage creates the help page for keys.
func NewHelpPage(keys KeyMap) *HelpPage {
	return &HelpPage{
		keys:     keys,
		viewport: viewport.New(80, 20),
		close: key.NewBinding(
			key.WithKeys("?", "q", "esc"),
			key.WithHelp("esc", "close"),
		),
	}
}

func (h *HelpPage) ID() string { return pageHelp }

func (h *HelpPage) Init() tea.Cmd { return nil }

func (h *HelpPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, h.close):
			h.viewport.GotoTop()
			return nil, &PageNav{PageID: pagePager}
		case key.Matches(msg, h.keys.ForceQuit):
			// the pager page owns quitting; replay the key there
			return func() tea.Msg { return msg }, &PageNav{PageID: pagePager}
		}
		var cmd tea.Cmd
		h.viewport, cmd = h.viewport.Update(msg)
		return cmd, nil
	case tea.MouseMsg:
		var cmd tea.Cmd
		h.viewport, cmd = h.viewport.Update(msg)
		return cmd, nil
	}
	return nil, nil
}

func (h *HelpPage) View(width, height int) string {
	modalW := max(width-8, 20)
	modalH := max(height-4, 6)
	h.viewport.Width = modalW - 4
	h.viewport.Height = modalH - 4
	h.viewport.SetContent(h.content())

	header := StyleTitle.Width(h.viewport.Width).Render("apyr help")
	status := StyleMuted.Render("↑/↓ scroll · esc close")
	body := lipgloss.JoinVertical(lipgloss.Left, header, h.viewport.View(), status)

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(0, 1).
		Render(body)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}

func (h *HelpPage) content() string {
	var b strings.Builder
	for i, g := range h.keys.helpGroups() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(g.title + ":\n")
		for _, kb := range g.bindings {
			hb := kb.Help()
			fmt.Fprintf(&b, "  %-12s %s\n", hb.Key, hb.Desc)
		}
	}
	b.WriteString("\nQueries shorter than the minimum length match nothing.\n")
	b.WriteString("An invalid pattern turns the search box red.\n")
	return b.String()
}
