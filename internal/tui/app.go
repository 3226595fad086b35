// Package tui is the terminal front end of the pager: a log panel, a search
// box and a list of matching lines, all redrawn from engine snapshots.
package tui

import tea "github.com/charmbracelet/bubbletea"

// App is the top-level Bubble Tea model that routes between pages.
//
// Keyboard and mouse input goes to the active page only. Every other message
// (window size, refresh ticks, change notifications) is delivered to all
// pages so background pages keep their refresh loops alive.
type App struct {
	pages      map[string]Page
	order      []string
	activePage string
	width      int
	height     int
}

// NewApp creates a new App with the given pages. The first page is the default.
func NewApp(pages ...Page) *App {
	a := &App{pages: make(map[string]Page, len(pages))}
	for _, p := range pages {
		if _, dup := a.pages[p.ID()]; dup {
			continue
		}
		a.pages[p.ID()] = p
		a.order = append(a.order, p.ID())
	}
	if len(a.order) > 0 {
		a.activePage = a.order[0]
	}
	return a
}

// ActivePage returns the id of the page currently drawn.
func (a *App) ActivePage() string { return a.activePage }

func (a *App) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range a.order {
		cmds = append(cmds, a.pages[id].Init())
	}
	return tea.Batch(cmds...)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if wsm, ok := msg.(tea.WindowSizeMsg); ok {
		a.width = wsm.Width
		a.height = wsm.Height
	}

	switch msg.(type) {
	case tea.KeyMsg, tea.MouseMsg:
		p, ok := a.pages[a.activePage]
		if !ok {
			return a, nil
		}
		cmd, nav := p.Update(msg)
		return a, a.navigate(cmd, nav)
	}

	var cmds []tea.Cmd
	var nav *PageNav
	for _, id := range a.order {
		cmd, n := a.pages[id].Update(msg)
		cmds = append(cmds, cmd)
		if n != nil && id == a.activePage {
			nav = n
		}
	}
	return a, a.navigate(tea.Batch(cmds...), nav)
}

func (a *App) navigate(cmd tea.Cmd, nav *PageNav) tea.Cmd {
	if nav == nil {
		return cmd
	}
	if _, exists := a.pages[nav.PageID]; !exists || nav.PageID == a.activePage {
		return cmd
	}
	a.activePage = nav.PageID
	return cmd
}

func (a *App) View() string {
	if p, ok := a.pages[a.activePage]; ok {
		return p.View(a.width, a.height)
	}
	return "No active page"
}

// New builds the pager application over eng: the main page and its help.
func New(eng Engine, conf ...Config) *App {
	keys := DefaultKeyMap()
	return NewApp(NewPagerPage(eng, keys, conf...), NewHelpPage(keys))
}
