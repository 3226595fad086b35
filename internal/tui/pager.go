package tui

import (
	"slices"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tinytelemetry/apyr/internal/model"
	"github.com/tinytelemetry/apyr/internal/search"
)

const (
	scrollStep  = 5
	hscrollStep = 3
)

// Engine is the slice of the search engine the pager reads and drives.
type Engine interface {
	SubmitQuery(text string) uint64
	Lines(start, end int) []string
	MatchLines() []int
	LogLen() int
	IsQuitting() bool
	RequestQuit()
	Criteria() search.Criteria
	Query() (string, search.QueryState)
}

// Config holds the pager's refresh settings.
type Config struct {
	// RefreshInterval is the period of the redraw tick.
	RefreshInterval time.Duration

	// Notifier, when set, delivers engine change notifications between ticks.
	Notifier *Notifier

	// NoFollow starts the log panel unpinned from the newest line.
	NoFollow bool
}

type panel int

const (
	panelSearch panel = iota
	panelMatches
)

func (p panel) String() string {
	if p == panelSearch {
		return "search"
	}
	return "matches"
}

// PagerPage is the main screen: the log panel, the search box and the
// matches list. All view state is owned by the Bubble Tea goroutine; the
// engine is only read through snapshot calls.
type PagerPage struct {
	eng   Engine
	keys  KeyMap
	cfg   Config
	input textinput.Model

	focus     panel
	following bool
	top       int // first visible line when not following
	hscroll   int
	selected  int // line number of the selected match, -1 for none

	width  int
	height int

	// refreshed from the engine on every tick or change
	logLen     int
	matches    []int
	criteria   search.Criteria
	query      string
	queryState search.QueryState
}

// NewPagerPage creates the main page over eng.
func NewPagerPage(eng Engine, keys KeyMap, conf ...Config) *PagerPage {
	cfg := Config{RefreshInterval: model.DefaultRefreshInterval}
	if len(conf) > 0 {
		cfg = conf[0]
		if cfg.RefreshInterval <= 0 {
			cfg.RefreshInterval = model.DefaultRefreshInterval
		}
	}

	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "regex"
	ti.CharLimit = 256
	ti.Focus()

	return &PagerPage{
		eng:       eng,
		keys:      keys,
		cfg:       cfg,
		input:     ti,
		focus:     panelSearch,
		following: !cfg.NoFollow,
		selected:  -1,
	}
}

func (p *PagerPage) ID() string { return pagePager }

func (p *PagerPage) Init() tea.Cmd {
	p.refresh()
	cmds := []tea.Cmd{textinput.Blink, tick(p.cfg.RefreshInterval)}
	if p.cfg.Notifier != nil {
		cmds = append(cmds, p.cfg.Notifier.Wait())
	}
	return tea.Batch(cmds...)
}

func (p *PagerPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height
		p.clampTop()
		return nil, nil

	case tickMsg:
		p.refresh()
		if p.eng.IsQuitting() {
			return tea.Quit, nil
		}
		return tick(p.cfg.RefreshInterval), nil

	case changeMsg:
		p.refresh()
		if p.eng.IsQuitting() {
			return tea.Quit, nil
		}
		if p.cfg.Notifier != nil {
			return p.cfg.Notifier.Wait(), nil
		}
		return nil, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	if p.focus == panelSearch {
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return cmd, nil
	}
	return nil, nil
}

// refresh pulls a fresh snapshot from the engine.
func (p *PagerPage) refresh() {
	p.logLen = p.eng.LogLen()
	p.matches = p.eng.MatchLines()
	p.criteria = p.eng.Criteria()
	p.query, p.queryState = p.eng.Query()
	p.clampTop()
}

func (p *PagerPage) handleKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.ForceQuit):
		return p.quit(), nil
	case key.Matches(msg, p.keys.TogglePanel):
		if p.focus == panelSearch {
			return p.setFocus(panelMatches), nil
		}
		return p.setFocus(panelSearch), nil
	}

	if p.focus == panelSearch {
		return p.handleSearchKey(msg), nil
	}
	return p.handleMatchesKey(msg)
}

func (p *PagerPage) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, p.keys.LeaveSearch) {
		return p.setFocus(panelMatches)
	}

	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if after := p.input.Value(); after != before {
		p.submit(after)
	}
	return cmd
}

func (p *PagerPage) handleMatchesKey(msg tea.KeyMsg) (tea.Cmd, *PageNav) {
	switch {
	case key.Matches(msg, p.keys.Quit):
		return p.quit(), nil
	case key.Matches(msg, p.keys.Help):
		return nil, &PageNav{PageID: pageHelp}
	case key.Matches(msg, p.keys.NextMatch):
		p.selectMatch(1)
	case key.Matches(msg, p.keys.PrevMatch):
		p.selectMatch(-1)
	case key.Matches(msg, p.keys.ScrollDown):
		p.scroll(scrollStep)
	case key.Matches(msg, p.keys.ScrollUp):
		p.scroll(-scrollStep)
	case key.Matches(msg, p.keys.ScrollR):
		p.hscroll += hscrollStep
	case key.Matches(msg, p.keys.ScrollL):
		p.hscroll = max(0, p.hscroll-hscrollStep)
	case key.Matches(msg, p.keys.Follow):
		if p.following {
			p.top = p.viewStart()
		}
		p.following = !p.following
	case key.Matches(msg, p.keys.Top):
		p.following = false
		p.top = 0
	case key.Matches(msg, p.keys.Bottom):
		p.following = true
	case key.Matches(msg, p.keys.Clear):
		p.input.SetValue("")
		p.submit("")
		return p.setFocus(panelSearch), nil
	case key.Matches(msg, p.keys.Search):
		return p.setFocus(panelSearch), nil
	}
	return nil, nil
}

func (p *PagerPage) quit() tea.Cmd {
	p.eng.RequestQuit()
	if p.cfg.Notifier != nil {
		p.cfg.Notifier.Close()
	}
	return tea.Quit
}

func (p *PagerPage) submit(text string) {
	p.eng.SubmitQuery(text)
	p.selected = -1
	p.refresh()
}

func (p *PagerPage) setFocus(to panel) tea.Cmd {
	p.focus = to
	if to == panelSearch {
		return p.input.Focus()
	}
	p.input.Blur()
	return nil
}

// selectMatch moves the selection delta matches forward or back and
// centers the log panel on it. With no selection, forward picks the first
// match and backward the last.
func (p *PagerPage) selectMatch(delta int) {
	n := len(p.matches)
	if n == 0 {
		return
	}

	var i int
	idx, found := slices.BinarySearch(p.matches, p.selected)
	switch {
	case p.selected < 0 && delta > 0:
		i = 0
	case p.selected < 0:
		i = n - 1
	case found:
		i = idx + delta
	case delta > 0:
		// selection vanished; idx already points at the next match
		i = idx
	default:
		i = idx - 1
	}
	i = min(max(i, 0), n-1)

	p.selected = p.matches[i]
	p.following = false
	p.top = p.selected - p.logRows()/2
	p.clampTop()
}

func (p *PagerPage) scroll(delta int) {
	if p.following {
		p.top = p.viewStart()
		p.following = false
	}
	p.top += delta
	p.clampTop()
}

// viewStart returns the first line shown in the log panel.
func (p *PagerPage) viewStart() int {
	if p.following {
		return max(0, p.logLen-p.logRows())
	}
	return p.top
}

func (p *PagerPage) clampTop() {
	p.top = min(p.top, max(0, p.logLen-p.logRows()))
	p.top = max(p.top, 0)
}

func (p *PagerPage) logRows() int {
	return computeLayout(p.width, p.height).logRows()
}

// Following reports whether the log panel is pinned to the newest line.
func (p *PagerPage) Following() bool { return p.following }

// Selected returns the line number of the selected match, or -1.
func (p *PagerPage) Selected() int { return p.selected }
