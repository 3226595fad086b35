package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func newTestApp(eng Engine) *App {
	app := New(eng, Config{RefreshInterval: time.Hour})
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return app
}

func TestNewApp_FirstPageIsDefault(t *testing.T) {
	t.Parallel()

	app := newTestApp(newFakeEngine("a"))
	if got := app.ActivePage(); got != pagePager {
		t.Fatalf("ActivePage() = %q, want %q", got, pagePager)
	}
	if app.Init() == nil {
		t.Fatal("Init() should start the refresh loop")
	}
}

func TestApp_HelpRoundTrip(t *testing.T) {
	t.Parallel()

	app := newTestApp(newFakeEngine("a"))
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	if got := app.ActivePage(); got != pageHelp {
		t.Fatalf("ActivePage() = %q, want %q", got, pageHelp)
	}
	if view := app.View(); !strings.Contains(view, "next match") {
		t.Fatal("help view should list key bindings")
	}

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if got := app.ActivePage(); got != pagePager {
		t.Fatalf("ActivePage() = %q, want %q", got, pagePager)
	}
}

func TestApp_TicksReachBackgroundPages(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine("a")
	app := newTestApp(eng)
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})

	eng.quitting = true
	_, cmd := app.Update(tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick on the help page returned no command")
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		if _, quit := msg.(tea.QuitMsg); !quit {
			t.Fatalf("tick returned %T, want quit", msg)
		}
		return
	}
	for _, c := range batch {
		if isQuit(c) {
			return
		}
	}
	t.Fatal("tick while quitting did not quit from the help page")
}

func TestApp_ForceQuitFromHelpReplaysToPager(t *testing.T) {
	t.Parallel()

	eng := newFakeEngine("a")
	app := newTestApp(eng)
	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if got := app.ActivePage(); got != pagePager {
		t.Fatalf("ActivePage() = %q, want %q", got, pagePager)
	}
	replayed, ok := cmd().(tea.KeyMsg)
	if !ok {
		t.Fatal("ctrl+c on help should replay the key")
	}
	_, cmd = app.Update(replayed)
	if !isQuit(cmd) || eng.quitCalls != 1 {
		t.Fatalf("replayed ctrl+c: quit = %v calls = %d", isQuit(cmd), eng.quitCalls)
	}
}

func TestApp_UnknownNavIgnored(t *testing.T) {
	t.Parallel()

	app := NewApp(NewHelpPage(DefaultKeyMap()))
	if cmd := app.navigate(nil, &PageNav{PageID: "missing"}); cmd != nil {
		t.Fatal("navigate to unknown page returned a command")
	}
	if got := app.ActivePage(); got != pageHelp {
		t.Fatalf("ActivePage() = %q, want %q", got, pageHelp)
	}
}
