package tui

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"
)

// changeMsg tells the pager that engine state moved since the last redraw.
type changeMsg struct{}

// tickMsg is the periodic refresh.
type tickMsg time.Time

// Notifier turns engine change callbacks into at most perSecond redraw
// messages. Notifications refused by the limiter are picked up by the next
// refresh tick, so nothing is lost, only delayed.
type Notifier struct {
	limiter   *rate.Limiter
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewNotifier creates a notifier allowing perSecond redraws per second.
// perSecond <= 0 disables the limit.
func NewNotifier(perSecond int) *Notifier {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Notifier{
		limiter: rate.NewLimiter(limit, burst),
		ch:      make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Notify records a change. It never blocks and is safe to call from any
// goroutine.
func (n *Notifier) Notify() {
	if !n.limiter.Allow() {
		return
	}
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Wait returns a command that delivers the next change notification.
func (n *Notifier) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-n.ch:
			return changeMsg{}
		case <-n.done:
			return nil
		}
	}
}

// Close releases any pending Wait.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() { close(n.done) })
}

func tick(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
