package tui

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/apyr/internal/logparse"
	"github.com/tinytelemetry/apyr/internal/search"
)

const (
	searchBoxHeight = 3
	minBottomHeight = searchBoxHeight + 2
	tabWidth        = 4
)

// layout is the outer size of every panel for a given terminal size. The
// log panel takes the top three quarters, the bottom row holds the search
// box over the density chart on the left and the matches list on the right.
type layout struct {
	width   int
	logH    int
	bottomH int
	leftW   int
	rightW  int
}

func computeLayout(width, height int) layout {
	avail := max(height-1, 0) // status line
	logH := avail * 3 / 4
	bottomH := avail - logH
	if bottomH < minBottomHeight {
		bottomH = min(minBottomHeight, avail)
		logH = avail - bottomH
	}
	leftW := width / 2
	return layout{
		width:   width,
		logH:    logH,
		bottomH: bottomH,
		leftW:   leftW,
		rightW:  width - leftW,
	}
}

// logRows is the number of log lines visible inside the log panel.
func (l layout) logRows() int { return max(l.logH-2, 1) }

func (l layout) chartH() int { return l.bottomH - searchBoxHeight }

func (p *PagerPage) View(width, height int) string {
	if width <= 0 || height <= 0 {
		return "loading..."
	}
	lay := computeLayout(width, height)

	left := lipgloss.JoinVertical(lipgloss.Left, p.renderSearch(lay), p.renderDensity(lay))
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, left, p.renderMatches(lay))
	return lipgloss.JoinVertical(lipgloss.Left, p.renderLog(lay), bottom, p.renderStatus(width))
}

// box draws content in style with the given outer size.
func box(style lipgloss.Style, width, height int, content string) string {
	if width < 2 || height < 2 {
		return ""
	}
	return style.
		Width(width - 2).
		Height(height - 2).
		MaxHeight(height).
		Render(content)
}

func (p *PagerPage) renderLog(lay layout) string {
	innerW := lay.width - 2
	rows := lay.logRows()
	start := p.viewStart()

	var pattern = p.criteria.Pattern
	if !p.criteria.Active() {
		pattern = nil
	}

	gw := gutterWidth(p.logLen)
	textW := innerW - gw - 1
	lines := p.eng.Lines(start, start+rows)
	out := make([]string, 0, len(lines))
	for i, raw := range lines {
		n := start + i
		line := sanitizeLine(raw)
		var spans [][]int
		if pattern != nil {
			spans = pattern.FindAllStringIndex(line, -1)
		}
		base := severityStyle(logparse.DetectLevel(line).String())
		if n == p.selected {
			base = StyleSelected
		}
		gutter := StyleGutter.Render(fmt.Sprintf("%*d ", gw, n+1))
		out = append(out, gutter+clipLine(line, p.hscroll, textW, spans, base, StyleMatch))
	}
	if len(out) == 0 {
		out = append(out, StyleMuted.Render("waiting for input..."))
	}
	return box(StylePane, lay.width, lay.logH, strings.Join(out, "\n"))
}

func (p *PagerPage) renderSearch(lay layout) string {
	style := StylePane
	if p.focus == panelSearch {
		style = StylePaneFocused
	}
	hint := ""
	if p.query != "" && p.queryState != search.QueryActive {
		style = StylePaneError
		hint = " " + StyleQueryError.Render(p.queryState.String())
	}

	innerW := lay.leftW - 2
	p.input.Width = max(innerW-lipgloss.Width(p.input.Prompt)-lipgloss.Width(hint)-1, 1)
	return box(style, lay.leftW, searchBoxHeight, p.input.View()+hint)
}

func (p *PagerPage) renderDensity(lay layout) string {
	h := lay.chartH()
	if h < 3 {
		return ""
	}
	chart := renderDensity(p.matches, p.logLen, lay.leftW-2, h-2)
	if len(p.matches) == 0 {
		chart = StyleMuted.Render("no matches")
	}
	return box(StylePane, lay.leftW, h, chart)
}

func (p *PagerPage) renderMatches(lay layout) string {
	style := StylePane
	if p.focus == panelMatches {
		style = StylePaneFocused
	}
	innerW := lay.rightW - 2
	rows := lay.bottomH - 3 // border and title

	title := StyleTitle.Render(fmt.Sprintf("Matches %d", len(p.matches)))
	if p.queryState != search.QueryActive {
		title += StyleMuted.Render("  no active query")
	}
	out := []string{title}

	if rows > 0 && len(p.matches) > 0 {
		first := p.matchWindow(rows)
		last := min(first+rows, len(p.matches))
		gw := gutterWidth(p.logLen)
		for _, n := range p.matches[first:last] {
			text := ""
			if lines := p.eng.Lines(n, n+1); len(lines) == 1 {
				text = sanitizeLine(lines[0])
			}
			gutter := fmt.Sprintf("%*d ", gw, n+1)
			textW := innerW - len(gutter)
			if n == p.selected {
				out = append(out, StyleSelected.Render(gutter+clipLine(text, 0, textW, nil, lipgloss.NewStyle(), lipgloss.NewStyle())))
				continue
			}
			var spans [][]int
			if p.criteria.Active() {
				spans = p.criteria.Pattern.FindAllStringIndex(text, -1)
			}
			out = append(out, StyleGutter.Render(gutter)+clipLine(text, 0, textW, spans, lipgloss.NewStyle(), StyleMatch))
		}
	}
	return box(style, lay.rightW, lay.bottomH, strings.Join(out, "\n"))
}

// matchWindow returns the index of the first match shown in a list of
// rows entries: around the selection, at the tail when following, or from
// the first match at or below the log panel's top line.
func (p *PagerPage) matchWindow(rows int) int {
	n := len(p.matches)
	maxFirst := max(n-rows, 0)
	var first int
	switch {
	case p.selected >= 0:
		idx, _ := slices.BinarySearch(p.matches, p.selected)
		first = idx - rows/2
	case p.following:
		first = maxFirst
	default:
		first, _ = slices.BinarySearch(p.matches, p.top)
	}
	return min(max(first, 0), maxFirst)
}

func (p *PagerPage) renderStatus(width int) string {
	var b strings.Builder
	b.WriteString(StyleStatusKey.Render(" " + strings.ToUpper(p.focus.String()) + " "))
	if p.following {
		b.WriteString(StyleFollow.Render(" FOLLOW "))
	}
	pos := fmt.Sprintf(" lines %d  matches %d", p.logLen, len(p.matches))
	if p.hscroll > 0 {
		pos += " col " + strconv.Itoa(p.hscroll+1)
	}
	b.WriteString(StyleStatusBar.Render(pos))

	var help []string
	for _, kb := range p.keys.statusBindings() {
		h := kb.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	b.WriteString(StyleStatusBar.Render("  " + strings.Join(help, " · ")))

	line := b.String()
	if lipgloss.Width(line) > width {
		return lipgloss.NewStyle().MaxWidth(width).Render(line)
	}
	return line + StyleStatusBar.Render(strings.Repeat(" ", width-lipgloss.Width(line)))
}

func gutterWidth(total int) int {
	return max(len(strconv.Itoa(total)), 3)
}

// sanitizeLine expands tabs and replaces other control characters so a
// line occupies one terminal column per rune.
func sanitizeLine(line string) string {
	if !strings.ContainsFunc(line, unicode.IsControl) {
		return line
	}
	var b strings.Builder
	for _, r := range line {
		switch {
		case r == '\t':
			b.WriteString(strings.Repeat(" ", tabWidth))
		case unicode.IsControl(r):
			b.WriteRune('?')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// clipLine returns the runes of line in columns [offset, offset+width),
// drawing the byte ranges in spans with hl and everything else with base.
// spans must be sorted and non-overlapping, as regexp returns them.
func clipLine(line string, offset, width int, spans [][]int, base, hl lipgloss.Style) string {
	if width <= 0 {
		return ""
	}

	var out, seg strings.Builder
	segHL := false
	flush := func() {
		if seg.Len() == 0 {
			return
		}
		if segHL {
			out.WriteString(hl.Render(seg.String()))
		} else {
			out.WriteString(base.Render(seg.String()))
		}
		seg.Reset()
	}

	col, s := 0, 0
	for i, r := range line {
		if col >= offset+width {
			break
		}
		for s < len(spans) && i >= spans[s][1] {
			s++
		}
		if col >= offset {
			in := s < len(spans) && i >= spans[s][0]
			if in != segHL {
				flush()
				segHL = in
			}
			seg.WriteRune(r)
		}
		col++
	}
	flush()
	return out.String()
}
