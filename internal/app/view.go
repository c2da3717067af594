package app

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/editor"
	"github.com/YashVithalkar2202/SyncMonster-Studio/internal/ui"
)

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	switch m.screen {
	case ScreenLogin:
		sections = append(sections, m.renderLogin())
	case ScreenList:
		sections = append(sections, m.renderList())
	case ScreenEditor:
		sections = append(sections, m.renderEditor())
	}

	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", m.width)))

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar(m.errorMessage))
	}

	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("SYNCMONSTER")

	var context string
	switch m.screen {
	case ScreenEditor:
		if m.snap.Video != nil {
			context = ui.DimStyle.Render(" · " + m.snap.Video.Title)
		}
	case ScreenList:
		if user := m.client.Session().Username; user != "" {
			context = ui.DimStyle.Render(" · " + user + "@" + m.client.BaseURL())
		}
	}
	return title + context
}

func (m Model) renderLogin() string {
	label := func(i int, name string) string {
		if m.loginFocus == i {
			return ui.PanelTitleActiveStyle.Render(name)
		}
		return ui.PanelTitleStyle.Render(name)
	}

	lines := []string{
		ui.StatusBarStyle.Render(m.statusText),
		"",
		padRight(label(0, "Username"), 10) + " " + m.username.View(),
		padRight(label(1, "Password"), 10) + " " + m.password.View(),
		"",
	}
	if m.loggingIn {
		lines = append(lines, m.spinner.View()+" "+ui.DimStyle.Render("Logging in..."))
	}
	return strings.Join(lines, "\n")
}

func (m Model) listVisibleRows() int {
	if m.height == 0 {
		return m.pageSize
	}
	// Reserve: header(1) + dividers(2) + status(1) + search(1) + column header(1) + footer(1) + error(1)
	return max(3, m.height-8)
}

func (m Model) renderList() string {
	var lines []string

	status := fmt.Sprintf("Page %d", m.page)
	if m.search != "" {
		status += fmt.Sprintf(" · search %q", m.search)
	}
	if m.loading {
		status = m.spinner.View() + " " + status
	}
	lines = append(lines, ui.StatusBarStyle.Render(status))

	if m.searching {
		lines = append(lines, ui.PanelTitleActiveStyle.Render("/ ")+m.searchInput.View())
	} else {
		lines = append(lines, "")
	}

	titleW := max(10, m.width-36)
	lines = append(lines, ui.PanelTitleStyle.Render(
		"  "+padRight("TITLE", titleW)+" "+padRight("STATUS", 14)+" "+"DURATION"))

	if len(m.videos) == 0 && !m.loading {
		lines = append(lines, ui.DimStyle.Render("  No videos found"))
	}

	visible := m.listVisibleRows()
	start := 0
	if m.selected >= visible {
		start = m.selected - visible + 1
	}
	end := min(len(m.videos), start+visible)
	for i := start; i < end; i++ {
		v := m.videos[i]
		title := truncateToWidth(v.Title, titleW)
		row := padRight(title, titleW) + " " + padRight(ui.StatusBadge(v.Status), 14) + " " + formatDuration(v.Duration)
		if i == m.selected {
			lines = append(lines, ui.SelectedStyle.Render("> ")+row)
		} else {
			lines = append(lines, "  "+row)
		}
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderEditor() string {
	snap := m.snap
	var lines []string

	// Status bar
	status := ui.StatusBadge(snap.Status()) + "  " + ui.PhaseLabel(snap.Phase)
	if snap.Phase == editor.PhaseSubmitting || snap.Phase == editor.PhaseProcessing {
		status = m.spinner.View() + " " + status
	}
	if m.session != nil {
		status += ui.DimStyle.Render(fmt.Sprintf("  polling every %s", m.session.Reconciler.Interval()))
	}
	lines = append(lines, status)
	lines = append(lines, "")

	// Selection
	if !snap.Selectable {
		lines = append(lines, ui.DimStyle.Render("  Duration unknown, nothing to select"))
	} else {
		lines = append(lines, "  "+m.renderTimeline(max(10, m.width-4)))
		lines = append(lines, fmt.Sprintf("  %s %s  %s  %s",
			ui.PanelTitleStyle.Render("Range"),
			ui.RangeStyle.Render(snap.Range.String()),
			ui.DimStyle.Render(fmt.Sprintf("(%.1fs of %s)", snap.Range.Length(), formatDuration(snap.Duration()))),
			ui.DimStyle.Render(fmt.Sprintf("step %gs", nudgeSteps[m.stepIndex])),
		))
	}

	if len(snap.Candidates) > 0 {
		parts := make([]string, len(snap.Candidates))
		for i, c := range snap.Candidates {
			parts[i] = c.String()
		}
		lines = append(lines, "  "+ui.PanelTitleStyle.Render("Queued")+" "+
			ui.CandidateStyle.Render(truncateToWidth(strings.Join(parts, ", "), max(10, m.width-12))))
	}

	// Segments
	lines = append(lines, "")
	lines = append(lines, ui.PanelTitleStyle.Render(fmt.Sprintf("SEGMENTS (%d)", len(snap.Segments))))
	if len(snap.Segments) == 0 {
		hint := "  No segments yet"
		if snap.Phase == editor.PhaseProcessing {
			hint = "  Waiting for the first segment..."
		}
		lines = append(lines, ui.DimStyle.Render(hint))
	}
	for _, seg := range snap.Segments {
		window := ""
		if seg.End > seg.Start {
			window = ui.TimestampStyle.Render("["+seg.Window().String()+"] ")
		}
		name := seg.Filename
		if name == "" {
			name = string(seg.ID)
		}
		lines = append(lines, truncateToWidth("  "+window+name+"  "+ui.DimStyle.Render(seg.URL), m.width))
	}

	if snap.Message != "" {
		lines = append(lines, "")
		lines = append(lines, m.renderErrorBar(snap.Message))
	}

	return strings.Join(lines, "\n")
}

// renderTimeline draws the video as a bar with the selection highlighted and
// the playhead marked.
func (m Model) renderTimeline(width int) string {
	snap := m.snap
	d := snap.Duration()
	if d <= 0 {
		return ""
	}
	cell := func(t float64) int {
		return min(width-1, max(0, int(math.Floor(t/d*float64(width)))))
	}

	queued := make([]bool, width)
	for _, c := range snap.Candidates {
		for i := cell(c.Start); i <= cell(c.End); i++ {
			queued[i] = true
		}
	}

	from, to := cell(snap.Range.Start), cell(snap.Range.End)
	head := cell(snap.Playhead)

	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i == head:
			b.WriteString(ui.PlayheadStyle.Render("▼"))
		case i >= from && i <= to:
			b.WriteString(ui.RangeStyle.Render("█"))
		case queued[i]:
			b.WriteString(ui.CandidateStyle.Render("▒"))
		default:
			b.WriteString(ui.TimelineStyle.Render("░"))
		}
	}
	return b.String()
}

func (m Model) renderErrorBar(msg string) string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(msg)
}

func (m Model) renderFooter() string {
	var parts []string
	key := func(k, desc string) {
		parts = append(parts, ui.FooterKeyStyle.Render(k)+ui.FooterDescStyle.Render(" "+desc))
	}

	switch m.screen {
	case ScreenLogin:
		key("Tab", "Field")
		key("Enter", "Log in")
		key("Ctrl+C", "Quit")
		return strings.Join(parts, "  ")

	case ScreenList:
		if m.searching {
			key("Enter", "Search")
			key("Esc", "Cancel")
			return strings.Join(parts, "  ")
		}
		key("j/k", "Nav")
		key("Enter", "Open")
		key("/", "Search")
		if m.page > 1 {
			key("p", "Prev")
		}
		if !m.isLastPage() {
			key("n", "Next")
		}
		key("r", "Reload")
		key("o", "Logout")

	case ScreenEditor:
		key("←→", "Start")
		key("⇧←→", "End")
		key("+/-", "Step")
		key("a", "Queue")
		key("x", "Clear")
		if !m.snap.InFlight {
			key("Enter", "Split")
		}
		key("r", "Refresh")
		key("Esc", "Back")
	}

	key("q", "Quit")
	return strings.Join(parts, "  ")
}

func formatDuration(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return "--:--"
	}
	total := int(seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// Helpers

func padRight(s string, width int) string {
	// Get visible length (ignoring ANSI codes)
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	// Simple truncation for non-styled strings
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}
