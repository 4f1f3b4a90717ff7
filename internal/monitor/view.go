package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wccp/internal/history"
	"github.com/muurk/wccp/internal/ui"
)

// Layout constants
const (
	defaultWidth  = 100
	defaultHeight = 30
	treeWidth     = 36
	helpWidth     = 30
	helpMinWidth  = 120 // Narrower terminals show help in the footer
	timeWidth     = 8
)

var (
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.PrimaryColor)

	paneTitleStyle = lipgloss.NewStyle().
			Foreground(ui.PrimaryColor).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(ui.SuccessColor).
			Bold(true)

	closedStatusStyle = lipgloss.NewStyle().
				Foreground(ui.WarningColor).
				Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(ui.MutedColor)
)

func (m Model) size() (int, int) {
	w, h := m.width, m.height
	if w <= 0 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

func (m Model) sidebarHelp() bool {
	w, _ := m.size()
	return w >= helpMinWidth
}

// mainHeight is the height of the pane row including borders.
func (m Model) mainHeight() int {
	_, h := m.size()
	reserved := 3 // status, message, input
	if !m.sidebarHelp() {
		reserved += lipgloss.Height(m.help.View(m.keys))
	}
	return max(h-reserved, 5)
}

func (m Model) detailWidth() int {
	w, _ := m.size()
	dw := w - treeWidth
	if m.sidebarHelp() {
		dw -= helpWidth
	}
	return max(dw, 20)
}

// resize fits the detail viewport to the window.
func (m *Model) resize() {
	m.detail.Width = m.detailWidth() - 2
	m.detail.Height = m.mainHeight() - 3 // borders and title
	m.help.Width = m.width
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	panes := []string{
		m.renderTree(treeWidth, m.mainHeight()),
		m.renderDetail(m.detailWidth(), m.mainHeight()),
	}
	if m.sidebarHelp() {
		panes = append(panes, m.renderHelpPane(helpWidth, m.mainHeight()))
	}

	rows := []string{
		m.renderStatus(),
		lipgloss.JoinHorizontal(lipgloss.Top, panes...),
		m.renderMessage(),
		m.renderInput(),
	}
	if !m.sidebarHelp() {
		rows = append(rows, m.help.View(m.keys))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m Model) renderInput() string {
	if m.editing {
		return m.filter.View()
	}
	return ":" + m.input
}

func (m Model) renderStatus() string {
	style := statusStyle
	if m.opts.ClosedStatus != "" && m.status == m.opts.ClosedStatus {
		style = closedStatusStyle
	}

	line := style.Render(m.status) + " " + m.opts.Source
	stats := fmt.Sprintf("  %d packets, %d series", m.received, len(m.history.Keys()))
	if m.filtered > 0 {
		stats += fmt.Sprintf(", %d filtered", m.filtered)
	}
	if m.opts.Filter != "" {
		stats += fmt.Sprintf(", ids %s", m.opts.Filter)
	}
	return line + mutedStyle.Render(stats)
}

func (m Model) renderMessage() string {
	if m.message == "" {
		return " "
	}
	if m.failed {
		return ui.ErrorMessageStyle.Render("error: " + m.message)
	}
	return m.message
}

func pane(title, body string, width, height int) string {
	content := paneTitleStyle.Render(fit(title, width-2)) + "\n" + body
	return paneStyle.
		Width(width - 2).
		Height(height - 2).
		MaxHeight(height).
		Render(content)
}

func (m Model) renderDetail(width, height int) string {
	title := "Packet"
	if m.hasSelection {
		if item, _, ok := m.history.Current(m.selected); ok {
			title = ui.PacketTitle(item.Packet) + "  " + item.At.Format(ui.TimeFormat)
		}
	}
	return pane(title, m.detail.View(), width, height)
}

func (m Model) renderHelpPane(width, height int) string {
	var b strings.Builder
	for _, group := range m.keys.FullHelp() {
		for _, binding := range group {
			h := binding.Help()
			fmt.Fprintf(&b, "%s %s\n", ui.EntryNameStyle.Render(fmt.Sprintf("%-6s", h.Key)), h.Desc)
		}
	}
	return pane("Help", strings.TrimSuffix(b.String(), "\n"), width, height)
}

// renderTree renders unit, component and packet id rows with the time of
// their newest packet. The selected path is highlighted, and ids that
// received a packet within the highlight window are shown reversed.
func (m Model) renderTree(width, height int) string {
	inner := width - 2
	labelWidth := inner - timeWidth - 1

	lines := []string{mutedStyle.Render("unit / component / packet")}
	selectedLine := 0

	row := func(label string, at time.Time, selected, fresh bool) string {
		text := pad(fit(label, labelWidth), labelWidth)
		style := lipgloss.NewStyle()
		if selected {
			style = ui.SelectedStyle
		}
		if fresh {
			style = style.Inherit(ui.ArrivalStyle)
		}
		stamp := ""
		if !at.IsZero() {
			stamp = at.Format(ui.TimeFormat)
		}
		return style.Render(text) + " " + ui.TimeStyle.Render(stamp)
	}

	for _, u := range m.history.Tree() {
		unitSelected := m.hasSelection && m.selected.Unit == u.ID
		lines = append(lines, row(m.unitLabel(u.ID), u.Last, unitSelected, false))

		for _, c := range u.Components {
			compSelected := unitSelected && m.selected.Component == c.ID
			lines = append(lines, row("  "+m.componentLabel(u.ID, c.ID), c.Last, compSelected, false))

			for _, s := range c.Series {
				selected := compSelected && m.selected.ID == s.Key.ID
				if selected {
					selectedLine = len(lines)
				}
				label := fmt.Sprintf("    %s  %d", ui.IDLabel(s.Key.ID), s.Count)
				lines = append(lines, row(label, s.Last, selected, m.fresh(s)))
			}
		}
	}

	// Keep the selection in view.
	visible := max(height-3, 1)
	if len(lines) > visible {
		start := min(max(selectedLine-visible/2, 0), len(lines)-visible)
		lines = lines[start : start+visible]
	}
	return pane("Packets", strings.Join(lines, "\n"), width, height)
}

func (m Model) fresh(s history.SeriesInfo) bool {
	return !s.Last.IsZero() && m.now.Sub(s.Last) < m.opts.Highlight
}

func (m Model) unitLabel(unit uint8) string {
	label := fmt.Sprintf("0x%02x", unit)
	if unit == 0 {
		label += " local"
	}
	if m.opts.Labels != nil {
		if name := m.opts.Labels.UnitLabel(unit); name != "" {
			label += " " + name
		}
	}
	return label
}

func (m Model) componentLabel(unit, component uint8) string {
	label := fmt.Sprintf("0x%02x", component)
	if m.opts.Labels != nil {
		if name := m.opts.Labels.ComponentLabel(unit, component); name != "" {
			label += " " + name
		}
	}
	return label
}

// fit truncates s to width cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}

func pad(s string, width int) string {
	if n := width - lipgloss.Width(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}
