package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/muurk/wccp/internal/export"
	"github.com/muurk/wccp/internal/history"
	"github.com/muurk/wccp/internal/link"
	"github.com/muurk/wccp/internal/logging"
	"github.com/muurk/wccp/internal/protocol"
	"github.com/muurk/wccp/internal/ui"
)

const (
	// DefaultRefresh is the redraw period when Options.Refresh is unset.
	DefaultRefresh = 100 * time.Millisecond

	// DefaultRawPath is where "s" saves raw input when Options.RawPath is
	// unset.
	DefaultRawPath = "data.bin"
)

// RawSaver writes the raw bytes read so far to a file.
type RawSaver interface {
	SaveRaw(path string) (int, error)
}

// Labeler names units and components. *config.Config implements it.
type Labeler interface {
	UnitLabel(unit uint8) string
	ComponentLabel(unit, component uint8) string
}

// Options configures a monitor.
type Options struct {
	Source       string               // Shown in the status line
	Status       string               // e.g. "connected", "opened"
	ClosedStatus string               // Status once Packets is closed, empty keeps Status
	QuitWhenDone bool                 // Exit once Packets is closed
	Packets      <-chan link.Received // Closed when the source ends
	History      *history.History     // Created when nil
	Raw          RawSaver             // Nil disables "s"
	RawPath      string               // Target of "s"
	Exporter     *export.Exporter     // Nil disables "e" and "E"
	Filter       string               // Packet id characters to keep, empty = all
	Refresh      time.Duration        // Redraw period
	Highlight    time.Duration        // How long a new arrival is highlighted, defaults to Refresh
	Labels       Labeler              // Optional unit/component names
	OnPacket     func(link.Received)  // Called for every kept packet
}

// Messages
type packetMsg link.Received
type sourceClosedMsg struct{}
type tickMsg time.Time

type actionMsg struct {
	text string
	err  error
}

// Model is the live packet dashboard.
type Model struct {
	opts    Options
	history *history.History

	// Selection
	selected     protocol.Key
	hasSelection bool
	shownKey     protocol.Key

	// Status
	status   string
	message  string
	failed   bool
	input    string
	received int
	filtered int
	now      time.Time

	// Filter editing
	filter  textinput.Model
	editing bool

	// UI state
	width    int
	height   int
	detail   viewport.Model
	help     help.Model
	keys     keyMap
	quitting bool
}

// New creates a monitor model.
func New(opts Options) Model {
	if opts.History == nil {
		opts.History = history.New(0)
	}
	if opts.Refresh <= 0 {
		opts.Refresh = DefaultRefresh
	}
	if opts.Highlight <= 0 {
		opts.Highlight = opts.Refresh
	}
	if opts.RawPath == "" {
		opts.RawPath = DefaultRawPath
	}

	detail := viewport.New(60, 20)
	detail.KeyMap = detailKeyMap()

	filter := textinput.New()
	filter.Prompt = "filter: "
	filter.Placeholder = "packet ids, empty for all"
	filter.CharLimit = protocol.MaxPacketID + 1

	m := Model{
		opts:    opts,
		history: opts.History,
		status:  opts.Status,
		now:     time.Now(),
		detail:  detail,
		filter:  filter,
		help:    help.New(),
		keys:    newKeyMap(),
	}
	if keys := m.history.Keys(); len(keys) > 0 {
		m.selected, m.hasSelection = keys[0], true
	}
	m.resize()
	m.refreshDetail()
	return m
}

// Run runs the monitor full screen until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init starts reading packets and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForPacket(), m.tick())
}

func (m Model) waitForPacket() tea.Cmd {
	packets := m.opts.Packets
	if packets == nil {
		return nil
	}
	return func() tea.Msg {
		r, ok := <-packets
		if !ok {
			return sourceClosedMsg{}
		}
		return packetMsg(r)
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.Refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case packetMsg:
		m.receive(link.Received(msg))
		return m, m.waitForPacket()

	case sourceClosedMsg:
		logging.LogSource(m.opts.Source, "closed")
		if m.opts.ClosedStatus != "" {
			m.status = m.opts.ClosedStatus
		}
		if m.opts.QuitWhenDone {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		m.refreshDetail()
		return m, m.tick()

	case actionMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.setMessage(msg.text)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.editing {
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *Model) receive(r link.Received) {
	if r.Packet == nil {
		return
	}
	if !r.Packet.MatchesFilter(m.opts.Filter) {
		m.filtered++
		return
	}

	key := m.history.Add(r.Packet, r.At)
	m.received++
	if m.opts.OnPacket != nil {
		m.opts.OnPacket(r)
	}

	if !m.hasSelection {
		m.selected, m.hasSelection = key, true
	}
	if key == m.selected {
		m.refreshDetail()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editing {
		return m.editFilter(msg)
	}
	m.input = msg.String()

	var cmd tea.Cmd
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.PrevSeries):
		m.cycle(-1)

	case key.Matches(msg, m.keys.NextSeries):
		m.cycle(1)

	case key.Matches(msg, m.keys.Older):
		m.step(history.StepPrev)

	case key.Matches(msg, m.keys.Newer):
		m.step(history.StepNext)

	case key.Matches(msg, m.keys.First):
		m.step(history.StepFirst)

	case key.Matches(msg, m.keys.Latest):
		m.step(history.StepLatest)

	case key.Matches(msg, m.keys.SaveRaw):
		cmd = m.saveRaw()

	case key.Matches(msg, m.keys.Export):
		cmd = m.exportSelected()

	case key.Matches(msg, m.keys.ExportAll):
		cmd = m.exportAll()

	case key.Matches(msg, m.keys.Clear):
		m.history.Clear()
		m.selected, m.hasSelection = protocol.Key{}, false
		m.setMessage("cleared all packets")

	case key.Matches(msg, m.keys.Filter):
		m.editing = true
		m.filter.SetValue(m.opts.Filter)
		m.filter.CursorEnd()
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()

	case key.Matches(msg, m.detail.KeyMap.PageDown, m.detail.KeyMap.PageUp,
		m.detail.KeyMap.HalfPageDown, m.detail.KeyMap.HalfPageUp):
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	default:
		m.setMessage(fmt.Sprintf("unknown command: %s", msg.String()))
	}

	m.refreshDetail()
	return m, cmd
}

// editFilter feeds keys to the filter input until it is applied or
// cancelled. A new filter only affects packets received after it.
func (m Model) editFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Apply):
		m.editing = false
		m.filter.Blur()
		m.opts.Filter = strings.TrimSpace(m.filter.Value())
		if m.opts.Filter == "" {
			m.setMessage("showing all packets")
		} else {
			m.setMessage(fmt.Sprintf("showing packets %s", m.opts.Filter))
		}
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.editing = false
		m.filter.Blur()
		m.setMessage("filter unchanged")
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

// cycle moves the selection through the series in tree order.
func (m *Model) cycle(delta int) {
	keys := m.history.Keys()
	if len(keys) == 0 {
		m.setMessage("no packets received yet")
		return
	}

	next := keys[0]
	if m.hasSelection {
		next, _ = history.Cycle(keys, m.selected, delta)
	}
	m.selected, m.hasSelection = next, true
	m.setMessage(fmt.Sprintf("selecting unit 0x%02x, component 0x%02x, packet %s",
		next.Unit, next.Component, ui.IDLabel(next.ID)))
}

func (m *Model) step(step history.Step) {
	if !m.hasSelection || m.history.Count(m.selected) == 0 {
		m.setMessage("select packet first")
		return
	}
	cursor := m.history.Step(m.selected, step)
	if cursor == history.Latest {
		m.setMessage("showing latest packet")
		return
	}
	m.setMessage(fmt.Sprintf("showing packet %d of %d", cursor+1, m.history.Count(m.selected)))
}

func (m *Model) saveRaw() tea.Cmd {
	if m.opts.Raw == nil {
		m.setMessage("raw data is not recorded for this source")
		return nil
	}
	raw, path := m.opts.Raw, m.opts.RawPath
	return func() tea.Msg {
		n, err := raw.SaveRaw(path)
		if err != nil {
			return actionMsg{err: fmt.Errorf("save raw data: %w", err)}
		}
		return actionMsg{text: fmt.Sprintf("saved %d bytes of raw data as %s", n, path)}
	}
}

func (m *Model) exportSelected() tea.Cmd {
	if m.opts.Exporter == nil {
		m.setMessage("export is not configured")
		return nil
	}
	if !m.hasSelection || m.history.Count(m.selected) == 0 {
		m.setMessage("select packet first")
		return nil
	}
	exporter, key := m.opts.Exporter, m.selected
	items := m.history.Items(key)
	return func() tea.Msg {
		path, err := exporter.Series(key, items)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("exported %d packets to %s", len(items), path)}
	}
}

func (m *Model) exportAll() tea.Cmd {
	if m.opts.Exporter == nil {
		m.setMessage("export is not configured")
		return nil
	}
	if m.history.Len() == 0 {
		m.setMessage("no packets received yet")
		return nil
	}
	exporter, h := m.opts.Exporter, m.history
	return func() tea.Msg {
		paths, err := exporter.All(h)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{text: fmt.Sprintf("exported %d series to %s", len(paths), exporter.Dir())}
	}
}

func (m *Model) setMessage(text string) {
	m.message, m.failed = text, false
}

func (m *Model) setError(err error) {
	logging.Warn("Monitor action failed", zap.Error(err))
	m.message, m.failed = err.Error(), true
}

// refreshDetail re-renders the selected packet into the detail pane.
func (m *Model) refreshDetail() {
	if !m.hasSelection {
		m.detail.SetContent("waiting for packets...")
		return
	}

	item, index, ok := m.history.Current(m.selected)
	if !ok {
		m.detail.SetContent("no packets")
		return
	}

	content := ui.RenderPacketDetail(item.Packet, index+1, m.history.Count(m.selected))
	m.detail.SetContent(content)
	if m.shownKey != m.selected {
		m.shownKey = m.selected
		m.detail.GotoTop()
	}
}

// Selected returns the selected series.
func (m Model) Selected() (protocol.Key, bool) {
	return m.selected, m.hasSelection
}

// Message returns the last status message.
func (m Model) Message() string {
	return m.message
}

// Received returns the number of packets added to the history.
func (m Model) Received() int {
	return m.received
}

// Filter returns the packet id filter in effect.
func (m Model) Filter() string {
	return m.opts.Filter
}

// Filtered returns the number of packets dropped by the id filter.
func (m Model) Filtered() int {
	return m.filtered
}
