package monitor

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
)

// keyMap defines key bindings for the monitor
type keyMap struct {
	PrevSeries key.Binding
	NextSeries key.Binding
	Older      key.Binding
	Newer      key.Binding
	First      key.Binding
	Latest     key.Binding
	SaveRaw    key.Binding
	Export     key.Binding
	ExportAll  key.Binding
	Clear      key.Binding
	Filter     key.Binding
	Apply      key.Binding
	Cancel     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevSeries, k.NextSeries, k.Older, k.Newer, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PrevSeries, k.NextSeries, k.Older, k.Newer, k.First, k.Latest},
		{k.SaveRaw, k.Export, k.ExportAll, k.Clear, k.Filter, k.Help, k.Quit},
	}
}

func newKeyMap() keyMap {
	return keyMap{
		PrevSeries: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h", "previous id"),
		),
		NextSeries: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l", "next id"),
		),
		Older: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k", "previous packet"),
		),
		Newer: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j", "next packet"),
		),
		First: key.NewBinding(
			key.WithKeys("K", "home"),
			key.WithHelp("K", "first packet"),
		),
		Latest: key.NewBinding(
			key.WithKeys("J", "end"),
			key.WithHelp("J", "latest packet"),
		),
		SaveRaw: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save raw data"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export selected"),
		),
		ExportAll: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "export all"),
		),
		Clear: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "clear packets"),
		),
		Filter: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "edit id filter"),
		),
		Apply: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "apply filter"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// detailKeyMap scrolls the packet pane without clashing with the
// navigation keys.
func detailKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+f"),
			key.WithHelp("pgdn", "page down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+b"),
			key.WithHelp("pgup", "page up"),
		),
		HalfPageDown: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "½ page down"),
		),
		HalfPageUp: key.NewBinding(
			key.WithKeys("ctrl+u"),
			key.WithHelp("ctrl+u", "½ page up"),
		),
	}
}
