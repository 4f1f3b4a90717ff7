package history

import (
	"time"

	"github.com/muurk/wccp/internal/protocol"
)

// SeriesInfo summarizes one packet id of a component.
type SeriesInfo struct {
	Key    protocol.Key
	Count  int
	Last   time.Time
	Cursor int
}

// ComponentInfo summarizes a component and its series.
type ComponentInfo struct {
	ID     uint8
	Last   time.Time
	Series []SeriesInfo
}

// UnitInfo summarizes a unit and its components.
type UnitInfo struct {
	ID         uint8
	Last       time.Time
	Components []ComponentInfo
}

// Tree returns a snapshot of the history tree. Last is the arrival time of
// the newest packet below each node.
func (h *History) Tree() []UnitInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tree := make([]UnitInfo, 0, len(h.units))
	for _, u := range h.units {
		ui := UnitInfo{ID: u.id}
		for _, c := range u.components {
			ci := ComponentInfo{ID: c.id}
			for _, s := range c.series {
				si := SeriesInfo{Key: s.key, Count: len(s.items), Cursor: s.cursor}
				if len(s.items) > 0 {
					si.Last = s.items[len(s.items)-1].At
				}
				if si.Last.After(ci.Last) {
					ci.Last = si.Last
				}
				ci.Series = append(ci.Series, si)
			}
			if ci.Last.After(ui.Last) {
				ui.Last = ci.Last
			}
			ui.Components = append(ui.Components, ci)
		}
		tree = append(tree, ui)
	}
	return tree
}

// Cycle returns the key delta positions away from cur in keys, wrapping at
// both ends. When cur is not in keys the first key is returned.
func Cycle(keys []protocol.Key, cur protocol.Key, delta int) (protocol.Key, bool) {
	if len(keys) == 0 {
		return protocol.Key{}, false
	}
	for i, k := range keys {
		if k == cur {
			n := len(keys)
			return keys[((i+delta)%n+n)%n], true
		}
	}
	return keys[0], true
}
