package history

import (
	"sync"
	"time"

	"github.com/muurk/wccp/internal/protocol"
)

// Latest is the cursor value that follows the newest packet of a series.
const Latest = -1

// Item is a stored packet with its arrival time.
type Item struct {
	Packet *protocol.Packet
	At     time.Time
}

// Step moves a series cursor.
type Step int

const (
	StepNext   Step = iota // one packet newer, stopping at the last
	StepPrev               // one packet older; from Latest, the one before the newest
	StepFirst              // oldest packet
	StepLatest             // follow new arrivals
)

type series struct {
	key    protocol.Key
	items  []Item
	cursor int
}

type component struct {
	id     uint8
	series []*series
}

type unit struct {
	id         uint8
	components []*component
}

// History stores received packets in a unit → component → packet id tree.
// Units, components and ids keep the order in which they were first seen.
// It is safe for concurrent use.
type History struct {
	mu    sync.RWMutex
	limit int
	units []*unit
	index map[protocol.Key]*series
	total int
}

// New returns an empty history keeping at most limit packets per series;
// limit <= 0 keeps everything.
func New(limit int) *History {
	return &History{
		limit: limit,
		index: make(map[protocol.Key]*series),
	}
}

// Add stores p and returns its key.
func (h *History) Add(p *protocol.Packet, at time.Time) protocol.Key {
	key := p.Key()

	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.index[key]
	if s == nil {
		s = h.insert(key)
	}

	s.items = append(s.items, Item{Packet: p, At: at})
	h.total++

	if h.limit > 0 && len(s.items) > h.limit {
		drop := len(s.items) - h.limit
		s.items = append(s.items[:0:0], s.items[drop:]...)
		h.total -= drop
		if s.cursor != Latest {
			s.cursor = max(s.cursor-drop, 0)
		}
	}
	return key
}

func (h *History) insert(key protocol.Key) *series {
	var u *unit
	for _, candidate := range h.units {
		if candidate.id == key.Unit {
			u = candidate
			break
		}
	}
	if u == nil {
		u = &unit{id: key.Unit}
		h.units = append(h.units, u)
	}

	var c *component
	for _, candidate := range u.components {
		if candidate.id == key.Component {
			c = candidate
			break
		}
	}
	if c == nil {
		c = &component{id: key.Component}
		u.components = append(u.components, c)
	}

	s := &series{key: key, cursor: Latest}
	c.series = append(c.series, s)
	h.index[key] = s
	return s
}

// Keys returns every series key in tree order.
func (h *History) Keys() []protocol.Key {
	h.mu.RLock()
	defer h.mu.RUnlock()

	keys := make([]protocol.Key, 0, len(h.index))
	for _, u := range h.units {
		for _, c := range u.components {
			for _, s := range c.series {
				keys = append(keys, s.key)
			}
		}
	}
	return keys
}

// Len returns the number of stored packets.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// Count returns the number of stored packets of a series.
func (h *History) Count(key protocol.Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s := h.index[key]; s != nil {
		return len(s.items)
	}
	return 0
}

// Items returns a copy of a series, oldest first.
func (h *History) Items(key protocol.Key) []Item {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.index[key]
	if s == nil {
		return nil
	}
	return append([]Item(nil), s.items...)
}

// Latest returns the newest packet of a series.
func (h *History) Latest(key protocol.Key) (Item, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.index[key]
	if s == nil || len(s.items) == 0 {
		return Item{}, false
	}
	return s.items[len(s.items)-1], true
}

// Current returns the packet under the cursor of a series and its index.
func (h *History) Current(key protocol.Key) (Item, int, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s := h.index[key]
	if s == nil || len(s.items) == 0 {
		return Item{}, 0, false
	}
	i := s.position()
	return s.items[i], i, true
}

// Cursor returns the raw cursor of a series, Latest when following.
func (h *History) Cursor(key protocol.Key) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if s := h.index[key]; s != nil {
		return s.cursor
	}
	return Latest
}

// Step moves the cursor of a series and returns the new cursor.
func (h *History) Step(key protocol.Key, step Step) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.index[key]
	if s == nil {
		return Latest
	}

	n := len(s.items)
	switch step {
	case StepNext:
		if s.cursor >= 0 && s.cursor < n-1 {
			s.cursor++
		}
	case StepPrev:
		if s.cursor == Latest {
			s.cursor = max(n-2, Latest)
		} else if s.cursor > 0 {
			s.cursor--
		}
	case StepFirst:
		s.cursor = 0
	case StepLatest:
		s.cursor = Latest
	}
	return s.cursor
}

// Clear drops every stored packet and series.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.units = nil
	h.index = make(map[protocol.Key]*series)
	h.total = 0
}

// Limit returns the per-series packet limit, 0 when unbounded.
func (h *History) Limit() int {
	return max(h.limit, 0)
}

func (s *series) position() int {
	if s.cursor == Latest || s.cursor >= len(s.items) {
		return len(s.items) - 1
	}
	return s.cursor
}
