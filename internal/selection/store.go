package selection

import (
	"sort"

	"github.com/pscheid92/selectionsync/internal/domain"
)

type slot struct {
	selection map[domain.TimelineSelection]struct{}
	highlight map[int]int
}

func newSlot() *slot {
	return &slot{
		selection: make(map[domain.TimelineSelection]struct{}),
		highlight: make(map[int]int),
	}
}

func (s *slot) empty() bool {
	return len(s.selection) == 0 && len(s.highlight) == 0
}

// Store holds the authoritative selection and highlight state of every app slot.
// It decides nothing about scoping: callers pass the slots a mutation targets.
// All methods are called from the Engine actor goroutine (no concurrent access).
type Store struct {
	slots []*slot
}

// NewStore allocates totalApps slots. Slots are never removed, only cleared.
func NewStore(totalApps int) *Store {
	slots := make([]*slot, totalApps)
	for i := range slots {
		slots[i] = newSlot()
	}
	return &Store{slots: slots}
}

// Len returns the number of slots.
func (s *Store) Len() int {
	return len(s.slots)
}

// Contains reports whether appID names an existing slot.
func (s *Store) Contains(appID int) bool {
	return appID >= 0 && appID < len(s.slots)
}

// SetSelected inserts (selected) or removes sel in every target slot and
// returns the slots whose contents actually changed.
func (s *Store) SetSelected(sel domain.TimelineSelection, selected bool, targets []int) []int {
	var mutated []int
	for _, app := range targets {
		sl := s.slots[app]
		_, present := sl.selection[sel]
		switch {
		case selected && !present:
			sl.selection[sel] = struct{}{}
		case !selected && present:
			delete(sl.selection, sel)
		default:
			continue
		}
		mutated = append(mutated, app)
	}
	return mutated
}

// SetHighlighted sets the remaining ticks of index to duration in every target
// slot, overwriting any previous value.
func (s *Store) SetHighlighted(index int, targets []int, duration int) []int {
	mutated := make([]int, 0, len(targets))
	for _, app := range targets {
		s.slots[app].highlight[index] = duration
		mutated = append(mutated, app)
	}
	return mutated
}

// Tick decrements every highlight by one and removes those reaching zero.
// The result maps slot id to the indices that expired in this tick.
func (s *Store) Tick() map[int][]int {
	expired := make(map[int][]int)
	for app, sl := range s.slots {
		for index, remaining := range sl.highlight {
			remaining--
			if remaining <= 0 {
				delete(sl.highlight, index)
				expired[app] = append(expired[app], index)
				continue
			}
			sl.highlight[index] = remaining
		}
	}
	for _, indices := range expired {
		sort.Ints(indices)
	}
	return expired
}

// Merge replaces target's state with a copy of source's state.
func (s *Store) Merge(target, source int) {
	src := s.slots[source]
	dst := newSlot()
	for sel := range src.selection {
		dst.selection[sel] = struct{}{}
	}
	for index, remaining := range src.highlight {
		dst.highlight[index] = remaining
	}
	s.slots[target] = dst
}

// ReplaceOwned makes the selections owned by origin in each target slot equal
// to exactly indices. Returns per-slot added and removed indices.
func (s *Store) ReplaceOwned(origin int, indices []int, targets []int) (added, removed map[int][]int) {
	want := make(map[int]struct{}, len(indices))
	for _, index := range indices {
		want[index] = struct{}{}
	}

	added = make(map[int][]int)
	removed = make(map[int][]int)
	for _, app := range targets {
		sl := s.slots[app]
		for sel := range sl.selection {
			if sel.AppID != origin {
				continue
			}
			if _, ok := want[sel.Index]; !ok {
				delete(sl.selection, sel)
				removed[app] = append(removed[app], sel.Index)
			}
		}
		for index := range want {
			sel := domain.TimelineSelection{AppID: origin, Index: index}
			if _, ok := sl.selection[sel]; !ok {
				sl.selection[sel] = struct{}{}
				added[app] = append(added[app], index)
			}
		}
		sort.Ints(added[app])
		sort.Ints(removed[app])
	}
	return added, removed
}

// ResetSlot empties one slot and reports whether it held any state.
func (s *Store) ResetSlot(appID int) bool {
	hadState := !s.slots[appID].empty()
	s.slots[appID] = newSlot()
	return hadState
}

// ResetAll empties every slot and returns the slots that held state.
func (s *Store) ResetAll() []int {
	var changed []int
	for app := range s.slots {
		if s.ResetSlot(app) {
			changed = append(changed, app)
		}
	}
	return changed
}

// Selection returns a sorted copy of a slot's selection set.
func (s *Store) Selection(appID int) []domain.TimelineSelection {
	sl := s.slots[appID]
	out := make([]domain.TimelineSelection, 0, len(sl.selection))
	for sel := range sl.selection {
		out = append(out, sel)
	}
	domain.SortSelections(out)
	return out
}

// Highlighted returns the sorted indices currently highlighted in a slot.
func (s *Store) Highlighted(appID int) []int {
	sl := s.slots[appID]
	out := make([]int, 0, len(sl.highlight))
	for index := range sl.highlight {
		out = append(out, index)
	}
	sort.Ints(out)
	return out
}

// OwnedBy returns the sorted indices in appID's slot that appID itself selected.
func (s *Store) OwnedBy(appID int) []int {
	out := []int{}
	for sel := range s.slots[appID].selection {
		if sel.AppID == appID {
			out = append(out, sel.Index)
		}
	}
	sort.Ints(out)
	return out
}

// Snapshot copies a slot for read paths outside the engine.
func (s *Store) Snapshot(appID int) domain.SlotSnapshot {
	highlighted := make(map[int]int, len(s.slots[appID].highlight))
	for index, remaining := range s.slots[appID].highlight {
		highlighted[index] = remaining
	}
	return domain.SlotSnapshot{
		AppID:       appID,
		Selection:   s.Selection(appID),
		Highlighted: highlighted,
	}
}
