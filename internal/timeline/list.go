package timeline

import (
	"slices"
	"sync"

	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
)

// List is an in-memory timeline, newest first. It holds at most one row per
// id. Safe for concurrent use.
type List struct {
	mu    sync.RWMutex
	items []model.TimelineItem
}

// NewList returns an empty List.
func NewList() *List {
	return &List{}
}

// Items returns a snapshot of the rows, newest first.
func (l *List) Items() []model.TimelineItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Len returns the number of rows.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// TopID returns the newest Concrete row's id.
func (l *List) TopID() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, it := range l.items {
		if _, ok := it.(model.StatusItem); ok {
			return it.LocalID(), true
		}
	}
	return "", false
}

// BottomID returns the oldest row's id.
func (l *List) BottomID() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.items) == 0 {
		return "", false
	}
	return l.items[len(l.items)-1].LocalID(), true
}

// IsGap reports whether the row at id is a placeholder.
func (l *List) IsGap(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.find(id)
	if !ok {
		return false
	}
	_, gap := l.items[i].(model.GapItem)
	return gap
}

// IDBelow returns the nearest row strictly older than id.
func (l *List) IDBelow(id string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	below, ok, _ := l.idBelow(id)
	return below, ok
}

// Update applies fn to the status at id, typically to flip an overlay or
// interaction flag. Reports whether the status was found.
func (l *List) Update(id string, fn func(*model.Status)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.find(id)
	if !ok {
		return false
	}
	si, ok := l.items[i].(model.StatusItem)
	if !ok {
		return false
	}
	fn(&si.Status)
	l.items[i] = si
	return true
}

// Remove deletes the row at id.
func (l *List) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.remove(id)
}

// merge removes the row at remove, if any, and writes plan. It returns
// the placeholder the plan left, or "".
func (l *List) merge(remove string, plan mergePlan) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remove != "" {
		_ = l.remove(remove)
	}
	gap, _ := writePlan(l, plan)
	return gap
}

// The rowWriter methods below expect l.mu held for writing. Items stay
// sorted newest first after each of them.

func (l *List) gapsBetween(lo, hi string) ([]string, error) {
	var out []string
	for _, it := range l.items {
		id := it.LocalID()
		if _, gap := it.(model.GapItem); gap && !ids.Less(id, lo) && !ids.Less(hi, id) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (l *List) idBelow(id string) (string, bool, error) {
	for _, it := range l.items {
		if ids.Less(it.LocalID(), id) {
			return it.LocalID(), true, nil
		}
	}
	return "", false, nil
}

func (l *List) remove(id string) error {
	if i, ok := l.find(id); ok {
		l.items = slices.Delete(l.items, i, i+1)
	}
	return nil
}

// upsert keeps the overlay of statuses already present.
func (l *List) upsert(sts []model.Status) error {
	for _, st := range sts {
		if i, ok := l.find(st.ID); ok {
			if old, isStatus := l.items[i].(model.StatusItem); isStatus {
				st.Overlay = old.Status.Overlay
			}
			l.items[i] = model.StatusItem{Status: st}
			continue
		}
		l.items = append(l.items, model.StatusItem{Status: st})
	}
	l.sort()
	return nil
}

// addGap leaves an existing row at id alone.
func (l *List) addGap(id string) error {
	if _, ok := l.find(id); !ok {
		l.items = append(l.items, model.GapItem{ID: id})
		l.sort()
	}
	return nil
}

func (l *List) sort() {
	slices.SortFunc(l.items, func(a, b model.TimelineItem) int {
		return ids.Compare(b.LocalID(), a.LocalID())
	})
}

func (l *List) find(id string) (int, bool) {
	for i, it := range l.items {
		if it.LocalID() == id {
			return i, true
		}
	}
	return -1, false
}
