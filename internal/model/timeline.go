package model

// TimelineItem is a sealed interface over the rows of a cached timeline.
// Only StatusItem and GapItem implement it.
//
//	switch it := item.(type) {
//	case model.StatusItem:
//	case model.GapItem:
//	}
type TimelineItem interface {
	// LocalID is the row's ordering key.
	LocalID() string
	timelineItem()
}

// StatusItem is a concrete timeline row. Its LocalID is the status's own id.
type StatusItem struct {
	Status Status
}

func (StatusItem) timelineItem() {}

// LocalID implements TimelineItem.
func (s StatusItem) LocalID() string { return s.Status.ID }

// GapItem marks a range of unknown content. ID is a real remote id: the
// oldest item of the page that could not be connected to the cache. Filling
// the gap re-fetches ID itself and everything below it.
type GapItem struct {
	ID string
}

func (GapItem) timelineItem() {}

// LocalID implements TimelineItem.
func (g GapItem) LocalID() string { return g.ID }

// ItemIDs returns the ordering keys of items, preserving order.
func ItemIDs(items []TimelineItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.LocalID()
	}
	return out
}

// StatusItems wraps statuses as concrete timeline rows.
func StatusItems(statuses []Status) []TimelineItem {
	out := make([]TimelineItem, len(statuses))
	for i, s := range statuses {
		out[i] = StatusItem{Status: s}
	}
	return out
}
