package timeline

import (
	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
)

// mergePlan is one fetched page to write. The page is a complete server
// range: every status between its oldest and newest id is in it.
type mergePlan struct {
	page []model.Status
	// gapBelow means the content between the page's oldest item and the
	// next cached row is unknown.
	gapBelow bool
}

// planTop decides how a freshly fetched newest page joins rows whose
// newest concrete id is oldTop. A short page, or one reaching down to
// oldTop, is contiguous with it. A full page that stops above oldTop leaves
// unknown content between them.
func planTop(top []model.Status, pageSize int, oldTop string) mergePlan {
	if len(top) == 0 {
		return mergePlan{}
	}
	oldest := top[len(top)-1].ID
	return mergePlan{
		page:     top,
		gapBelow: oldTop != "" && len(top) >= pageSize && ids.Compare(oldest, oldTop) > 0,
	}
}

// planFill decides how a page fetched at a placeholder joins the row below
// it. The page is contiguous with that row when it is short or reaches it.
// With no row below, the page becomes the bottom and Append continues from
// there.
func planFill(page []model.Status, pageSize int, below string) mergePlan {
	if len(page) == 0 {
		return mergePlan{}
	}
	oldest := page[len(page)-1].ID
	return mergePlan{
		page:     page,
		gapBelow: below != "" && len(page) >= pageSize && ids.Compare(oldest, below) > 0,
	}
}

// rowWriter is the row-level surface a plan is written through. Both the
// store, inside a transaction, and List implement it.
type rowWriter interface {
	// gapsBetween returns placeholder ids with lo <= id <= hi, newest first.
	gapsBetween(lo, hi string) ([]string, error)
	idBelow(id string) (string, bool, error)
	remove(id string) error
	upsert(sts []model.Status) error
	addGap(id string) error
}

// writePlan writes plan through w and returns the id of the placeholder
// it left, or "".
//
// A placeholder at id G stands for G and everything down to the next row.
// Placeholders inside the page's range are dropped since the page covers
// them, unless the unknown range they stood for runs past the page's
// oldest item. In that case, as with gapBelow, the oldest item is written
// as a placeholder instead of a status.
func writePlan(w rowWriter, plan mergePlan) (string, error) {
	if len(plan.page) == 0 {
		return "", nil
	}
	lo, hi := plan.page[len(plan.page)-1].ID, plan.page[0].ID
	gapBelow := plan.gapBelow

	gaps, err := w.gapsBetween(lo, hi)
	if err != nil {
		return "", err
	}
	for _, g := range gaps {
		below, ok, err := w.idBelow(g)
		if err != nil {
			return "", err
		}
		if err := w.remove(g); err != nil {
			return "", err
		}
		if ok && ids.Less(below, lo) {
			gapBelow = true
		}
	}

	if !gapBelow {
		return "", w.upsert(plan.page)
	}
	if err := w.upsert(plan.page[:len(plan.page)-1]); err != nil {
		return "", err
	}
	return lo, w.addGap(lo)
}

// staleIDs returns the cached ids that are missing from fetched.
func staleIDs(cached []string, fetched []model.Status) []string {
	present := make(map[string]bool, len(fetched))
	for _, st := range fetched {
		present[st.ID] = true
	}
	var stale []string
	for _, id := range cached {
		if !present[id] {
			stale = append(stale, id)
		}
	}
	return stale
}

// onlyCached filters fetched down to the ids in cached.
func onlyCached(fetched []model.Status, cached []string) []model.Status {
	have := make(map[string]bool, len(cached))
	for _, id := range cached {
		have[id] = true
	}
	var out []model.Status
	for _, st := range fetched {
		if have[st.ID] {
			out = append(out, st)
		}
	}
	return out
}
