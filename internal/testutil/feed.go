// Package testutil provides deterministic fakes of the remote feed APIs.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/remote"
)

// Fetch operation names recorded in Call.Op and accepted by Fail and Stub.
const (
	OpNewest = "newest"
	OpBefore = "before"
	OpAfter  = "after"
)

// Call records one request made to a Feed.
type Call struct {
	Op     string
	Cursor string
	Limit  int
}

func (c Call) String() string {
	if c.Cursor == "" {
		return fmt.Sprintf("%s(limit=%d)", c.Op, c.Limit)
	}
	return fmt.Sprintf("%s(%s, limit=%d)", c.Op, c.Cursor, c.Limit)
}

// Feed is an in-memory remote.TimelineSource. It behaves like a real
// server: pages are newest first and cursors are exclusive. Individual
// requests can be stubbed or failed.
//
// Safe for concurrent use.
type Feed struct {
	mu       sync.Mutex
	statuses []model.Status // newest first
	calls    []Call
	fail     map[string][]error
	stubs    map[string][]model.Status
	hook     func(ctx context.Context, c Call) error
}

var _ remote.TimelineSource = (*Feed)(nil)

// NewFeed returns a feed holding a fabricated status for each id.
func NewFeed(statusIDs ...string) *Feed {
	f := &Feed{
		fail:  make(map[string][]error),
		stubs: make(map[string][]model.Status),
	}
	f.Post(Statuses(statusIDs...)...)
	return f
}

// Status fabricates a status with stable, id-derived fields.
func Status(id string) model.Status {
	return model.Status{
		ID: id,
		Author: model.Author{
			ID:          "10" + id,
			Acct:        "user" + id + "@example.social",
			DisplayName: "User " + id,
		},
		CreatedAt:  Epoch,
		Content:    "<p>post " + id + "</p>",
		URL:        "https://example.social/@user" + id + "/" + id,
		Visibility: model.VisibilityPublic,
	}
}

// Statuses fabricates one status per id.
func Statuses(statusIDs ...string) []model.Status {
	out := make([]model.Status, len(statusIDs))
	for i, id := range statusIDs {
		out[i] = Status(id)
	}
	return out
}

// Post adds or replaces statuses on the server.
func (f *Feed) Post(sts ...model.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range sts {
		f.statuses = slices.DeleteFunc(f.statuses, func(s model.Status) bool { return s.ID == st.ID })
		f.statuses = append(f.statuses, st)
	}
	slices.SortFunc(f.statuses, func(a, b model.Status) int { return ids.Compare(b.ID, a.ID) })
}

// Delete removes statuses from the server.
func (f *Feed) Delete(statusIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = slices.DeleteFunc(f.statuses, func(s model.Status) bool {
		return slices.Contains(statusIDs, s.ID)
	})
}

// Fail makes the next request of op return err. Repeated calls queue.
func (f *Feed) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = append(f.fail[op], err)
}

// Stub makes every request of op with the given cursor return exactly
// statuses, ignoring the server contents. OpNewest takes an empty cursor.
func (f *Feed) Stub(op, cursor string, statuses ...model.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stubs[op+"\x00"+cursor] = statuses
}

// OnFetch installs a hook run at the start of every request. A non-nil
// error from the hook fails the request.
func (f *Feed) OnFetch(hook func(ctx context.Context, c Call) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

// Calls returns the requests made so far.
func (f *Feed) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// IDs returns the server's status ids, newest first.
func (f *Feed) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.statuses))
	for i, st := range f.statuses {
		out[i] = st.ID
	}
	return out
}

// FetchNewest implements remote.TimelineSource.
func (f *Feed) FetchNewest(ctx context.Context, limit int) (remote.Page, error) {
	return f.fetch(ctx, Call{Op: OpNewest, Limit: limit}, func(string) bool { return true })
}

// FetchBefore implements remote.TimelineSource.
func (f *Feed) FetchBefore(ctx context.Context, maxID string, limit int) (remote.Page, error) {
	return f.fetch(ctx, Call{Op: OpBefore, Cursor: maxID, Limit: limit}, func(id string) bool {
		return ids.Less(id, maxID)
	})
}

// FetchAfter implements remote.TimelineSource. Like min_id it returns the
// items immediately above the cursor, not the newest ones.
func (f *Feed) FetchAfter(ctx context.Context, minID string, limit int) (remote.Page, error) {
	return f.fetch(ctx, Call{Op: OpAfter, Cursor: minID, Limit: limit}, func(id string) bool {
		return ids.Less(minID, id)
	})
}

func (f *Feed) fetch(ctx context.Context, c Call, keep func(id string) bool) (remote.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	hook := f.hook
	var failure error
	if q := f.fail[c.Op]; len(q) > 0 {
		failure, f.fail[c.Op] = q[0], q[1:]
	}
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, c); err != nil {
			return remote.Page{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return remote.Page{}, err
	}
	if failure != nil {
		return remote.Page{}, failure
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if sts, ok := f.stubs[c.Op+"\x00"+c.Cursor]; ok {
		return pageOf(slices.Clone(sts)), nil
	}

	var matched []model.Status
	for _, st := range f.statuses {
		if keep(st.ID) {
			matched = append(matched, st)
		}
	}
	if len(matched) > c.Limit {
		if c.Op == OpAfter {
			matched = matched[len(matched)-c.Limit:]
		} else {
			matched = matched[:c.Limit]
		}
	}
	return pageOf(slices.Clone(matched)), nil
}

func pageOf(sts []model.Status) remote.Page {
	p := remote.Page{Statuses: sts}
	if len(sts) > 0 {
		p.Next = sts[len(sts)-1].ID
		p.Prev = sts[0].ID
	}
	return p
}
