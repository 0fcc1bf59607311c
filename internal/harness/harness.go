package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/feedkeep/internal/feederr"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/notify"
	"github.com/roach88/feedkeep/internal/remote"
	"github.com/roach88/feedkeep/internal/runid"
	"github.com/roach88/feedkeep/internal/store"
	"github.com/roach88/feedkeep/internal/testutil"
	"github.com/roach88/feedkeep/internal/timeline"
)

// errInjected is the cause behind every failure a scenario injects.
var errInjected = errors.New("injected failure")

// loader is the surface shared by both timeline engines.
type loader interface {
	Load(ctx context.Context, acct model.AccountScope, dir timeline.Direction, bottomID string) timeline.LoadResult
	FillGap(ctx context.Context, acct model.AccountScope, gapID string) timeline.LoadResult
}

// Harness runs one scenario against real engines, a fresh in-memory store
// and fake servers.
type Harness struct {
	acct model.AccountScope

	store   *store.Store
	feed    *testutil.Feed
	notes   *testutil.NotificationFeed
	markers *testutil.Markers

	engine loader
	list   *timeline.List // volatile engine only
	syncer *notify.Syncer

	// Counts of fake-server requests already attributed to earlier steps.
	seenCalls, seenQueries, seenSets int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation. The
// returned error reports a harness problem; failed expectations are in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h, err := newHarness(context.Background(), scenario, st)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.runStep(context.Background(), i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Action(), err)
		}
		result.Trace = append(result.Trace, ev)

		for _, msg := range checkInvariants(ev) {
			result.AddError(fmt.Sprintf("step %d (%s): %s", ev.Seq, ev.Action, msg))
		}
		if step.Expect != nil {
			for _, msg := range checkExpect(ev, *step.Expect) {
				result.AddError(fmt.Sprintf("step %d (%s): %s", ev.Seq, ev.Action, msg))
			}
		}
	}
	return result, nil
}

func newHarness(ctx context.Context, s *Scenario, st *store.Store) (*Harness, error) {
	h := &Harness{
		acct:  model.AccountScope(s.Account),
		store: st,
		feed:  testutil.NewFeed(s.Server.Statuses...),
		notes: testutil.NewNotificationFeed(s.Server.Notifications...),
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := timeline.NewGate()

	remoteMarker := ""
	if s.Markers != nil {
		remoteMarker = s.Markers.Remote
	}
	h.markers = testutil.NewMarkers(remoteMarker)
	if s.Server.NoMarkers {
		h.markers = testutil.UnsupportedMarkers()
	}

	if s.Markers != nil {
		seeds := []struct {
			id  string
			set func(context.Context, model.AccountScope, string) error
		}{
			{s.Markers.Remote, st.SetRemoteMarker},
			{s.Markers.Local, st.SetLocalMarker},
			{s.Markers.LastSeen, st.SetLastSeen},
		}
		for _, seed := range seeds {
			if seed.id == "" {
				continue
			}
			if err := seed.set(ctx, h.acct, seed.id); err != nil {
				return nil, fmt.Errorf("seed markers: %w", err)
			}
		}
	}

	timelineOpts := []timeline.Option{
		timeline.WithLogger(logger),
		timeline.WithGate(gate),
		timeline.WithPageSize(s.PageSize),
		timeline.WithRunIDs(runid.NewSequence("timeline")),
	}
	switch s.Engine {
	case EngineVolatile:
		h.list = timeline.NewList()
		h.engine = timeline.NewVolatileEngine(h.list, h.feed, timelineOpts...)
	default:
		h.engine = timeline.NewCachedEngine(st, h.feed, timelineOpts...)
	}

	notifyOpts := []notify.Option{
		notify.WithLogger(logger),
		notify.WithGate(gate),
		notify.WithRunIDs(runid.NewSequence("notifications")),
	}
	if s.NotificationPageSize > 0 {
		notifyOpts = append(notifyOpts, notify.WithPageSize(s.NotificationPageSize))
	}
	h.syncer = notify.New(st, h.notes, h.markers, notifyOpts...)
	return h, nil
}

func (h *Harness) runStep(ctx context.Context, seq int, step Step) (TraceEvent, error) {
	ev := TraceEvent{Seq: seq, Action: step.Action()}

	switch {
	case len(step.Post) > 0:
		h.feed.Post(testutil.Statuses(step.Post...)...)
		return ev, nil

	case len(step.Delete) > 0:
		h.feed.Delete(step.Delete...)
		return ev, nil

	case len(step.Notify) > 0:
		for _, id := range step.Notify {
			h.notes.Add(testutil.Notification(id, model.NotificationMention))
		}
		return ev, nil

	case step.Fail != "":
		err := feederr.Network("fetch "+step.Fail, errInjected)
		if step.Fail == "notifications" {
			h.notes.FailRequest(len(h.notes.Queries()), err)
		} else {
			h.feed.Fail(step.Fail, err)
		}
		return ev, nil

	case step.Load != "":
		dir, err := timeline.ParseDirection(step.Load)
		if err != nil {
			return ev, err
		}
		return h.timelineEvent(ctx, ev, h.engine.Load(ctx, h.acct, dir, step.Below))

	case step.FillGap != "":
		return h.timelineEvent(ctx, ev, h.engine.FillGap(ctx, h.acct, step.FillGap))

	case step.Expand != "":
		ev.kind = kindOverlay
		if err := h.expand(ctx, step.Expand); err != nil {
			return ev, err
		}
		rows, err := h.rows(ctx)
		ev.Rows = rows
		return ev, err

	case step.SyncNotifications:
		ev.kind = kindNotifications
		delivered, err := h.syncer.Sync(ctx, h.acct)
		for _, n := range delivered {
			ev.Delivered = append(ev.Delivered, n.ID)
		}
		ev.Calls = h.newCalls()
		setOutcome(&ev, err)
		ev.Watermark, err = h.watermark(ctx)
		return ev, err

	case step.MarkSeen != "":
		ev.kind = kindMarkSeen
		if err := h.syncer.MarkSeen(ctx, h.acct, step.MarkSeen); err != nil {
			return ev, err
		}
		var err error
		ev.Watermark, err = h.watermark(ctx)
		return ev, err
	}
	return ev, fmt.Errorf("no action")
}

func (h *Harness) timelineEvent(ctx context.Context, ev TraceEvent, res timeline.LoadResult) (TraceEvent, error) {
	ev.kind = kindTimeline
	ev.Calls = h.newCalls()
	setOutcome(&ev, timeline.Err(res))
	if s, ok := res.(timeline.Success); ok && s.EndOfPagination {
		ev.endOfPage = true
		ev.Outcome = "success (end of pagination)"
	}
	rows, err := h.rows(ctx)
	ev.Rows = rows
	return ev, err
}

func setOutcome(ev *TraceEvent, err error) {
	if err == nil {
		ev.Outcome = "success"
		return
	}
	ev.failKind = string(feederr.KindOf(err))
	ev.Outcome = strings.TrimSpace("failure " + ev.failKind)
}

// newCalls returns the fake-server requests made since the last step.
func (h *Harness) newCalls() []string {
	var out []string

	calls := h.feed.Calls()
	var fetches []string
	for _, c := range calls[h.seenCalls:] {
		fetches = append(fetches, c.String())
	}
	h.seenCalls = len(calls)
	slices.Sort(fetches)
	out = append(out, fetches...)

	queries := h.notes.Queries()
	for _, q := range queries[h.seenQueries:] {
		out = append(out, queryString(q))
	}
	h.seenQueries = len(queries)

	sets := h.markers.Sets()
	for _, id := range sets[h.seenSets:] {
		out = append(out, "set_marker("+id+")")
	}
	h.seenSets = len(sets)

	return out
}

func queryString(q remote.NotificationQuery) string {
	var sb strings.Builder
	sb.WriteString("notifications(")
	if q.SinceID != "" {
		fmt.Fprintf(&sb, "since=%s, ", q.SinceID)
	}
	if q.MaxID != "" {
		fmt.Fprintf(&sb, "max=%s, ", q.MaxID)
	}
	fmt.Fprintf(&sb, "limit=%d)", q.Limit)
	return sb.String()
}

func (h *Harness) expand(ctx context.Context, id string) error {
	if h.list != nil {
		if !h.list.Update(id, func(st *model.Status) { st.Overlay.Expanded = true }) {
			return fmt.Errorf("expand: no status %s", id)
		}
		return nil
	}
	return h.store.SetExpanded(ctx, h.acct, id, true)
}

// rows renders the cached timeline newest first.
func (h *Harness) rows(ctx context.Context) ([]string, error) {
	var items []model.TimelineItem
	if h.list != nil {
		items = h.list.Items()
	} else {
		var err error
		items, err = h.store.Timeline(ctx, h.acct, 0, "")
		if err != nil {
			return nil, err
		}
	}

	out := make([]string, 0, len(items))
	for _, it := range items {
		switch it := it.(type) {
		case model.GapItem:
			out = append(out, "gap:"+it.ID)
		case model.StatusItem:
			if it.Status.Overlay.Expanded {
				out = append(out, it.Status.ID+"(expanded)")
			} else {
				out = append(out, it.Status.ID)
			}
		}
	}
	return out, nil
}

func (h *Harness) watermark(ctx context.Context) (string, error) {
	wm, err := h.store.Watermark(ctx, h.acct)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("remote=%s local=%s last_seen=%s", wm.RemoteMarker, wm.LocalMarker, wm.LastSeenID), nil
}

func join(list []string) string {
	return strings.Join(list, " ")
}
