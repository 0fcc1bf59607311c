package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/remote"
)

// NotificationFeed is an in-memory remote.NotificationSource.
//
// Safe for concurrent use.
type NotificationFeed struct {
	mu      sync.Mutex
	items   []model.Notification // newest first
	queries []remote.NotificationQuery
	// failAt fails the request with this zero-based index.
	failAt  int
	failErr error
}

var _ remote.NotificationSource = (*NotificationFeed)(nil)

// NewNotificationFeed returns a feed holding one mention per id.
func NewNotificationFeed(notificationIDs ...string) *NotificationFeed {
	f := &NotificationFeed{failAt: -1}
	for _, id := range notificationIDs {
		f.Add(Notification(id, model.NotificationMention))
	}
	return f
}

// Notification fabricates a notification of the given type.
func Notification(id string, typ model.NotificationType) model.Notification {
	n := model.Notification{
		ID:        id,
		Type:      typ,
		CreatedAt: Epoch,
		Author:    model.Author{ID: "20" + id, Acct: "fan" + id + "@example.social"},
	}
	if typ.HasStatus() {
		st := Status("30" + id)
		n.Status = &st
	}
	return n
}

// Add puts notifications on the server.
func (f *NotificationFeed) Add(ns ...model.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, ns...)
	slices.SortFunc(f.items, func(a, b model.Notification) int { return ids.Compare(b.ID, a.ID) })
}

// FailRequest makes the n-th request (zero-based) fail with err.
func (f *NotificationFeed) FailRequest(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAt, f.failErr = n, err
}

// Queries returns the requests made so far.
func (f *NotificationFeed) Queries() []remote.NotificationQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queries)
}

// FetchNotifications implements remote.NotificationSource.
func (f *NotificationFeed) FetchNotifications(ctx context.Context, q remote.NotificationQuery) (remote.NotificationPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := len(f.queries)
	f.queries = append(f.queries, q)
	if err := ctx.Err(); err != nil {
		return remote.NotificationPage{}, err
	}
	if idx == f.failAt {
		return remote.NotificationPage{}, f.failErr
	}

	var page []model.Notification
	for _, n := range f.items {
		if q.MaxID != "" && !ids.Less(n.ID, q.MaxID) {
			continue
		}
		if q.SinceID != "" && !ids.Less(q.SinceID, n.ID) {
			continue
		}
		if slices.Contains(q.ExcludeTypes, n.Type) {
			continue
		}
		page = append(page, n)
		if q.Limit > 0 && len(page) == q.Limit {
			break
		}
	}

	var next string
	if q.Limit > 0 && len(page) == q.Limit {
		next = page[len(page)-1].ID
	}
	return remote.NotificationPage{Notifications: page, Next: next}, nil
}

// Markers is an in-memory remote.MarkerSource.
type Markers struct {
	mu          sync.Mutex
	value       string
	unsupported bool
	getErr      error
	setErr      error
	sets        []string
}

var _ remote.MarkerSource = (*Markers)(nil)

// NewMarkers returns a marker source holding value.
func NewMarkers(value string) *Markers {
	return &Markers{value: value}
}

// UnsupportedMarkers returns a marker source for a server without the API.
func UnsupportedMarkers() *Markers {
	return &Markers{unsupported: true}
}

// FailGet makes GetMarker return err.
func (m *Markers) FailGet(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

// FailSet makes SetMarker return err.
func (m *Markers) FailSet(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setErr = err
}

// Value returns the stored marker.
func (m *Markers) Value() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// Sets returns every id passed to SetMarker, successful or not.
func (m *Markers) Sets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sets)
}

// GetMarker implements remote.MarkerSource.
func (m *Markers) GetMarker(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.unsupported:
		return "", remote.ErrMarkersUnsupported
	case m.getErr != nil:
		return "", m.getErr
	}
	return m.value, nil
}

// SetMarker implements remote.MarkerSource.
func (m *Markers) SetMarker(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets = append(m.sets, id)
	switch {
	case m.unsupported:
		return remote.ErrMarkersUnsupported
	case m.setErr != nil:
		return m.setErr
	}
	m.value = id
	return nil
}
