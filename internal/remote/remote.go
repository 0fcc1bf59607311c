// Package remote declares the paginated feed APIs the sync engines consume.
//
// Every page is newest first. Cursor bounds are exclusive, so FetchBefore(X)
// never returns X itself; callers that need X use ids.Increment(X).
// Implementations classify failures with feederr.
package remote

import (
	"context"
	"errors"

	"github.com/roach88/feedkeep/internal/model"
)

// ErrMarkersUnsupported is returned by a MarkerSource whose server has no
// read-position API.
var ErrMarkersUnsupported = errors.New("markers unsupported")

// Page is one page of statuses, newest first.
type Page struct {
	Statuses []model.Status
	// Next is the max_id cursor for the following (older) page, if any.
	Next string
	// Prev is the min_id cursor for the preceding (newer) page, if any.
	Prev string
}

// Oldest returns the id of the page's last item.
func (p Page) Oldest() (string, bool) {
	if len(p.Statuses) == 0 {
		return "", false
	}
	return p.Statuses[len(p.Statuses)-1].ID, true
}

// TimelineSource pages a remote timeline.
type TimelineSource interface {
	// FetchNewest returns the newest limit items.
	FetchNewest(ctx context.Context, limit int) (Page, error)
	// FetchBefore returns up to limit items with ids strictly below maxID.
	FetchBefore(ctx context.Context, maxID string, limit int) (Page, error)
	// FetchAfter returns up to limit items with ids strictly above minID,
	// the ones immediately above it.
	FetchAfter(ctx context.Context, minID string, limit int) (Page, error)
}

// NotificationQuery selects one page of notifications.
type NotificationQuery struct {
	// MaxID is an exclusive upper bound; empty means the newest.
	MaxID string
	// SinceID is an exclusive lower bound; empty means unbounded.
	SinceID string
	Limit   int
	// ExcludeTypes asks the server to omit these kinds.
	ExcludeTypes []model.NotificationType
}

// NotificationPage is one page of notifications, newest first.
type NotificationPage struct {
	Notifications []model.Notification
	// Next is the MaxID for the following (older) page; empty at the end.
	Next string
}

// NotificationSource pages the remote notification list.
type NotificationSource interface {
	FetchNotifications(ctx context.Context, q NotificationQuery) (NotificationPage, error)
}

// MarkerSource reads and writes the server-side notification read marker.
type MarkerSource interface {
	// GetMarker returns the stored marker, or "" when none has been set.
	GetMarker(ctx context.Context) (string, error)
	SetMarker(ctx context.Context, id string) error
}
