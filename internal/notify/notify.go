// Package notify fetches the notifications a user has not seen yet.
//
// Three positions bound what counts as unseen: the server's read marker,
// this client's own marker and the id the user's view has scrolled to.
// Servers without the markers API, or that lost their marker, fall back to
// the local positions. The sync never skips a notification; after a
// failed page it may deliver some of them again on the next run.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/feedkeep/internal/events"
	"github.com/roach88/feedkeep/internal/feederr"
	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/remote"
	"github.com/roach88/feedkeep/internal/store"
)

// Syncer caches unseen notifications for an account and keeps the read
// markers moving.
type Syncer struct {
	store   *store.Store
	src     remote.NotificationSource
	markers remote.MarkerSource
	opts    options
}

// New returns a Syncer. markers may be nil for servers without the markers
// API.
func New(st *store.Store, src remote.NotificationSource, markers remote.MarkerSource, opts ...Option) *Syncer {
	return &Syncer{store: st, src: src, markers: markers, opts: buildOptions(opts)}
}

type result struct {
	notifications []model.Notification
	err           error
}

// Sync fetches every notification newer than the account's read position,
// caches them and returns them oldest first, minus excluded types.
//
// If a page fails, the notifications fetched before it are still cached
// and returned together with the error, and the markers stay put.
func (s *Syncer) Sync(ctx context.Context, acct model.AccountScope) ([]model.Notification, error) {
	ctx, span := s.opts.tracer.Start(ctx, "notifications.sync", trace.WithAttributes(
		attribute.String("feedkeep.account", acct.Key()),
	))
	defer span.End()

	v, err, shared := s.opts.gate.Do(ctx, acct, "notifications", func(ctx context.Context) (res any, _ error) {
		runID := s.opts.runIDs.Generate()
		log := s.opts.logger.With("run_id", runID, "account", acct.Key(), "op", "notifications")
		defer func() {
			if p := recover(); p != nil {
				log.Error("notification sync panicked", "panic", p)
				res = result{err: fmt.Errorf("panic: %v", p)}
			}
		}()

		start := time.Now()
		r := s.sync(ctx, acct, runID, log)
		if r.err != nil {
			log.Warn("notification sync failed", "error", r.err, "kept", len(r.notifications), "duration", time.Since(start))
		} else {
			log.Info("notification sync finished", "new", len(r.notifications), "duration", time.Since(start))
		}
		return r, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("sync notifications: %w", err)
	}

	r := v.(result)
	span.SetAttributes(
		attribute.Bool("feedkeep.shared", shared),
		attribute.Int("feedkeep.notifications", len(r.notifications)),
	)
	if r.err != nil {
		span.RecordError(r.err)
		span.SetStatus(codes.Error, r.err.Error())
		return slices.Clone(r.notifications), fmt.Errorf("sync notifications: %w", r.err)
	}
	return slices.Clone(r.notifications), nil
}

func (s *Syncer) sync(ctx context.Context, acct model.AccountScope, runID string, log *slog.Logger) result {
	wm, err := s.store.Watermark(ctx, acct)
	if err != nil {
		return result{err: feederr.Store("read watermark", err)}
	}

	remoteMarker, supported := s.remoteMarker(ctx, log)
	minID := ids.Max(ids.Max(remoteMarker, wm.LocalMarker), wm.LastSeenID)
	log = log.With("min_id", minID)
	log.Debug("resolved read position",
		"remote_marker", remoteMarker,
		"local_marker", wm.LocalMarker,
		"last_seen_id", wm.LastSeenID)

	fetched, fetchErr := s.fetchSince(ctx, minID)

	wctx := context.WithoutCancel(ctx)
	if len(fetched) > 0 {
		if err := s.persist(wctx, acct, fetched, log); err != nil {
			return result{err: feederr.Store("cache notifications", err)}
		}
	}
	out := s.filter(fetched)
	if fetchErr != nil {
		return result{notifications: out, err: fetchErr}
	}
	if len(fetched) == 0 {
		return result{}
	}

	newest := fetched[len(fetched)-1].ID
	if err := s.store.SetLocalMarker(wctx, acct, newest); err != nil {
		return result{notifications: out, err: feederr.Store("set local marker", err)}
	}
	if supported {
		s.pushMarker(wctx, acct, newest, log)
	}

	if s.opts.bus != nil && len(out) > 0 {
		s.opts.bus.Publish(events.NewNotifications{Account: acct, RunID: runID, Notifications: out})
	}
	return result{notifications: out}
}

// remoteMarker reads the server's marker. An unreadable marker counts as
// ids.Zero; supported is false only when the server lacks the API.
func (s *Syncer) remoteMarker(ctx context.Context, log *slog.Logger) (id string, supported bool) {
	if s.markers == nil {
		return ids.Zero, false
	}
	id, err := s.markers.GetMarker(ctx)
	switch {
	case errors.Is(err, remote.ErrMarkersUnsupported):
		log.Debug("server has no markers api")
		return ids.Zero, false
	case err != nil:
		log.Warn("read remote marker", "error", err)
		return ids.Zero, true
	case id == "":
		return ids.Zero, true
	case !ids.Valid(id):
		log.Warn("ignoring malformed remote marker", "marker", id)
		return ids.Zero, true
	}
	return id, true
}

// pushMarker advances the server's marker. Failures are logged: the local
// marker already moved, and the next run writes the server's marker again.
func (s *Syncer) pushMarker(ctx context.Context, acct model.AccountScope, id string, log *slog.Logger) {
	if err := s.markers.SetMarker(ctx, id); err != nil {
		log.Warn("set remote marker", "marker", id, "error", err)
		return
	}
	if err := s.store.SetRemoteMarker(ctx, acct, id); err != nil {
		log.Warn("cache remote marker", "marker", id, "error", err)
	}
}

// fetchSince pages back from the newest notification until the page that
// reaches minID. It returns what it got oldest first, even on error.
func (s *Syncer) fetchSince(ctx context.Context, minID string) ([]model.Notification, error) {
	got := make(map[string]model.Notification)
	q := remote.NotificationQuery{SinceID: minID, Limit: s.opts.pageSize}
	for {
		page, err := s.src.FetchNotifications(ctx, q)
		if err != nil {
			return oldestFirst(got), err
		}
		for _, n := range page.Notifications {
			if ids.Less(minID, n.ID) {
				got[n.ID] = n
			}
		}
		if page.Next == "" || len(page.Notifications) == 0 || !ids.Less(minID, page.Next) {
			return oldestFirst(got), nil
		}
		if q.MaxID != "" && !ids.Less(page.Next, q.MaxID) {
			return oldestFirst(got), feederr.Protocol("fetch notifications", 0,
				fmt.Errorf("cursor %s does not advance past %s", page.Next, q.MaxID))
		}
		q.MaxID = page.Next
	}
}

func oldestFirst(m map[string]model.Notification) []model.Notification {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b model.Notification) int { return ids.Compare(a.ID, b.ID) })
	return out
}

func (s *Syncer) persist(ctx context.Context, acct model.AccountScope, ns []model.Notification, log *slog.Logger) error {
	return s.store.Tx(ctx, func(tx *store.Store) error {
		if err := tx.UpsertNotifications(ctx, acct, ns); err != nil {
			return err
		}
		if s.opts.maxRows == 0 {
			return nil
		}
		pruned, err := tx.PruneNotifications(ctx, acct, s.opts.maxRows)
		if err != nil {
			return err
		}
		if pruned > 0 {
			stats, err := tx.GarbageCollectOrphans(ctx, acct)
			if err != nil {
				return err
			}
			log.Debug("pruned notifications", "pruned", pruned, "orphans", stats.Total())
		}
		return nil
	})
}

func (s *Syncer) filter(ns []model.Notification) []model.Notification {
	if len(s.opts.exclude) == 0 {
		return ns
	}
	return slices.DeleteFunc(slices.Clone(ns), func(n model.Notification) bool {
		return slices.Contains(s.opts.exclude, n.Type)
	})
}

// MarkSeen records that the user's view has reached id. The position only
// moves forward.
func (s *Syncer) MarkSeen(ctx context.Context, acct model.AccountScope, id string) error {
	if !ids.Valid(id) {
		return fmt.Errorf("mark seen: invalid id %q", id)
	}
	_, err, _ := s.opts.gate.Do(ctx, acct, "mark_seen\x00"+id, func(ctx context.Context) (any, error) {
		wm, err := s.store.Watermark(ctx, acct)
		if err != nil {
			return nil, feederr.Store("read watermark", err)
		}
		if !ids.Less(wm.LastSeenID, id) {
			return nil, nil
		}
		if err := s.store.SetLastSeen(ctx, acct, id); err != nil {
			return nil, feederr.Store("set last seen", err)
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}
