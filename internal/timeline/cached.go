package timeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/feedkeep/internal/feederr"
	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/remote"
	"github.com/roach88/feedkeep/internal/store"
)

// CachedEngine keeps a durable per-account timeline in the store in step
// with a remote source.
type CachedEngine struct {
	store *store.Store
	src   remote.TimelineSource
	opts  options
}

// NewCachedEngine returns an engine merging src into st.
func NewCachedEngine(st *store.Store, src remote.TimelineSource, opts ...Option) *CachedEngine {
	return &CachedEngine{store: st, src: src, opts: buildOptions(opts)}
}

// Load fetches in the given direction and merges the result. For Append,
// bottomID names the row to page below; empty means the store's bottom
// row. A Placeholder at the bottom is filled instead.
func (e *CachedEngine) Load(ctx context.Context, acct model.AccountScope, dir Direction, bottomID string) LoadResult {
	switch dir {
	case Prepend:
		return Success{EndOfPagination: true}
	case Refresh:
		return e.opts.run(ctx, "cached", acct, dir.String(), "", func(ctx context.Context, log *slog.Logger) LoadResult {
			return e.refresh(ctx, acct, log)
		})
	case Append:
		return e.opts.run(ctx, "cached", acct, dir.String(), bottomID, func(ctx context.Context, log *slog.Logger) LoadResult {
			return e.append(ctx, acct, bottomID, log)
		})
	}
	return Failure{Err: fmt.Errorf("load: unknown direction %v", dir)}
}

// FillGap replaces the Placeholder at gapID with the content it stands
// for, leaving a new Placeholder lower down if one page is not enough.
func (e *CachedEngine) FillGap(ctx context.Context, acct model.AccountScope, gapID string) LoadResult {
	return e.opts.run(ctx, "cached", acct, "fill_gap", gapID, func(ctx context.Context, log *slog.Logger) LoadResult {
		return e.fillGap(ctx, acct, gapID, log)
	})
}

func (e *CachedEngine) refresh(ctx context.Context, acct model.AccountScope, log *slog.Logger) LoadResult {
	pageSize := e.opts.pageSize

	oldTop, ok, err := e.store.TopID(ctx, acct)
	if err != nil {
		return Failure{Err: feederr.Store("refresh", err)}
	}
	if !ok {
		top, err := e.src.FetchNewest(ctx, pageSize)
		if err != nil {
			return Failure{Err: err}
		}
		wctx := context.WithoutCancel(ctx)
		if _, err := e.write(wctx, acct, mergePlan{page: top.Statuses}); err != nil {
			return Failure{Err: feederr.Store("refresh", err)}
		}
		log.Debug("seeded empty timeline", "fetched", len(top.Statuses))
		e.retain(wctx, acct, log)
		return Success{EndOfPagination: false}
	}

	var top, anchor remote.Page
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		top, err = e.src.FetchNewest(gctx, pageSize)
		return err
	})
	g.Go(func() error {
		var err error
		// max_id is exclusive; the anchor page must include oldTop itself.
		anchor, err = e.src.FetchBefore(gctx, ids.Increment(oldTop), pageSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return Failure{Err: err}
	}

	wctx := context.WithoutCancel(ctx)
	var (
		deleted int
		gap     string
	)
	err = e.store.Tx(wctx, func(tx *store.Store) error {
		// A full anchor page only vouches for the range it spans; a short
		// one means the server has nothing older.
		lo := ""
		if len(anchor.Statuses) >= pageSize {
			lo, _ = anchor.Oldest()
		}
		cached, err := tx.ConcreteIDsBetween(wctx, acct, lo, oldTop)
		if err != nil {
			return err
		}
		for _, id := range staleIDs(cached, anchor.Statuses) {
			if err := tx.DeleteByID(wctx, acct, id); err != nil {
				return err
			}
			deleted++
		}
		if err := tx.UpsertPage(wctx, acct, onlyCached(anchor.Statuses, cached)); err != nil {
			return err
		}

		gap, err = writePlan(storeRows{wctx, tx, acct}, planTop(top.Statuses, pageSize, oldTop))
		return err
	})
	if err != nil {
		return Failure{Err: feederr.Store("refresh", err)}
	}

	log.Debug("merged refresh",
		"old_top", oldTop,
		"fetched", len(top.Statuses),
		"anchor", len(anchor.Statuses),
		"deleted", deleted,
		"gap", gap)

	e.retain(wctx, acct, log)
	return Success{EndOfPagination: len(top.Statuses) < pageSize}
}

func (e *CachedEngine) append(ctx context.Context, acct model.AccountScope, bottomID string, log *slog.Logger) LoadResult {
	pageSize := e.opts.pageSize

	if bottomID == "" {
		id, ok, err := e.store.BottomID(ctx, acct)
		if err != nil {
			return Failure{Err: feederr.Store("append", err)}
		}
		if !ok {
			// Nothing cached to page below; start from the top.
			page, err := e.src.FetchNewest(ctx, pageSize)
			if err != nil {
				return Failure{Err: err}
			}
			if _, err := e.write(context.WithoutCancel(ctx), acct, mergePlan{page: page.Statuses}); err != nil {
				return Failure{Err: feederr.Store("append", err)}
			}
			return Success{EndOfPagination: len(page.Statuses) < pageSize}
		}
		bottomID = id
	}

	isGap, err := e.store.IsPlaceholder(ctx, acct, bottomID)
	if err != nil {
		return Failure{Err: feederr.Store("append", err)}
	}
	if isGap {
		return e.fillGap(ctx, acct, bottomID, log)
	}

	page, err := e.src.FetchBefore(ctx, bottomID, pageSize)
	if err != nil {
		return Failure{Err: err}
	}
	if _, err := e.write(context.WithoutCancel(ctx), acct, mergePlan{page: page.Statuses}); err != nil {
		return Failure{Err: feederr.Store("append", err)}
	}
	log.Debug("appended page", "below", bottomID, "fetched", len(page.Statuses))
	return Success{EndOfPagination: len(page.Statuses) < pageSize}
}

func (e *CachedEngine) fillGap(ctx context.Context, acct model.AccountScope, gapID string, log *slog.Logger) LoadResult {
	pageSize := e.opts.pageSize

	isGap, err := e.store.IsPlaceholder(ctx, acct, gapID)
	if err != nil {
		return Failure{Err: feederr.Store("fill gap", err)}
	}
	if !isGap {
		return Failure{Err: fmt.Errorf("fill gap: no placeholder at %s: %w", gapID, store.ErrNotFound)}
	}

	// The placeholder's own id is part of the unknown range.
	page, err := e.src.FetchBefore(ctx, ids.Increment(gapID), pageSize)
	if err != nil {
		return Failure{Err: err}
	}

	wctx := context.WithoutCancel(ctx)
	var newGap string
	err = e.store.Tx(wctx, func(tx *store.Store) error {
		below, _, err := tx.IDBelow(wctx, acct, gapID)
		if err != nil {
			return err
		}
		if err := tx.DeleteByID(wctx, acct, gapID); err != nil {
			return err
		}
		newGap, err = writePlan(storeRows{wctx, tx, acct}, planFill(page.Statuses, pageSize, below))
		return err
	})
	if err != nil {
		return Failure{Err: feederr.Store("fill gap", err)}
	}

	log.Debug("filled gap", "gap", gapID, "fetched", len(page.Statuses), "new_gap", newGap)
	return Success{EndOfPagination: len(page.Statuses) < pageSize}
}

// write applies plan in its own transaction.
func (e *CachedEngine) write(ctx context.Context, acct model.AccountScope, plan mergePlan) (gap string, err error) {
	err = e.store.Tx(ctx, func(tx *store.Store) error {
		gap, err = writePlan(storeRows{ctx, tx, acct}, plan)
		return err
	})
	return gap, err
}

// storeRows writes plans into one account's rows inside a transaction.
type storeRows struct {
	ctx  context.Context
	tx   *store.Store
	acct model.AccountScope
}

func (r storeRows) gapsBetween(lo, hi string) ([]string, error) {
	return r.tx.PlaceholderIDsBetween(r.ctx, r.acct, lo, hi)
}

func (r storeRows) idBelow(id string) (string, bool, error) {
	return r.tx.IDBelow(r.ctx, r.acct, id)
}

func (r storeRows) remove(id string) error {
	return r.tx.DeleteByID(r.ctx, r.acct, id)
}

func (r storeRows) upsert(sts []model.Status) error {
	return r.tx.UpsertPage(r.ctx, r.acct, sts)
}

func (r storeRows) addGap(id string) error {
	return r.tx.UpsertPlaceholder(r.ctx, r.acct, id)
}

// retain prunes the timeline to the row limit and collects orphans.
// Failures are logged; the refresh itself already committed.
func (e *CachedEngine) retain(ctx context.Context, acct model.AccountScope, log *slog.Logger) {
	var (
		pruned int64
		stats  store.GCStats
	)
	err := e.store.Tx(ctx, func(tx *store.Store) error {
		if e.opts.maxRows > 0 {
			n, err := tx.PruneToLimit(ctx, acct, e.opts.maxRows)
			if err != nil {
				return err
			}
			pruned = n
		}
		var err error
		stats, err = tx.GarbageCollectOrphans(ctx, acct)
		return err
	})
	if err != nil {
		log.Warn("retention failed", "error", err)
		return
	}
	if pruned > 0 || stats.Total() > 0 {
		log.Debug("retention",
			"pruned_rows", pruned,
			"orphan_statuses", stats.Statuses,
			"orphan_reports", stats.Reports,
			"orphan_authors", stats.Authors)
	}
}
