package timeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/remote"
)

// VolatileEngine keeps an in-memory List in step with a remote source.
// Nothing is persisted and Refresh does not look for deletions.
type VolatileEngine struct {
	list *List
	src  remote.TimelineSource
	opts options
}

// NewVolatileEngine returns an engine merging src into list.
func NewVolatileEngine(list *List, src remote.TimelineSource, opts ...Option) *VolatileEngine {
	return &VolatileEngine{list: list, src: src, opts: buildOptions(opts)}
}

// List returns the list the engine writes to.
func (e *VolatileEngine) List() *List {
	return e.list
}

// Load fetches in the given direction and merges into the list. acct only
// scopes serialization and logging.
func (e *VolatileEngine) Load(ctx context.Context, acct model.AccountScope, dir Direction, bottomID string) LoadResult {
	switch dir {
	case Prepend:
		return Success{EndOfPagination: true}
	case Refresh:
		return e.opts.run(ctx, "volatile", acct, dir.String(), "", func(ctx context.Context, log *slog.Logger) LoadResult {
			return e.refresh(ctx, log)
		})
	case Append:
		return e.opts.run(ctx, "volatile", acct, dir.String(), bottomID, func(ctx context.Context, log *slog.Logger) LoadResult {
			return e.append(ctx, bottomID, log)
		})
	}
	return Failure{Err: fmt.Errorf("load: unknown direction %v", dir)}
}

// FillGap replaces the placeholder at gapID with the content it stands for.
func (e *VolatileEngine) FillGap(ctx context.Context, acct model.AccountScope, gapID string) LoadResult {
	return e.opts.run(ctx, "volatile", acct, "fill_gap", gapID, func(ctx context.Context, log *slog.Logger) LoadResult {
		return e.fillGap(ctx, gapID, log)
	})
}

func (e *VolatileEngine) refresh(ctx context.Context, log *slog.Logger) LoadResult {
	pageSize := e.opts.pageSize

	top, err := e.src.FetchNewest(ctx, pageSize)
	if err != nil {
		return Failure{Err: err}
	}

	oldTop, _ := e.list.TopID()
	gap := e.list.merge("", planTop(top.Statuses, pageSize, oldTop))

	log.Debug("merged refresh", "old_top", oldTop, "fetched", len(top.Statuses), "gap", gap)
	return Success{EndOfPagination: len(top.Statuses) < pageSize}
}

func (e *VolatileEngine) append(ctx context.Context, bottomID string, log *slog.Logger) LoadResult {
	pageSize := e.opts.pageSize

	if bottomID == "" {
		id, ok := e.list.BottomID()
		if !ok {
			page, err := e.src.FetchNewest(ctx, pageSize)
			if err != nil {
				return Failure{Err: err}
			}
			e.list.merge("", mergePlan{page: page.Statuses})
			return Success{EndOfPagination: len(page.Statuses) < pageSize}
		}
		bottomID = id
	}
	if e.list.IsGap(bottomID) {
		return e.fillGap(ctx, bottomID, log)
	}

	page, err := e.src.FetchBefore(ctx, bottomID, pageSize)
	if err != nil {
		return Failure{Err: err}
	}
	e.list.merge("", mergePlan{page: page.Statuses})
	log.Debug("appended page", "below", bottomID, "fetched", len(page.Statuses))
	return Success{EndOfPagination: len(page.Statuses) < pageSize}
}

func (e *VolatileEngine) fillGap(ctx context.Context, gapID string, log *slog.Logger) LoadResult {
	pageSize := e.opts.pageSize

	if !e.list.IsGap(gapID) {
		return Failure{Err: fmt.Errorf("fill gap: no placeholder at %s", gapID)}
	}
	page, err := e.src.FetchBefore(ctx, ids.Increment(gapID), pageSize)
	if err != nil {
		return Failure{Err: err}
	}

	below, _ := e.list.IDBelow(gapID)
	newGap := e.list.merge(gapID, planFill(page.Statuses, pageSize, below))

	log.Debug("filled gap", "gap", gapID, "fetched", len(page.Statuses), "new_gap", newGap)
	return Success{EndOfPagination: len(page.Statuses) < pageSize}
}
