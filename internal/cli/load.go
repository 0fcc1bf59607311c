package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/timeline"
)

// LoadOutput is the result of refresh, append and fill-gap.
type LoadOutput struct {
	Op              string `json:"op"`
	EndOfPagination bool   `json:"end_of_pagination"`
	Rows            int    `json:"rows"`
	TopID           string `json:"top_id,omitempty"`
	BottomID        string `json:"bottom_id,omitempty"`
}

func (o LoadOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d rows cached", o.Op, o.Rows)
	if o.TopID != "" {
		fmt.Fprintf(&b, " (%s .. %s)", o.TopID, o.BottomID)
	}
	if o.EndOfPagination {
		b.WriteString(", end of timeline")
	}
	return b.String()
}

type loadFunc func(ctx context.Context, eng *timeline.CachedEngine, acct model.AccountScope) timeline.LoadResult

// AppendOptions holds flags for the append command.
type AppendOptions struct {
	*RootOptions
	Below string
}

// NewRefreshCommand creates the refresh command.
func NewRefreshCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the newest page and reconcile the cache",
		Long: `Fetch the newest page of the timeline and merge it into the cache.

Cached statuses the server no longer returns in the refreshed range are
deleted. If the newest page does not reach the cached top, a gap marker is
left below it; use fill-gap to load what it stands for.

Example:
  feedkeep refresh --account alice@example.social`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, cmd, "refresh", func(ctx context.Context, eng *timeline.CachedEngine, acct model.AccountScope) timeline.LoadResult {
				return eng.Load(ctx, acct, timeline.Refresh, "")
			})
		},
	}
}

// NewAppendCommand creates the append command.
func NewAppendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AppendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "append",
		Short: "Load the page below the oldest cached status",
		Long: `Load older statuses below the bottom of the cache, or below --below.

If the bottom row is a gap marker, the gap is filled instead.

Example:
  feedkeep append
  feedkeep append --below 109876543210`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, cmd, "append", func(ctx context.Context, eng *timeline.CachedEngine, acct model.AccountScope) timeline.LoadResult {
				return eng.Load(ctx, acct, timeline.Append, opts.Below)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Below, "below", "", "status id to page below (default: bottom of the cache)")

	return cmd
}

// NewFillGapCommand creates the fill-gap command.
func NewFillGapCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fill-gap <gap-id>",
		Short: "Load the statuses a gap marker stands for",
		Long: `Replace the gap marker at <gap-id> with the statuses it stands for.

A gap wider than one page leaves a new marker lower down.

Example:
  feedkeep fill-gap 109876543210`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, cmd, "fill-gap", func(ctx context.Context, eng *timeline.CachedEngine, acct model.AccountScope) timeline.LoadResult {
				return eng.FillGap(ctx, acct, args[0])
			})
		},
	}
}

func runLoad(opts *RootOptions, cmd *cobra.Command, op string, load loadFunc) error {
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.connect()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	res := load(ctx, a.timelineEngine(src.Timeline), a.acct)
	if err := loadFailed(op, res); err != nil {
		return err
	}

	out := LoadOutput{Op: op}
	if s, ok := res.(timeline.Success); ok {
		out.EndOfPagination = s.EndOfPagination
	}
	if out.Rows, err = a.store.Count(ctx, a.acct); err != nil {
		return WrapExitError(ExitFailure, "failed to count rows", err)
	}
	if out.TopID, _, err = a.store.TopID(ctx, a.acct); err != nil {
		return WrapExitError(ExitFailure, "failed to read top", err)
	}
	if out.BottomID, _, err = a.store.BottomID(ctx, a.acct); err != nil {
		return WrapExitError(ExitFailure, "failed to read bottom", err)
	}
	return a.out.Success(out)
}
