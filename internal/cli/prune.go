package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/feedkeep/internal/store"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	KeepRows          int
	KeepNotifications int
}

// PruneOutput is the result of prune.
type PruneOutput struct {
	TimelineRows  int64 `json:"timeline_rows"`
	Notifications int64 `json:"notifications"`
	Statuses      int64 `json:"statuses"`
	Reports       int64 `json:"reports"`
	Authors       int64 `json:"authors"`
}

func (o PruneOutput) String() string {
	return fmt.Sprintf("pruned %d timeline rows, %d notifications; collected %d statuses, %d reports, %d authors",
		o.TimelineRows, o.Notifications, o.Statuses, o.Reports, o.Authors)
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Apply retention limits and drop unreferenced rows",
		Long: `Keep the newest timeline rows and notifications up to the configured
limits (max_timeline_rows, max_notifications), then delete statuses, reports
and authors nothing refers to any more. A limit of 0 skips that table.

Example:
  feedkeep prune
  feedkeep prune --keep-rows 200 --keep-notifications 100`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return prune(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.KeepRows, "keep-rows", -1, "timeline rows to keep (default: max_timeline_rows)")
	cmd.Flags().IntVar(&opts.KeepNotifications, "keep-notifications", -1, "notifications to keep (default: max_notifications)")

	return cmd
}

func prune(opts *PruneOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	keepRows := a.cfg.MaxTimelineRows
	if opts.KeepRows >= 0 {
		keepRows = opts.KeepRows
	}
	keepNotes := a.cfg.MaxNotifications
	if opts.KeepNotifications >= 0 {
		keepNotes = opts.KeepNotifications
	}

	var out PruneOutput
	// Retention writes share the gate with syncs of the same account.
	_, err, _ = a.gate.Do(cmd.Context(), a.acct, "prune", func(ctx context.Context) (any, error) {
		return nil, a.store.Tx(ctx, func(tx *store.Store) error {
			return pruneTx(ctx, a, tx, keepRows, keepNotes, &out)
		})
	})
	if err != nil {
		return WrapExitError(ExitFailure, "prune failed", err)
	}

	a.log.Debug("pruned", "timeline_rows", out.TimelineRows, "notifications", out.Notifications,
		"statuses", out.Statuses, "reports", out.Reports, "authors", out.Authors)
	return a.out.Success(out)
}

func pruneTx(ctx context.Context, a *app, tx *store.Store, keepRows, keepNotes int, out *PruneOutput) error {
	var err error
	if keepRows > 0 {
		if out.TimelineRows, err = tx.PruneToLimit(ctx, a.acct, keepRows); err != nil {
			return err
		}
	}
	if keepNotes > 0 {
		if out.Notifications, err = tx.PruneNotifications(ctx, a.acct, keepNotes); err != nil {
			return err
		}
	}
	gc, err := tx.GarbageCollectOrphans(ctx, a.acct)
	if err != nil {
		return err
	}
	out.Statuses, out.Reports, out.Authors = gc.Statuses, gc.Reports, gc.Authors
	return nil
}
