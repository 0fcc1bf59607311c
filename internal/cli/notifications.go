package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/feedkeep/internal/ids"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/render"
)

// NotificationsOptions holds flags for the notifications command.
type NotificationsOptions struct {
	*RootOptions
	Cached bool
	Limit  int
}

// NotificationsOutput is the result of notifications.
type NotificationsOutput struct {
	Notifications []model.Notification `json:"notifications"`
	Watermark     model.Watermark      `json:"watermark"`

	empty string
}

func (o NotificationsOutput) String() string {
	if len(o.Notifications) == 0 {
		return o.empty
	}
	lines := make([]string, len(o.Notifications))
	for i, n := range o.Notifications {
		lines[i] = render.NotificationLine(n)
	}
	return strings.Join(lines, "\n")
}

// MarkSeenOutput is the result of mark-seen.
type MarkSeenOutput struct {
	Watermark model.Watermark `json:"watermark"`
}

func (o MarkSeenOutput) String() string {
	return fmt.Sprintf("last seen: %s", o.Watermark.LastSeenID)
}

// NewNotificationsCommand creates the notifications command.
func NewNotificationsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NotificationsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Fetch and print new notifications",
		Long: `Fetch notifications newer than the read position and print them oldest
first. The position is the highest of the server marker, the local marker and
the last id marked seen; it advances once every page has been fetched.

If a page fails, what was fetched is cached but the position is left alone,
so the next run delivers the same notifications again.

With --cached the local cache is printed newest first and the server is not
contacted.

Example:
  feedkeep notifications
  feedkeep notifications --cached --limit 20`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return syncNotifications(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Cached, "cached", false, "print cached notifications without syncing")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 40, "maximum cached notifications to print with --cached (0 for all)")

	return cmd
}

func syncNotifications(opts *NotificationsOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	out := NotificationsOutput{empty: "no new notifications"}
	if opts.Cached {
		out.empty = "no cached notifications"
		out.Notifications, err = a.store.Notifications(ctx, a.acct, opts.Limit)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to read notifications", err)
		}
	} else {
		src, err := a.connect()
		if err != nil {
			return err
		}
		out.Notifications, err = a.notificationSyncer(src, nil).Sync(ctx, a.acct)
		if err != nil {
			return WrapExitError(ExitFailure, "notification sync failed", err)
		}
	}
	if out.Notifications == nil {
		out.Notifications = []model.Notification{}
	}

	if out.Watermark, err = a.store.Watermark(ctx, a.acct); err != nil {
		return WrapExitError(ExitFailure, "failed to read watermark", err)
	}
	return a.out.Success(out)
}

// NewMarkSeenCommand creates the mark-seen command.
func NewMarkSeenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-seen <notification-id>",
		Short: "Record that notifications up to an id have been seen",
		Long: `Record that the user has seen notifications up to <notification-id>.

The position only moves forward; an older id is ignored.

Example:
  feedkeep mark-seen 4711`,
		Args:          exactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return markSeen(rootOpts, cmd, args[0])
		},
	}
}

func markSeen(opts *RootOptions, cmd *cobra.Command, id string) error {
	if !ids.Valid(id) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid notification id %q", id))
	}
	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// Marking seen is local; no remote sources are needed.
	ctx := cmd.Context()
	if err := a.notificationSyncer(Sources{}, nil).MarkSeen(ctx, a.acct, id); err != nil {
		return WrapExitError(ExitFailure, "failed to mark seen", err)
	}
	wm, err := a.store.Watermark(ctx, a.acct)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read watermark", err)
	}
	return a.out.Success(MarkSeenOutput{Watermark: wm})
}
