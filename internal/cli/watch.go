package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/feedkeep/internal/events"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/telemetry"
	"github.com/roach88/feedkeep/internal/worker"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Once     bool
	Interval time.Duration
}

// WatchOutput is printed when watch stops.
type WatchOutput struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func (o WatchOutput) String() string {
	return fmt.Sprintf("jobs: %d succeeded, %d failed, %d skipped", o.Succeeded, o.Failed, o.Skipped)
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh the timeline and sync notifications on a schedule",
		Long: `Run the background worker: refresh the timeline and sync notifications
every --interval (default: the configured interval) until interrupted. New
notifications are printed as they arrive. An account whose sync fails is
backed off exponentially.

Traces are exported over OTLP/HTTP when otel_endpoint is configured.

Example:
  feedkeep watch --interval 2m
  feedkeep watch --once --format json`,
		Args:          exactArgs(0),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Once, "once", false, "run one round and exit")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "time between rounds (default: configured interval)")

	return cmd
}

func watch(opts *WatchOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	src, err := a.connect()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context(), a.log)
	defer cancel()

	shutdown, err := telemetry.Setup(ctx, a.cfg.OTelEndpoint)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		flushCtx, done := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer done()
		if err := shutdown(flushCtx); err != nil {
			a.log.Warn("flush traces", "error", err)
		}
	}()

	interval := a.cfg.Interval
	if opts.Interval > 0 {
		interval = opts.Interval
	}
	if interval == 0 && !opts.Once {
		return NewExitError(ExitCommandError, "interval is 0: use --once or set --interval")
	}

	bus := events.NewBus(events.DefaultBuffer)
	w := worker.New(
		a.timelineEngine(src.Timeline),
		a.notificationSyncer(src, bus),
		[]model.AccountScope{a.acct},
		worker.WithLogger(a.log),
		worker.WithInterval(interval),
	)

	updates := bus.Subscribe(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for ev := range updates {
			if err := a.out.Success(NotificationsOutput{Notifications: ev.Notifications}); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		defer bus.Close()
		if opts.Once {
			w.Schedule()
			w.Drain(gctx)
			return nil
		}
		a.log.Info("watching", "account", a.acct.Key(), "interval", interval)
		if err := w.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "watch failed", err)
	}

	stats := w.Stats()
	out := WatchOutput{Succeeded: stats.Succeeded, Failed: stats.Failed, Skipped: stats.Skipped}
	if opts.Once && stats.Failed > 0 {
		_ = a.out.Success(out)
		return NewExitError(ExitFailure, "sync failed")
	}
	return a.out.Success(out)
}
