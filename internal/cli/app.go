package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/roach88/feedkeep/internal/config"
	"github.com/roach88/feedkeep/internal/events"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/notify"
	"github.com/roach88/feedkeep/internal/remote"
	"github.com/roach88/feedkeep/internal/remote/mastodon"
	"github.com/roach88/feedkeep/internal/store"
	"github.com/roach88/feedkeep/internal/timeline"
)

// Sources are the remote APIs one account syncs against.
type Sources struct {
	Timeline      remote.TimelineSource
	Notifications remote.NotificationSource
	// Markers may be nil when the server has no marker API.
	Markers remote.MarkerSource
}

// Connector builds the Sources for cfg.
type Connector func(cfg config.Config, log *slog.Logger) (Sources, error)

// ConnectMastodon is the default Connector. It authenticates with
// cfg.AccessToken when set.
func ConnectMastodon(cfg config.Config, log *slog.Logger) (Sources, error) {
	if cfg.Server == "" {
		return Sources{}, errors.New("no server configured (set server in the config file or FEEDKEEP_SERVER)")
	}

	var ts oauth2.TokenSource
	if cfg.AccessToken != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
	}
	path := mastodon.HomeTimeline
	if cfg.Timeline == "public" {
		path = mastodon.PublicTimeline
	}

	c, err := mastodon.New(cfg.Server, ts, mastodon.WithTimeline(path), mastodon.WithLogger(log))
	if err != nil {
		return Sources{}, err
	}
	return Sources{Timeline: c, Notifications: c, Markers: c}, nil
}

// app is the per-invocation state shared by subcommands.
type app struct {
	opts  *RootOptions
	cfg   config.Config
	acct  model.AccountScope
	log   *slog.Logger
	store *store.Store
	out   *OutputFormatter
	gate  *timeline.Gate
}

// openApp resolves configuration and opens the database. Callers must
// Close the result.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	log := newLogger(cmd.ErrOrStderr(), opts.Verbose)
	log.Debug("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return &app{
		opts:  opts,
		cfg:   cfg,
		acct:  cfg.AccountScope(),
		log:   log,
		store: st,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
		gate: timeline.NewGate(),
	}, nil
}

// resolveConfig layers flags over the file and environment, then validates.
func resolveConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.LoadWith(opts.ConfigPath, opts.Environ)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.Account != "" {
		cfg.Account = opts.Account
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.Account == "" {
		return config.Config{}, errors.New("no account configured (use --account or FEEDKEEP_ACCOUNT)")
	}
	return cfg, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("error closing database", "error", err)
	}
}

func (a *app) connect() (Sources, error) {
	connect := a.opts.Connect
	if connect == nil {
		connect = ConnectMastodon
	}
	src, err := connect(a.cfg, a.log)
	if err != nil {
		return Sources{}, WrapExitError(ExitCommandError, "failed to connect", err)
	}
	return src, nil
}

func (a *app) timelineEngine(src remote.TimelineSource) *timeline.CachedEngine {
	opts := []timeline.Option{
		timeline.WithLogger(a.log),
		timeline.WithGate(a.gate),
		timeline.WithPageSize(a.cfg.PageSize),
		timeline.WithMaxRows(a.cfg.MaxTimelineRows),
	}
	if a.opts.RunIDs != nil {
		opts = append(opts, timeline.WithRunIDs(a.opts.RunIDs))
	}
	return timeline.NewCachedEngine(a.store, src, opts...)
}

func (a *app) notificationSyncer(src Sources, bus *events.Bus) *notify.Syncer {
	opts := []notify.Option{
		notify.WithLogger(a.log),
		notify.WithGate(a.gate),
		notify.WithPageSize(a.cfg.NotificationPageSize),
		notify.WithMaxNotifications(a.cfg.MaxNotifications),
		notify.WithExcludeTypes(a.cfg.NotificationExcludes()...),
	}
	if bus != nil {
		opts = append(opts, notify.WithBus(bus))
	}
	if a.opts.RunIDs != nil {
		opts = append(opts, notify.WithRunIDs(a.opts.RunIDs))
	}
	return notify.New(a.store, src.Notifications, src.Markers, opts...)
}

// loadFailed maps a Failure to the command's exit error.
func loadFailed(op string, res timeline.LoadResult) error {
	if err := timeline.Err(res); err != nil {
		return WrapExitError(ExitFailure, op+" failed", err)
	}
	return nil
}

// exactArgs is cobra.ExactArgs reporting a command error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("usage: %s", cmd.UseLine()), err)
		}
		return nil
	}
}
