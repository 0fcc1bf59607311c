package notify

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/feedkeep/internal/events"
	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/runid"
	"github.com/roach88/feedkeep/internal/timeline"
)

const (
	// DefaultPageSize is the notifications endpoint's server-side maximum.
	DefaultPageSize = 80
	// DefaultMaxNotifications bounds the cached notifications per account.
	DefaultMaxNotifications = 500

	tracerName = "github.com/roach88/feedkeep/internal/notify"
)

// Gate serializes work per account and coalesces duplicate requests.
// *timeline.Gate implements it; share one between the timeline engines and
// the Syncer so every writer of an account's rows goes through it.
type Gate interface {
	Do(ctx context.Context, acct model.AccountScope, key string, fn func(ctx context.Context) (any, error)) (v any, err error, shared bool)
}

type options struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	runIDs   runid.Generator
	gate     Gate
	bus      *events.Bus
	exclude  []model.NotificationType
	pageSize int
	maxRows  int
}

// Option configures a Syncer.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer sets the tracer. Defaults to the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRunIDs sets the generator for run ids.
func WithRunIDs(g runid.Generator) Option {
	return func(o *options) { o.runIDs = g }
}

// WithGate shares g with other writers of the same store.
func WithGate(g Gate) Option {
	return func(o *options) { o.gate = g }
}

// WithBus publishes each successful sync's batch on b.
func WithBus(b *events.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithExcludeTypes drops these types from returned and published batches.
// They are still cached.
func WithExcludeTypes(types ...model.NotificationType) Option {
	return func(o *options) { o.exclude = append(o.exclude, types...) }
}

// WithPageSize sets the request limit. Values <= 0 are ignored.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithMaxNotifications sets how many notifications are kept per account.
// Zero disables pruning.
func WithMaxNotifications(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRows = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		runIDs:   runid.UUIDv7{},
		pageSize: DefaultPageSize,
		maxRows:  DefaultMaxNotifications,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.gate == nil {
		o.gate = timeline.NewGate()
	}
	return o
}
