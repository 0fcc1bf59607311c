package timeline

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/feedkeep/internal/runid"
)

const (
	// DefaultPageSize matches the home timeline's server-side maximum.
	DefaultPageSize = 40
	// DefaultMaxRows bounds the cached timeline per account.
	DefaultMaxRows = 1000

	tracerName = "github.com/roach88/feedkeep/internal/timeline"
)

type options struct {
	logger   *slog.Logger
	tracer   trace.Tracer
	runIDs   runid.Generator
	gate     *Gate
	pageSize int
	maxRows  int
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		runIDs:   runid.UUIDv7{},
		pageSize: DefaultPageSize,
		maxRows:  DefaultMaxRows,
	}
}

// Option configures an engine.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer sets the tracer. Defaults to the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithRunIDs sets the generator for the run_id log attribute.
func WithRunIDs(g runid.Generator) Option {
	return func(o *options) { o.runIDs = g }
}

// WithGate shares a Gate between engines writing the same store. Each
// engine creates its own otherwise.
func WithGate(g *Gate) Option {
	return func(o *options) { o.gate = g }
}

// WithPageSize sets how many items each fetch requests.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithMaxRows sets the retention limit applied after each Refresh. Zero
// disables pruning.
func WithMaxRows(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRows = n
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.gate == nil {
		o.gate = NewGate()
	}
	return o
}
