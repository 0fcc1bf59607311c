package worker

import (
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultInterval is the time between scheduled rounds.
	DefaultInterval = 5 * time.Minute
	// DefaultMaxDelay caps the per-account backoff.
	DefaultMaxDelay = time.Hour
)

type options struct {
	logger     *slog.Logger
	interval   time.Duration
	maxDelay   time.Duration
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

// Option configures a Worker.
type Option func(*options)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithInterval sets the time between scheduled rounds. Zero disables
// scheduling.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.interval = d
		}
	}
}

// WithMaxDelay caps the backoff delay of a failing account.
func WithMaxDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.maxDelay = d
		}
	}
}

// WithBackOff sets the policy each account starts with.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(o *options) { o.newBackOff = fn }
}

// WithNow sets the time source used for backoff deadlines.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		interval: DefaultInterval,
		maxDelay: DefaultMaxDelay,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.newBackOff == nil {
		maxDelay := o.maxDelay
		o.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 30 * time.Second
			b.MaxInterval = maxDelay
			b.MaxElapsedTime = 0
			return b
		}
	}
	return o
}
