// Package worker runs periodic timeline refreshes and notification syncs
// for a set of accounts.
//
// Jobs go through one FIFO processed by a single Run loop. An account whose
// job fails is backed off exponentially; its jobs are skipped until the
// delay has passed, and the first success resets it.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/roach88/feedkeep/internal/model"
	"github.com/roach88/feedkeep/internal/timeline"
)

// Timeline is the engine a refresh job drives.
type Timeline interface {
	Load(ctx context.Context, acct model.AccountScope, dir timeline.Direction, bottomID string) timeline.LoadResult
}

// Notifications is the syncer a notification job drives.
type Notifications interface {
	Sync(ctx context.Context, acct model.AccountScope) ([]model.Notification, error)
}

// Stats counts processed jobs.
type Stats struct {
	Succeeded int
	Failed    int
	// Skipped jobs arrived while their account was backing off.
	Skipped int
}

// Worker schedules and runs background jobs.
type Worker struct {
	queue    *jobQueue
	timeline Timeline
	notes    Notifications
	accounts []model.AccountScope
	opts     options

	mu     sync.Mutex
	states map[model.AccountScope]*accountState
	stats  Stats
}

type accountState struct {
	bo        backoff.BackOff
	notBefore time.Time
}

// New returns a Worker for accounts. notes may be nil to skip notification
// jobs.
func New(tl Timeline, notes Notifications, accounts []model.AccountScope, opts ...Option) *Worker {
	return &Worker{
		queue:    newJobQueue(),
		timeline: tl,
		notes:    notes,
		accounts: accounts,
		opts:     buildOptions(opts),
		states:   make(map[model.AccountScope]*accountState),
	}
}

// Enqueue schedules one job. It returns false after Stop.
func (w *Worker) Enqueue(kind Kind, acct model.AccountScope) bool {
	return w.queue.Enqueue(kind, acct)
}

// Schedule enqueues a round of jobs for every account.
func (w *Worker) Schedule() {
	for _, acct := range w.accounts {
		w.queue.Enqueue(KindRefresh, acct)
		if w.notes != nil {
			w.queue.Enqueue(KindNotifications, acct)
		}
	}
}

// Run processes jobs until ctx ends or Stop is called, scheduling a round
// immediately and then every interval. A zero interval only runs jobs
// added with Enqueue or Schedule.
func (w *Worker) Run(ctx context.Context) error {
	log := w.opts.logger
	log.Info("worker starting", "accounts", len(w.accounts), "interval", w.opts.interval)

	var tick <-chan time.Time
	if w.opts.interval > 0 {
		ticker := time.NewTicker(w.opts.interval)
		defer ticker.Stop()
		tick = ticker.C
		w.Schedule()
	}

	for {
		if job, ok := w.queue.TryDequeue(); ok {
			w.process(ctx, job)
			continue
		}

		select {
		case <-ctx.Done():
			log.Info("worker stopping: context cancelled")
			w.queue.Close()
			return ctx.Err()
		case <-tick:
			w.Schedule()
		case <-w.queue.Wait():
			if w.queue.Done() {
				log.Info("worker stopping: queue closed")
				return nil
			}
		}
	}
}

// Drain processes queued jobs until none are left.
func (w *Worker) Drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, ok := w.queue.TryDequeue()
		if !ok {
			return
		}
		w.process(ctx, job)
	}
}

// Stop closes the queue; Run returns once it has drained.
func (w *Worker) Stop() {
	w.queue.Close()
}

// Stats returns the job counters so far.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Pending returns the number of queued jobs.
func (w *Worker) Pending() int {
	return w.queue.Len()
}

func (w *Worker) process(ctx context.Context, job Job) {
	log := w.opts.logger.With("job", job.Kind.String(), "account", job.Account.Key(), "seq", job.Seq)

	if wait := w.delay(job.Account); wait > 0 {
		log.Debug("skipping job while backing off", "remaining", wait)
		w.count(func(s *Stats) { s.Skipped++ })
		return
	}

	err := w.runJob(ctx, job)
	if err == nil {
		w.succeeded(job.Account)
		return
	}
	next := w.failed(job.Account)
	log.Warn("job failed", "error", err, "retry_in", next)
}

func (w *Worker) runJob(ctx context.Context, job Job) error {
	switch job.Kind {
	case KindRefresh:
		return timeline.Err(w.timeline.Load(ctx, job.Account, timeline.Refresh, ""))
	case KindNotifications:
		if w.notes == nil {
			return nil
		}
		_, err := w.notes.Sync(ctx, job.Account)
		return err
	}
	return fmt.Errorf("unknown job kind %d", job.Kind)
}

func (w *Worker) state(acct model.AccountScope) *accountState {
	s, ok := w.states[acct]
	if !ok {
		s = &accountState{bo: w.opts.newBackOff()}
		w.states[acct] = s
	}
	return s
}

func (w *Worker) delay(acct model.AccountScope) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state(acct).notBefore.Sub(w.opts.now())
}

func (w *Worker) succeeded(acct model.AccountScope) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state(acct)
	s.bo.Reset()
	s.notBefore = time.Time{}
	w.stats.Succeeded++
}

// failed pushes acct's next attempt back and returns the delay.
func (w *Worker) failed(acct model.AccountScope) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := w.state(acct)
	d := s.bo.NextBackOff()
	if d == backoff.Stop {
		d = w.opts.maxDelay
	}
	s.notBefore = w.opts.now().Add(d)
	w.stats.Failed++
	return d
}

func (w *Worker) count(fn func(*Stats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}
