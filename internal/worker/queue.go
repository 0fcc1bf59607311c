package worker

import (
	"sync"

	"github.com/roach88/feedkeep/internal/model"
)

// Kind names a background job.
type Kind int

const (
	// KindRefresh runs a timeline Refresh.
	KindRefresh Kind = iota + 1
	// KindNotifications runs a notification sync.
	KindNotifications
)

func (k Kind) String() string {
	switch k {
	case KindRefresh:
		return "refresh"
	case KindNotifications:
		return "notifications"
	}
	return "unknown"
}

// Job is one unit of background work for an account.
type Job struct {
	Kind    Kind
	Account model.AccountScope
	// Seq is stamped on enqueue and increases strictly.
	Seq int64
}

type jobKey struct {
	kind Kind
	acct model.AccountScope
}

// jobQueue is a FIFO of jobs with at most one pending job per kind and
// account. A job enqueued while an identical one is waiting is dropped;
// the waiting one does the same work.
//
// Safe for concurrent use. The signal channel lets Run wait on it together
// with ctx.
type jobQueue struct {
	mu      sync.Mutex
	jobs    []Job
	pending map[jobKey]bool
	seq     int64
	closed  bool
	signal  chan struct{} // buffered, size 1
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		pending: make(map[jobKey]bool),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds a job for kind and acct. It returns false once the queue is
// closed.
func (q *jobQueue) Enqueue(kind Kind, acct model.AccountScope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	key := jobKey{kind, acct}
	if q.pending[key] {
		return true
	}
	q.pending[key] = true
	q.seq++
	q.jobs = append(q.jobs, Job{Kind: kind, Account: acct, Seq: q.seq})

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front job without blocking.
func (q *jobQueue) TryDequeue() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return Job{}, false
	}
	j := q.jobs[0]
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	delete(q.pending, jobKey{j.Kind, j.Account})
	return j, true
}

// Wait returns a channel that fires when jobs may be available, and is
// closed once the queue is.
func (q *jobQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Done reports whether the queue is closed and drained.
func (q *jobQueue) Done() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.jobs) == 0
}

func (q *jobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
