package timeline

import (
	"context"
	"sync"

	"github.com/roach88/feedkeep/internal/model"
)

// Gate serializes work per account and coalesces duplicate requests.
//
// Work for different accounts never blocks each other. A Gate is shared by
// every engine writing to the same store.
type Gate struct {
	mu    sync.Mutex
	slots map[model.AccountScope]chan struct{}
	calls map[string]*call
}

// call is one in-flight unit of work and the callers waiting on it.
type call struct {
	done   chan struct{}
	cancel context.CancelFunc

	// Set before done is closed.
	val any
	err error

	// Guarded by Gate.mu.
	waiters int
	dups    int
}

// NewGate returns an empty Gate.
func NewGate() *Gate {
	return &Gate{
		slots: make(map[model.AccountScope]chan struct{}),
		calls: make(map[string]*call),
	}
}

func (g *Gate) slot(acct model.AccountScope) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[acct]
	if !ok {
		s = make(chan struct{}, 1)
		g.slots[acct] = s
	}
	return s
}

// Do runs fn holding acct's slot. Callers passing the same acct and key
// while a call is in flight wait for it and share its result; shared
// reports whether that happened.
//
// fn runs under a context that keeps the first caller's values but none of
// its deadlines. A caller whose ctx ends while others still wait returns
// ctx.Err() at once. When the last waiting caller's ctx ends, fn's context
// is cancelled and that caller still gets fn's result, so work fn chose to
// finish is reported as such.
func (g *Gate) Do(ctx context.Context, acct model.AccountScope, key string, fn func(ctx context.Context) (any, error)) (v any, err error, shared bool) {
	if err := ctx.Err(); err != nil {
		return nil, err, false
	}
	k := acct.Key() + "\x00" + key

	g.mu.Lock()
	c, ok := g.calls[k]
	if ok {
		c.waiters++
		c.dups++
	} else {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c = &call{done: make(chan struct{}), cancel: cancel, waiters: 1}
		g.calls[k] = c
		go g.run(runCtx, acct, k, c, fn)
	}
	g.mu.Unlock()

	select {
	case <-c.done:
	case <-ctx.Done():
		if !g.leave(k, c) {
			return nil, ctx.Err(), ok
		}
		<-c.done
	}
	g.mu.Lock()
	shared = c.dups > 0
	g.mu.Unlock()
	return c.val, c.err, shared
}

// leave drops one waiter from c and reports whether it was the last. The
// last one out cancels the work and unlists it so later callers start
// afresh.
func (g *Gate) leave(k string, c *call) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	c.waiters--
	if c.waiters > 0 {
		return false
	}
	if g.calls[k] == c {
		delete(g.calls, k)
	}
	c.cancel()
	return true
}

func (g *Gate) run(ctx context.Context, acct model.AccountScope, k string, c *call, fn func(context.Context) (any, error)) {
	defer func() {
		g.mu.Lock()
		if g.calls[k] == c {
			delete(g.calls, k)
		}
		g.mu.Unlock()
		c.cancel()
		close(c.done)
	}()

	slot := g.slot(acct)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		c.err = ctx.Err()
		return
	}
	defer func() { <-slot }()
	c.val, c.err = fn(ctx)
}
