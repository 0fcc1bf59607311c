package timeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/feedkeep/internal/model"
)

func TestGate_SerializesPerAccount(t *testing.T) {
	g := NewGate()
	var running, peak atomic.Int32

	var wg sync.WaitGroup
	for _, key := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err, _ := g.Do(context.Background(), acct, key, func(context.Context) (any, error) {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, peak.Load())
}

func TestGate_AccountsAreIndependent(t *testing.T) {
	g := NewGate()
	release := make(chan struct{})
	started := make(chan struct{})

	go g.Do(context.Background(), acct, "slow", func(context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started
	defer close(release)

	done := make(chan struct{})
	go func() {
		g.Do(context.Background(), model.AccountScope("bob@example.social"), "slow", func(context.Context) (any, error) {
			return nil, nil
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("other account blocked behind a busy one")
	}
}

func TestGate_CoalescesSameKey(t *testing.T) {
	g := NewGate()
	release := make(chan struct{})
	started := make(chan struct{})
	var calls atomic.Int32

	fn := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "done", nil
	}

	leader := make(chan bool, 1)
	go func() {
		_, _, shared := g.Do(context.Background(), acct, "k", fn)
		leader <- shared
	}()
	<-started

	follower := make(chan any, 1)
	go func() {
		v, _, shared := g.Do(context.Background(), acct, "k", fn)
		assert.True(t, shared)
		follower <- v
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)

	assert.True(t, <-leader)
	assert.Equal(t, "done", <-follower)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGate_CancelledWhileWaitingForSlot(t *testing.T) {
	g := NewGate()
	release := make(chan struct{})
	started := make(chan struct{})
	defer close(release)

	go g.Do(context.Background(), acct, "busy", func(context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	_, err, _ := g.Do(ctx, acct, "other", func(context.Context) (any, error) {
		ran = true
		return nil, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestGate_CoalescedCallerSurvivesFirstCallerCancel(t *testing.T) {
	g := NewGate()
	release := make(chan struct{})
	started := make(chan struct{})

	go g.Do(context.Background(), acct, "prune", func(context.Context) (any, error) {
		close(started)
		<-release
		return nil, nil
	})
	<-started

	var calls atomic.Int32
	fn := func(ctx context.Context) (any, error) {
		calls.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return "refreshed", nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err, _ := g.Do(firstCtx, acct, "refresh", fn)
		first <- err
	}()

	type outcome struct {
		v      any
		err    error
		shared bool
	}
	second := make(chan outcome, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		v, err, shared := g.Do(context.Background(), acct, "refresh", fn)
		second <- outcome{v, err, shared}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-first, context.Canceled)
	close(release)

	select {
	case got := <-second:
		require.NoError(t, got.err)
		assert.Equal(t, "refreshed", got.v)
		assert.True(t, got.shared)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller never got a result")
	}
	assert.EqualValues(t, 1, calls.Load())
}

func TestGate_WorkCancelledWhenEveryCallerLeaves(t *testing.T) {
	g := NewGate()
	started := make(chan struct{})
	stopped := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err, _ := g.Do(ctx, acct, "refresh", func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			stopped <- ctx.Err()
			return nil, ctx.Err()
		})
		done <- err
	}()
	<-started

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("work kept running after its last caller left")
	}

	v, err, shared := g.Do(context.Background(), acct, "refresh", func(context.Context) (any, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.False(t, shared)
}

func TestGate_WorkKeepsCallerValues(t *testing.T) {
	type ctxKey struct{}
	g := NewGate()

	ctx := context.WithValue(context.Background(), ctxKey{}, "run-1")
	v, err, _ := g.Do(ctx, acct, "refresh", func(ctx context.Context) (any, error) {
		return ctx.Value(ctxKey{}), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", v)
}

func TestGate_LastCallerGetsFinishedWork(t *testing.T) {
	g := NewGate()
	started := make(chan struct{})
	release := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan any, 1)
	go func() {
		v, err, _ := g.Do(ctx, acct, "refresh", func(context.Context) (any, error) {
			close(started)
			<-release
			return "merged", nil
		})
		assert.NoError(t, err)
		done <- v
	}()
	<-started

	cancel()
	select {
	case v := <-done:
		t.Fatalf("returned %v before the work finished", v)
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	assert.Equal(t, "merged", <-done)
}
