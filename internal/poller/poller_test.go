package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Value string
}

func collect[T any](p *Poller[T]) (<-chan State[T], func()) {
	ch := make(chan State[T], 64)
	unsubscribe := p.Subscribe(func(s State[T]) {
		select {
		case ch <- s:
		default:
		}
	})
	return ch, unsubscribe
}

func next[T any](t *testing.T, ch <-chan State[T]) State[T] {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state")
		return State[T]{}
	}
}

func TestInitialStateIsLoading(t *testing.T) {
	p := New("idle", time.Minute, func(context.Context) (*snapshot, error) {
		return &snapshot{}, nil
	})
	s := p.State()
	assert.True(t, s.Loading)
	assert.Nil(t, s.Data)
	assert.Empty(t, s.Error)
	assert.True(t, s.UpdatedAt.IsZero())
}

func TestFirstFetchIsImmediate(t *testing.T) {
	want := &snapshot{Value: "tvl"}
	p := New("tvl", time.Hour, func(context.Context) (*snapshot, error) {
		return want, nil
	})
	states, _ := collect(p)

	p.Start(context.Background())
	defer p.Stop()

	s := next(t, states)
	assert.Same(t, want, s.Data)
	assert.Empty(t, s.Error)
	assert.False(t, s.Loading)
	assert.False(t, s.UpdatedAt.IsZero())
	assert.Equal(t, s, p.State())
}

func TestFirstFetchFailure(t *testing.T) {
	p := New("explorer", time.Hour, func(context.Context) (*snapshot, error) {
		return nil, errors.New("failed to fetch explorer summary: 503")
	})
	states, _ := collect(p)

	p.Start(context.Background())
	defer p.Stop()

	s := next(t, states)
	assert.Nil(t, s.Data)
	assert.Equal(t, "failed to fetch explorer summary: 503", s.Error)
	assert.False(t, s.Loading)
}

func TestEmptyErrorMessage(t *testing.T) {
	p := New("blank", time.Hour, func(context.Context) (*snapshot, error) {
		return nil, errors.New("")
	})
	states, _ := collect(p)

	p.Start(context.Background())
	defer p.Stop()

	assert.Equal(t, "Unknown error", next(t, states).Error)
}

func TestStaleWhileFailedAndRecovery(t *testing.T) {
	script := []error{nil, errors.New("boom"), nil}
	var calls atomic.Int32
	p := New("feed", 10*time.Millisecond, func(ctx context.Context) (*snapshot, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(script) {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		if script[n] != nil {
			return nil, script[n]
		}
		return &snapshot{Value: string(rune('a' + n))}, nil
	})
	states, _ := collect(p)

	p.Start(context.Background())
	defer p.Stop()

	first := next(t, states)
	require.NotNil(t, first.Data)
	assert.Equal(t, "a", first.Data.Value)
	assert.Empty(t, first.Error)

	failed := next(t, states)
	assert.Same(t, first.Data, failed.Data, "failure must not roll back data")
	assert.Equal(t, "boom", failed.Error)
	assert.Equal(t, first.UpdatedAt, failed.UpdatedAt)
	assert.False(t, failed.Loading)

	recovered := next(t, states)
	require.NotNil(t, recovered.Data)
	assert.Equal(t, "c", recovered.Data.Value)
	assert.Empty(t, recovered.Error)
	assert.False(t, recovered.UpdatedAt.Before(failed.UpdatedAt))
}

func TestLastResolvedWins(t *testing.T) {
	releaseFirst := make(chan struct{})
	var calls atomic.Int32
	p := New("race", 20*time.Millisecond, func(ctx context.Context) (*snapshot, error) {
		switch calls.Add(1) {
		case 1:
			<-releaseFirst
			return &snapshot{Value: "issued-first"}, nil
		case 2:
			return &snapshot{Value: "issued-second"}, nil
		default:
			<-ctx.Done()
			return nil, ctx.Err()
		}
	})
	states, _ := collect(p)

	p.Start(context.Background())
	defer p.Stop()

	s := next(t, states)
	assert.Equal(t, "issued-second", s.Data.Value)

	close(releaseFirst)
	s = next(t, states)
	assert.Equal(t, "issued-first", s.Data.Value)
	assert.Equal(t, "issued-first", p.State().Data.Value)
}

func TestNoUpdateAfterStop(t *testing.T) {
	pool := pond.NewPool(2)
	release := make(chan struct{})
	entered := make(chan struct{})

	p := New("late", time.Hour, func(context.Context) (*snapshot, error) {
		close(entered)
		// ignores cancellation to simulate a result that resolves late
		<-release
		return &snapshot{Value: "late"}, nil
	}, WithPool(pool))

	var notified atomic.Bool
	p.Subscribe(func(State[snapshot]) { notified.Store(true) })

	p.Start(context.Background())
	<-entered
	p.Stop()

	close(release)
	pool.StopAndWait()

	s := p.State()
	assert.True(t, s.Loading)
	assert.Nil(t, s.Data)
	assert.False(t, notified.Load())
}

func TestContextCancellationStopsPolling(t *testing.T) {
	var calls atomic.Int32
	p := New("ctx", 5*time.Millisecond, func(context.Context) (*snapshot, error) {
		calls.Add(1)
		return &snapshot{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 2*time.Second, time.Millisecond)

	cancel()
	p.Stop()
	time.Sleep(20 * time.Millisecond)
	settled := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, calls.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	p := New("twice", time.Millisecond, func(context.Context) (*snapshot, error) {
		return &snapshot{}, nil
	})
	p.Stop()
	p.Start(context.Background())
	p.Stop()
	assert.NotPanics(t, p.Stop)
}

func TestZeroIntervalFetchesOnce(t *testing.T) {
	var calls atomic.Int32
	p := New("once", 0, func(context.Context) (*snapshot, error) {
		calls.Add(1)
		return &snapshot{}, nil
	})
	states, _ := collect(p)

	p.Start(context.Background())
	defer p.Stop()
	next(t, states)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, time.Duration(0), p.Interval())
	assert.Equal(t, "once", p.Name())
}

func TestUnsubscribe(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	p := New("subs", 5*time.Millisecond, func(context.Context) (*snapshot, error) {
		return &snapshot{}, nil
	})
	unsubscribe := p.Subscribe(func(State[snapshot]) {
		mu.Lock()
		seen++
		mu.Unlock()
	})
	unsubscribe()
	unsubscribe()

	p.Start(context.Background())
	require.Eventually(t, func() bool { return !p.State().Loading }, 2*time.Second, time.Millisecond)
	p.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, seen)
}

type observed struct {
	name string
	err  error
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []observed
}

func (r *recordingObserver) ObservePoll(name string, err error, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, observed{name: name, err: err})
}

func (r *recordingObserver) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	obs := &recordingObserver{}
	p := New("observed", time.Hour, func(context.Context) (*snapshot, error) {
		return nil, errors.New("down")
	}, WithObserver(obs))
	states, _ := collect(p)

	p.Start(context.Background())
	defer p.Stop()
	next(t, states)

	require.Equal(t, 1, obs.len())
	assert.Equal(t, "observed", obs.calls[0].name)
	assert.EqualError(t, obs.calls[0].err, "down")
}
