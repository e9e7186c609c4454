// Package poller keeps a continuously refreshed snapshot of one remote
// operation. A Poller fetches immediately on Start, then spawns an
// independent fetch on every tick of a fixed-period timer. Overlapping
// fetches are neither coalesced nor cancelled: the most recently resolved
// result wins. Once stopped, late results are discarded.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

const unknownError = "Unknown error"

// FetchFunc loads one snapshot.
type FetchFunc[T any] func(ctx context.Context) (*T, error)

// State is the consumer-visible view of a poller.
//
// Loading is true only until the first attempt resolves. Data is never
// rolled back by a failure; Error holds the message of the latest attempt
// and is cleared by the next success. UpdatedAt is the time of the last
// successful resolution.
type State[T any] struct {
	Data      *T        `json:"data"`
	Error     string    `json:"error,omitempty"`
	Loading   bool      `json:"loading"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// Observer is notified after every resolved fetch, applied or not.
type Observer interface {
	ObservePoll(name string, err error, started time.Time)
}

type noopObserver struct{}

func (noopObserver) ObservePoll(string, error, time.Time) {}

type Option func(*options)

type options struct {
	pool     pond.Pool
	observer Observer
	logger   *zap.Logger
}

// WithPool runs fetches on a shared pool. Without it every poller owns a
// small pool of its own.
func WithPool(pool pond.Pool) Option {
	return func(o *options) { o.pool = pool }
}

func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

type Poller[T any] struct {
	name     string
	fetch    FetchFunc[T]
	interval time.Duration

	pool      pond.Pool
	ownsPool  bool
	observer  Observer
	logger    *zap.Logger
	listeners *xsync.Map[uint64, func(State[T])]
	nextID    atomic.Uint64

	// applyMu serializes state transitions together with their notifications
	// so listeners observe states in resolution order.
	applyMu sync.Mutex

	mu      sync.RWMutex
	state   State[T]
	started bool
	alive   bool
	cancel  context.CancelFunc

	wg sync.WaitGroup
}

// New builds a poller. A non-positive interval fetches once on Start and
// never again.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], opts ...Option) *Poller[T] {
	o := options{
		observer: noopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	p := &Poller[T]{
		name:      name,
		fetch:     fetch,
		interval:  interval,
		pool:      o.pool,
		observer:  o.observer,
		logger:    o.logger.With(zap.String("poller", name)),
		listeners: xsync.NewMap[uint64, func(State[T])](),
		state:     State[T]{Loading: true},
	}
	if p.pool == nil {
		p.pool = pond.NewPool(4)
		p.ownsPool = true
	}
	return p
}

func (p *Poller[T]) Name() string { return p.name }

func (p *Poller[T]) Interval() time.Duration { return p.interval }

// State returns a copy of the current state.
func (p *Poller[T]) State() State[T] {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe registers fn to receive every applied state. The returned func
// removes the subscription and is safe to call more than once.
func (p *Poller[T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	id := p.nextID.Add(1)
	p.listeners.Store(id, fn)
	return func() { p.listeners.Delete(id) }
}

// Start issues the first fetch immediately and, for a positive interval,
// schedules further fetches at a fixed period measured from Start. The
// poller stops when ctx is cancelled or Stop is called. Calling Start twice
// is a no-op.
func (p *Poller[T]) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.alive = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.logger.Debug("poller started", zap.Duration("interval", p.interval))
	p.spawn(ctx)

	if p.interval <= 0 {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.spawn(ctx)
			}
		}
	}()
}

// Stop cancels the timer and in-flight fetches. Results that resolve after
// Stop are not applied. Stop is idempotent.
func (p *Poller[T]) Stop() {
	p.mu.Lock()
	wasAlive := p.alive
	p.alive = false
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()

	if wasAlive {
		if p.ownsPool {
			p.pool.Stop()
		}
		p.logger.Debug("poller stopped")
	}
}

func (p *Poller[T]) spawn(ctx context.Context) {
	// A stopped pool rejects the task, which is the same as a tick after teardown.
	p.pool.Submit(func() {
		p.load(ctx)
	})
}

func (p *Poller[T]) load(ctx context.Context) {
	started := time.Now()
	data, err := p.fetch(ctx)
	p.observer.ObservePoll(p.name, err, started)

	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if !p.alive || ctx.Err() != nil {
		p.mu.Unlock()
		p.logger.Debug("discarding result after teardown")
		return
	}
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = unknownError
		}
		p.state.Error = msg
	} else {
		p.state.Data = data
		p.state.Error = ""
		p.state.UpdatedAt = time.Now()
	}
	p.state.Loading = false
	snapshot := p.state
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("poll failed", zap.Error(err))
	}

	p.listeners.Range(func(_ uint64, fn func(State[T])) bool {
		fn(snapshot)
		return true
	})
}
