package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/web3-frozen/citrea-watch/internal/api"
	"github.com/web3-frozen/citrea-watch/internal/poller"
)

const defaultWorkers = 64

// Intervals holds the refresh period per feed.
type Intervals struct {
	GlobalTvl        time.Duration
	TvlHistory       time.Duration
	BridgeSummary    time.Duration
	BridgeTimeseries time.Duration
	Gas              time.Duration
	Explorer         time.Duration
}

func DefaultIntervals() Intervals {
	return Intervals{
		GlobalTvl:        30 * time.Second,
		TvlHistory:       60 * time.Second,
		BridgeSummary:    60 * time.Second,
		BridgeTimeseries: 10 * time.Minute,
		Gas:              10 * time.Minute,
		Explorer:         5 * time.Second,
	}
}

// withDefaults fills zero intervals. A negative interval disables
// re-polling for that feed.
func (iv Intervals) withDefaults() Intervals {
	d := DefaultIntervals()
	pick := func(v, def time.Duration) time.Duration {
		if v == 0 {
			return def
		}
		return v
	}
	return Intervals{
		GlobalTvl:        pick(iv.GlobalTvl, d.GlobalTvl),
		TvlHistory:       pick(iv.TvlHistory, d.TvlHistory),
		BridgeSummary:    pick(iv.BridgeSummary, d.BridgeSummary),
		BridgeTimeseries: pick(iv.BridgeTimeseries, d.BridgeTimeseries),
		Gas:              pick(iv.Gas, d.Gas),
		Explorer:         pick(iv.Explorer, d.Explorer),
	}
}

type Config struct {
	Intervals    Intervals
	HistoryHours int
	// Workers bounds concurrent fetches across all feeds.
	Workers  int
	Observer poller.Observer
}

// Engine owns the dashboard pollers. Each feed polls independently; the
// engine only starts and stops them together and fans in change
// notifications.
type Engine struct {
	logger  *zap.Logger
	pool    pond.Pool
	subPool pond.Pool

	globalTvl        *poller.Poller[api.GlobalTvl]
	tvlHistory       *poller.Poller[api.TvlHistory]
	bridgeSummary    *poller.Poller[api.BridgeSummary]
	bridgeTimeseries *poller.Poller[api.BridgeTimeseries]
	gas              *poller.Poller[GasData]
	explorer         *poller.Poller[api.ExplorerSummary]

	feeds     []feed
	listeners *xsync.Map[uint64, func(feed string)]
	nextID    atomic.Uint64
}

func NewEngine(client Client, logger *zap.Logger, cfg Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	iv := cfg.Intervals.withDefaults()
	hours := cfg.HistoryHours
	if hours <= 0 {
		hours = api.DefaultHistoryHours
	}

	e := &Engine{
		logger:    logger,
		pool:      pond.NewPool(workers),
		subPool:   pond.NewPool(workers),
		listeners: xsync.NewMap[uint64, func(string)](),
	}

	opts := []poller.Option{
		poller.WithPool(e.pool),
		poller.WithLogger(logger.Named("poller")),
	}
	if cfg.Observer != nil {
		opts = append(opts, poller.WithObserver(cfg.Observer))
	}

	e.globalTvl = register(e, poller.New(FeedGlobalTvl, iv.GlobalTvl, client.FetchGlobalTvl, opts...))
	e.tvlHistory = register(e, poller.New(FeedTvlHistory, iv.TvlHistory,
		func(ctx context.Context) (*api.TvlHistory, error) {
			return client.FetchTvlHistory(ctx, hours)
		}, opts...))
	e.bridgeSummary = register(e, poller.New(FeedBridgeSummary, iv.BridgeSummary, client.FetchBridgeSummary, opts...))
	e.bridgeTimeseries = register(e, poller.New(FeedBridgeTimeseries, iv.BridgeTimeseries, client.FetchBridgeTimeseries, opts...))
	e.gas = register(e, poller.New(FeedGas, iv.Gas,
		poller.Join(e.subPool, client.FetchGasTimeseries, client.FetchGasHeatmap), opts...))
	e.explorer = register(e, poller.New(FeedExplorerSummary, iv.Explorer, client.FetchExplorerSummary, opts...))

	return e
}

// register adds p to the engine's feeds and forwards its changes.
func register[T any](e *Engine, p *poller.Poller[T]) *poller.Poller[T] {
	e.feeds = append(e.feeds, p)
	name := p.Name()
	p.Subscribe(func(poller.State[T]) {
		e.listeners.Range(func(_ uint64, fn func(string)) bool {
			fn(name)
			return true
		})
	})
	e.logger.Info("registered feed", zap.String("feed", name), zap.Duration("interval", p.Interval()))
	return p
}

// Names returns the feed names in registration order.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.feeds))
	for _, f := range e.feeds {
		names = append(names, f.Name())
	}
	return names
}

// OnChange registers fn to run with the feed name after any feed applies a
// new state.
func (e *Engine) OnChange(fn func(feed string)) (unsubscribe func()) {
	id := e.nextID.Add(1)
	e.listeners.Store(id, fn)
	return func() { e.listeners.Delete(id) }
}

func (e *Engine) GlobalTvl() *poller.Poller[api.GlobalTvl] { return e.globalTvl }
func (e *Engine) TvlHistory() *poller.Poller[api.TvlHistory] { return e.tvlHistory }
func (e *Engine) BridgeSummary() *poller.Poller[api.BridgeSummary] { return e.bridgeSummary }
func (e *Engine) BridgeTimeseries() *poller.Poller[api.BridgeTimeseries] { return e.bridgeTimeseries }
func (e *Engine) Gas() *poller.Poller[GasData] { return e.gas }
func (e *Engine) ExplorerSummary() *poller.Poller[api.ExplorerSummary] { return e.explorer }

// Run starts every feed and blocks until ctx is cancelled, then stops them
// and drains the worker pools.
func (e *Engine) Run(ctx context.Context) {
	for _, f := range e.feeds {
		f.Start(ctx)
	}
	e.logger.Info("engine started", zap.Strings("feeds", e.Names()))

	<-ctx.Done()

	for _, f := range e.feeds {
		f.Stop()
	}
	e.pool.StopAndWait()
	e.subPool.StopAndWait()
	e.logger.Info("engine stopped")
}
