package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/web3-frozen/citrea-watch/internal/poller"
	"github.com/web3-frozen/citrea-watch/internal/rates"
	"github.com/web3-frozen/citrea-watch/internal/store"
)

// ClassNoAnimations is added to the root class list when animations are off.
const ClassNoAnimations = "no-animations"

type Option func(*Provider)

// WithRates refreshes exchange rates from src every interval while mounted.
func WithRates(src rates.Source, interval time.Duration, opts ...poller.Option) Option {
	return func(p *Provider) {
		p.rates = poller.New("exchange_rates", interval, src.Fetch, opts...)
	}
}

// Provider is the single process-wide holder of user preferences. It must
// be mounted before use; until then accessors report defaults and Mounted
// is false.
type Provider struct {
	kv     store.KV
	scheme ColorScheme
	logger *zap.Logger
	rates  *poller.Poller[rates.Snapshot]

	// persistMu orders merges with their writes so the stored record is
	// always the latest in-memory one.
	persistMu sync.Mutex

	mu                sync.RWMutex
	settings          UserSettings
	resolved          Theme
	mounted           bool
	closed            bool
	unsubscribeScheme func()

	listeners *xsync.Map[uint64, func()]
	nextID    atomic.Uint64
}

func NewProvider(kv store.KV, scheme ColorScheme, logger *zap.Logger, opts ...Option) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{
		kv:        kv,
		scheme:    scheme,
		logger:    logger,
		settings:  Defaults(),
		resolved:  ThemeDark,
		listeners: xsync.NewMap[uint64, func()](),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mount loads the stored record, resolves and applies the theme, starts the
// rate refresh and marks the provider mounted. ctx bounds the rate refresh.
// Absent or malformed stored data falls back to defaults without failing.
// Mount is a no-op once mounted.
func (p *Provider) Mount(ctx context.Context) error {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		return nil
	}
	if p.closed {
		p.mu.Unlock()
		return errors.New("settings provider closed")
	}

	loaded := p.load(ctx)
	p.settings = loaded
	p.applyTheme(p.resolveLocked(loaded.Theme))
	p.syncSchemeSubscriptionLocked()
	p.mounted = true
	p.mu.Unlock()

	if p.rates != nil {
		p.rates.Subscribe(func(poller.State[rates.Snapshot]) { p.notify() })
		p.rates.Start(ctx)
	}

	p.logger.Info("settings mounted",
		zap.String("theme", string(loaded.Theme)),
		zap.String("currency", string(loaded.Currency)),
		zap.String("refresh_rate", string(loaded.RefreshRate)),
	)
	p.notify()
	return nil
}

func (p *Provider) load(ctx context.Context) UserSettings {
	raw, err := p.kv.Get(ctx, StorageKey)
	if errors.Is(err, store.ErrNotFound) {
		return Defaults()
	}
	if err != nil {
		p.logger.Warn("read settings failed, using defaults", zap.Error(err))
		return Defaults()
	}
	s, err := Decode(raw)
	if err != nil {
		p.logger.Warn("stored settings malformed, using defaults", zap.Error(err))
	}
	return s
}

// Close tears down the scheme subscription and the rate refresh.
func (p *Provider) Close() {
	p.mu.Lock()
	p.closed = true
	if p.unsubscribeScheme != nil {
		p.unsubscribeScheme()
		p.unsubscribeScheme = nil
	}
	p.mu.Unlock()

	if p.rates != nil {
		p.rates.Stop()
	}
}

func (p *Provider) Mounted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mounted
}

func (p *Provider) Settings() UserSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settings
}

// ResolvedTheme is the effective light or dark theme.
func (p *Provider) ResolvedTheme() Theme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.resolved
}

// RefreshInterval is the configured refresh rate as a duration.
func (p *Provider) RefreshInterval() time.Duration {
	return p.Settings().RefreshRate.Duration()
}

// RootClass is the class list applied to the document root.
func (p *Provider) RootClass() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return rootClass(p.resolved, p.settings)
}

func rootClass(resolved Theme, s UserSettings) []string {
	classes := []string{string(resolved)}
	if !s.AnimationsEnabled {
		classes = append(classes, ClassNoAnimations)
	}
	return classes
}

// Rates returns the last successfully fetched snapshot, or Identity.
func (p *Provider) Rates() rates.Snapshot {
	if p.rates == nil {
		return rates.Identity()
	}
	if data := p.rates.State().Data; data != nil {
		return *data
	}
	return rates.Identity()
}

// Formatter derives formatting from the current settings and rates.
func (p *Provider) Formatter() Formatter {
	return NewFormatter(p.Settings(), p.Rates())
}

// OnChange registers fn to run after settings, theme or rates change.
func (p *Provider) OnChange(fn func()) (unsubscribe func()) {
	id := p.nextID.Add(1)
	p.listeners.Store(id, fn)
	return func() { p.listeners.Delete(id) }
}

// UpdateSetting merges one field, persists the full record and, for the
// theme, re-resolves and re-applies it. A persistence failure is returned
// but the in-memory update is kept.
func (p *Provider) UpdateSetting(ctx context.Context, key Key, value any) error {
	p.persistMu.Lock()
	changed, err := p.mergeAndPersist(ctx, key, value)
	p.persistMu.Unlock()

	if changed {
		p.notify()
	}
	return err
}

// mergeAndPersist runs under persistMu. changed reports whether the
// in-memory record was updated, which holds even when the write fails.
func (p *Provider) mergeAndPersist(ctx context.Context, key Key, value any) (changed bool, err error) {
	p.mu.Lock()
	next := p.settings
	if err := next.Set(key, value); err != nil {
		p.mu.Unlock()
		return false, err
	}
	p.settings = next
	if key == KeyTheme {
		p.applyTheme(p.resolveLocked(next.Theme))
		p.syncSchemeSubscriptionLocked()
	}
	encoded, err := next.Encode()
	p.mu.Unlock()

	if err != nil {
		return true, fmt.Errorf("encode settings: %w", err)
	}
	if err := p.kv.Set(ctx, StorageKey, encoded); err != nil {
		p.logger.Error("persist settings failed", zap.String("key", string(key)), zap.Error(err))
		return true, fmt.Errorf("persist settings: %w", err)
	}
	p.logger.Debug("settings persisted", zap.String("key", string(key)))
	return true, nil
}

func (p *Provider) resolveLocked(t Theme) Theme {
	if t != ThemeSystem {
		return t
	}
	if p.scheme == nil || p.scheme.IsDark() {
		return ThemeDark
	}
	return ThemeLight
}

func (p *Provider) applyTheme(resolved Theme) {
	if p.resolved == resolved && p.mounted {
		return
	}
	p.resolved = resolved
	p.logger.Debug("theme applied", zap.Strings("class", rootClass(resolved, p.settings)))
}

// syncSchemeSubscriptionLocked keeps a scheme subscription exactly while the
// stored theme is system.
func (p *Provider) syncSchemeSubscriptionLocked() {
	wantSub := p.settings.Theme == ThemeSystem && p.scheme != nil && !p.closed
	switch {
	case wantSub && p.unsubscribeScheme == nil:
		p.unsubscribeScheme = p.scheme.Subscribe(p.onSchemeChange)
	case !wantSub && p.unsubscribeScheme != nil:
		p.unsubscribeScheme()
		p.unsubscribeScheme = nil
	}
}

// onSchemeChange re-reads the signal instead of trusting its argument, so
// notifications delivered out of order still settle on the current value.
func (p *Provider) onSchemeChange(bool) {
	p.mu.Lock()
	if p.settings.Theme != ThemeSystem || p.closed {
		p.mu.Unlock()
		return
	}
	p.applyTheme(p.resolveLocked(ThemeSystem))
	p.mu.Unlock()

	p.notify()
}

func (p *Provider) notify() {
	p.listeners.Range(func(_ uint64, fn func()) bool {
		fn()
		return true
	})
}
