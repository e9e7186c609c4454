package settings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/citrea-watch/internal/rates"
	"github.com/web3-frozen/citrea-watch/internal/store"
)

type failingKV struct {
	store.KV
	failSet bool
	failGet bool
}

func (f *failingKV) Get(ctx context.Context, key string) (string, error) {
	if f.failGet {
		return "", errors.New("disk unavailable")
	}
	return f.KV.Get(ctx, key)
}

func (f *failingKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.KV.Set(ctx, key, value)
}

func mountProvider(t *testing.T, kv store.KV, scheme ColorScheme, opts ...Option) *Provider {
	t.Helper()
	p := NewProvider(kv, scheme, nil, opts...)
	require.NoError(t, p.Mount(context.Background()))
	t.Cleanup(p.Close)
	return p
}

func TestMountDefaults(t *testing.T) {
	p := NewProvider(store.NewMemory(), NewSchemeSignal(false), nil)
	assert.False(t, p.Mounted())

	require.NoError(t, p.Mount(context.Background()))
	defer p.Close()

	assert.True(t, p.Mounted())
	assert.Equal(t, Defaults(), p.Settings())
	assert.Equal(t, ThemeDark, p.ResolvedTheme())
	assert.Equal(t, []string{"dark"}, p.RootClass())
	assert.Equal(t, 30*time.Second, p.RefreshInterval())
	assert.Equal(t, rates.Identity(), p.Rates())
}

func TestMountMalformedStoredRecord(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(context.Background(), StorageKey, "{oops"))

	p := mountProvider(t, kv, nil)
	assert.True(t, p.Mounted())
	assert.Equal(t, Defaults(), p.Settings())
}

func TestMountUnreadableStore(t *testing.T) {
	p := mountProvider(t, &failingKV{KV: store.NewMemory(), failGet: true}, nil)
	assert.True(t, p.Mounted())
	assert.Equal(t, Defaults(), p.Settings())
}

func TestThemeRoundTripAcrossReload(t *testing.T) {
	kv := store.NewMemory()
	scheme := NewSchemeSignal(true) // OS says dark

	first := mountProvider(t, kv, scheme)
	require.NoError(t, first.UpdateSetting(context.Background(), KeyTheme, "light"))
	assert.Equal(t, ThemeLight, first.ResolvedTheme())
	first.Close()

	reloaded := mountProvider(t, kv, scheme)
	assert.Equal(t, ThemeLight, reloaded.Settings().Theme)
	assert.Equal(t, ThemeLight, reloaded.ResolvedTheme())
	assert.Zero(t, scheme.Subscribers(), "explicit theme must not follow the OS signal")
}

func TestSystemThemeFollowsScheme(t *testing.T) {
	kv := store.NewMemory()
	scheme := NewSchemeSignal(false)
	p := mountProvider(t, kv, scheme)

	require.NoError(t, p.UpdateSetting(context.Background(), KeyTheme, "system"))
	assert.Equal(t, ThemeLight, p.ResolvedTheme())
	assert.Equal(t, 1, scheme.Subscribers())

	var changes atomic.Int32
	p.OnChange(func() { changes.Add(1) })

	scheme.Set(true)
	assert.Equal(t, ThemeDark, p.ResolvedTheme())
	assert.Equal(t, int32(1), changes.Load())

	require.NoError(t, p.UpdateSetting(context.Background(), KeyTheme, "light"))
	assert.Zero(t, scheme.Subscribers())

	scheme.Set(false)
	scheme.Set(true)
	assert.Equal(t, ThemeLight, p.ResolvedTheme())
}

func TestSystemThemeOnMount(t *testing.T) {
	kv := store.NewMemory()
	require.NoError(t, kv.Set(context.Background(), StorageKey, `{"theme":"system"}`))
	scheme := NewSchemeSignal(false)

	p := NewProvider(kv, scheme, nil)
	require.NoError(t, p.Mount(context.Background()))
	assert.Equal(t, ThemeLight, p.ResolvedTheme())
	assert.Equal(t, 1, scheme.Subscribers())

	p.Close()
	assert.Zero(t, scheme.Subscribers())
}

func TestSystemThemeWithoutSignal(t *testing.T) {
	p := mountProvider(t, store.NewMemory(), nil)
	require.NoError(t, p.UpdateSetting(context.Background(), KeyTheme, "system"))
	assert.Equal(t, ThemeDark, p.ResolvedTheme())
}

func TestUpdateSettingPersistsFullRecord(t *testing.T) {
	kv := store.NewMemory()
	p := mountProvider(t, kv, nil)

	ctx := context.Background()
	require.NoError(t, p.UpdateSetting(ctx, KeyCurrency, "BTC"))
	require.NoError(t, p.UpdateSetting(ctx, KeyAnimationsEnabled, false))

	raw, err := kv.Get(ctx, StorageKey)
	require.NoError(t, err)
	stored, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, p.Settings(), stored)
	assert.Equal(t, CurrencyBTC, stored.Currency)
	assert.Equal(t, []string{"dark", ClassNoAnimations}, p.RootClass())
}

func TestUpdateSettingRejectsInvalid(t *testing.T) {
	kv := store.NewMemory()
	p := mountProvider(t, kv, nil)

	err := p.UpdateSetting(context.Background(), KeyRefreshRate, "7")
	assert.ErrorIs(t, err, ErrInvalidValue)
	err = p.UpdateSetting(context.Background(), "layout", "grid")
	assert.ErrorIs(t, err, ErrUnknownKey)

	assert.Equal(t, Defaults(), p.Settings())
	_, err = kv.Get(context.Background(), StorageKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateSettingPersistFailureKeepsMemory(t *testing.T) {
	kv := &failingKV{KV: store.NewMemory(), failSet: true}
	p := mountProvider(t, kv, nil)

	err := p.UpdateSetting(context.Background(), KeyRefreshRate, "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist settings")
	assert.Equal(t, 10*time.Second, p.RefreshInterval())
}

type scriptedRates struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (s *scriptedRates) Fetch(context.Context) (*rates.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return nil, errors.New("coingecko API: unexpected status 429")
	}
	return &rates.Snapshot{EUR: 0.9, BTC: 0.00002, FetchedAt: time.Now()}, nil
}

func (s *scriptedRates) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *scriptedRates) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRatesRefresh(t *testing.T) {
	src := &scriptedRates{}
	p := mountProvider(t, store.NewMemory(), nil, WithRates(src, 10*time.Millisecond))

	require.Eventually(t, func() bool { return p.Rates().BTC == 0.00002 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.UpdateSetting(context.Background(), KeyCurrency, "BTC"))
	assert.Equal(t, "₿2.000000", p.Formatter().FormatUsd(ptr(100000)))

	src.setFail(true)
	seen := src.count()
	require.Eventually(t, func() bool { return src.count() > seen+1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.9, p.Rates().EUR, "failed refresh keeps the previous multipliers")
	assert.Equal(t, 0.00002, p.Rates().BTC)
}

func TestRatesIdentityUntilFirstFetch(t *testing.T) {
	src := &scriptedRates{fail: true}
	p := mountProvider(t, store.NewMemory(), nil, WithRates(src, time.Hour))

	require.Eventually(t, func() bool { return src.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, rates.Identity(), p.Rates())
}

func TestMountAfterClose(t *testing.T) {
	p := NewProvider(store.NewMemory(), nil, nil)
	p.Close()
	assert.Error(t, p.Mount(context.Background()))
}

// heldKV blocks the first Set until release is closed.
type heldKV struct {
	store.KV
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (h *heldKV) Set(ctx context.Context, key, value string) error {
	first := false
	h.once.Do(func() { first = true })
	if first {
		close(h.entered)
		<-h.release
	}
	return h.KV.Set(ctx, key, value)
}

func TestOverlappingUpdatesPersistLatestRecord(t *testing.T) {
	mem := store.NewMemory()
	kv := &heldKV{KV: mem, entered: make(chan struct{}), release: make(chan struct{})}
	p := mountProvider(t, kv, NewSchemeSignal(true))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, p.UpdateSetting(context.Background(), KeyTheme, "light"))
	}()
	<-kv.entered

	go func() {
		defer wg.Done()
		assert.NoError(t, p.UpdateSetting(context.Background(), KeyCurrency, "EUR"))
	}()
	// Give the second update a chance to reach the store first.
	time.Sleep(50 * time.Millisecond)
	close(kv.release)
	wg.Wait()

	want := p.Settings()
	assert.Equal(t, ThemeLight, want.Theme)
	assert.Equal(t, CurrencyEUR, want.Currency)

	reloaded := mountProvider(t, mem, NewSchemeSignal(true))
	assert.Equal(t, want, reloaded.Settings())
}

// manualScheme delivers notifications only when the test calls emit.
type manualScheme struct {
	mu   sync.Mutex
	dark bool
	fn   func(bool)
}

func (m *manualScheme) IsDark() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dark
}

func (m *manualScheme) Subscribe(fn func(bool)) func() {
	m.mu.Lock()
	m.fn = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.fn = nil
		m.mu.Unlock()
	}
}

func (m *manualScheme) set(dark bool) {
	m.mu.Lock()
	m.dark = dark
	m.mu.Unlock()
}

func (m *manualScheme) emit(dark bool) {
	m.mu.Lock()
	fn := m.fn
	m.mu.Unlock()
	fn(dark)
}

func TestSystemThemeIgnoresStaleNotification(t *testing.T) {
	kv := store.NewMemory()
	scheme := &manualScheme{dark: true}
	p := mountProvider(t, kv, scheme)
	require.NoError(t, p.UpdateSetting(context.Background(), KeyTheme, "system"))
	require.Equal(t, ThemeDark, p.ResolvedTheme())

	scheme.set(true)
	scheme.set(false)
	// Notifications arrive in reverse order.
	scheme.emit(false)
	scheme.emit(true)

	assert.Equal(t, ThemeLight, p.ResolvedTheme())
}
