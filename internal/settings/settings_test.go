package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, ThemeDark, d.Theme)
	assert.Equal(t, CurrencyUSD, d.Currency)
	assert.Equal(t, RefreshRate("30"), d.RefreshRate)
	assert.False(t, d.CompactNumbers)
	assert.True(t, d.ShowTooltips)
	assert.True(t, d.AnimationsEnabled)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    func(*UserSettings)
		wantErr bool
	}{
		{name: "empty", raw: ""},
		{name: "null", raw: "null"},
		{
			name: "partial record merges over defaults",
			raw:  `{"theme":"light","compactNumbers":true}`,
			want: func(s *UserSettings) {
				s.Theme = ThemeLight
				s.CompactNumbers = true
			},
		},
		{
			name: "unknown keys ignored",
			raw:  `{"currency":"EUR","sidebarCollapsed":true}`,
			want: func(s *UserSettings) { s.Currency = CurrencyEUR },
		},
		{
			name: "out of domain fields keep defaults",
			raw:  `{"theme":"sepia","currency":"JPY","refreshRate":"15","showTooltips":"yes","animationsEnabled":false}`,
			want: func(s *UserSettings) { s.AnimationsEnabled = false },
		},
		{name: "not json", raw: `{theme: dark`, wantErr: true},
		{name: "not an object", raw: `[1,2]`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := Defaults()
			if tt.want != nil {
				tt.want(&want)
			}
			got, err := Decode(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, want, got)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	s := Defaults()
	s.Theme = ThemeSystem
	s.Currency = CurrencyBTC
	s.RefreshRate = "300"

	raw, err := s.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"system","currency":"BTC","refreshRate":"300","compactNumbers":false,"showTooltips":true,"animationsEnabled":true}`, raw)

	back, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestSet(t *testing.T) {
	tests := []struct {
		key     Key
		value   any
		wantErr error
		check   func(t *testing.T, s UserSettings)
	}{
		{key: KeyTheme, value: "system", check: func(t *testing.T, s UserSettings) { assert.Equal(t, ThemeSystem, s.Theme) }},
		{key: KeyTheme, value: "blue", wantErr: ErrInvalidValue},
		{key: KeyTheme, value: true, wantErr: ErrInvalidValue},
		{key: KeyCurrency, value: "EUR", check: func(t *testing.T, s UserSettings) { assert.Equal(t, CurrencyEUR, s.Currency) }},
		{key: KeyCurrency, value: "usd", wantErr: ErrInvalidValue},
		{key: KeyRefreshRate, value: "60", check: func(t *testing.T, s UserSettings) { assert.Equal(t, RefreshRate("60"), s.RefreshRate) }},
		{key: KeyRefreshRate, value: float64(10), check: func(t *testing.T, s UserSettings) { assert.Equal(t, RefreshRate("10"), s.RefreshRate) }},
		{key: KeyRefreshRate, value: 300, check: func(t *testing.T, s UserSettings) { assert.Equal(t, RefreshRate("300"), s.RefreshRate) }},
		{key: KeyRefreshRate, value: 10.5, wantErr: ErrInvalidValue},
		{key: KeyRefreshRate, value: "45", wantErr: ErrInvalidValue},
		{key: KeyCompactNumbers, value: true, check: func(t *testing.T, s UserSettings) { assert.True(t, s.CompactNumbers) }},
		{key: KeyShowTooltips, value: false, check: func(t *testing.T, s UserSettings) { assert.False(t, s.ShowTooltips) }},
		{key: KeyAnimationsEnabled, value: false, check: func(t *testing.T, s UserSettings) { assert.False(t, s.AnimationsEnabled) }},
		{key: KeyAnimationsEnabled, value: "false", wantErr: ErrInvalidValue},
		{key: "fontSize", value: 12, wantErr: ErrUnknownKey},
	}
	for _, tt := range tests {
		s := Defaults()
		err := s.Set(tt.key, tt.value)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, "%s=%v", tt.key, tt.value)
			assert.Equal(t, Defaults(), s, "failed Set must not modify the record")
			continue
		}
		require.NoError(t, err, "%s=%v", tt.key, tt.value)
		tt.check(t, s)
	}
}

func TestRefreshRateDuration(t *testing.T) {
	assert.Equal(t, 10*time.Second, RefreshRate("10").Duration())
	assert.Equal(t, 5*time.Minute, RefreshRate("300").Duration())
	assert.Zero(t, RefreshRate("").Duration())
	assert.Zero(t, RefreshRate("-5").Duration())
}

func TestCurrencySymbol(t *testing.T) {
	assert.Equal(t, "$", CurrencyUSD.Symbol())
	assert.Equal(t, "€", CurrencyEUR.Symbol())
	assert.Equal(t, "₿", CurrencyBTC.Symbol())
}

func TestSchemeSignal(t *testing.T) {
	s := NewSchemeSignal(true)
	assert.True(t, s.IsDark())

	var got []bool
	unsubscribe := s.Subscribe(func(dark bool) { got = append(got, dark) })
	assert.Equal(t, 1, s.Subscribers())

	s.Set(true) // unchanged
	s.Set(false)
	s.Set(true)
	assert.Equal(t, []bool{false, true}, got)

	unsubscribe()
	s.Set(false)
	assert.Equal(t, []bool{false, true}, got)
	assert.Zero(t, s.Subscribers())
	assert.False(t, s.IsDark())
}
