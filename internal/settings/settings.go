// Package settings holds the user display preferences: theme, currency,
// refresh interval and display toggles. The record is persisted as one JSON
// string under StorageKey and merged over Defaults when loaded.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// StorageKey is the key the settings record is persisted under.
const StorageKey = "citrea-watch-settings"

var (
	ErrUnknownKey   = errors.New("unknown setting")
	ErrInvalidValue = errors.New("invalid setting value")
)

type Theme string

const (
	ThemeDark   Theme = "dark"
	ThemeLight  Theme = "light"
	ThemeSystem Theme = "system"
)

func (t Theme) valid() bool {
	return t == ThemeDark || t == ThemeLight || t == ThemeSystem
}

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyBTC Currency = "BTC"
)

func (c Currency) valid() bool {
	return c == CurrencyUSD || c == CurrencyEUR || c == CurrencyBTC
}

// Symbol is the display prefix for the currency.
func (c Currency) Symbol() string {
	switch c {
	case CurrencyEUR:
		return "€"
	case CurrencyBTC:
		return "₿"
	default:
		return "$"
	}
}

// RefreshRate is a refresh interval in seconds, one of RefreshRates.
type RefreshRate string

var RefreshRates = []RefreshRate{"10", "30", "60", "300"}

func (r RefreshRate) valid() bool {
	for _, v := range RefreshRates {
		if r == v {
			return true
		}
	}
	return false
}

// Duration converts the rate to a time.Duration.
func (r RefreshRate) Duration() time.Duration {
	n, err := strconv.Atoi(string(r))
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

// Key names one field of UserSettings by its JSON name.
type Key string

const (
	KeyTheme             Key = "theme"
	KeyCurrency          Key = "currency"
	KeyRefreshRate       Key = "refreshRate"
	KeyCompactNumbers    Key = "compactNumbers"
	KeyShowTooltips      Key = "showTooltips"
	KeyAnimationsEnabled Key = "animationsEnabled"
)

type UserSettings struct {
	Theme             Theme       `json:"theme"`
	Currency          Currency    `json:"currency"`
	RefreshRate       RefreshRate `json:"refreshRate"`
	CompactNumbers    bool        `json:"compactNumbers"`
	ShowTooltips      bool        `json:"showTooltips"`
	AnimationsEnabled bool        `json:"animationsEnabled"`
}

func Defaults() UserSettings {
	return UserSettings{
		Theme:             ThemeDark,
		Currency:          CurrencyUSD,
		RefreshRate:       "30",
		CompactNumbers:    false,
		ShowTooltips:      true,
		AnimationsEnabled: true,
	}
}

// Decode merges a stored record over Defaults. Unknown keys are ignored and
// fields that are missing or outside their domain keep the default. A
// record that is not a JSON object yields Defaults and an error.
func Decode(raw string) (UserSettings, error) {
	out := Defaults()
	if raw == "" {
		return out, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Defaults(), fmt.Errorf("decode settings: %w", err)
	}
	for name, msg := range fields {
		var v any
		if err := json.Unmarshal(msg, &v); err != nil {
			continue
		}
		// bad fields fall back individually
		_ = out.Set(Key(name), v)
	}
	return out, nil
}

// Encode renders the full record.
func (s UserSettings) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Set validates value and assigns it to the field named by key. Values
// arrive decoded from JSON, so refreshRate also accepts an integral number.
func (s *UserSettings) Set(key Key, value any) error {
	switch key {
	case KeyTheme:
		str, ok := value.(string)
		if !ok || !Theme(str).valid() {
			return invalid(key, value)
		}
		s.Theme = Theme(str)
	case KeyCurrency:
		str, ok := value.(string)
		if !ok || !Currency(str).valid() {
			return invalid(key, value)
		}
		s.Currency = Currency(str)
	case KeyRefreshRate:
		var rate RefreshRate
		switch v := value.(type) {
		case string:
			rate = RefreshRate(v)
		case float64:
			if v != math.Trunc(v) {
				return invalid(key, value)
			}
			rate = RefreshRate(strconv.FormatInt(int64(v), 10))
		case int:
			rate = RefreshRate(strconv.Itoa(v))
		}
		if !rate.valid() {
			return invalid(key, value)
		}
		s.RefreshRate = rate
	case KeyCompactNumbers, KeyShowTooltips, KeyAnimationsEnabled:
		b, ok := value.(bool)
		if !ok {
			return invalid(key, value)
		}
		switch key {
		case KeyCompactNumbers:
			s.CompactNumbers = b
		case KeyShowTooltips:
			s.ShowTooltips = b
		default:
			s.AnimationsEnabled = b
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return nil
}

func invalid(key Key, value any) error {
	return fmt.Errorf("%w: %s=%v", ErrInvalidValue, key, value)
}
