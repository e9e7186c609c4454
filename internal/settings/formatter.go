package settings

import (
	"math"
	"time"

	"github.com/web3-frozen/citrea-watch/internal/format"
	"github.com/web3-frozen/citrea-watch/internal/rates"
)

// Formatter renders values under one settings record and rate snapshot.
// It is a plain value: take a fresh one from the provider after either
// changes. Every method renders format.Placeholder for nil or non-finite
// input.
type Formatter struct {
	settings UserSettings
	rates    rates.Snapshot
}

func NewFormatter(s UserSettings, r rates.Snapshot) Formatter {
	return Formatter{settings: s, rates: r}
}

func usable(v *float64) bool {
	return v != nil && format.Finite(*v)
}

// FormatNumber renders compact (K/M/B) or fully grouped digits depending on
// the compact numbers preference.
func (f Formatter) FormatNumber(v *float64) string {
	if !usable(v) {
		return format.Placeholder
	}
	if f.settings.CompactNumbers {
		return format.Compact(*v)
	}
	return format.Number(*v)
}

// FormatUsd converts a USD amount into the display currency and prefixes
// its symbol. BTC shows 6 fraction digits, the others 2.
func (f Formatter) FormatUsd(v *float64) string {
	if !usable(v) {
		return format.Placeholder
	}
	converted := *v * f.multiplier()
	digits := 2
	if f.settings.Currency == CurrencyBTC {
		digits = 6
	}

	var body string
	if f.settings.CompactNumbers && math.Abs(converted) >= 1_000 {
		body = format.Compact(converted)
	} else {
		body = format.Fixed(converted, digits)
	}
	return f.settings.Currency.Symbol() + body
}

func (f Formatter) multiplier() float64 {
	switch f.settings.Currency {
	case CurrencyEUR:
		return f.rates.EUR
	case CurrencyBTC:
		return f.rates.BTC
	default:
		return 1
	}
}

// FormatCbtc ignores the compact preference.
func (f Formatter) FormatCbtc(v *float64) string {
	if !usable(v) {
		return format.Placeholder
	}
	return format.Fixed(*v, 6) + " cBTC"
}

func (f Formatter) FormatPct(v *float64) string {
	if !usable(v) {
		return format.Placeholder
	}
	return format.Signed(*v, 2) + "%"
}

func (f Formatter) FormatGas(v *float64) string {
	if !usable(v) {
		return format.Placeholder
	}
	return format.Grouped(*v, 0, 2) + " Gwei"
}

// FormatUpdatedAgo renders a millisecond epoch relative to now.
func (f Formatter) FormatUpdatedAgo(epochMillis int64, now time.Time) string {
	if epochMillis <= 0 {
		return format.Placeholder
	}
	return format.Ago(time.UnixMilli(epochMillis), now)
}
