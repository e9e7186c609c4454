// Package format renders numbers for display. Rounding goes through
// decimal so that fixed-digit output does not inherit float artifacts.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Placeholder is rendered for absent or non-finite values.
const Placeholder = "—"

// Finite reports whether v can be rendered.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Grouped renders v with thousands separators, rounded to maxFrac fraction
// digits with trailing zeros trimmed down to minFrac.
func Grouped(v float64, minFrac, maxFrac int) string {
	if !Finite(v) {
		return Placeholder
	}
	if maxFrac < minFrac {
		maxFrac = minFrac
	}
	s := decimal.NewFromFloat(v).Round(int32(maxFrac)).StringFixed(int32(maxFrac))
	return addCommas(trimFraction(s, minFrac))
}

// Fixed renders v grouped with exactly frac fraction digits.
func Fixed(v float64, frac int) string {
	return Grouped(v, frac, frac)
}

// Number renders v the way an unstyled locale number is shown: grouped,
// at most three fraction digits.
func Number(v float64) string {
	return Grouped(v, 0, 3)
}

var compactUnits = []struct {
	threshold float64
	suffix    string
	frac      int32
}{
	{1_000_000_000, "B", 2},
	{1_000_000, "M", 2},
	{1_000, "K", 1},
}

// Compact renders |v| >= 1000 with a B/M/K suffix and falls back to Number
// below that.
func Compact(v float64) string {
	if !Finite(v) {
		return Placeholder
	}
	for _, u := range compactUnits {
		if math.Abs(v) >= u.threshold {
			scaled := decimal.NewFromFloat(v).Div(decimal.NewFromFloat(u.threshold))
			return scaled.StringFixed(u.frac) + u.suffix
		}
	}
	return Number(v)
}

// Signed renders v with frac fraction digits and a leading "+" for
// non-negative values. No grouping.
func Signed(v float64, frac int) string {
	if !Finite(v) {
		return Placeholder
	}
	s := decimal.NewFromFloat(v).StringFixed(int32(frac))
	if v >= 0 && !strings.HasPrefix(s, "-") {
		return "+" + s
	}
	return s
}

// Ago renders the age of t relative to now as "Ns ago", "Nm ago", "Nh ago"
// or "Nd ago".
func Ago(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}
	sec := int64(d / time.Second)
	switch {
	case sec < 60:
		return fmt.Sprintf("%ds ago", sec)
	case sec < 3600:
		return fmt.Sprintf("%dm ago", sec/60)
	case sec < 86400:
		return fmt.Sprintf("%dh ago", sec/3600)
	default:
		return fmt.Sprintf("%dd ago", sec/86400)
	}
}

// trimFraction drops trailing fraction zeros while keeping at least minFrac
// digits.
func trimFraction(s string, minFrac int) string {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return s
	}
	end := len(s)
	for end > dot+1+minFrac && s[end-1] == '0' {
		end--
	}
	if end == dot+1 {
		end = dot
	}
	return s[:end]
}

func addCommas(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]
	n := len(intPart)
	if n > 3 {
		var b strings.Builder
		for i, c := range intPart {
			if i > 0 && (n-i)%3 == 0 {
				b.WriteByte(',')
			}
			b.WriteRune(c)
		}
		intPart = b.String()
	}
	if len(parts) == 2 {
		return sign + intPart + "." + parts[1]
	}
	return sign + intPart
}
