package view

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/web3-frozen/citrea-watch/internal/api"
	"github.com/web3-frozen/citrea-watch/internal/monitor"
	"github.com/web3-frozen/citrea-watch/internal/settings"
)

var ErrUnknownPeriod = errors.New("unknown period")

// Period selects the TVL chart window.
type Period string

const (
	Period24H Period = "24H"
	Period7D  Period = "7D"
	Period30D Period = "30D"
	PeriodAll Period = "ALL"
)

// ParsePeriod accepts any letter case. Empty selects PeriodAll.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToUpper(strings.TrimSpace(s))); p {
	case "":
		return PeriodAll, nil
	case Period24H, Period7D, Period30D, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
}

// Window is zero for PeriodAll.
func (p Period) Window() time.Duration {
	switch p {
	case Period24H:
		return 24 * time.Hour
	case Period7D:
		return 7 * 24 * time.Hour
	case Period30D:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

type TokenShare struct {
	Symbol      string   `json:"symbol"`
	Supply      float64  `json:"supply"`
	PriceUsd    *float64 `json:"priceUsd"`
	PriceSource string   `json:"priceSource"`
	TvlUsd      Metric   `json:"tvlUsd"`
	// SharePct is null when the total is not positive.
	SharePct *float64 `json:"sharePct"`
}

type HistoryChart struct {
	Period Period                `json:"period"`
	Points []api.TvlHistoryPoint `json:"points"`
	// Fallback is set when no history falls in the window and the points
	// are a flat line at the current TVL.
	Fallback bool `json:"fallback"`
}

type Overview struct {
	Feeds map[string]Feed `json:"feeds"`

	TotalTvlUsd  Metric `json:"totalTvlUsd"`
	Change24hPct Metric `json:"change24hPct"`
	Change7dPct  Metric `json:"change7dPct"`
	LastUpdated  string `json:"lastUpdated"`

	CbtcSupply          Metric `json:"cbtcSupply"`
	StablecoinSupplyUsd Metric `json:"stablecoinSupplyUsd"`
	TPS                 Metric `json:"tps"`
	AverageBlockTimeSec Metric `json:"averageBlockTimeSec"`
	BlockHeight         Metric `json:"blockHeight"`
	TotalTransactions   Metric `json:"totalTransactions"`
	TotalAddresses      Metric `json:"totalAddresses"`
	TxCount24h          Metric `json:"txCount24h"`
	TxFees24hCbtc       Metric `json:"txFees24hCbtc"`

	Tokens  []TokenShare `json:"tokens"`
	History HistoryChart `json:"history"`
}

// BuildOverview derives the network overview page.
func BuildOverview(in Inputs, f settings.Formatter, period Period, now time.Time) Overview {
	o := Overview{
		Feeds: map[string]Feed{
			monitor.FeedGlobalTvl:       feedOf(in.GlobalTvl),
			monitor.FeedTvlHistory:      feedOf(in.TvlHistory),
			monitor.FeedExplorerSummary: feedOf(in.Explorer),
		},
		LastUpdated: f.FormatUpdatedAgo(0, now),
	}

	var total *float64
	tokens := in.tokens()
	if g := in.GlobalTvl.Data; g != nil {
		total = ptr(g.TotalTvlUsd)
		o.Change24hPct = metric(g.Change24hPct, f.FormatPct)
		o.Change7dPct = metric(g.Change7dPct, f.FormatPct)
		o.LastUpdated = f.FormatUpdatedAgo(g.LastUpdated, now)
	} else {
		o.Change24hPct = metric(nil, f.FormatPct)
		o.Change7dPct = metric(nil, f.FormatPct)
	}
	o.TotalTvlUsd = metric(total, f.FormatUsd)
	o.CbtcSupply = metric(CbtcSupply(tokens), f.FormatCbtc)
	o.StablecoinSupplyUsd = metric(StablecoinSupplyUsd(tokens), f.FormatUsd)
	o.Tokens = tokenShares(tokens, total, f)

	var ex api.ExplorerSummary
	if in.Explorer.Data != nil {
		ex = *in.Explorer.Data
	}
	o.TPS = metric(ex.TPS, f.FormatNumber)
	o.AverageBlockTimeSec = metric(ex.AverageBlockTimeSec, f.FormatNumber)
	o.BlockHeight = metric(intValue(ex.TotalBlocks), f.FormatNumber)
	o.TotalTransactions = metric(intValue(ex.TotalTransactions), f.FormatNumber)
	o.TotalAddresses = metric(intValue(ex.TotalAddresses), f.FormatNumber)
	o.TxCount24h = metric(intValue(ex.TxCount24h), f.FormatNumber)
	o.TxFees24hCbtc = metric(ex.TxFees24hCbtc, f.FormatCbtc)

	var points []api.TvlHistoryPoint
	if h := in.TvlHistory.Data; h != nil {
		points = h.Points
	}
	o.History = historyChart(points, period, total, now)
	return o
}

// CbtcSupply returns the supply of the token whose symbol is cbtc in any
// letter case.
func CbtcSupply(tokens []api.TokenTvl) *float64 {
	if t := cbtcToken(tokens); t != nil {
		return ptr(t.Supply)
	}
	return nil
}

// CbtcPriceUsd is null when the cBTC token or its price is unknown.
func CbtcPriceUsd(tokens []api.TokenTvl) *float64 {
	if t := cbtcToken(tokens); t != nil {
		return t.PriceUsd
	}
	return nil
}

func cbtcToken(tokens []api.TokenTvl) *api.TokenTvl {
	for i := range tokens {
		if strings.ToLower(tokens[i].Symbol) == "cbtc" {
			return &tokens[i]
		}
	}
	return nil
}

// StablecoinSupplyUsd sums the TVL of tokens whose symbol contains usd. It
// is null when there are no tokens at all.
func StablecoinSupplyUsd(tokens []api.TokenTvl) *float64 {
	if len(tokens) == 0 {
		return nil
	}
	var sum float64
	for _, t := range tokens {
		if strings.Contains(strings.ToLower(t.Symbol), "usd") {
			sum += t.TvlUsd
		}
	}
	return &sum
}

func tokenShares(tokens []api.TokenTvl, total *float64, f settings.Formatter) []TokenShare {
	out := make([]TokenShare, 0, len(tokens))
	for _, t := range tokens {
		share := TokenShare{
			Symbol:      t.Symbol,
			Supply:      t.Supply,
			PriceUsd:    t.PriceUsd,
			PriceSource: t.PriceSource,
			TvlUsd:      metric(ptr(t.TvlUsd), f.FormatUsd),
		}
		if total != nil && *total > 0 {
			share.SharePct = ptr(t.TvlUsd / *total * 100)
		}
		out = append(out, share)
	}
	return out
}

// SortHistory returns a copy of points ordered by timestamp ascending.
func SortHistory(points []api.TvlHistoryPoint) []api.TvlHistoryPoint {
	out := slices.Clone(points)
	slices.SortStableFunc(out, func(a, b api.TvlHistoryPoint) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
	return out
}

// FilterHistory keeps points no older than the period window before now.
func FilterHistory(points []api.TvlHistoryPoint, period Period, now time.Time) []api.TvlHistoryPoint {
	w := period.Window()
	if w == 0 || len(points) == 0 {
		return points
	}
	cutoff := float64(now.UnixMilli()-w.Milliseconds()) / 1000
	out := make([]api.TvlHistoryPoint, 0, len(points))
	for _, p := range points {
		if float64(p.Timestamp) >= cutoff {
			out = append(out, p)
		}
	}
	return out
}

func historyChart(points []api.TvlHistoryPoint, period Period, current *float64, now time.Time) HistoryChart {
	c := HistoryChart{
		Period: period,
		Points: FilterHistory(SortHistory(points), period, now),
	}
	if len(c.Points) == 0 && current != nil && *current != 0 {
		p := api.TvlHistoryPoint{Timestamp: now.Unix(), TotalTvlUsd: *current}
		c.Points = []api.TvlHistoryPoint{p, p}
		c.Fallback = true
	}
	if c.Points == nil {
		c.Points = []api.TvlHistoryPoint{}
	}
	return c
}
