package view

import (
	"github.com/web3-frozen/citrea-watch/internal/api"
	"github.com/web3-frozen/citrea-watch/internal/monitor"
	"github.com/web3-frozen/citrea-watch/internal/settings"
)

type Heatmap struct {
	Rows    []api.GasHeatmapRow `json:"rows"`
	HasData bool                `json:"hasData"`
}

// HeatmapHasData reports whether any row carries at least one cell.
func HeatmapHasData(rows []api.GasHeatmapRow) bool {
	for _, r := range rows {
		if len(r.Hours) > 0 {
			return true
		}
	}
	return false
}

func heatmapOf(h *api.GasHeatmap) Heatmap {
	if h == nil || h.Rows == nil {
		return Heatmap{Rows: []api.GasHeatmapRow{}}
	}
	return Heatmap{Rows: h.Rows, HasData: HeatmapHasData(h.Rows)}
}

type GasTiers struct {
	Slow      Metric  `json:"slow"`
	Average   Metric  `json:"average"`
	Fast      Metric  `json:"fast"`
	UpdatedAt *string `json:"updatedAt"`
}

type Gas struct {
	Feeds map[string]Feed `json:"feeds"`

	Tiers          GasTiers                 `json:"tiers"`
	AverageBaseFee Metric                   `json:"averageBaseFee"`
	Series         []api.GasTimeseriesPoint `json:"series"`
	// Sparkline is the base fee series, empty when it has fewer than two
	// points.
	Sparkline []float64 `json:"sparkline"`
	Heatmap   Heatmap   `json:"heatmap"`
}

// BuildGas derives the fee metrics panel.
func BuildGas(in Inputs, f settings.Formatter) Gas {
	g := Gas{
		Feeds: map[string]Feed{
			monitor.FeedGas:             feedOf(in.Gas),
			monitor.FeedExplorerSummary: feedOf(in.Explorer),
		},
		Series:    []api.GasTimeseriesPoint{},
		Sparkline: []float64{},
		Heatmap:   heatmapOf(in.gasHeatmap()),
	}

	var prices api.GasPrices
	if ex := in.Explorer.Data; ex != nil {
		if ex.GasPrices != nil {
			prices = *ex.GasPrices
		}
		g.Tiers.UpdatedAt = ex.GasPriceUpdatedAt
	}
	g.Tiers.Slow = metric(prices.Slow, f.FormatGas)
	g.Tiers.Average = metric(prices.Average, f.FormatGas)
	g.Tiers.Fast = metric(prices.Fast, f.FormatGas)

	if s := in.gasSeries(); s != nil && s.Points != nil {
		g.Series = s.Points
	}
	if len(g.Series) > 1 {
		for _, p := range g.Series {
			g.Sparkline = append(g.Sparkline, p.BaseFee)
		}
	}
	g.AverageBaseFee = metric(AverageBaseFee(g.Series), f.FormatGas)
	return g
}
