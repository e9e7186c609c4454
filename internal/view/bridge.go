package view

import (
	"github.com/web3-frozen/citrea-watch/internal/api"
	"github.com/web3-frozen/citrea-watch/internal/monitor"
	"github.com/web3-frozen/citrea-watch/internal/settings"
)

type Vault struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	BalanceCbtc Metric `json:"balanceCbtc"`
	UsdValue    Metric `json:"usdValue"`
}

// FlowPoint is one bridge flow bar. Outflow is negative.
type FlowPoint struct {
	Date    string  `json:"date"`
	Inflow  float64 `json:"inflow"`
	Outflow float64 `json:"outflow"`
}

type Bridge struct {
	Feeds map[string]Feed `json:"feeds"`

	TotalDepositedCbtc Metric `json:"totalDepositedCbtc"`
	TotalWithdrawnCbtc Metric `json:"totalWithdrawnCbtc"`
	CurrentSupplyCbtc  Metric `json:"currentSupplyCbtc"`
	DepositAmountCbtc  Metric `json:"depositAmountCbtc"`
	TotalBridgeTxs     Metric `json:"totalBridgeTxs"`
	FailedDeposits     Metric `json:"failedDeposits"`
	AvgGasPrice        Metric `json:"avgGasPrice"`

	CbtcPriceUsd *float64                 `json:"cbtcPriceUsd"`
	Vaults       []Vault                  `json:"vaults"`
	VaultsTotal  Metric                   `json:"vaultsTotal"`
	Flow         []FlowPoint              `json:"flow"`
	GasSeries    []api.GasTimeseriesPoint `json:"gasSeries"`
	Heatmap      Heatmap                  `json:"heatmap"`
}

// BuildBridge derives the bridge and fees page.
func BuildBridge(in Inputs, f settings.Formatter) Bridge {
	b := Bridge{
		Feeds: map[string]Feed{
			monitor.FeedBridgeSummary:    feedOf(in.BridgeSummary),
			monitor.FeedBridgeTimeseries: feedOf(in.BridgeTimeseries),
			monitor.FeedGas:              feedOf(in.Gas),
			monitor.FeedGlobalTvl:        feedOf(in.GlobalTvl),
		},
		CbtcPriceUsd: CbtcPriceUsd(in.tokens()),
		Vaults:       []Vault{},
		Flow:         []FlowPoint{},
		GasSeries:    []api.GasTimeseriesPoint{},
	}

	s := in.BridgeSummary.Data
	var deposited, withdrawn, supply, amount, failed *float64
	if s != nil {
		deposited = ptr(s.TotalDepositedCbtc)
		withdrawn = ptr(s.TotalWithdrawnCbtc)
		supply = ptr(s.CurrentSupplyCbtc)
		amount = ptr(s.DepositAmountCbtc)
		failed = ptr(float64(s.FailedDepositCount))
	}
	b.TotalDepositedCbtc = metric(deposited, f.FormatCbtc)
	b.TotalWithdrawnCbtc = metric(withdrawn, f.FormatCbtc)
	b.CurrentSupplyCbtc = metric(supply, f.FormatCbtc)
	b.DepositAmountCbtc = metric(amount, f.FormatCbtc)
	b.FailedDeposits = metric(failed, f.FormatNumber)
	b.TotalBridgeTxs = metric(intValue(TotalBridgeTxs(s)), f.FormatNumber)

	var vaults []api.BridgeVault
	if s != nil {
		vaults = s.Vaults
	}
	var total *float64
	for _, v := range vaults {
		usd := VaultUsd(v, b.CbtcPriceUsd)
		if usd != nil {
			if total == nil {
				total = ptr(0)
			}
			*total += *usd
		}
		b.Vaults = append(b.Vaults, Vault{
			Name:        v.Name,
			Address:     v.Address,
			BalanceCbtc: metric(ptr(v.BalanceCbtc), f.FormatCbtc),
			UsdValue:    metric(usd, f.FormatUsd),
		})
	}
	b.VaultsTotal = metric(total, f.FormatUsd)

	if ts := in.BridgeTimeseries.Data; ts != nil {
		b.Flow = Flow(ts.Points)
	}

	series := in.gasSeries()
	if series != nil && series.Points != nil {
		b.GasSeries = series.Points
	}
	b.AvgGasPrice = metric(AverageBaseFee(b.GasSeries), f.FormatGas)
	b.Heatmap = heatmapOf(in.gasHeatmap())
	return b
}

// TotalBridgeTxs counts deposits, failed deposits and withdrawals.
func TotalBridgeTxs(s *api.BridgeSummary) *int64 {
	if s == nil {
		return nil
	}
	n := s.DepositCount + s.FailedDepositCount + s.WithdrawalCount
	return &n
}

// VaultUsd values a vault at the cBTC price, or null when the price is
// unknown.
func VaultUsd(v api.BridgeVault, cbtcPriceUsd *float64) *float64 {
	if cbtcPriceUsd == nil {
		return nil
	}
	return ptr(v.BalanceCbtc * *cbtcPriceUsd)
}

// Flow maps the bridge series to bars with outflow negated.
func Flow(points []api.BridgeTimeseriesPoint) []FlowPoint {
	out := make([]FlowPoint, 0, len(points))
	for _, p := range points {
		out = append(out, FlowPoint{Date: p.Date, Inflow: p.InflowCbtc, Outflow: -p.OutflowCbtc})
	}
	return out
}

// AverageBaseFee is null for an empty series.
func AverageBaseFee(points []api.GasTimeseriesPoint) *float64 {
	if len(points) == 0 {
		return nil
	}
	var sum float64
	for _, p := range points {
		sum += p.BaseFee
	}
	return ptr(sum / float64(len(points)))
}
