package monitor

import (
	"context"

	"github.com/web3-frozen/citrea-watch/internal/api"
	"github.com/web3-frozen/citrea-watch/internal/poller"
)

// Client defines the backend operations the engine polls. *api.Client
// implements it.
type Client interface {
	FetchGlobalTvl(ctx context.Context) (*api.GlobalTvl, error)
	FetchTvlHistory(ctx context.Context, hours int) (*api.TvlHistory, error)
	FetchBridgeSummary(ctx context.Context) (*api.BridgeSummary, error)
	FetchBridgeTimeseries(ctx context.Context) (*api.BridgeTimeseries, error)
	FetchGasTimeseries(ctx context.Context) (*api.GasTimeseries, error)
	FetchGasHeatmap(ctx context.Context) (*api.GasHeatmap, error)
	FetchExplorerSummary(ctx context.Context) (*api.ExplorerSummary, error)
}

// GasData is the gas series and heatmap fetched together.
type GasData = poller.Pair[api.GasTimeseries, api.GasHeatmap]

// Feed names, also used as poller names in logs and metrics.
const (
	FeedGlobalTvl        = "global_tvl"
	FeedTvlHistory       = "tvl_history"
	FeedBridgeSummary    = "bridge_summary"
	FeedBridgeTimeseries = "bridge_timeseries"
	FeedGas              = "gas"
	FeedExplorerSummary  = "explorer_summary"
)

// feed is the type-erased lifecycle of one poller.
type feed interface {
	Name() string
	Start(ctx context.Context)
	Stop()
}
