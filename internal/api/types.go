package api

// TokenTvl is a single token entry of the global TVL snapshot.
type TokenTvl struct {
	Symbol      string   `json:"symbol"`
	Supply      float64  `json:"supply"`
	PriceUsd    *float64 `json:"priceUsd"`
	TvlUsd      float64  `json:"tvlUsd"`
	PriceSource string   `json:"priceSource"`
}

// GlobalTvl is the response of /api/tvl/global.
// TotalTvlUsd is computed by the backend and is not guaranteed to equal the
// sum of the token TVLs.
type GlobalTvl struct {
	TotalTvlUsd  float64    `json:"totalTvlUsd"`
	Tokens       []TokenTvl `json:"tokens"`
	GeneratedAt  string     `json:"generatedAt"`
	LastUpdated  int64      `json:"lastUpdated"`
	Change24hUsd *float64   `json:"change24hUsd,omitempty"`
	Change24hPct *float64   `json:"change24hPct,omitempty"`
	Change7dUsd  *float64   `json:"change7dUsd,omitempty"`
	Change7dPct  *float64   `json:"change7dPct,omitempty"`
}

// TvlHistoryPoint is one historical TVL sample. Timestamp is in unix seconds.
type TvlHistoryPoint struct {
	Timestamp   int64   `json:"timestamp"`
	BlockNumber int64   `json:"blockNumber"`
	TotalTvlUsd float64 `json:"totalTvlUsd"`
	CbtcSupply  float64 `json:"cbtcSupply"`
}

// TvlHistory is the response of /api/tvl/history. Points arrive in
// transport order, which is not necessarily sorted by timestamp.
type TvlHistory struct {
	Points      []TvlHistoryPoint `json:"points"`
	GeneratedAt string            `json:"generatedAt"`
}

type BridgeVault struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	BalanceCbtc float64 `json:"balanceCbtc"`
}

// BridgeSummary is the response of /api/bridge/summary.
type BridgeSummary struct {
	DepositAmountCbtc  float64       `json:"depositAmountCbtc"`
	DepositCount       int64         `json:"depositCount"`
	FailedDepositCount int64         `json:"failedDepositCount"`
	WithdrawalCount    int64         `json:"withdrawalCount"`
	TotalDepositedCbtc float64       `json:"totalDepositedCbtc"`
	TotalWithdrawnCbtc float64       `json:"totalWithdrawnCbtc"`
	CurrentSupplyCbtc  float64       `json:"currentSupplyCbtc"`
	Vaults             []BridgeVault `json:"vaults"`
	GeneratedAt        string        `json:"generatedAt"`
}

type BridgeTimeseriesPoint struct {
	Date        string  `json:"date"`
	InflowCbtc  float64 `json:"inflowCbtc"`
	OutflowCbtc float64 `json:"outflowCbtc"`
}

type BridgeTimeseries struct {
	Points      []BridgeTimeseriesPoint `json:"points"`
	GeneratedAt string                  `json:"generatedAt"`
}

type GasTimeseriesPoint struct {
	Time        string  `json:"time"`
	BaseFee     float64 `json:"baseFee"`
	L1Fee       float64 `json:"l1Fee"`
	PriorityFee float64 `json:"priorityFee"`
}

type GasTimeseries struct {
	Points      []GasTimeseriesPoint `json:"points"`
	GeneratedAt string               `json:"generatedAt"`
}

type GasHeatmapCell struct {
	Hour  int     `json:"hour"`
	Value float64 `json:"value"`
}

// GasHeatmapRow holds the sparse hourly cells of one day. A missing hour
// means no data for that hour, not zero.
type GasHeatmapRow struct {
	Day   string           `json:"day"`
	Hours []GasHeatmapCell `json:"hours"`
}

type GasHeatmap struct {
	Rows        []GasHeatmapRow `json:"rows"`
	GeneratedAt string          `json:"generatedAt"`
}

// GasPrices is the tiered gas price estimate in Gwei.
type GasPrices struct {
	Slow    *float64 `json:"slow"`
	Average *float64 `json:"average"`
	Fast    *float64 `json:"fast"`
}

// ExplorerSummary is the response of /api/explorer/summary. Every counter is
// independently nullable.
type ExplorerSummary struct {
	TotalTransactions   *int64     `json:"totalTransactions"`
	TotalAddresses      *int64     `json:"totalAddresses"`
	TotalBlocks         *int64     `json:"totalBlocks"`
	TxCount24h          *int64     `json:"txCount24h"`
	TxCount7d           *int64     `json:"txCount7d"`
	TPS                 *float64   `json:"tps"`
	AverageBlockTimeSec *float64   `json:"averageBlockTimeSec"`
	TotalTokens         *int64     `json:"totalTokens"`
	TxFees24hCbtc       *float64   `json:"txFees24hCbtc"`
	GasPrices           *GasPrices `json:"gasPrices"`
	GasPriceUpdatedAt   *string    `json:"gasPriceUpdatedAt"`
	GeneratedAt         string     `json:"generatedAt"`
	Source              *string    `json:"source"`
}
