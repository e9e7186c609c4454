package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	operation string
	err       error
}

type recordingMetrics struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (m *recordingMetrics) Observe(operation string, err error, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{operation: operation, err: err})
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *recordingMetrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	m := &recordingMetrics{}
	return NewClient(srv.URL+"/", srv.Client(), m), m
}

func TestFetchGlobalTvl(t *testing.T) {
	client, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/tvl/global", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "no-store", r.Header.Get("Cache-Control"))
		_, _ = w.Write([]byte(`{
			"totalTvlUsd": 1234.5,
			"tokens": [{"symbol": "cBTC", "supply": 2, "priceUsd": 100000, "tvlUsd": 200000, "priceSource": "oracle"}],
			"generatedAt": "2025-01-01T00:00:00Z",
			"lastUpdated": 1700000000000,
			"change24hPct": -1.5
		}`))
	}))

	got, err := client.FetchGlobalTvl(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234.5, got.TotalTvlUsd)
	assert.Equal(t, int64(1700000000000), got.LastUpdated)
	require.Len(t, got.Tokens, 1)
	assert.Equal(t, "cBTC", got.Tokens[0].Symbol)
	require.NotNil(t, got.Tokens[0].PriceUsd)
	assert.Equal(t, 100000.0, *got.Tokens[0].PriceUsd)
	require.NotNil(t, got.Change24hPct)
	assert.Equal(t, -1.5, *got.Change24hPct)
	assert.Nil(t, got.Change7dPct)

	require.Len(t, m.calls, 1)
	assert.Equal(t, "tvl_global", m.calls[0].operation)
	assert.NoError(t, m.calls[0].err)
}

func TestFetchTvlHistoryHoursParam(t *testing.T) {
	tests := []struct {
		name  string
		hours int
		want  string
	}{
		{name: "explicit window", hours: 24, want: "24"},
		{name: "default window", hours: 0, want: "720"},
		{name: "negative window", hours: -5, want: "720"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/tvl/history", r.URL.Path)
				assert.Equal(t, tt.want, r.URL.Query().Get("hours"))
				_, _ = w.Write([]byte(`{"points":[{"timestamp":20,"blockNumber":2,"totalTvlUsd":2,"cbtcSupply":1},{"timestamp":10,"blockNumber":1,"totalTvlUsd":1,"cbtcSupply":1}],"generatedAt":"x"}`))
			}))

			got, err := client.FetchTvlHistory(context.Background(), tt.hours)
			require.NoError(t, err)
			require.Len(t, got.Points, 2)
			// transport order is preserved
			assert.Equal(t, int64(20), got.Points[0].Timestamp)
		})
	}
}

func TestFetchEndpoints(t *testing.T) {
	bodies := map[string]string{
		"/api/bridge/summary":    `{"depositAmountCbtc":10,"depositCount":3,"failedDepositCount":1,"withdrawalCount":2,"vaults":[{"name":"v","address":"bc1","balanceCbtc":1.5}],"generatedAt":"x"}`,
		"/api/bridge/timeseries": `{"points":[{"date":"2025-01-01","inflowCbtc":1,"outflowCbtc":2}],"generatedAt":"x"}`,
		"/api/gas/timeseries":    `{"points":[{"time":"t","baseFee":1,"l1Fee":2,"priorityFee":3}],"generatedAt":"x"}`,
		"/api/gas/heatmap":       `{"rows":[{"day":"Mon","hours":[{"hour":3,"value":42}]}],"generatedAt":"x"}`,
		"/api/explorer/summary":  `{"totalTransactions":100,"totalAddresses":null,"tps":1.5,"gasPrices":{"slow":0.01,"average":null,"fast":0.03},"generatedAt":"x","source":null}`,
	}
	client, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	ctx := context.Background()

	summary, err := client.FetchBridgeSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.DepositCount)
	require.Len(t, summary.Vaults, 1)
	assert.Equal(t, 1.5, summary.Vaults[0].BalanceCbtc)

	flows, err := client.FetchBridgeTimeseries(ctx)
	require.NoError(t, err)
	require.Len(t, flows.Points, 1)
	assert.Equal(t, 2.0, flows.Points[0].OutflowCbtc)

	gas, err := client.FetchGasTimeseries(ctx)
	require.NoError(t, err)
	require.Len(t, gas.Points, 1)
	assert.Equal(t, 3.0, gas.Points[0].PriorityFee)

	heatmap, err := client.FetchGasHeatmap(ctx)
	require.NoError(t, err)
	require.Len(t, heatmap.Rows, 1)
	assert.Equal(t, []GasHeatmapCell{{Hour: 3, Value: 42}}, heatmap.Rows[0].Hours, "missing hours stay absent")

	explorer, err := client.FetchExplorerSummary(ctx)
	require.NoError(t, err)
	require.NotNil(t, explorer.TotalTransactions)
	assert.Equal(t, int64(100), *explorer.TotalTransactions)
	assert.Nil(t, explorer.TotalAddresses)
	assert.Nil(t, explorer.Source)
	require.NotNil(t, explorer.GasPrices)
	assert.Nil(t, explorer.GasPrices.Average)

	ops := make([]string, 0, len(m.calls))
	for _, c := range m.calls {
		ops = append(ops, c.operation)
	}
	assert.Equal(t, []string{"bridge_summary", "bridge_timeseries", "gas_timeseries", "gas_heatmap", "explorer_summary"}, ops)
}

func TestFetchNonSuccessStatus(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusServiceUnavailable} {
		client, m := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		_, err := client.FetchExplorerSummary(context.Background())
		require.Error(t, err)

		var remoteErr *RemoteFetchError
		require.True(t, errors.As(err, &remoteErr))
		assert.Equal(t, status, remoteErr.Status)
		assert.Contains(t, err.Error(), "explorer summary")

		require.Len(t, m.calls, 1)
		assert.Error(t, m.calls[0].err)
	}
}

func TestFetchMalformedJSON(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"totalTvlUsd":`))
	}))

	_, err := client.FetchGlobalTvl(context.Background())
	require.Error(t, err)

	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
	var remoteErr *RemoteFetchError
	assert.False(t, errors.As(err, &remoteErr))
}

func TestFetchNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client := NewClient(base, nil, nil)
	_, err := client.FetchBridgeSummary(context.Background())
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "bridge summary", transportErr.Op)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestFetchHonoursContextCancellation(t *testing.T) {
	release := make(chan struct{})
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchGlobalTvl(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
