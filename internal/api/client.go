// Package api is the typed client for the dashboard backend. Each call is a
// single live round-trip: no retries, no caching, no de-duplication.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	pathGlobalTvl        = "/api/tvl/global"
	pathTvlHistory       = "/api/tvl/history"
	pathBridgeSummary    = "/api/bridge/summary"
	pathBridgeTimeseries = "/api/bridge/timeseries"
	pathGasTimeseries    = "/api/gas/timeseries"
	pathGasHeatmap       = "/api/gas/heatmap"
	pathExplorerSummary  = "/api/explorer/summary"

	// DefaultHistoryHours is the TVL history window used when none is given.
	DefaultHistoryHours = 24 * 30
)

type (
	// Metrics records the outcome of every outgoing request.
	Metrics interface {
		Observe(operation string, err error, started time.Time)
	}

	noopMetrics struct{}
)

func (noopMetrics) Observe(string, error, time.Time) {}

// Client issues GET requests against a configured backend base address.
type Client struct {
	baseURL string
	client  *http.Client
	metrics Metrics
}

// NewClient constructs a Client. A nil httpClient gets a 15s timeout client;
// a nil metrics recorder disables instrumentation.
func NewClient(baseURL string, httpClient *http.Client, metrics Metrics) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
		metrics: metrics,
	}
}

func (c *Client) FetchGlobalTvl(ctx context.Context) (*GlobalTvl, error) {
	var out GlobalTvl
	if err := c.getJSON(ctx, "tvl_global", "TVL", pathGlobalTvl, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchTvlHistory returns the TVL history for the trailing window of hours.
// A non-positive window falls back to DefaultHistoryHours.
func (c *Client) FetchTvlHistory(ctx context.Context, hours int) (*TvlHistory, error) {
	if hours <= 0 {
		hours = DefaultHistoryHours
	}
	q := url.Values{}
	q.Set("hours", strconv.Itoa(hours))

	var out TvlHistory
	if err := c.getJSON(ctx, "tvl_history", "TVL history", pathTvlHistory+"?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchBridgeSummary(ctx context.Context) (*BridgeSummary, error) {
	var out BridgeSummary
	if err := c.getJSON(ctx, "bridge_summary", "bridge summary", pathBridgeSummary, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchBridgeTimeseries(ctx context.Context) (*BridgeTimeseries, error) {
	var out BridgeTimeseries
	if err := c.getJSON(ctx, "bridge_timeseries", "bridge timeseries", pathBridgeTimeseries, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchGasTimeseries(ctx context.Context) (*GasTimeseries, error) {
	var out GasTimeseries
	if err := c.getJSON(ctx, "gas_timeseries", "gas timeseries", pathGasTimeseries, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchGasHeatmap(ctx context.Context) (*GasHeatmap, error) {
	var out GasHeatmap
	if err := c.getJSON(ctx, "gas_heatmap", "gas heatmap", pathGasHeatmap, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchExplorerSummary(ctx context.Context) (*ExplorerSummary, error) {
	var out ExplorerSummary
	if err := c.getJSON(ctx, "explorer_summary", "explorer summary", pathExplorerSummary, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// getJSON performs one uncached GET and decodes the body into out.
// Non-2xx statuses yield *RemoteFetchError, everything else that goes wrong
// yields *TransportError.
func (c *Client) getJSON(ctx context.Context, operation, label, path string, out any) (err error) {
	started := time.Now()
	defer func() {
		c.metrics.Observe(operation, err, started)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &TransportError{Op: label, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: label, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteFetchError{Op: label, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: label, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
