// Package rates fetches USD conversion multipliers for display currencies.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	coinGeckoAPI = "https://api.coingecko.com/api/v3"

	// DefaultInterval is how often the preference store refreshes rates.
	DefaultInterval = 5 * time.Minute
)

// Snapshot holds USD->EUR and USD->BTC multipliers.
type Snapshot struct {
	EUR       float64   `json:"EUR"`
	BTC       float64   `json:"BTC"`
	FetchedAt time.Time `json:"fetchedAt,omitzero"`
}

// Identity is used until the first successful fetch.
func Identity() Snapshot {
	return Snapshot{EUR: 1, BTC: 1}
}

// Source loads one rate snapshot.
type Source interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// CoinGecko derives both multipliers from the BTC price quoted in USD and EUR.
type CoinGecko struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewCoinGecko builds a source against baseURL, or the public API when empty.
// apiKey is sent as the demo key header when set.
func NewCoinGecko(baseURL, apiKey string, client *http.Client) *CoinGecko {
	if baseURL == "" {
		baseURL = coinGeckoAPI
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &CoinGecko{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type simplePriceResponse struct {
	Bitcoin struct {
		USD float64 `json:"usd"`
		EUR float64 `json:"eur"`
	} `json:"bitcoin"`
}

func (c *CoinGecko) Fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/simple/price?ids=bitcoin&vs_currencies=usd,eur", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coingecko API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("coingecko API: unexpected status %d", resp.StatusCode)
	}

	var body simplePriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode coingecko: %w", err)
	}
	return fromPrices(body.Bitcoin.USD, body.Bitcoin.EUR, time.Now())
}

// fromPrices converts BTC prices into USD multipliers. A zero or negative
// price is rejected so a bad response never replaces a good snapshot.
func fromPrices(btcUSD, btcEUR float64, at time.Time) (*Snapshot, error) {
	if btcUSD <= 0 || btcEUR <= 0 {
		return nil, fmt.Errorf("coingecko: missing bitcoin price (usd=%v eur=%v)", btcUSD, btcEUR)
	}
	usd := decimal.NewFromFloat(btcUSD)
	eur := decimal.NewFromFloat(btcEUR)

	return &Snapshot{
		EUR:       eur.Div(usd).InexactFloat64(),
		BTC:       decimal.NewFromInt(1).Div(usd).InexactFloat64(),
		FetchedAt: at,
	}, nil
}
