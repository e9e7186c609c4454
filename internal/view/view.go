// Package view derives the dashboard view models from the latest feed
// states. Builders are pure: they take captured states and a formatter and
// never block on the network.
package view

import (
	"time"

	"github.com/web3-frozen/citrea-watch/internal/api"
	"github.com/web3-frozen/citrea-watch/internal/monitor"
	"github.com/web3-frozen/citrea-watch/internal/poller"
)

// Feed is the loading/error status of one feed as seen by a view.
type Feed struct {
	Loading   bool      `json:"loading"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

func feedOf[T any](s poller.State[T]) Feed {
	return Feed{Loading: s.Loading, Error: s.Error, UpdatedAt: s.UpdatedAt}
}

// Metric pairs a raw value with its rendering. Value is null when unknown
// and Display is then the placeholder.
type Metric struct {
	Value   *float64 `json:"value"`
	Display string   `json:"display"`
}

func metric(v *float64, render func(*float64) string) Metric {
	return Metric{Value: v, Display: render(v)}
}

// Inputs is a consistent capture of every feed state.
type Inputs struct {
	GlobalTvl        poller.State[api.GlobalTvl]
	TvlHistory       poller.State[api.TvlHistory]
	BridgeSummary    poller.State[api.BridgeSummary]
	BridgeTimeseries poller.State[api.BridgeTimeseries]
	Gas              poller.State[monitor.GasData]
	Explorer         poller.State[api.ExplorerSummary]
}

// Capture reads the current state of every engine feed.
func Capture(e *monitor.Engine) Inputs {
	return Inputs{
		GlobalTvl:        e.GlobalTvl().State(),
		TvlHistory:       e.TvlHistory().State(),
		BridgeSummary:    e.BridgeSummary().State(),
		BridgeTimeseries: e.BridgeTimeseries().State(),
		Gas:              e.Gas().State(),
		Explorer:         e.ExplorerSummary().State(),
	}
}

func (in Inputs) gasSeries() *api.GasTimeseries {
	if in.Gas.Data == nil {
		return nil
	}
	return in.Gas.Data.First
}

func (in Inputs) gasHeatmap() *api.GasHeatmap {
	if in.Gas.Data == nil {
		return nil
	}
	return in.Gas.Data.Second
}

func (in Inputs) tokens() []api.TokenTvl {
	if in.GlobalTvl.Data == nil {
		return nil
	}
	return in.GlobalTvl.Data.Tokens
}

func intValue(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func ptr(v float64) *float64 { return &v }
