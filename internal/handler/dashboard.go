package handler

import (
	"net/http"
	"time"

	"github.com/web3-frozen/citrea-watch/internal/monitor"
	"github.com/web3-frozen/citrea-watch/internal/settings"
	"github.com/web3-frozen/citrea-watch/internal/view"
)

// Dashboard serves the derived dashboard views, formatted with the current
// preferences.
type Dashboard struct {
	engine   *monitor.Engine
	settings *settings.Provider
	now      func() time.Time
}

func NewDashboard(engine *monitor.Engine, p *settings.Provider) *Dashboard {
	return &Dashboard{engine: engine, settings: p, now: time.Now}
}

func (d *Dashboard) ready(w http.ResponseWriter) bool {
	if !d.settings.Mounted() {
		writeError(w, http.StatusServiceUnavailable, "settings not mounted")
		return false
	}
	return true
}

// Overview accepts ?period=24H|7D|30D|ALL for the TVL chart.
func (d *Dashboard) Overview(w http.ResponseWriter, r *http.Request) {
	if !d.ready(w) {
		return
	}
	period, err := view.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d.overview(period))
}

func (d *Dashboard) Bridge(w http.ResponseWriter, _ *http.Request) {
	if !d.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, d.bridge())
}

func (d *Dashboard) Gas(w http.ResponseWriter, _ *http.Request) {
	if !d.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, d.gas())
}

func (d *Dashboard) overview(period view.Period) view.Overview {
	return view.BuildOverview(view.Capture(d.engine), d.settings.Formatter(), period, d.now())
}

func (d *Dashboard) bridge() view.Bridge {
	return view.BuildBridge(view.Capture(d.engine), d.settings.Formatter())
}

func (d *Dashboard) gas() view.Gas {
	return view.BuildGas(view.Capture(d.engine), d.settings.Formatter())
}
