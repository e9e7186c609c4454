package handler

import (
	"net/http"

	"github.com/web3-frozen/citrea-watch/internal/settings"
	"github.com/web3-frozen/citrea-watch/internal/store"
)

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

// Ready reports ready once the settings provider is mounted and every
// networked settings backend answers a ping.
func Ready(p *settings.Provider, backends ...store.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.Mounted() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": "settings not mounted"})
			return
		}
		for _, b := range backends {
			if err := b.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "reason": err.Error()})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
