package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/web3-frozen/citrea-watch/internal/metrics"
	"github.com/web3-frozen/citrea-watch/internal/rates"
	"github.com/web3-frozen/citrea-watch/internal/settings"
)

// SettingsState is the preference record plus everything derived from it.
type SettingsState struct {
	Settings           settings.UserSettings `json:"settings"`
	ResolvedTheme      settings.Theme        `json:"resolvedTheme"`
	RootClass          []string              `json:"rootClass"`
	RefreshIntervalSec int                   `json:"refreshIntervalSec"`
	Rates              rates.Snapshot        `json:"rates"`
}

func stateOf(p *settings.Provider) SettingsState {
	return SettingsState{
		Settings:           p.Settings(),
		ResolvedTheme:      p.ResolvedTheme(),
		RootClass:          p.RootClass(),
		RefreshIntervalSec: int(p.RefreshInterval() / time.Second),
		Rates:              p.Rates(),
	}
}

type Settings struct {
	provider *settings.Provider
	scheme   *settings.SchemeSignal
	logger   *zap.Logger
}

func NewSettings(p *settings.Provider, scheme *settings.SchemeSignal, logger *zap.Logger) *Settings {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Settings{provider: p, scheme: scheme, logger: logger}
}

func (s *Settings) Get(w http.ResponseWriter, _ *http.Request) {
	if !s.provider.Mounted() {
		writeError(w, http.StatusServiceUnavailable, "settings not mounted")
		return
	}
	writeJSON(w, http.StatusOK, stateOf(s.provider))
}

type updateRequest struct {
	Value any `json:"value"`
}

// Update handles PUT /settings/{key} with a {"value": ...} body. A failed
// write to storage answers 500 but the new value stays in effect.
func (s *Settings) Update(w http.ResponseWriter, r *http.Request) {
	if !s.provider.Mounted() {
		writeError(w, http.StatusServiceUnavailable, "settings not mounted")
		return
	}
	key := settings.Key(chi.URLParam(r, "key"))

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.observe(key, "bad_request")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.provider.UpdateSetting(r.Context(), key, req.Value)
	switch {
	case errors.Is(err, settings.ErrUnknownKey):
		s.observe(key, "unknown_key")
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, settings.ErrInvalidValue):
		s.observe(key, "invalid")
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.observe(key, "persist_error")
		s.logger.Error("setting update not persisted", zap.String("key", string(key)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to persist settings")
	default:
		s.observe(key, "success")
		s.logger.Info("setting updated", zap.String("key", string(key)), zap.Any("value", req.Value))
		writeJSON(w, http.StatusOK, stateOf(s.provider))
	}
}

type schemeRequest struct {
	Dark *bool `json:"dark"`
}

// SystemScheme records the color scheme reported by the browser.
func (s *Settings) SystemScheme(w http.ResponseWriter, r *http.Request) {
	var req schemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Dark == nil {
		writeError(w, http.StatusBadRequest, `body must be {"dark": true|false}`)
		return
	}
	s.scheme.Set(*req.Dark)
	writeJSON(w, http.StatusOK, stateOf(s.provider))
}

func (s *Settings) observe(key settings.Key, status string) {
	label := string(key)
	if status == "unknown_key" || status == "bad_request" {
		label = "other"
	}
	metrics.SettingsUpdatesTotal.WithLabelValues(label, status).Inc()
}
