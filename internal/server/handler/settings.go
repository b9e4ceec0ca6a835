package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nwestbury/tickerbot/internal/config"
)

// SettingsHandler exposes the runtime-mutable trading surface: selected
// symbols, per-symbol thresholds, and the strategy/broker labels. Changes
// apply between cycles; a running cycle keeps the snapshot it started with.
type SettingsHandler struct {
	settings *config.Settings
	logger   *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler.
func NewSettingsHandler(settings *config.Settings, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings: settings,
		logger:   logger.With(slog.String("handler", "settings")),
	}
}

// settingsResponse is the GET payload.
type settingsResponse struct {
	Symbols    []string                    `json:"symbols"`
	Thresholds map[string]config.Threshold `json:"thresholds"`
	Strategy   string                      `json:"strategy"`
	Broker     string                      `json:"broker"`
}

// settingsRequest is the PUT body. Absent fields leave their setting
// untouched.
type settingsRequest struct {
	Symbols    []string                    `json:"symbols"`
	Thresholds map[string]config.Threshold `json:"thresholds"`
	Strategy   string                      `json:"strategy"`
	Broker     string                      `json:"broker"`
}

// GetSettings returns the current runtime settings.
// GET /api/config
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	snap := h.settings.Snapshot()

	resp := settingsResponse{
		Symbols:    make([]string, 0, len(snap.Instruments)),
		Thresholds: make(map[string]config.Threshold, len(snap.Instruments)),
		Strategy:   snap.Strategy,
		Broker:     snap.Broker,
	}
	for _, inst := range snap.Instruments {
		resp.Symbols = append(resp.Symbols, inst.Symbol)
		resp.Thresholds[inst.Symbol] = config.Threshold{
			Buy:  inst.BuyThreshold,
			Sell: inst.SellThreshold,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateSettings applies a settings change. Threshold misconfigurations
// (buy >= sell) are accepted but returned as warnings and logged.
// PUT /api/config
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	warnings, err := h.settings.Apply(config.Update{
		Symbols:    req.Symbols,
		Thresholds: req.Thresholds,
		Strategy:   req.Strategy,
		Broker:     req.Broker,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, warn := range warnings {
		h.logger.WarnContext(r.Context(), "settings warning", slog.String("warning", warn))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"warnings": warnings,
	})
}
