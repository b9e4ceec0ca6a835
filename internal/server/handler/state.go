package handler

import (
	"log/slog"
	"net/http"

	"github.com/nwestbury/tickerbot/internal/engine"
)

// StateHandler serves the aggregate bot state and the trade history over
// plain HTTP, mirroring what WebSocket subscribers receive.
type StateHandler struct {
	snapshotter *engine.Snapshotter
	history     engine.TradeRecorder
	logger      *slog.Logger
}

// NewStateHandler creates a StateHandler.
func NewStateHandler(snapshotter *engine.Snapshotter, history engine.TradeRecorder, logger *slog.Logger) *StateHandler {
	return &StateHandler{
		snapshotter: snapshotter,
		history:     history,
		logger:      logger.With(slog.String("handler", "state")),
	}
}

// GetState returns the full current-state snapshot, identical in shape to a
// data_update event payload.
// GET /api/state
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshotter.Snapshot(r.Context()))
}

// ListTrades returns the complete trade history in fill order.
// GET /api/trades
func (h *StateHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": h.history.AllTrades(),
	})
}
