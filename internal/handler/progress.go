package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/progress"
	"github.com/lexibloom/lexibloom/internal/reconcile"
	"github.com/lexibloom/lexibloom/internal/store"
	"github.com/lexibloom/lexibloom/internal/websocket"
)

type ProgressHandler struct {
	accumulator *progress.Accumulator
	reconciler  *reconcile.Reconciler
	progress    *store.ProgressStore
	hub         *websocket.Hub
}

func NewProgressHandler(a *progress.Accumulator, r *reconcile.Reconciler, ps *store.ProgressStore, hub *websocket.Hub) *ProgressHandler {
	return &ProgressHandler{accumulator: a, reconciler: r, progress: ps, hub: hub}
}

func (h *ProgressHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

type submitRequest struct {
	PlayerID  int64  `json:"player_id"`
	Points    int    `json:"points"`
	Questions int    `json:"questions"`
	Correct   int    `json:"correct"`
	Level     int    `json:"level"`
	TimeZone  string `json:"time_zone"`
}

type submitResponse struct {
	Applied bool                  `json:"applied"`
	Reason  string                `json:"reason,omitempty"`
	Record  *model.ProgressRecord `json:"record,omitempty"`
}

// Submit records one completed game session.
func (h *ProgressHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.PlayerID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "player_id is required"})
		return
	}

	delta := model.ProgressDelta{
		Points:    req.Points,
		Questions: req.Questions,
		Correct:   req.Correct,
		Level:     req.Level,
	}

	record, err := h.accumulator.Submit(req.PlayerID, delta, req.TimeZone)

	var vErr *progress.ValidationError
	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Error()})
		return
	case errors.Is(err, store.ErrDayFinalized):
		// Informational, not fatal: the day rolled over before this
		// submission landed. The deltas are dropped.
		writeJSON(w, http.StatusConflict, submitResponse{
			Applied: false,
			Reason:  "day already finalized",
			Record:  record,
		})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to record progress"})
		return
	}

	h.broadcast(websocket.Event{
		Kind:     websocket.KindProgressUpdated,
		PlayerID: record.PlayerID,
		Day:      record.Day,
		Extra:    map[string]any{"points": record.PointsEarned},
	})

	writeJSON(w, http.StatusOK, submitResponse{Applied: true, Record: record})
}

// Status reports whether today's score is locked and the countdown to
// finalization. The read repairs the player's overdue rows first.
func (h *ProgressHandler) Status(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player id"})
		return
	}

	status, err := h.reconciler.DailyStatus(playerID, r.URL.Query().Get("tz"), time.Now())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load status"})
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// Points returns the player's running total across all days, finalized or
// not. The achievement module consumes this alongside the milestone tracker.
func (h *ProgressHandler) Points(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player id"})
		return
	}

	total, err := h.progress.TotalPoints(playerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sum points"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"player_id": playerID, "total_points": total})
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
