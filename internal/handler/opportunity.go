package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/lexibloom/lexibloom/internal/milestone"
	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/store"
	"github.com/lexibloom/lexibloom/internal/websocket"
)

type OpportunityHandler struct {
	tracker *milestone.Tracker
	hub     *websocket.Hub
}

func NewOpportunityHandler(t *milestone.Tracker, hub *websocket.Hub) *OpportunityHandler {
	return &OpportunityHandler{tracker: t, hub: hub}
}

func (h *OpportunityHandler) broadcast(ev websocket.Event) {
	if h.hub != nil {
		h.hub.Broadcast(ev)
	}
}

// Sync materializes opportunities for every milestone the player has crossed
// and returns the newly created ones.
func (h *OpportunityHandler) Sync(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player id"})
		return
	}

	created, err := h.tracker.Sync(playerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to sync opportunities"})
		return
	}
	if created == nil {
		created = []model.RewardOpportunity{}
	}

	for _, opp := range created {
		h.broadcast(websocket.Event{
			Kind:     websocket.KindMilestoneUnlocked,
			PlayerID: playerID,
			Extra:    map[string]any{"milestone": opp.Milestone},
		})
	}

	writeJSON(w, http.StatusOK, created)
}

// List returns all of the player's opportunities, used and unused.
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player id"})
		return
	}

	opps, err := h.tracker.List(playerID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list opportunities"})
		return
	}
	if opps == nil {
		opps = []model.RewardOpportunity{}
	}
	writeJSON(w, http.StatusOK, opps)
}

// Claim spends one opportunity on a chosen reward, exactly once.
func (h *OpportunityHandler) Claim(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player id"})
		return
	}

	m, err := strconv.Atoi(r.PathValue("milestone"))
	if err != nil || !milestone.ValidMilestone(m) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "milestone must be a positive multiple of 500"})
		return
	}

	var req struct {
		RewardID int64 `json:"reward_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.RewardID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reward_id is required"})
		return
	}

	opp, err := h.tracker.Claim(playerID, m, req.RewardID)
	switch {
	case errors.Is(err, store.ErrOpportunityNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "milestone not unlocked"})
		return
	case errors.Is(err, store.ErrOpportunityUsed):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "opportunity already used"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to claim opportunity"})
		return
	}

	h.broadcast(websocket.Event{
		Kind:     websocket.KindOpportunityClaimed,
		PlayerID: playerID,
		Extra:    map[string]any{"milestone": m, "reward_id": req.RewardID},
	})

	writeJSON(w, http.StatusOK, opp)
}
