package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lexibloom/lexibloom/internal/localday"
	"github.com/lexibloom/lexibloom/internal/model"
	"github.com/lexibloom/lexibloom/internal/store"
)

// PlayerHandler exposes the thin player registry the engine keeps for
// display names and fallback zones. Identity itself lives in the external
// signup system.
type PlayerHandler struct {
	players *store.PlayerStore
}

func NewPlayerHandler(ps *store.PlayerStore) *PlayerHandler {
	return &PlayerHandler{players: ps}
}

type playerRequest struct {
	DisplayName string `json:"display_name"`
	TimeZone    string `json:"time_zone"`
}

func (h *PlayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "display_name is required"})
		return
	}

	zone := strings.TrimSpace(req.TimeZone)
	if zone == "" || !localday.Valid(zone) {
		zone = localday.DefaultZone
	}

	player, err := h.players.Create(req.DisplayName, zone)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create player"})
		return
	}

	writeJSON(w, http.StatusCreated, player)
}

func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.players.List()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list players"})
		return
	}
	if players == nil {
		players = []model.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid player id"})
		return
	}

	player, err := h.players.GetByID(id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get player"})
		return
	}
	if player == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "player not found"})
		return
	}
	writeJSON(w, http.StatusOK, player)
}
