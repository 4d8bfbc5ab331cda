package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/lexibloom/lexibloom/internal/leaderboard"
	"github.com/lexibloom/lexibloom/internal/localday"
)

type LeaderboardHandler struct {
	builder *leaderboard.Builder
}

func NewLeaderboardHandler(b *leaderboard.Builder) *LeaderboardHandler {
	return &LeaderboardHandler{builder: b}
}

// Get serves the ranked board for ?day= (defaulting to the latest day with
// finalized rows) limited to ?limit= entries.
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	day := r.URL.Query().Get("day")
	if day != "" && !localday.ValidDay(day) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "day must be YYYY-MM-DD"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = n
	}

	board, err := h.builder.Build(day, limit, time.Now())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to build leaderboard"})
		return
	}

	writeJSON(w, http.StatusOK, board)
}
