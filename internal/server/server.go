package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/lexibloom/lexibloom/internal/handler"
	"github.com/lexibloom/lexibloom/internal/leaderboard"
	"github.com/lexibloom/lexibloom/internal/middleware"
	"github.com/lexibloom/lexibloom/internal/milestone"
	"github.com/lexibloom/lexibloom/internal/progress"
	"github.com/lexibloom/lexibloom/internal/reconcile"
	"github.com/lexibloom/lexibloom/internal/store"
	ws "github.com/lexibloom/lexibloom/internal/websocket"
)

type Server struct {
	db           *sql.DB
	hub          *ws.Hub
	progressH    *handler.ProgressHandler
	leaderboardH *handler.LeaderboardHandler
	opportunityH *handler.OpportunityHandler
	playerH      *handler.PlayerHandler
	reconciler   *reconcile.Reconciler
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	progressStore := store.NewProgressStore(db)
	opportunityStore := store.NewOpportunityStore(db)
	playerStore := store.NewPlayerStore(db)

	accumulator := progress.NewAccumulator(progressStore, playerStore, logger.With("component", "accumulator"))
	reconciler := reconcile.NewReconciler(progressStore, logger.With("component", "reconciler"))
	builder := leaderboard.NewBuilder(progressStore, reconciler, logger.With("component", "leaderboard"))
	tracker := milestone.NewTracker(progressStore, opportunityStore, logger.With("component", "milestone"))

	return &Server{
		db:           db,
		hub:          hub,
		progressH:    handler.NewProgressHandler(accumulator, reconciler, progressStore, hub),
		leaderboardH: handler.NewLeaderboardHandler(builder),
		opportunityH: handler.NewOpportunityHandler(tracker, hub),
		playerH:      handler.NewPlayerHandler(playerStore),
		reconciler:   reconciler,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// Hub returns the event hub, for background components that broadcast.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Reconciler returns the reconciler, for the sweep loop the process owns.
func (s *Server) Reconciler() *reconcile.Reconciler {
	return s.reconciler
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Write path: the game module submits one request per completed session.
	mux.HandleFunc("POST /api/progress", s.rateLimitedHandler(s.progressH.Submit))

	// Read paths. Status and leaderboard repair overdue rows before reading.
	mux.HandleFunc("GET /api/players/{id}/status", s.progressH.Status)
	mux.HandleFunc("GET /api/players/{id}/points", s.progressH.Points)
	mux.HandleFunc("GET /api/leaderboard", s.leaderboardH.Get)

	// Reward opportunities
	mux.HandleFunc("POST /api/players/{id}/opportunities/sync", s.opportunityH.Sync)
	mux.HandleFunc("GET /api/players/{id}/opportunities", s.opportunityH.List)
	mux.HandleFunc("POST /api/players/{id}/opportunities/{milestone}/claim", s.opportunityH.Claim)

	// Player registry
	mux.HandleFunc("POST /api/players", s.playerH.Create)
	mux.HandleFunc("GET /api/players", s.playerH.List)
	mux.HandleFunc("GET /api/players/{id}", s.playerH.Get)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 60, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
