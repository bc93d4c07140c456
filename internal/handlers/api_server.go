// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"

	"github.com/jason-s-yu/pobudka/internal/auth"
	"github.com/jason-s-yu/pobudka/internal/database"
	"github.com/jason-s-yu/pobudka/internal/middleware"
	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/jason-s-yu/pobudka/internal/room"
	"github.com/sirupsen/logrus"
)

// Seating manages the lobby roster that a round is dealt from.
type Seating interface {
	JoinRoom(ctx context.Context, roomID string, seat models.Seat) error
	LeaveRoom(ctx context.Context, roomID, playerID string) error
	ListSeats(ctx context.Context, roomID string) ([]models.Seat, error)
}

// StatsReader serves per-player aggregates.
type StatsReader interface {
	GetPlayerStats(ctx context.Context, playerID string) (database.PlayerStats, error)
}

// Server holds everything the HTTP and WebSocket handlers need.
type Server struct {
	logger *logrus.Logger
	svc    *room.Service
	keys   *auth.Keys
	seats  Seating
	hub    *Hub
	stats  StatsReader
}

// NewServer builds the API server and registers its hub as the service's
// commit notifier.
func NewServer(logger *logrus.Logger, svc *room.Service, keys *auth.Keys, seats Seating) *Server {
	s := &Server{
		logger: logger,
		svc:    svc,
		keys:   keys,
		seats:  seats,
		hub:    NewHub(logger, svc),
	}
	svc.SetNotifier(s.hub)
	return s
}

// SetStats enables GET /players/{playerID}/stats.
func (s *Server) SetStats(stats StatsReader) {
	s.stats = stats
}

// Hub returns the WebSocket hub that pushes room updates.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Routes returns the full HTTP surface wrapped in request logging.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /session", s.handleSession)
	mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	mux.HandleFunc("POST /rooms/{roomID}/seats", s.handleJoin)
	mux.HandleFunc("DELETE /rooms/{roomID}/seats", s.handleLeave)
	mux.HandleFunc("POST /rooms/{roomID}/actions", s.handleSubmitAction)
	mux.HandleFunc("GET /rooms/{roomID}/state", s.handleState)
	mux.HandleFunc("GET /rooms/{roomID}/ws", s.handleGameWS)
	if s.stats != nil {
		mux.HandleFunc("GET /players/{playerID}/stats", s.handleStats)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return middleware.LogMiddleware(s.logger)(mux)
}
