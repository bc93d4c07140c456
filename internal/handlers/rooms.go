// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pobudka/internal/auth"
	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/models"
)

type createRoomRequest struct {
	RoomID string          `json:"roomId,omitempty"`
	Mode   models.GameMode `json:"mode,omitempty"`
}

type createRoomResponse struct {
	RoomID  string          `json:"roomId"`
	Mode    models.GameMode `json:"mode"`
	Version int64           `json:"version"`
}

type joinRequest struct {
	Name      string `json:"name"`
	Seat      int    `json:"seat,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

type submitActionRequest struct {
	Action         *game.Envelope `json:"action"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
}

// decodeBody decodes an optional JSON body into v. An empty body is accepted.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return game.WrapError(game.CodeInvalidActionShape, "malformed request body", err)
}

// caller authenticates the request, writing a 401 when it fails.
func (s *Server) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	playerID, err := s.keys.Authenticate(r)
	if err != nil {
		http.Error(w, "missing or invalid auth token", http.StatusUnauthorized)
		return "", false
	}
	return playerID, true
}

// handleSession returns the caller's identity, minting a guest identity and
// cookie when the request carries no valid token.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if playerID, err := s.keys.Authenticate(r); err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"playerId": playerID})
		return
	}

	playerID := uuid.NewString()
	token, err := s.keys.CreateJWT(playerID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
	})
	s.logger.WithField("player", playerID).Debug("issued guest session")
	writeJSON(w, http.StatusCreated, map[string]string{"playerId": playerID, "token": token})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	hostID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createRoomRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	doc, err := s.svc.CreateRoom(r.Context(), req.RoomID, hostID, req.Mode)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, createRoomResponse{
		RoomID:  doc.RoomID,
		Mode:    doc.State.GameMode,
		Version: doc.Version,
	})
}

// handleJoin seats the caller in a room that is still in its lobby. Without an
// explicit seat the caller keeps their current one or takes the next free one.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	playerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	roomID := r.PathValue("roomID")
	var req joinRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.requireLobby(r, roomID); err != nil {
		writeError(w, s.logger, err)
		return
	}

	seats, err := s.seats.ListSeats(r.Context(), roomID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	seat := models.Seat{PlayerID: playerID, Name: req.Name, Seat: req.Seat, Anonymous: req.Anonymous}
	if seat.Name == "" {
		seat.Name = "Guest"
	}
	if seat.Seat == 0 {
		seat.Seat = nextSeat(seats, playerID)
	}
	for _, other := range seats {
		if other.Seat == seat.Seat && other.PlayerID != playerID {
			writeError(w, s.logger, game.NewError(game.CodeInvalidTarget, "seat %d is taken", seat.Seat))
			return
		}
	}
	if err := s.seats.JoinRoom(r.Context(), roomID, seat); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.hub.Refresh(r.Context(), roomID)
	writeJSON(w, http.StatusOK, seat)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	playerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	roomID := r.PathValue("roomID")
	if err := s.requireLobby(r, roomID); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if err := s.seats.LeaveRoom(r.Context(), roomID, playerID); err != nil {
		writeError(w, s.logger, err)
		return
	}
	s.hub.Refresh(r.Context(), roomID)
	w.WriteHeader(http.StatusNoContent)
}

// requireLobby fails unless roomID exists and has not started a round yet.
func (s *Server) requireLobby(r *http.Request, roomID string) error {
	view, err := s.svc.QueryState(r.Context(), roomID, "")
	if err != nil {
		return err
	}
	if view == nil || view.GamePhase != models.PhaseLobby {
		return game.NewError(game.CodeWrongPhase, "seats can only change in the lobby")
	}
	return nil
}

func nextSeat(seats []models.Seat, playerID string) int {
	highest := 0
	for _, s := range seats {
		if s.PlayerID == playerID {
			return s.Seat
		}
		highest = max(highest, s.Seat)
	}
	return highest + 1
}

// handleSubmitAction applies one action for the caller. The idempotency key is
// taken from the body or the Idempotency-Key header.
func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	playerID, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req submitActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}
	if req.Action == nil {
		writeError(w, s.logger, game.NewError(game.CodeInvalidActionShape, "action is required"))
		return
	}
	action, err := req.Action.Decode()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	key := req.IdempotencyKey
	if key == "" {
		key = r.Header.Get("Idempotency-Key")
	}

	out, err := s.svc.SubmitAction(r.Context(), r.PathValue("roomID"), playerID, action, key)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleState returns the caller's projection. Anonymous viewers may only
// read rooms whose current phase needs no identity.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	viewerID, err := s.keys.Authenticate(r)
	if err != nil && !errors.Is(err, auth.ErrNoToken) {
		http.Error(w, "invalid auth token", http.StatusUnauthorized)
		return
	}
	view, err := s.svc.QueryState(r.Context(), r.PathValue("roomID"), viewerID)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if view == nil {
		http.Error(w, "viewer identity required", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.GetPlayerStats(r.Context(), r.PathValue("playerID"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
