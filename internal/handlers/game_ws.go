// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/middleware"
	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/jason-s-yu/pobudka/internal/room"
	"github.com/sirupsen/logrus"
)

const (
	gameSubprotocol = "game"
	writeTimeout    = 5 * time.Second
	sendBuffer      = 32
)

// GameMessage is an incoming WebSocket message.
//
//	{"type":"action","action":{"type":"DRAW_FROM_DECK"},"idempotencyKey":"k1"}
//	{"type":"state"}
//	{"type":"ping"}
type GameMessage struct {
	Type           string         `json:"type"`
	Action         *game.Envelope `json:"action,omitempty"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
}

// ServerMessage is pushed to clients. Exactly one payload field is set.
type ServerMessage struct {
	Type     string                `json:"type"`
	State    *game.ViewerGameState `json:"state,omitempty"`
	Result   json.RawMessage       `json:"result,omitempty"`
	Replayed bool                  `json:"replayed,omitempty"`
	Version  int64                 `json:"version,omitempty"`
	Code     game.Code             `json:"code,omitempty"`
	Message  string                `json:"message,omitempty"`
}

// client is one connected viewer. Every write goes through send so pushes
// reach the socket in commit order.
type client struct {
	conn     *websocket.Conn
	playerID string
	send     chan []byte
	once     sync.Once
}

func (c *client) enqueue(logger *logrus.Logger, msg ServerMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.WithError(err).Errorf("Failed to marshal %s message", msg.Type)
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *client) drop() {
	c.once.Do(func() {
		c.conn.Close(SlowConsumerError, "Client is not keeping up with room updates.")
	})
}

// writeLoop drains the send queue until ctx ends.
func (c *client) writeLoop(ctx context.Context, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Warnf("Failed to write message to player %s: %v", c.playerID, err)
				}
				return
			}
		}
	}
}

// Hub fans committed room states out to connected viewers, each receiving
// only their own projection.
type Hub struct {
	logger *logrus.Logger
	svc    *room.Service

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger, svc *room.Service) *Hub {
	return &Hub{
		logger: logger,
		svc:    svc,
		rooms:  make(map[string]map[*client]struct{}),
	}
}

func (h *Hub) add(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*client]struct{})
	}
	h.rooms[roomID][c] = struct{}{}
}

func (h *Hub) remove(roomID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[roomID], c)
	if len(h.rooms[roomID]) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) clients(roomID string) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.rooms[roomID]))
	for c := range h.rooms[roomID] {
		out = append(out, c)
	}
	return out
}

// Connections reports how many viewers are attached to roomID.
func (h *Hub) Connections(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// RoomChanged implements room.Notifier. It runs under the room lock, so it
// only projects and enqueues.
func (h *Hub) RoomChanged(roomID string, state models.GameState) {
	if state.GamePhase == models.PhaseLobby {
		h.Refresh(context.Background(), roomID)
		return
	}
	for _, c := range h.clients(roomID) {
		view := game.Project(state, c.playerID, nil)
		if view == nil {
			continue
		}
		if !c.enqueue(h.logger, ServerMessage{Type: "state", State: view}) {
			h.logger.Warnf("Dropping slow viewer %s in room %s", c.playerID, roomID)
			c.drop()
		}
	}
}

// Refresh re-reads roomID and pushes every viewer's projection. It is used
// when the lobby roster changes without an action being applied.
func (h *Hub) Refresh(ctx context.Context, roomID string) {
	for _, c := range h.clients(roomID) {
		h.pushState(ctx, roomID, c)
	}
}

func (h *Hub) pushState(ctx context.Context, roomID string, c *client) {
	view, err := h.svc.QueryState(ctx, roomID, c.playerID)
	if err != nil {
		h.logger.WithError(err).WithField("room", roomID).Warn("Failed to load room state for push")
		return
	}
	if view == nil {
		return
	}
	if !c.enqueue(h.logger, ServerMessage{Type: "state", State: view}) {
		c.drop()
	}
}

// handleGameWS upgrades the request to a WebSocket bound to one room. The
// caller must be authenticated before the upgrade.
func (s *Server) handleGameWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	playerID, err := s.keys.Authenticate(r)
	if err != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing or invalid auth token", http.StatusUnauthorized)
			return
		}
		if playerID, err = s.keys.AuthenticateJWT(token); err != nil {
			http.Error(w, "missing or invalid auth token", http.StatusUnauthorized)
			return
		}
	}
	if _, err := s.svc.QueryState(r.Context(), roomID, playerID); err != nil {
		writeError(w, s.logger, err)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{gameSubprotocol},
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warnf("WebSocket accept error for room %s: %v", roomID, err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "Internal server error during handler exit.")

	if c.Subprotocol() != gameSubprotocol {
		c.Close(BadSubprotocolError, "Client must use the 'game' subprotocol.")
		return
	}
	middleware.LogWebSocketConnect(s.logger, r.RemoteAddr, r.URL.Path, roomID, playerID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	cl := &client{conn: c, playerID: playerID, send: make(chan []byte, sendBuffer)}
	s.hub.add(roomID, cl)
	defer s.hub.remove(roomID, cl)
	go cl.writeLoop(ctx, s.logger)

	s.hub.pushState(ctx, roomID, cl)
	err = s.readGameMessages(ctx, cl, roomID)
	middleware.LogWebSocketDisconnect(s.logger, r.RemoteAddr, r.URL.Path, err)
	if err == nil {
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readGameMessages handles client messages until the socket closes. A normal
// closure returns nil.
func (s *Server) readGameMessages(ctx context.Context, cl *client, roomID string) error {
	for {
		msgType, data, err := cl.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			s.logger.Warnf("Received non-text message type %d from player %s. Ignoring.", msgType, cl.playerID)
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendWsError(cl, game.WrapError(game.CodeInvalidActionShape, "Invalid JSON format.", err))
			continue
		}

		switch msg.Type {
		case "action":
			s.handleWsAction(ctx, cl, roomID, msg)
		case "state":
			s.hub.pushState(ctx, roomID, cl)
		case "ping":
			s.sendWsMessage(cl, ServerMessage{Type: "pong"})
		default:
			s.sendWsError(cl, game.NewError(game.CodeUnknownActionType, "unknown message type %q", msg.Type))
		}
	}
}

func (s *Server) handleWsAction(ctx context.Context, cl *client, roomID string, msg GameMessage) {
	if msg.Action == nil {
		s.sendWsError(cl, game.NewError(game.CodeInvalidActionShape, "action is required"))
		return
	}
	action, err := msg.Action.Decode()
	if err != nil {
		s.sendWsError(cl, err)
		return
	}
	out, err := s.svc.SubmitAction(ctx, roomID, cl.playerID, action, msg.IdempotencyKey)
	if err != nil {
		s.sendWsError(cl, err)
		return
	}
	s.sendWsMessage(cl, ServerMessage{
		Type:     "action_result",
		Result:   out.Result,
		Replayed: out.Replayed,
		Version:  out.Version,
	})
}

// sendWsMessage queues a reply for the client, dropping the client if its
// queue is full.
func (s *Server) sendWsMessage(cl *client, msg ServerMessage) {
	if !cl.enqueue(s.logger, msg) {
		cl.drop()
	}
}

// sendWsError sends a structured error message to the client.
func (s *Server) sendWsError(cl *client, err error) {
	status, body := errorFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("player", cl.playerID).Error("WebSocket action failed")
	}
	s.sendWsMessage(cl, ServerMessage{Type: "error", Code: body.Code, Message: body.Message})
}
