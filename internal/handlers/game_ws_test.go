package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialRoom(t *testing.T, ctx context.Context, ts *httptest.Server, roomID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rooms/" + roomID + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{gameSubprotocol},
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + token}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func readMessage(t *testing.T, ctx context.Context, c *websocket.Conn) ServerMessage {
	t.Helper()
	var msg ServerMessage
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	return msg
}

func TestGameWSPushesProjections(t *testing.T) {
	f := newAPIFixture(t)
	f.seatedRoom(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bob := dialRoom(t, ctx, ts, "r1", f.bob)
	hello := readMessage(t, ctx, bob)
	require.Equal(t, "state", hello.Type)
	assert.Equal(t, models.PhaseLobby, hello.State.GamePhase)
	assert.Len(t, hello.State.Players, 2)
	require.Eventually(t, func() bool { return f.srv.Hub().Connections("r1") == 1 }, time.Second, 10*time.Millisecond)

	w := f.do(t, http.MethodPost, "/rooms/r1/actions", f.alice, submitBody(game.ActionStartNewRound, ""))
	require.Equal(t, http.StatusOK, w.Code)

	pushed := readMessage(t, ctx, bob)
	require.Equal(t, "state", pushed.Type)
	assert.Equal(t, models.PhasePeeking, pushed.State.GamePhase)
	assert.Equal(t, "bob", pushed.State.ViewerID)
	for _, slot := range pushed.State.Players[0].Hand {
		assert.Equal(t, models.HiddenCard, slot.Card)
	}
	for _, slot := range pushed.State.Players[1].Hand {
		assert.NotEqual(t, models.HiddenCard, slot.Card)
	}
}

func TestGameWSActionsAndErrors(t *testing.T) {
	f := newAPIFixture(t)
	f.seatedRoom(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice := dialRoom(t, ctx, ts, "r1", f.alice)
	require.Equal(t, "state", readMessage(t, ctx, alice).Type)

	require.NoError(t, wsjson.Write(ctx, alice, GameMessage{Type: "ping"}))
	assert.Equal(t, "pong", readMessage(t, ctx, alice).Type)

	require.NoError(t, wsjson.Write(ctx, alice, GameMessage{
		Type:   "action",
		Action: &game.Envelope{Type: game.ActionCallPobudka},
	}))
	failed := readMessage(t, ctx, alice)
	assert.Equal(t, "error", failed.Type)
	assert.Equal(t, game.CodeWrongPhase, failed.Code)

	require.NoError(t, wsjson.Write(ctx, alice, GameMessage{
		Type:           "action",
		Action:         &game.Envelope{Type: game.ActionStartNewRound},
		IdempotencyKey: "ws-start",
	}))
	// The state push is queued before the action result.
	state := readMessage(t, ctx, alice)
	require.Equal(t, "state", state.Type)
	assert.Equal(t, models.PhasePeeking, state.State.GamePhase)
	result := readMessage(t, ctx, alice)
	require.Equal(t, "action_result", result.Type)
	assert.EqualValues(t, 2, result.Version)
	assert.False(t, result.Replayed)

	require.NoError(t, wsjson.Write(ctx, alice, GameMessage{Type: "shout"}))
	unknown := readMessage(t, ctx, alice)
	assert.Equal(t, "error", unknown.Type)
	assert.Equal(t, game.CodeUnknownActionType, unknown.Code)
}

func TestGameWSRejectsUnauthenticated(t *testing.T) {
	f := newAPIFixture(t)
	f.seatedRoom(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rooms/r1/ws"
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{gameSubprotocol}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	c, resp, err := websocket.Dial(ctx, url+"?token="+f.bob, &websocket.DialOptions{Subprotocols: []string{gameSubprotocol}})
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
}

func TestGameWSUnknownRoom(t *testing.T) {
	f := newAPIFixture(t)
	ts := httptest.NewServer(f.handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/rooms/ghost/ws"
	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{gameSubprotocol},
		HTTPHeader:   http.Header{"Authorization": {"Bearer " + f.alice}},
	})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
