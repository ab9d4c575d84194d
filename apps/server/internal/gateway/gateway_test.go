package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"chess-persona/apps/server/internal/codec"
	"chess-persona/match"
	"chess-persona/persona"
	"chess-persona/rules"
	"chess-persona/selection"
)

var firstLegal = selection.SearcherFunc(func(_ context.Context, req selection.SearchRequest) (*selection.SearchResult, error) {
	g, err := rules.FromFEN(req.FEN)
	if err != nil {
		return nil, err
	}
	moves := g.LegalMoves()
	sort.Strings(moves)
	return &selection.SearchResult{Lines: []selection.SearchLine{{Move: moves[0], Score: selection.Centipawns(12), PV: moves[:1]}}}, nil
})

type client struct {
	t  *testing.T
	ws *websocket.Conn
}

func dial(t *testing.T, url string) *client {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), nil)
	require.NoError(t, err)
	return &client{t: t, ws: ws}
}

func (c *client) send(typ, sessionID string, payload any) {
	c.t.Helper()
	data, err := codec.Encode(typ, sessionID, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.ws.WriteMessage(websocket.BinaryMessage, data))
}

func (c *client) recv() codec.Message {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	kind, data, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	require.Equal(c.t, websocket.BinaryMessage, kind)
	msg, err := codec.Decode(data)
	require.NoError(c.t, err)
	return msg
}

func TestGatewayPlaysAGame(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := persona.NewDefaultStore(nil, nil)
	g := New(match.NewManager(store, firstLegal, nil), 0, nil)
	srv := httptest.NewServer(http.HandlerFunc(g.HandleWebSocket))
	defer srv.Close()

	c := dial(t, srv.URL)

	c.send("move", "", map[string]any{"uci": "e2e4"})
	msg := c.recv()
	require.Equal(t, "error", msg.Type)
	require.EqualValues(t, CodeNoSession, msg.Payload["code"])

	c.send("create_session", "", map[string]any{"user_name": "alice", "user_side": "white"})
	msg = c.recv()
	require.Equal(t, "state", msg.Type)
	sessionID := msg.SessionID
	require.NotEmpty(t, sessionID)
	require.Equal(t, rules.StartFEN, msg.Payload["fen"])

	c.send("move", sessionID, map[string]any{"uci": "e2e4", "engine_reply": true, "engine_persona": "sensei"})
	msg = c.recv()
	require.Equal(t, "state", msg.Type)
	msg = c.recv()
	require.Equal(t, "engine_move", msg.Type)
	require.Equal(t, "a7a5", msg.Payload["move"])
	require.Greater(t, msg.Seq, uint64(0))

	c.send("move", sessionID, map[string]any{"uci": "e4e6"})
	msg = c.recv()
	require.Equal(t, "error", msg.Type)
	require.EqualValues(t, CodeBadRequest, msg.Payload["code"])

	c.send("analyze", sessionID, nil)
	msg = c.recv()
	require.Equal(t, "analysis", msg.Type)
	require.Equal(t, "12", msg.Payload["score"])

	c.send("resign", sessionID, map[string]any{"resigned_side": "white"})
	msg = c.recv()
	require.Equal(t, "state", msg.Type)
	require.Equal(t, "ended", msg.Payload["status"])
	msg = c.recv()
	require.Equal(t, "pgn", msg.Type)
	require.Contains(t, msg.Payload["pgn"], `[Result "0-1"]`)

	c.send("fly", sessionID, nil)
	msg = c.recv()
	require.EqualValues(t, CodeUnknownType, msg.Payload["code"])

	require.NoError(t, c.ws.WriteMessage(websocket.BinaryMessage, []byte{0xff, 0xff}))
	msg = c.recv()
	require.EqualValues(t, CodeBadFrame, msg.Payload["code"])

	require.NoError(t, c.ws.Close())
	require.Eventually(t, func() bool { return g.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestGatewayJoinAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sessions := match.NewManager(persona.NewDefaultStore(nil, nil), firstLegal, nil)
	existing := sessions.Create()
	g := New(sessions, 0, nil)
	srv := httptest.NewServer(http.HandlerFunc(g.HandleWebSocket))
	defer srv.Close()

	c := dial(t, srv.URL)
	defer c.ws.Close()

	c.send("join", "missing", nil)
	msg := c.recv()
	require.EqualValues(t, CodeNoSession, msg.Payload["code"])

	c.send("join", existing.ID(), nil)
	msg = c.recv()
	require.Equal(t, "state", msg.Type)
	require.Equal(t, existing.ID(), msg.SessionID)

	require.Eventually(t, func() bool { return g.Count() == 1 }, time.Second, 10*time.Millisecond)
	g.Close()
	require.Eventually(t, func() bool { return g.Count() == 0 }, 5*time.Second, 10*time.Millisecond)
}
