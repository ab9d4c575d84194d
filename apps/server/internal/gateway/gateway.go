// Package gateway serves live games over WebSocket. Clients send binary
// codec frames; each request is answered on the same connection.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chess-persona/apps/server/internal/codec"
	"chess-persona/match"
	"chess-persona/persona"
	"chess-persona/rules"
)

const (
	readLimit      = 65536
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	writeWait      = 10 * time.Second
	requestTimeout = 30 * time.Second
	sendBuffer     = 64
)

// Error codes carried in "error" frames.
const (
	CodeBadFrame    = 1
	CodeNoSession   = 2
	CodeBadRequest  = 3
	CodeGameOver    = 4
	CodeEngine      = 5
	CodeUnknownType = 6
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// TODO: restrict to the configured frontend origin once it has one.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Connection is one WebSocket client bound to at most one session.
type Connection struct {
	ID      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	gateway *Gateway
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	session *match.Session
}

// Gateway manages WebSocket connections.
type Gateway struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	nextConnID  uint64
	seq         uint64
	sessions    *match.Manager
	engineTime  time.Duration
	logger      *zap.Logger
}

func New(sessions *match.Manager, engineTime time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engineTime <= 0 {
		engineTime = persona.DefaultEngineTime
	}
	return &Gateway{
		connections: make(map[string]*Connection),
		sessions:    sessions,
		engineTime:  engineTime,
		logger:      logger.Named("gateway"),
	}
}

// HandleWebSocket upgrades the request and starts the connection pumps.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:      fmt.Sprintf("conn_%d", g.nextConnID),
		conn:    ws,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		gateway: g,
		ctx:     ctx,
		cancel:  cancel,
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	g.logger.Info("client connected", zap.String("conn", c.ID), zap.Int("total", total))

	go c.readPump()
	go c.writePump()
}

// Count returns the number of live connections.
func (g *Gateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// Close drops every connection.
func (g *Gateway) Close() {
	g.mu.RLock()
	conns := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		conns = append(conns, c)
	}
	g.mu.RUnlock()
	for _, c := range conns {
		c.shutdown()
	}
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()
	g.logger.Info("client disconnected", zap.String("conn", c.ID), zap.Int("total", total))
}

func (c *Connection) shutdown() {
	c.once.Do(func() {
		c.cancel()
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Connection) readPump() {
	defer func() {
		c.gateway.removeConnection(c)
		c.shutdown()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.gateway.logger.Warn("read error", zap.String("conn", c.ID), zap.Error(err))
			}
			return
		}
		if messageType == websocket.BinaryMessage {
			c.handleMessage(data)
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reply queues a server frame. Frames for a closed connection are dropped.
func (c *Connection) reply(typ, sessionID string, payload any) {
	data, err := codec.EncodeServer(typ, sessionID, atomic.AddUint64(&c.gateway.seq, 1), payload)
	if err != nil {
		c.gateway.logger.Error("encode reply", zap.String("type", typ), zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *Connection) sendError(sessionID string, code int, msg string) {
	c.reply("error", sessionID, map[string]any{"code": code, "message": msg})
}

func (c *Connection) current() *match.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Connection) bind(s *match.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

type playersPayload struct {
	UserName     string `json:"user_name"`
	UserSide     string `json:"user_side"`
	OpponentName string `json:"opponent_name"`
}

func (p playersPayload) players() match.Players {
	return match.Players{UserName: p.UserName, OpponentName: p.OpponentName, UserSide: rules.Side(p.UserSide)}
}

type enginePayload struct {
	EnginePersona  string   `json:"engine_persona"`
	OpponentPreset string   `json:"opponent_preset"`
	EngineTime     *float64 `json:"engine_time"`
	RNGSeed        *int64   `json:"rng_seed"`
}

type movePayload struct {
	enginePayload
	UCI         string `json:"uci"`
	EngineReply bool   `json:"engine_reply"`
}

type analyzePayload struct {
	FEN       string   `json:"fen"`
	TimeLimit *float64 `json:"time_limit"`
}

type resignPayload struct {
	ResignedSide string `json:"resigned_side"`
}

func (c *Connection) handleMessage(data []byte) {
	msg, err := codec.Decode(data)
	if err != nil {
		c.sendError("", CodeBadFrame, "invalid message format")
		return
	}
	c.gateway.logger.Debug("frame received",
		zap.String("conn", c.ID), zap.String("type", msg.Type), zap.String("session", msg.SessionID))

	switch msg.Type {
	case "create_session":
		var p playersPayload
		if err := msg.Bind(&p); err != nil {
			c.sendError("", CodeBadRequest, err.Error())
			return
		}
		s := c.gateway.sessions.Create()
		s.SetPlayers(p.players())
		c.bind(s)
		c.reply("state", s.ID(), s.State())
		return
	case "join":
		s, err := c.gateway.sessions.Get(msg.SessionID)
		if err != nil {
			c.sendError(msg.SessionID, CodeNoSession, err.Error())
			return
		}
		c.bind(s)
		c.reply("state", s.ID(), s.State())
		return
	}

	s := c.current()
	if s == nil {
		c.sendError(msg.SessionID, CodeNoSession, "no session: send create_session or join first")
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, requestTimeout)
	defer cancel()

	switch msg.Type {
	case "state":
		c.reply("state", s.ID(), s.State())
	case "move":
		var p movePayload
		if err := msg.Bind(&p); err != nil {
			c.sendError(s.ID(), CodeBadRequest, err.Error())
			return
		}
		st, err := s.PlayerMove(p.UCI)
		if err != nil {
			c.fail(s.ID(), err)
			return
		}
		c.reply("state", s.ID(), st)
		if p.EngineReply && st.Status == match.StatusActive {
			c.engineMove(ctx, s, p.enginePayload)
		}
	case "engine_move":
		var p enginePayload
		if err := msg.Bind(&p); err != nil {
			c.sendError(s.ID(), CodeBadRequest, err.Error())
			return
		}
		c.engineMove(ctx, s, p)
	case "analyze":
		var p analyzePayload
		if err := msg.Bind(&p); err != nil {
			c.sendError(s.ID(), CodeBadRequest, err.Error())
			return
		}
		a, err := s.Analyze(ctx, p.FEN, seconds(p.TimeLimit, match.DefaultAnalyzeTime))
		if err != nil {
			c.fail(s.ID(), err)
			return
		}
		c.reply("analysis", s.ID(), a)
	case "reset":
		c.reply("state", s.ID(), s.Reset())
	case "resign":
		var p resignPayload
		if err := msg.Bind(&p); err != nil {
			c.sendError(s.ID(), CodeBadRequest, err.Error())
			return
		}
		st, err := s.Resign(rules.Side(p.ResignedSide))
		if err != nil {
			c.fail(s.ID(), err)
			return
		}
		c.reply("state", s.ID(), st)
		c.reply("pgn", s.ID(), map[string]any{"pgn": s.PGN()})
	default:
		c.sendError(s.ID(), CodeUnknownType, "unknown message type "+msg.Type)
	}
}

func (c *Connection) engineMove(ctx context.Context, s *match.Session, p enginePayload) {
	req := match.EngineMoveRequest{
		Persona:    p.EnginePersona,
		EngineTime: seconds(p.EngineTime, c.gateway.engineTime),
		Seed:       p.RNGSeed,
	}
	if p.OpponentPreset != "" {
		preset, ok := persona.LookupPreset(p.OpponentPreset)
		if !ok {
			c.sendError(s.ID(), CodeBadRequest, "unknown opponent preset "+p.OpponentPreset)
			return
		}
		if req.Persona == "" {
			req.Persona = preset.Persona
		}
		if p.EngineTime == nil && preset.EngineTime > 0 {
			req.EngineTime = preset.EngineTime
		}
	}
	res, err := s.EngineMove(ctx, req)
	if err != nil {
		c.fail(s.ID(), err)
		return
	}
	c.reply("engine_move", s.ID(), res)
	if res.State.Status == match.StatusEnded {
		c.reply("pgn", s.ID(), map[string]any{"pgn": s.PGN()})
	}
}

func (c *Connection) fail(sessionID string, err error) {
	switch {
	case errors.Is(err, rules.ErrGameOver):
		c.sendError(sessionID, CodeGameOver, err.Error())
	case errors.Is(err, rules.ErrIllegalMove), errors.Is(err, rules.ErrInvalidFEN),
		errors.Is(err, persona.ErrUnknownPersona):
		c.sendError(sessionID, CodeBadRequest, err.Error())
	default:
		c.gateway.logger.Warn("request failed", zap.String("conn", c.ID), zap.Error(err))
		c.sendError(sessionID, CodeEngine, err.Error())
	}
}

func seconds(v *float64, def time.Duration) time.Duration {
	if v == nil || *v <= 0 {
		return def
	}
	return time.Duration(*v * float64(time.Second))
}
