/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/Seednode/quizbox/provider"
	"github.com/Seednode/quizbox/quiz"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
)

const (
	actionTimeout   = 5 * time.Second
	defaultPongWait = 60 * time.Second
	maxMessageSize  = 64 << 10
	sendBuffer      = 64
	writeWait       = 10 * time.Second
)

// Gateway maps websocket connections onto quiz sessions and delivers the
// events those sessions emit.
type Gateway struct {
	cfg      *Config
	registry *quiz.Registry
	provider provider.Provider
	upgrader websocket.Upgrader
	log      zerolog.Logger

	// pongWait is how long a connection may stay silent before it is
	// dropped. Pings go out at nine tenths of it.
	pongWait time.Duration

	mu      sync.RWMutex
	clients map[quiz.ConnID]*Client
}

type Client struct {
	id   quiz.ConnID
	conn *websocket.Conn
	send chan quiz.Event

	// code of the session this connection created or joined. Only the
	// connection's read loop touches it.
	code string
}

func newGateway(cfg *Config, opts quiz.Options, p provider.Provider) *Gateway {
	g := &Gateway{
		cfg:      cfg,
		provider: p,
		log:      opts.Logger,
		pongWait: defaultPongWait,
		clients:  make(map[quiz.ConnID]*Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.corsOrigins),
		},
	}
	g.registry = quiz.NewRegistry(g, opts)

	return g
}

func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

// Deliver queues ev for every listed connection still attached. A client
// whose queue is full is dropped rather than stalling the session.
func (g *Gateway) Deliver(to []quiz.ConnID, ev quiz.Event) {
	var slow []*Client

	g.mu.RLock()
	for _, id := range to {
		c, ok := g.clients[id]
		if !ok {
			continue
		}
		select {
		case c.send <- ev:
		default:
			slow = append(slow, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range slow {
		g.log.Warn().Str("conn", string(c.id)).Str("event", string(ev.Type)).Msg("send queue full, dropping client")
		_ = c.conn.Close()
	}
}

func (g *Gateway) reply(c *Client, ev quiz.Event) {
	g.Deliver([]quiz.ConnID{c.id}, ev)
}

func (g *Gateway) replyError(c *Client, action string, err error) {
	level := zerolog.DebugLevel
	if kind := quiz.KindOf(err); kind == quiz.KindInternal || kind == quiz.KindProvider {
		level = zerolog.WarnLevel
	}
	g.log.WithLevel(level).Err(err).Str("conn", string(c.id)).Str("action", action).Msg("rejected action")

	g.reply(c, quiz.ErrorEvent(err))
}

func (g *Gateway) register(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.clients[c.id] = c
}

func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.clients[c.id]; ok {
		delete(g.clients, c.id)
		close(c.send)
	}
}

func (g *Gateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.clients)
}

// Close ends every session and drops every connection.
func (g *Gateway) Close() {
	g.registry.Close()

	g.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(g.clients))
	for _, c := range g.clients {
		conns = append(conns, c.conn)
	}
	g.mu.RUnlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func serveWebsocket(g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := g.upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Debug().Err(err).Str("ip", realIP(r)).Msg("websocket upgrade failed")
			return
		}

		c := &Client{
			id:   quiz.ConnID(uuid.NewString()),
			conn: conn,
			send: make(chan quiz.Event, sendBuffer),
		}

		g.register(c)

		g.log.Info().Str("conn", string(c.id)).Str("ip", realIP(r)).Int("clients", g.Len()).Msg("client connected")

		go c.writePump(g.pongWait * 9 / 10)
		g.readPump(c)
	}
}

func (g *Gateway) readPump(c *Client) {
	defer g.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.log.Debug().Err(err).Str("conn", string(c.id)).Msg("read failed")
			}
			return
		}

		msg, err := decodeClientMessage(data)
		if err != nil {
			g.replyError(c, "decode", err)
			continue
		}

		g.dispatch(c, msg)

		// Pongs that arrived while an action ran are still unread.
		_ = c.conn.SetReadDeadline(time.Now().Add(g.pongWait))
	}
}

func (c *Client) writePump(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
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

// disconnect detaches c and tells its session it left.
func (g *Gateway) disconnect(c *Client) {
	g.unregister(c)
	_ = c.conn.Close()

	g.log.Info().Str("conn", string(c.id)).Str("code", c.code).Int("clients", g.Len()).Msg("client disconnected")

	if c.code == "" {
		return
	}

	s, err := g.registry.Get(c.code)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if err := s.Leave(ctx, c.id); err != nil && !errors.Is(err, quiz.ErrSessionClosed) {
		g.log.Warn().Err(err).Str("conn", string(c.id)).Str("code", c.code).Msg("failed to leave session")
	}
}

func (g *Gateway) dispatch(c *Client, msg ClientMessage) {
	if msg.Type == actionCreate {
		g.createSession(c, msg)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	if msg.Type == actionJoin && g.bound(ctx, c) {
		g.replyError(c, msg.Type, errInSession)
		return
	}

	s, err := g.registry.Get(msg.Code)
	if err != nil {
		g.replyError(c, msg.Type, err)
		return
	}

	switch msg.Type {
	case actionJoin:
		err = s.Join(ctx, c.id, msg.Name)
		if err == nil {
			c.code = s.Code()
		}
	case actionStart:
		err = s.Start(ctx, c.id)
	case actionSubmit:
		err = s.Submit(ctx, c.id, *msg.Option)
	case actionAdvance:
		err = s.Advance(ctx, c.id)
	}
	if err != nil {
		g.replyError(c, msg.Type, err)
	}
}

// bound reports whether c still belongs to a session that is being
// played. A binding to a session that is gone or over is released.
func (g *Gateway) bound(ctx context.Context, c *Client) bool {
	if c.code == "" {
		return false
	}

	if s, err := g.registry.Get(c.code); err == nil {
		snapshot, err := s.Snapshot(ctx, c.id)
		switch {
		case errors.Is(err, quiz.ErrSessionClosed):
		case err != nil:
			return true
		case snapshot.Phase != quiz.PhaseEnded:
			return true
		default:
			if err := s.Leave(ctx, c.id); err != nil && !errors.Is(err, quiz.ErrSessionClosed) {
				g.log.Debug().Err(err).Str("conn", string(c.id)).Str("code", c.code).Msg("failed to leave ended session")
			}
		}
	}

	g.log.Debug().Str("conn", string(c.id)).Str("code", c.code).Msg("released stale session binding")
	c.code = ""

	return false
}

func (g *Gateway) createSession(c *Client, msg ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	inSession := g.bound(ctx, c)
	cancel()
	if inSession {
		g.replyError(c, msg.Type, errInSession)
		return
	}

	questions := msg.Questions
	if msg.Topic != "" {
		ctx, cancel := context.WithTimeout(context.Background(), g.cfg.providerTimeout)
		generated, err := provider.Generate(ctx, g.provider, msg.Topic)
		cancel()
		if err != nil {
			g.replyError(c, msg.Type, err)
			return
		}
		questions = generated
	}

	s, err := g.registry.Create(c.id, questions)
	if err != nil {
		g.replyError(c, msg.Type, err)
		return
	}
	c.code = s.Code()

	ctx, cancel = context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	snapshot, err := s.Snapshot(ctx, c.id)
	if err != nil {
		g.replyError(c, msg.Type, err)
		return
	}

	g.reply(c, quiz.Event{Type: quiz.EventSessionCreated, Data: snapshot})
}
