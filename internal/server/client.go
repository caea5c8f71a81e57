// Package server manages individual WebSocket clients, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/Tyrowin/roomchat/internal/common"
	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	storeTimeout = 5 * time.Second
)

// Client is one accepted WebSocket session for one user in one room. The
// room never changes for the lifetime of the client.
type Client struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	store     messages.Store
	username  string
	room      string
	limiter   *rateLimiter
	rateLimit RateLimitConfig
	log       logging.Logger
	closeOnce sync.Once
	now       func() time.Time
}

// NewClient creates a Client with a send queue of cfg.SendBufferSize frames.
// conn may be nil in tests that only exercise the hub.
func NewClient(conn *websocket.Conn, hub *Hub, store messages.Store, cfg Config, log logging.Logger, username, room string) *Client {
	cfg = cfg.Sanitize()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Client{
		id:        id,
		conn:      conn,
		send:      make(chan []byte, cfg.SendBufferSize),
		hub:       hub,
		store:     store,
		username:  username,
		room:      room,
		limiter:   newRateLimiter(cfg.RateLimit),
		rateLimit: cfg.RateLimit,
		log:       log.With("conn", id, "user", username, "room", room),
		now:       time.Now,
	}
}

func (c *Client) ID() string       { return c.id }
func (c *Client) Username() string { return c.username }
func (c *Client) Room() string     { return c.room }

// SendChan exposes the outbound queue for reading.
func (c *Client) SendChan() <-chan []byte {
	return c.send
}

// enqueue puts a frame on the queue before the client is registered. Once
// registered only the hub writes to the queue.
func (c *Client) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// start launches both pumps as goroutines tracked by the hub.
func (c *Client) start() {
	c.hub.track(c.writePump)
	c.hub.track(c.readPump)
}

func (c *Client) closeConn() {
	c.closeOnce.Do(func() {
		if c.conn == nil {
			return
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn(context.Background(), "error closing connection", "error", err)
		}
	})
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn(context.Background(), "error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// logReadError records why the read loop ended.
func (c *Client) logReadError(err error) {
	ctx := context.Background()
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn(ctx, "message exceeded maximum size", "error", err)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.log.Info(ctx, "client disconnected", "error", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info(ctx, "client connection closed", "error", err)
	default:
		c.log.Warn(ctx, "websocket read error", "error", err)
	}
}

func (c *Client) checkRateLimit() bool {
	if c.limiter != nil && !c.limiter.allow() {
		c.log.Warn(context.Background(), "rate limit exceeded; discarding frame",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.closeConn()
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.handleFrame(raw)
	}
}

// handleFrame decodes one inbound frame and dispatches it. Malformed frames
// are logged and dropped.
func (c *Client) handleFrame(raw []byte) {
	ev, err := DecodeInbound(raw)
	if err != nil {
		c.log.Warn(context.Background(), "invalid frame", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, storeTimeout)
	defer cancel()

	switch ev := ev.(type) {
	case ChatSend:
		c.handleChat(ctx, ev)
	case TypingSignal:
		c.handleTyping(ev)
	case ReactionToggle:
		c.handleReaction(ctx, ev)
	}
}

// handleChat persists the message, acknowledges it to the sender and fans it
// out to the rest of the room. A failed save is only logged; nothing is sent.
func (c *Client) handleChat(ctx context.Context, ev ChatSend) {
	msg := messages.Message{
		Username:  c.username,
		Text:      ev.Text,
		Timestamp: timestampIn(ev.Timezone, c.now()),
		Room:      c.room,
		FileURL:   ev.FileURL,
		FileType:  ev.FileType,
		FileName:  ev.FileName,
		ReplyToID: ev.ReplyToID,
	}

	if _, err := c.store.Save(ctx, &msg); err != nil {
		c.log.Error(ctx, "save message", "error", err)
		return
	}

	if ev.ClientID != nil {
		ack, err := EncodeAck(*ev.ClientID, msg.ID)
		if err != nil {
			c.log.Error(ctx, "encode ack", "error", err)
		} else {
			c.hub.Broadcast(Envelope{Target: c, Payload: ack})
		}
	}

	payload, err := EncodeMessage(msg)
	if err != nil {
		c.log.Error(ctx, "encode message", "id", msg.ID, "error", err)
		return
	}
	c.hub.Broadcast(Envelope{Sender: c, Payload: payload})
}

func (c *Client) handleTyping(ev TypingSignal) {
	payload, err := EncodeTyping(c.username, ev.IsTyping)
	if err != nil {
		c.log.Error(context.Background(), "encode typing", "error", err)
		return
	}
	c.hub.Broadcast(Envelope{Sender: c, Payload: payload})
}

// handleReaction toggles the reactor and, when the ledger changed, tells the
// whole room including the reactor.
func (c *Client) handleReaction(ctx context.Context, ev ReactionToggle) {
	changed, err := c.store.ToggleReaction(ctx, ev.MessageID, ev.Emoji, c.username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			c.log.Debug(ctx, "reaction on unknown message", "id", ev.MessageID)
			return
		}
		c.log.Error(ctx, "toggle reaction", "id", ev.MessageID, "error", err)
		return
	}
	if !changed {
		return
	}

	payload, err := EncodeReaction(ev.MessageID, ev.Emoji, c.username)
	if err != nil {
		c.log.Error(ctx, "encode reaction", "error", err)
		return
	}
	c.hub.Broadcast(Envelope{Room: c.room, Payload: payload})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c)
		c.closeConn()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case frame, ok := <-c.send:
		if !ok {
			c.writeCloseMessage()
			return false
		}
		return c.writeFrame(frame)
	case <-ticker.C:
		return c.writePing()
	}
}

func (c *Client) writeCloseMessage() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.log.Debug(context.Background(), "error writing close message", "error", err)
	}
}

// writeFrame writes a single frame as its own text message.
func (c *Client) writeFrame(frame []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn(context.Background(), "error setting write deadline", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn(context.Background(), "error writing frame", "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn(context.Background(), "error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Warn(context.Background(), "error writing ping", "error", err)
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return strings.Contains(err.Error(), "broken pipe")
}
