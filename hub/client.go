package hub

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"whiteboard-server/codec"
	"whiteboard-server/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one WebSocket connection. Its id is the connection identity
// used for room membership and lives only as long as the socket.
type Client struct {
	id      string
	addr    string
	conn    *websocket.Conn
	codec   codec.Codec
	hub     *Hub
	send    chan types.Signal
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient wraps an upgraded connection. The codec is chosen from the
// negotiated subprotocol.
func NewClient(conn *websocket.Conn, h *Hub, addr string) *Client {
	cfg := h.cfg
	id := uuid.NewString()

	c := &Client{
		id:      id,
		addr:    addr,
		conn:    conn,
		codec:   codec.JSON,
		hub:     h,
		send:    make(chan types.Signal, cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimit.Burst)/cfg.RateLimit.RefillInterval.Seconds()), cfg.RateLimit.Burst),
		logger:  h.logger.With("conn", id),
	}
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
		c.codec = codec.ForSubprotocol(conn.Subprotocol())
	}
	return c
}

func (c *Client) ID() string { return c.id }

func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.closeConnection()
	}()

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Debug("setting read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.Allow() {
			c.logger.Debug("rate limit exceeded, dropping frame", "addr", c.addr)
			continue
		}
		if !codec.Accepts(c.codec, messageType) {
			c.logger.Debug("frame type does not match codec", "codec", c.codec.Name(), "type", messageType)
			continue
		}

		frame, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Debug("invalid frame", "error", err)
			continue
		}
		cmd, err := parseCommand(c.codec, frame)
		if err != nil {
			c.logger.Debug("invalid command", "error", err)
			continue
		}

		if !c.hub.dispatch(c, cmd) {
			return
		}
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", "addr", c.addr, "limit", c.hub.cfg.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.logger.Debug("client closed connection", "addr", c.addr)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Debug("connection closed", "addr", c.addr, "error", err)
	default:
		c.logger.Info("websocket read error", "addr", c.addr, "error", err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for {
		select {
		case sig, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := c.codec.Encode(sig)
			if err != nil {
				c.logger.Error("encoding signal", "event", sig.Event, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(c.codec.MessageType(), data); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Info("websocket write error", "addr", c.addr, "error", err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("closing connection", "error", err)
	}
}

// isExpectedCloseError reports errors that only mean the peer or the other
// pump already closed the socket.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "use of closed network connection") ||
		strings.Contains(msg, "broken pipe")
}
