// Package hub runs the event loop that owns the room registry. Connects,
// disconnects, client actions and read-only queries are all applied one at
// a time on the goroutine running Hub.Run, so room state needs no locks.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"whiteboard-server/config"
	"whiteboard-server/rooms"
	"whiteboard-server/types"
)

var ErrClosed = errors.New("hub is shut down")

type inbound struct {
	client *Client
	cmd    command
}

// Hub owns the registry and every registered client. It is the registry's
// Transport: signals go straight onto the client's send buffer.
type Hub struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *rooms.Registry

	clients map[string]*Client
	evicted []*Client

	register   chan *Client
	unregister chan *Client
	inbound    chan inbound
	queries    chan func(*rooms.Registry)

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg config.Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        cfg.Sanitize(),
		logger:     logger,
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inbound),
		queries:    make(chan func(*rooms.Registry)),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.registry = rooms.NewRegistry(h, logger.With("component", "rooms"))
	return h
}

// Send queues sig for conn. It never blocks: a client whose buffer is full
// is evicted and treated as disconnected once the current event finishes.
func (h *Hub) Send(conn string, sig types.Signal) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	select {
	case c.send <- sig:
	default:
		h.logger.Warn("send buffer full, dropping client", "conn", c.id, "addr", c.addr)
		h.drop(c)
		h.evicted = append(h.evicted, c)
	}
}

// Run processes events until Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case c := <-h.register:
			h.clients[c.id] = c
			h.Send(c.id, types.Signal{Event: types.EventConnected, Payload: c.id})
			h.logger.Info("client connected", "conn", c.id, "addr", c.addr, "codec", c.codec.Name(), "clients", len(h.clients))

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				c.writePump()
			}()
			go func() {
				defer h.wg.Done()
				c.readPump()
			}()

		case c := <-h.unregister:
			if h.clients[c.id] != c {
				continue
			}
			h.drop(c)
			h.registry.RemoveConnection(c.id)
			h.logger.Info("client disconnected", "conn", c.id, "addr", c.addr, "clients", len(h.clients))

		case in := <-h.inbound:
			if h.clients[in.client.id] != in.client {
				continue
			}
			if err := in.cmd.apply(h.registry, in.client.id); err != nil {
				h.logger.Debug("action ignored", "event", in.cmd.event(), "conn", in.client.id, "reason", err)
			}

		case q := <-h.queries:
			q(h.registry)
		}

		h.flushEvicted()
	}
}

// flushEvicted removes evicted clients from their rooms. Removal can evict
// further clients, so it loops until nothing is left.
func (h *Hub) flushEvicted() {
	for len(h.evicted) > 0 {
		c := h.evicted[0]
		h.evicted = h.evicted[1:]
		h.registry.RemoveConnection(c.id)
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c.id)
	close(c.send)
}

// Register hands a new client to the hub, which starts its pumps.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrClosed
	}
}

// dispatch queues a command from c. It returns false once the hub stops.
func (h *Hub) dispatch(c *Client, cmd command) bool {
	select {
	case h.inbound <- inbound{client: c, cmd: cmd}:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.ctx.Done():
	}
}

func (h *Hub) query(ctx context.Context, fn func(*rooms.Registry)) error {
	done := make(chan struct{})
	q := func(reg *rooms.Registry) {
		fn(reg)
		close(done)
	}

	select {
	case h.queries <- q:
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrClosed
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rooms lists every open room.
func (h *Hub) Rooms(ctx context.Context) ([]types.RoomSummary, error) {
	var out []types.RoomSummary
	err := h.query(ctx, func(reg *rooms.Registry) {
		out = reg.Summaries()
	})
	return out, err
}

// Room describes one open room.
func (h *Hub) Room(ctx context.Context, id string) (types.RoomSummary, bool, error) {
	var (
		out types.RoomSummary
		ok  bool
	)
	err := h.query(ctx, func(reg *rooms.Registry) {
		if room, found := reg.Room(id); found {
			out, ok = room.Summary(), true
		}
	})
	return out, ok, err
}

// ClientCount is the number of connected clients.
func (h *Hub) ClientCount(ctx context.Context) (int, error) {
	var n int
	err := h.query(ctx, func(*rooms.Registry) {
		n = len(h.clients)
	})
	return n, err
}

// shutdownClients closes every send buffer; the write pumps then send a
// close frame and hang up.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down client connections", "clients", len(h.clients))
	for _, c := range h.clients {
		h.drop(c)
	}
}

// Shutdown stops Run and waits for every client goroutine, or until
// timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.logger.Warn("hub shutdown timed out, some connections may still be open")
		return context.DeadlineExceeded
	}
}
