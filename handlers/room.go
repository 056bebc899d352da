package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/gorilla/websocket"

	"whiteboard-server/codec"
	"whiteboard-server/config"
	"whiteboard-server/hub"
	"whiteboard-server/types"
)

// Handler serves the WebSocket endpoint and the read-only room API on top
// of a running hub.
type Handler struct {
	hub      *hub.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func New(h *hub.Hub, cfg config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	origins := newOriginPolicy(cfg.AllowedOrigins, logger)
	return &Handler{
		hub:    h,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    codec.Subprotocols(),
			CheckOrigin:     origins.check,
		},
	}
}

// ServeWS upgrades the request and registers the connection with the hub.
// The hub assigns the connection id and starts its pumps.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := hub.NewClient(conn, h.hub, r.RemoteAddr)
	if err := h.hub.Register(r.Context(), client); err != nil {
		h.logger.Warn("registering client", "remote", r.RemoteAddr, "error", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.hub.Rooms(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, summaries)
}

func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	summary, ok, err := h.hub.Room(r.Context(), roomID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	if !ok {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, types.ErrorResponse{Error: fmt.Sprintf("room %q not found", roomID)})
		return
	}
	render.JSON(w, r, summary)
}

// Health is a liveness probe.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "whiteboard server is running")
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, hub.ErrClosed) {
		status = http.StatusServiceUnavailable
	}
	h.logger.Error("room query failed", "path", r.URL.Path, "error", err)
	render.Status(r, status)
	render.JSON(w, r, types.ErrorResponse{Error: http.StatusText(status)})
}
