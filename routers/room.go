package routers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"whiteboard-server/config"
	"whiteboard-server/handlers"
	"whiteboard-server/middlewares"
)

func RoomRouter(h *handlers.Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListRooms)
	r.Get("/{roomID}", h.GetRoom)

	return r
}

// New builds the full application router.
func New(h *handlers.Handler, cfg config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.Logger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", handlers.Health)
	r.Get("/ws", h.ServeWS)
	r.Mount("/rooms", RoomRouter(h))

	if cfg.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return r
}
