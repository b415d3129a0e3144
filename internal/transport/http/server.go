package http

import (
	"context"
	"errors"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/mentorpad-server/internal/config"
	"github.com/vovakirdan/mentorpad-server/internal/core"
	"github.com/vovakirdan/mentorpad-server/internal/metrics"
	"github.com/vovakirdan/mentorpad-server/internal/store"
)

// Server serves the websocket endpoint and the REST API.
type Server struct {
	http *stdhttp.Server
	ws   *WSHandler
}

// NewServer builds the HTTP server. /ws is mounted on the mux directly:
// the websocket handler hijacks the connection and must see the raw
// ResponseWriter.
func NewServer(coord *core.Coordinator, st store.RoomStore, cfg *config.Config, logger *zerolog.Logger, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	rooms := NewRoomHandlers(st, coord, logger)
	api := router.Group("/api/codeblocks")
	{
		api.GET("", rooms.ListRooms)
		api.GET("/:id", rooms.GetRoom)
		api.PUT("/:id", rooms.UpdateCode)
	}

	ws := NewWSHandler(coord, logger, m, WSOptions{
		MaxMessageBytes:    cfg.MaxMessageBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		AllowedOrigins:     cfg.AllowedOrigins,
	})

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", ws)
	mux.Handle("/", router)

	return &Server{
		http: &stdhttp.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		ws: ws,
	}
}

// Handler returns the root handler.
func (s *Server) Handler() stdhttp.Handler {
	return s.http.Handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown stops accepting requests, closes live websocket sessions and
// waits until each one has released its room membership.
func (s *Server) Shutdown(ctx context.Context) error {
	httpErr := s.http.Shutdown(ctx)
	wsErr := s.ws.Shutdown(ctx)
	return errors.Join(httpErr, wsErr)
}
