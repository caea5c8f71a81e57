package server

import (
	"context"
	"net/http"
	"time"

	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/messages"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"github.com/Tyrowin/roomchat/internal/storage"
	"github.com/Tyrowin/roomchat/internal/users"
	"github.com/gorilla/websocket"
)

// Server bundles the hub with the repositories behind the HTTP surface.
type Server struct {
	cfg      Config
	hub      *Hub
	store    messages.Store
	rooms    *rooms.Service
	users    *users.Service
	durable  bool
	origins  originPolicy
	upgrader websocket.Upgrader
	log      logging.Logger
}

// New wires a Server over the repositories owned by mgr. The hub is not
// running until Start is called.
func New(cfg Config, mgr storage.Manager, log logging.Logger) *Server {
	cfg = cfg.Sanitize()

	s := &Server{
		cfg:     cfg,
		hub:     NewHub(log),
		store:   mgr.Messages(),
		rooms:   rooms.NewService(mgr.Rooms(), cfg.BcryptCost),
		users:   users.NewService(mgr.Users(), cfg.BcryptCost),
		durable: mgr.Durable(),
		origins: newOriginPolicy(cfg.AllowedOrigins),
		log:     log.With("component", "server"),
	}

	for _, origin := range s.origins.invalid {
		s.log.Warn(context.Background(), "ignoring invalid allowed origin", "origin", origin)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) Hub() *Hub { return s.hub }

// Start launches the hub event loop.
func (s *Server) Start() {
	go s.hub.Run()
	s.log.Info(context.Background(), "hub started", "durable", s.durable)
}

// Shutdown stops the hub and waits for every connection to wind down.
func (s *Server) Shutdown(timeout time.Duration) error {
	return s.hub.Shutdown(timeout)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.origins.allows(r) {
		return true
	}
	s.log.Warn(r.Context(), "blocked websocket connection from disallowed origin",
		"origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
	return false
}
