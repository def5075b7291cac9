// Package server exposes the HTTP surface: stream discovery and roster
// endpoints, the admin API, the status websocket and prometheus metrics.
package server

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Elephantprime/Unhinged-sub000/internal/config"
	"github.com/Elephantprime/Unhinged-sub000/internal/session"
	"github.com/Elephantprime/Unhinged-sub000/internal/sockets"
	"github.com/Elephantprime/Unhinged-sub000/internal/store"
	"github.com/Elephantprime/Unhinged-sub000/internal/stream"
)

type Server struct {
	app           *fiber.App
	manager       *config.Manager
	hub           *session.Hub
	registry      *stream.Registry
	docs          store.DocumentStore
	statusSockets *sockets.SocketPool
}

func NewServer(manager *config.Manager, hub *session.Hub, registry *stream.Registry, docs store.DocumentStore) *Server {
	app := fiber.New(fiber.Config{
		BodyLimit:             4 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	return &Server{
		app:           app,
		manager:       manager,
		hub:           hub,
		registry:      registry,
		docs:          docs,
		statusSockets: sockets.NewSocketPool(),
	}
}

// Setup mounts every route. Must be called before Listen.
func (s *Server) Setup() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.setupStreamApi()
	s.setupAdminApi()
	s.setupStatusSocket()
}

// Listen blocks serving HTTP (or HTTPS when TLS files are configured).
func (s *Server) Listen() error {
	cfg := s.manager.Get().Server
	addr := ":" + strconv.Itoa(cfg.Port)

	if cfg.TLSCrtFile != nil && cfg.TLSKeyFile != nil {
		slog.Info("serving with TLS", "addr", addr)
		return s.app.ListenTLS(addr, *cfg.TLSCrtFile, *cfg.TLSKeyFile)
	}
	slog.Info("serving", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error {
	s.statusSockets.Close()
	if err := s.app.Shutdown(); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
