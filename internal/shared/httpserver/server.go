package httpserver

import (
	"context"
	"time"

	"github.com/cristianortiz/harvestAuction/internal/shared/logger"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Server is the thin fiber app hosting the health endpoint and the observer
// websocket routes.
type Server struct {
	app *fiber.App
}

func NewServer() *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(func(c *fiber.Ctx) error {
		log.Debug("HTTP request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("remote_addr", c.IP()),
		)
		return c.Next()
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	return &Server{app: app}
}

// App exposes the fiber app for route registration.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	log.Info("HTTP server started", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown drains connections with a timeout.
func (s *Server) Shutdown() error {
	log.Info("Shutting down HTTP server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}
