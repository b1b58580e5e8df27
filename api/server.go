package api

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Server exposes the agent tools over HTTP.
type Server struct {
	app    *fiber.App
	port   int
	logger *zap.Logger
}

func NewServer(port int, h *Handler, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler:          NewErrorHandler(logger),
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          5 * time.Minute,
		DisableStartupMessage: true,
	})

	app.Get("/health", h.HandleHealth)

	apiv := app.Group("/api")
	docs := apiv.Group("/docs")
	docs.Post("/search", h.HandleSearch)
	docs.Get("/pages", h.HandleListPages)
	docs.Get("/page", h.HandlePage)

	apiv.Post("/auth/token", h.HandleToken)
	apiv.Post("/loans", h.HandleLoans)
	apiv.Get("/loans/fields", h.HandleFields)
	apiv.Post("/agent/ask", h.HandleAsk)

	return &Server{app: app, port: port, logger: logger}
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting tool server", zap.Int("port", s.port))
	return s.app.Listen(":" + strconv.Itoa(s.port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
