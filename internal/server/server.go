package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/luxwatch/storefront/internal/auth"
	"github.com/luxwatch/storefront/internal/config"
	"github.com/luxwatch/storefront/internal/response"
	"github.com/luxwatch/storefront/internal/routes"
)

// Server wraps the Fiber application and the identity manager it serves.
type Server struct {
	app     *fiber.App
	cfg     config.Config
	manager *auth.Manager
}

// New instantiates the HTTP server and delegates route wiring to routes.Setup.
// db and cache may be nil in dev; the manager then falls back to in-memory stores.
func New(cfg config.Config, db *pgxpool.Pool, cache *redis.Client, reg *prometheus.Registry, logger *slog.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: response.ErrorHandler(logger),
	})

	manager, err := routes.Setup(app, routes.Deps{Cfg: cfg, DB: db, Cache: cache, Logger: logger, Registry: reg})
	if err != nil {
		return nil, err
	}

	return &Server{app: app, cfg: cfg, manager: manager}, nil
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Manager returns the identity manager serving this process.
func (s *Server) Manager() *auth.Manager { return s.manager }

// Listen starts the HTTP server.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Address())
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
