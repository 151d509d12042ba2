package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/luxwatch/storefront/internal/auth"
	"github.com/luxwatch/storefront/internal/config"
	"github.com/luxwatch/storefront/internal/identity"
	"github.com/luxwatch/storefront/internal/metrics"
	"github.com/luxwatch/storefront/internal/middleware"
	"github.com/luxwatch/storefront/internal/notification"
	"github.com/luxwatch/storefront/internal/session"
)

const (
	metricsNamespace = "storefront"
	restoreTimeout   = 5 * time.Second
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	DB       *pgxpool.Pool
	Cache    *redis.Client
	Logger   *slog.Logger
	Registry *prometheus.Registry
}

// Setup builds the identity manager, restores the persisted session and
// registers middlewares and all application routes. It returns the manager so
// callers can inspect the session.
func Setup(app *fiber.App, d Deps) (*auth.Manager, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	manager, err := buildManager(d)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
	manager.Restore(ctx)
	cancel()

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)
	RegisterMetricsRoute(app, d.Registry)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDKey).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	h := auth.NewHandler(manager)
	api.Get("/session", h.Session)
	var replay fiber.Handler
	if d.Cache != nil {
		replay = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	RegisterAuthRoutes(api, h, manager, AuthLimits{
		Login:  middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit),
		Replay: replay,
	})
	RegisterProfileRoutes(api, h, manager)

	return manager, nil
}

func buildManager(d Deps) (*auth.Manager, error) {
	var creds identity.CredentialStore
	if d.DB != nil {
		creds = identity.NewPostgresStore(d.DB)
	} else {
		fixtures, err := identity.NewFixtureStore(identity.DefaultFixtures()...)
		if err != nil {
			return nil, fmt.Errorf("load fixture accounts: %w", err)
		}
		creds = fixtures
	}

	var store session.Store
	if d.Cache != nil {
		store = session.NewRedisStore(d.Cache, d.Cfg.SessionKey, d.Logger)
	} else {
		store = session.NewMemoryStore()
	}

	return auth.NewManager(creds, store,
		auth.WithLogger(d.Logger),
		auth.WithLatency(d.Cfg.AuthLatency),
		auth.WithNotifier(notification.NewLoggerNotifier(d.Logger)),
		auth.WithMetrics(metrics.NewAuthMetrics(metricsNamespace, d.Registry)),
	), nil
}
