package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"realtime-backend/internal/cache"
	"realtime-backend/internal/config"
	"realtime-backend/internal/db"
	"realtime-backend/internal/handlers"
	"realtime-backend/internal/realtime"
	"realtime-backend/internal/services"
	"realtime-backend/internal/store/memory"
	"realtime-backend/internal/store/postgres"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
)

// backend is everything the services need from persistence.
type backend interface {
	services.ChatStore
	services.ConnectionStore
	services.UserDirectory
}

type App struct {
	cfg      *config.Config
	log      zerolog.Logger
	http     *fiber.App
	registry *realtime.Registry

	// sessions live until cancel is called
	sessionCtx context.Context
	cancel     context.CancelFunc
	closers    []func()
	// readiness probes served on /health, by dependency name
	checks map[string]func(context.Context) error
}

// New builds the store, cache, services, registry and routes described by cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log, checks: map[string]func(context.Context) error{}}

	st, err := a.openStore(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	c, err := a.openCache(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	users := services.NewCachedDirectory(st, c, cfg.DirectoryCacheTTL, log)

	verifier := services.NewJWTVerifier(cfg.JWTSecret, users)
	chats := services.NewChatService(st, users, log)
	conns := services.NewConnectionService(st, users, log)

	a.registry = realtime.NewRegistry()
	router := realtime.NewRouter(a.registry, log)
	sessions := handlers.NewSessionHandler(verifier, chats, users, router, cfg.WSIdleTimeout, cfg.WSWriteTimeout, log)
	api := handlers.NewAPI(chats, conns, router, log)
	for _, name := range []string{"postgres", "cache"} {
		if fn, ok := a.checks[name]; ok {
			api.WithCheck(name, fn)
		}
	}

	a.sessionCtx, a.cancel = context.WithCancel(context.Background())

	a.http = fiber.New(fiber.Config{
		AppName:               "realtime-backend",
		DisableStartupMessage: !cfg.IsDevelopment(),
	})
	a.http.Use(logger.New())
	a.http.Use(recover.New())
	a.http.Use(cors.New())
	handlers.Register(a.sessionCtx, a.http, api, sessions, verifier)

	return a, nil
}

func (a *App) openStore(ctx context.Context) (backend, error) {
	if a.cfg.StoreDriver == config.DriverMemory {
		a.log.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}

	pool, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	a.checks["postgres"] = pool.Ping
	a.log.Info().Msg("connected to PostgreSQL")

	if a.cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		a.log.Info().Msg("schema migrated")
	}
	return postgres.New(pool), nil
}

func (a *App) openCache(ctx context.Context) (cache.Cache, error) {
	if a.cfg.RedisURL == "" {
		m := cache.NewMemory()
		a.checks["cache"] = m.Ping
		return m, nil
	}
	c, err := cache.NewRedis(ctx, a.cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = c.Close() })
	a.checks["cache"] = c.Ping
	a.log.Info().Msg("connected to Redis")
	return c, nil
}

// Handler exposes the fiber app, mainly for tests.
func (a *App) Handler() *fiber.App { return a.http }

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts down.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.http.Listen(":" + a.cfg.Port)
	}()
	a.log.Info().Str("port", a.cfg.Port).Msg("listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var runErr error
	select {
	case <-ctx.Done():
	case s := <-sig:
		a.log.Info().Str("signal", s.String()).Msg("gracefully shutting down")
	case runErr = <-errCh:
	}

	a.Shutdown()
	return runErr
}

// Shutdown closes every session with 1001, stops the HTTP server and releases resources.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.registry != nil {
		n := a.registry.CloseAll(websocket.CloseGoingAway, "server shutdown")
		a.log.Info().Int("connections", n).Msg("closed websocket connections")
	}
	if a.http != nil {
		if err := a.http.ShutdownWithTimeout(a.cfg.ShutdownTimeout); err != nil {
			a.log.Error().Err(err).Msg("http shutdown")
		}
	}
	a.close()
	a.log.Info().Msg("server shutdown complete")
}

func (a *App) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
